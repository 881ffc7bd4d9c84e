package domain

import "errors"

var (
	ErrMalformedHandshake = errors.New("malformed handshake frame")
	ErrInvalidMessageID   = errors.New("invalid message id")
	ErrEmptyMessage       = errors.New("empty message text")
	ErrInvalidAccountID   = errors.New("invalid account id")
)
