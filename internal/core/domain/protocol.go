package domain

import (
	"encoding/json"
)

// HandshakeKind tells the registry which view a connection belongs to.
type HandshakeKind int

const (
	// KindBroadcast connections receive fan-out messages addressed to their
	// receiver account.
	KindBroadcast HandshakeKind = iota
	// KindSubscription connections receive point-to-point messages from one
	// specific sender account.
	KindSubscription
)

func (k HandshakeKind) String() string {
	if k == KindSubscription {
		return "subscription"
	}
	return "broadcast"
}

// Handshake is the decoded first frame of a connection. The frame shape on
// the wire is `{"receiverAccountId": <int64>, "senderAccountId": <int64>?}`;
// presence of senderAccountId selects the subscription kind. Decoding happens
// once here so everything downstream switches on Kind instead of re-checking
// field optionality.
type Handshake struct {
	Kind       HandshakeKind
	ReceiverID int64
	SenderID   int64
}

// HandshakeAck is the confirmation frame written back after a successful
// handshake.
const HandshakeAck = "Server connection successful!"

// DecodeHandshake parses a raw handshake frame. Non-JSON payloads and frames
// without a usable receiverAccountId are protocol errors.
func DecodeHandshake(raw []byte) (Handshake, error) {
	var frame struct {
		ReceiverAccountID *int64 `json:"receiverAccountId"`
		SenderAccountID   *int64 `json:"senderAccountId"`
	}
	if err := json.Unmarshal(raw, &frame); err != nil {
		return Handshake{}, ErrMalformedHandshake
	}
	if frame.ReceiverAccountID == nil || *frame.ReceiverAccountID == 0 {
		return Handshake{}, ErrMalformedHandshake
	}
	hs := Handshake{Kind: KindBroadcast, ReceiverID: *frame.ReceiverAccountID}
	if frame.SenderAccountID != nil {
		hs.Kind = KindSubscription
		hs.SenderID = *frame.SenderAccountID
	}
	return hs, nil
}
