package services

import (
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type TokenService struct {
	log       *slog.Logger
	secretKey []byte
	issuer    string
}

func NewTokenService(log *slog.Logger, secret string) *TokenService {
	return &TokenService{
		log:       log,
		secretKey: []byte(secret),
		issuer:    "courier",
	}
}

func (s *TokenService) GenerateToken(accountID int64) (string, error) {
	claims := jwt.MapClaims{
		"sub": strconv.FormatInt(accountID, 10),
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(24 * time.Hour).Unix(),
		"iss": s.issuer,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secretKey)
}

// ValidateToken parses the JWT and returns the account id carried in 'sub'.
func (s *TokenService) ValidateToken(tokenStr string) (int64, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secretKey, nil
	})
	if err != nil || !token.Valid {
		return 0, fmt.Errorf("invalid token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, fmt.Errorf("invalid claims")
	}
	sub, ok := claims["sub"].(string)
	if !ok {
		return 0, fmt.Errorf("subject not found in token")
	}
	accountID, err := strconv.ParseInt(sub, 10, 64)
	if err != nil || accountID == 0 {
		return 0, fmt.Errorf("subject is not an account id")
	}
	return accountID, nil
}
