package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/flickfooty/backend/internal/room"
	"github.com/golang-jwt/jwt/v4"
)

var ErrTokenMismatch = errors.New("token does not match room or user")

// Issuer signs resume tokens binding a user to a room. A reconnecting
// client presents the token so another device cannot take over its seat.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

var _ room.TokenIssuer = (*Issuer)(nil)

func (i *Issuer) Issue(roomID, userID string) (string, error) {
	exp := i.now().Add(i.ttl)
	claims := jwt.MapClaims{
		"room_id": roomID,
		"user_id": userID,
		"iat":     i.now().Unix(),
		"exp":     jwt.NewNumericDate(exp).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign resume token: %w", err)
	}
	return signed, nil
}

func (i *Issuer) Verify(token, roomID, userID string) error {
	if token == "" {
		return fmt.Errorf("missing token")
	}
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return i.secret, nil
	})
	if err != nil {
		return fmt.Errorf("parse resume token: %w", err)
	}
	if !parsed.Valid {
		return fmt.Errorf("invalid token")
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return fmt.Errorf("invalid token claims")
	}
	gotRoom, _ := claims["room_id"].(string)
	gotUser, _ := claims["user_id"].(string)
	if gotRoom != roomID || gotUser != userID {
		return ErrTokenMismatch
	}
	return nil
}
