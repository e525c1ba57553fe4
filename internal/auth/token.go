package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"fleet_tracker/internal/apperr"
)

// DeviceClaims is the payload of a device session token.
type DeviceClaims struct {
	DeviceID string `json:"device_id"`
	jwt.RegisteredClaims
}

// TokenIssuer signs short-lived HS256 tokens for authenticated devices.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue must only be called after Gate.Authenticate succeeded.
func (t *TokenIssuer) Issue(deviceID string) (string, time.Time, error) {
	now := t.now()
	exp := now.Add(t.ttl)
	claims := DeviceClaims{
		DeviceID: deviceID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   deviceID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Parse returns the device id carried by a valid, unexpired token.
func (t *TokenIssuer) Parse(tokenStr string) (string, error) {
	var claims DeviceClaims
	token, err := jwt.ParseWithClaims(tokenStr, &claims, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(t.now))
	if err != nil || !token.Valid {
		return "", apperr.ErrInvalidCredential
	}
	if claims.DeviceID == "" {
		return "", errors.Join(apperr.ErrInvalidCredential, errors.New("token carries no device_id"))
	}
	return claims.DeviceID, nil
}
