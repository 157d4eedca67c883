// Package auth issues and verifies the signed bearer tokens carried by
// dashboard clients and checks family credentials.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	"homedash/internal/model"
)

// Tokens are base64url(JSON payload) + "." + base64url(HMAC-SHA256 of the
// encoded payload). Encoding is unpadded.

var b64 = base64.RawURLEncoding

func sign(body, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	return b64.EncodeToString(mac.Sum(nil))
}

// CreateToken signs payload with secret.
func CreateToken(payload model.Session, secret string) string {
	data, _ := json.Marshal(payload)
	body := b64.EncodeToString(data)
	return body + "." + sign(body, secret)
}

// VerifyToken checks the signature and expiry of token against the
// current time. It returns nil, false for any invalid token.
func VerifyToken(token, secret string) (*model.Session, bool) {
	return VerifyTokenAt(token, secret, time.Now())
}

// VerifyTokenAt is VerifyToken evaluated at now.
func VerifyTokenAt(token, secret string, now time.Time) (*model.Session, bool) {
	if token == "" || secret == "" {
		return nil, false
	}
	parts := strings.Split(token, ".")
	if len(parts) != 2 {
		return nil, false
	}
	body, signature := parts[0], parts[1]

	expected := sign(body, secret)
	if len(signature) != len(expected) {
		return nil, false
	}
	if subtle.ConstantTimeCompare([]byte(signature), []byte(expected)) != 1 {
		return nil, false
	}

	data, err := b64.DecodeString(body)
	if err != nil {
		return nil, false
	}
	var session model.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, false
	}
	if session.Expired(now) {
		return nil, false
	}
	return &session, true
}
