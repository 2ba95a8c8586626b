package cryptox

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

// Signer produces request signatures for the signature/timestamp header pair.
//
// The signed message is timestamp, method, path and body joined by newlines,
// authenticated with HMAC-SHA256 and hex encoded.
type Signer struct {
	secret []byte
	now    func() time.Time
}

// NewSigner returns a Signer keyed with secret.
func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret), now: time.Now}
}

// Sign returns the unix timestamp used and the signature over the request.
func (s *Signer) Sign(method, path string, body []byte) (timestamp, signature string) {
	timestamp = strconv.FormatInt(s.now().Unix(), 10)
	return timestamp, s.SignAt(timestamp, method, path, body)
}

// SignAt computes the signature for an explicit timestamp.
func (s *Signer) SignAt(timestamp, method, path string, body []byte) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(timestamp))
	mac.Write([]byte{'\n'})
	mac.Write([]byte(method))
	mac.Write([]byte{'\n'})
	mac.Write([]byte(path))
	mac.Write([]byte{'\n'})
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature matches the request, in constant time.
func (s *Signer) Verify(timestamp, method, path string, body []byte, signature string) bool {
	want, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	got, _ := hex.DecodeString(s.SignAt(timestamp, method, path, body))
	return hmac.Equal(want, got)
}
