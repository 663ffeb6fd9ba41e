package dispatch

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// SignatureHeader carries the platform's HMAC over the webhook body. It
// authenticates the platform to the agent; it is unrelated to the payment
// credential.
const SignatureHeader = "X-Agora-Signature"

// Signer produces hex-encoded HMAC-SHA256 signatures with a shared platform
// secret.
type Signer struct {
	secret []byte
}

// NewSigner creates a Signer. An empty secret yields empty signatures, which
// agents configured to verify will reject.
func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// Sign returns the hex HMAC-SHA256 of body.
func (s *Signer) Sign(body []byte) string {
	if len(s.secret) == 0 {
		return ""
	}
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature matches body, in constant time.
func (s *Signer) Verify(body []byte, signature string) bool {
	expected, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), expected)
}
