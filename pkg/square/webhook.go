package square

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

// SignatureHeader carries Square's webhook signature.
const SignatureHeader = "X-Square-Hmacsha256-Signature"

// VerifySignature reports whether signature is the base64 HMAC-SHA256 of
// notificationURL followed by body, keyed with the subscription's signature
// key.
func VerifySignature(body []byte, signature, key, notificationURL string) bool {
	signature = strings.TrimSpace(signature)
	if signature == "" || key == "" || notificationURL == "" {
		return false
	}
	given, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false
	}
	return hmac.Equal(given, Sign(body, key, notificationURL))
}

// Sign computes the raw signature Square would send for body.
func Sign(body []byte, key, notificationURL string) []byte {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(notificationURL))
	mac.Write(body)
	return mac.Sum(nil)
}
