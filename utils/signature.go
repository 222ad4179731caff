package utils

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// ComputeSignature returns the hex-encoded HMAC-SHA256 of payload under secret.
func ComputeSignature(payload []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

// VerifySignature checks a provider-supplied signature against the expected
// keyed MAC of the payload. Comparison is constant time. Malformed input of
// any kind returns false; this function never panics, so webhook handling
// stays uniform for valid and garbage payloads alike.
func VerifySignature(payload []byte, providedSignature, secret string) bool {
	if secret == "" || providedSignature == "" {
		return false
	}
	provided, err := hex.DecodeString(providedSignature)
	if err != nil {
		return false
	}
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return hmac.Equal(h.Sum(nil), provided)
}

// VerifyCheckoutSignature checks the gateway checkout callback signature,
// computed over "orderId|paymentId" with the key secret.
func VerifyCheckoutSignature(orderID, paymentID, signature, secret string) bool {
	return VerifySignature([]byte(orderID+"|"+paymentID), signature, secret)
}
