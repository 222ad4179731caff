package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerifySignature(t *testing.T) {
	payload := []byte(`{"event":"payment.captured","payload":{}}`)
	secret := "whsec_test"
	signature := ComputeSignature(payload, secret)

	t.Run("valid signature", func(t *testing.T) {
		assert.True(t, VerifySignature(payload, signature, secret))
	})

	t.Run("tampered payload", func(t *testing.T) {
		tampered := append([]byte{}, payload...)
		tampered[0] = '['
		assert.False(t, VerifySignature(tampered, signature, secret))
	})

	t.Run("wrong secret", func(t *testing.T) {
		assert.False(t, VerifySignature(payload, signature, "whsec_other"))
	})

	t.Run("malformed hex does not panic", func(t *testing.T) {
		assert.False(t, VerifySignature(payload, "not-hex-at-all", secret))
		assert.False(t, VerifySignature(payload, "zz"+signature[2:], secret))
	})

	t.Run("truncated signature", func(t *testing.T) {
		assert.False(t, VerifySignature(payload, signature[:16], secret))
	})

	t.Run("empty signature or secret", func(t *testing.T) {
		assert.False(t, VerifySignature(payload, "", secret))
		assert.False(t, VerifySignature(payload, signature, ""))
	})

	t.Run("empty payload still verifies", func(t *testing.T) {
		empty := ComputeSignature(nil, secret)
		assert.True(t, VerifySignature(nil, empty, secret))
	})
}

func TestVerifyCheckoutSignature(t *testing.T) {
	secret := "rzp_test_secret"
	orderID := "order_LNy5aDWRSCTy7z"
	paymentID := "pay_LNy62hg3ztT1Nr"
	signature := ComputeSignature([]byte(orderID+"|"+paymentID), secret)

	assert.True(t, VerifyCheckoutSignature(orderID, paymentID, signature, secret))
	assert.False(t, VerifyCheckoutSignature(orderID, "pay_other", signature, secret))
	assert.False(t, VerifyCheckoutSignature("order_other", paymentID, signature, secret))
	assert.False(t, VerifyCheckoutSignature(orderID, paymentID, signature, "wrong"))
}
