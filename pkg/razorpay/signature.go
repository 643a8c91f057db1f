package razorpay

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// SignaturePayload builds the string Razorpay signs for a checkout
// confirmation: "<order_id>|<payment_id>".
func SignaturePayload(orderID, paymentID string) string {
	return orderID + "|" + paymentID
}

// VerifyPaymentSignature recomputes the checkout signature with the key
// secret and compares it in constant time against the supplied one.
func VerifyPaymentSignature(orderID, paymentID, signature, secret string) bool {
	return verifyHMAC([]byte(SignaturePayload(orderID, paymentID)), signature, secret)
}

// VerifyWebhookSignature validates the X-Razorpay-Signature header against
// the raw webhook request body.
func VerifyWebhookSignature(body []byte, signature, secret string) bool {
	return verifyHMAC(body, signature, secret)
}

func verifyHMAC(payload []byte, signature, secret string) bool {
	if signature == "" || secret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}

// Sign computes the hex HMAC-SHA256 of payload with secret. Exposed for
// tests and for callers that need to produce signatures (e.g. simulators).
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
