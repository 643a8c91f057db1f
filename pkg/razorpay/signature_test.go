package razorpay

import "testing"

func TestVerifyPaymentSignature(t *testing.T) {
	secret := "test-key-secret"
	orderID := "order_Nxq1pXm7ZkD2Ab"
	paymentID := "pay_Nxq2rKm9QwE3Cd"

	valid := Sign([]byte(SignaturePayload(orderID, paymentID)), secret)

	tests := []struct {
		name      string
		orderID   string
		paymentID string
		signature string
		secret    string
		want      bool
	}{
		{
			name:      "valid signature",
			orderID:   orderID,
			paymentID: paymentID,
			signature: valid,
			secret:    secret,
			want:      true,
		},
		{
			name:      "wrong secret",
			orderID:   orderID,
			paymentID: paymentID,
			signature: Sign([]byte(SignaturePayload(orderID, paymentID)), "other-secret"),
			secret:    secret,
			want:      false,
		},
		{
			name:      "swapped order and payment ids",
			orderID:   paymentID,
			paymentID: orderID,
			signature: valid,
			secret:    secret,
			want:      false,
		},
		{
			name:      "empty signature",
			orderID:   orderID,
			paymentID: paymentID,
			signature: "",
			secret:    secret,
			want:      false,
		},
		{
			name:      "empty secret",
			orderID:   orderID,
			paymentID: paymentID,
			signature: valid,
			secret:    "",
			want:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := VerifyPaymentSignature(tt.orderID, tt.paymentID, tt.signature, tt.secret)
			if got != tt.want {
				t.Errorf("VerifyPaymentSignature() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVerifyWebhookSignature(t *testing.T) {
	secret := "webhook-secret"
	body := []byte(`{"event":"payment.captured","payload":{}}`)

	if !VerifyWebhookSignature(body, Sign(body, secret), secret) {
		t.Error("expected valid webhook signature to verify")
	}

	if VerifyWebhookSignature(body, Sign(body, "wrong"), secret) {
		t.Error("expected signature from wrong secret to fail")
	}

	tampered := append([]byte(nil), body...)
	tampered[0] = ' '
	if VerifyWebhookSignature(tampered, Sign(body, secret), secret) {
		t.Error("expected tampered body to fail verification")
	}
}
