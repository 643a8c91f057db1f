package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/medora-health/medora_backend/config"
	"github.com/medora-health/medora_backend/internal/model"
	"github.com/medora-health/medora_backend/internal/service/notification"
	"github.com/medora-health/medora_backend/pkg/razorpay"
)

const (
	testKeySecret     = "test_key_secret"
	testWebhookSecret = "test_webhook_secret"
)

type fakeStore struct {
	mu           sync.Mutex
	appointments map[uuid.UUID]*model.Appointment
	patches      []model.PaymentPatch
	records      []*model.PaymentRecord
	ledgerStatus map[string]model.PaymentRecordStatus
}

func newFakeStore(appts ...*model.Appointment) *fakeStore {
	s := &fakeStore{
		appointments: map[uuid.UUID]*model.Appointment{},
		ledgerStatus: map[string]model.PaymentRecordStatus{},
	}
	for _, a := range appts {
		s.appointments[a.ID] = a
	}
	return s
}

func (s *fakeStore) GetAppointment(_ context.Context, id uuid.UUID) (*model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.appointments[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *fakeStore) UpdateAppointmentPayment(_ context.Context, id uuid.UUID, patch model.PaymentPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.appointments[id]
	if !ok {
		return model.ErrNotFound
	}
	s.patches = append(s.patches, patch)
	if patch.PaymentStatus != nil {
		a.PaymentStatus = *patch.PaymentStatus
	}
	if patch.Amount != nil {
		a.Amount = *patch.Amount
	}
	if patch.Currency != nil {
		a.Currency = *patch.Currency
	}
	if patch.GatewayOrderID != nil {
		a.GatewayOrderID = patch.GatewayOrderID
	}
	if patch.GatewayPaymentID != nil {
		a.GatewayPaymentID = patch.GatewayPaymentID
	}
	if patch.RefundID != nil {
		a.RefundID = patch.RefundID
	}
	if patch.RefundAmount != nil {
		a.RefundAmount = patch.RefundAmount
	}
	if patch.RefundedAt != nil {
		a.RefundedAt = patch.RefundedAt
	}
	return nil
}

func (s *fakeStore) InsertPaymentRecord(_ context.Context, r *model.PaymentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, r)
	return nil
}

func (s *fakeStore) UpdatePaymentRecordStatus(_ context.Context, gatewayPaymentID string, status model.PaymentRecordStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledgerStatus[gatewayPaymentID] = status
	return nil
}

func (s *fakeStore) ResolveUserDisplayName(_ context.Context, id uuid.UUID) (string, error) {
	return "Test User", nil
}

func (s *fakeStore) ResolveUserEmail(_ context.Context, id uuid.UUID) (string, error) {
	return "user@example.com", nil
}

func (s *fakeStore) mutationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.patches) + len(s.records)
}

type fakeGateway struct {
	order   *razorpay.Order
	payment *razorpay.Payment
	refund  *razorpay.Refund
	err     error

	mu            sync.Mutex
	refundedAmt   int64
	refundedCalls int
}

func (g *fakeGateway) CreateOrder(_ context.Context, amount int64, currency, receipt string, notes map[string]string) (*razorpay.Order, error) {
	if g.err != nil {
		return nil, g.err
	}
	return g.order, nil
}

func (g *fakeGateway) FetchPayment(_ context.Context, paymentID string) (*razorpay.Payment, error) {
	if g.err != nil {
		return nil, g.err
	}
	return g.payment, nil
}

func (g *fakeGateway) CreateRefund(_ context.Context, paymentID string, amount int64, notes map[string]string) (*razorpay.Refund, error) {
	if g.err != nil {
		return nil, g.err
	}
	g.mu.Lock()
	g.refundedAmt = amount
	g.refundedCalls++
	g.mu.Unlock()
	return g.refund, nil
}

type fakeDispatcher struct{}

func (fakeDispatcher) Send(context.Context, notification.Kind, string, notification.Payload) error {
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(store Store, gw Gateway, now time.Time) *service {
	cfg := config.RazorpayConfig{
		KeyID:         "rzp_test_key",
		KeySecret:     testKeySecret,
		WebhookSecret: testWebhookSecret,
		MinAmount:     100,
		Currency:      "INR",
	}
	svc := NewService(store, gw, fakeDispatcher{}, cfg, discardLogger()).(*service)
	if !now.IsZero() {
		svc.now = func() time.Time { return now }
	}
	return svc
}

func strPtr(s string) *string { return &s }

func int64Ptr(n int64) *int64 { return &n }

func acceptedAppointment(amount int64, start time.Time) *model.Appointment {
	return &model.Appointment{
		ID:            uuid.New(),
		PatientID:     uuid.New(),
		DoctorID:      uuid.New(),
		StartTime:     start,
		Status:        model.AppointmentAccepted,
		PaymentStatus: model.PaymentPending,
		Amount:        amount,
		Currency:      "INR",
	}
}

func TestRefundAmount(t *testing.T) {
	tests := []struct {
		name  string
		paid  int64
		until time.Duration
		want  int64
	}{
		{"well before, full refund", 10000, 30 * time.Hour, 10000},
		{"exactly 24h is not more than 24h", 10000, 24 * time.Hour, 5000},
		{"between 12 and 24 hours", 10000, 18 * time.Hour, 5000},
		{"between 6 and 12 hours", 10000, 9 * time.Hour, 2500},
		{"six hours exactly", 10000, 6 * time.Hour, 0},
		{"too close to start", 10000, 3 * time.Hour, 0},
		{"already started", 10000, -1 * time.Hour, 0},
		{"odd amount floors", 101, 9 * time.Hour, 25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RefundAmount(tt.paid, tt.until); got != tt.want {
				t.Errorf("RefundAmount(%d, %v) = %d, want %d", tt.paid, tt.until, got, tt.want)
			}
		})
	}
}

func TestCreateOrder(t *testing.T) {
	start := time.Now().Add(48 * time.Hour)

	t.Run("happy path leaves local state untouched", func(t *testing.T) {
		appt := acceptedAppointment(50000, start)
		store := newFakeStore(appt)
		gw := &fakeGateway{order: &razorpay.Order{ID: "order_123", Amount: 50000, Currency: "INR"}}
		svc := newTestService(store, gw, time.Time{})

		res, err := svc.CreateOrder(context.Background(), appt.ID, CreateOrderInput{})
		if err != nil {
			t.Fatalf("CreateOrder: %v", err)
		}
		if res.OrderID != "order_123" || res.Amount != 50000 || res.KeyID != "rzp_test_key" {
			t.Errorf("unexpected result: %+v", res)
		}
		if n := store.mutationCount(); n != 0 {
			t.Errorf("store mutated %d times, order creation must not write", n)
		}
		got, _ := store.GetAppointment(context.Background(), appt.ID)
		if got.GatewayOrderID != nil {
			t.Error("gateway order id set before verification")
		}
	})

	t.Run("explicit amount overrides the fee", func(t *testing.T) {
		appt := acceptedAppointment(50000, start)
		store := newFakeStore(appt)
		gw := &fakeGateway{order: &razorpay.Order{ID: "order_124", Amount: 30000, Currency: "INR"}}
		svc := newTestService(store, gw, time.Time{})

		res, err := svc.CreateOrder(context.Background(), appt.ID, CreateOrderInput{Amount: int64Ptr(30000)})
		if err != nil {
			t.Fatalf("CreateOrder: %v", err)
		}
		if res.Amount != 30000 {
			t.Errorf("amount = %d, want 30000", res.Amount)
		}
		got, _ := store.GetAppointment(context.Background(), appt.ID)
		if got.Amount != 50000 {
			t.Errorf("stored fee changed to %d, order creation must not write", got.Amount)
		}
	})

	t.Run("non-positive explicit amount falls back to the fee", func(t *testing.T) {
		appt := acceptedAppointment(50000, start)
		store := newFakeStore(appt)
		gw := &fakeGateway{order: &razorpay.Order{ID: "order_125", Amount: 50000, Currency: "INR"}}
		svc := newTestService(store, gw, time.Time{})

		res, err := svc.CreateOrder(context.Background(), appt.ID, CreateOrderInput{Amount: int64Ptr(-1)})
		if err != nil {
			t.Fatalf("CreateOrder: %v", err)
		}
		if res.Amount != 50000 {
			t.Errorf("amount = %d, want stored fee 50000", res.Amount)
		}
	})

	t.Run("rejects already paid appointment", func(t *testing.T) {
		appt := acceptedAppointment(50000, start)
		appt.PaymentStatus = model.PaymentPaid
		svc := newTestService(newFakeStore(appt), &fakeGateway{}, time.Time{})

		if _, err := svc.CreateOrder(context.Background(), appt.ID, CreateOrderInput{}); !errors.Is(err, ErrAlreadyPaid) {
			t.Errorf("err = %v, want ErrAlreadyPaid", err)
		}
	})

	t.Run("rejects amount below gateway minimum", func(t *testing.T) {
		appt := acceptedAppointment(50, start)
		svc := newTestService(newFakeStore(appt), &fakeGateway{}, time.Time{})

		if _, err := svc.CreateOrder(context.Background(), appt.ID, CreateOrderInput{}); !errors.Is(err, ErrBelowMinimum) {
			t.Errorf("err = %v, want ErrBelowMinimum", err)
		}
	})

	t.Run("unknown appointment", func(t *testing.T) {
		svc := newTestService(newFakeStore(), &fakeGateway{}, time.Time{})

		if _, err := svc.CreateOrder(context.Background(), uuid.New(), CreateOrderInput{}); !errors.Is(err, ErrAppointmentNotFound) {
			t.Errorf("err = %v, want ErrAppointmentNotFound", err)
		}
	})
}

func TestVerifyPayment(t *testing.T) {
	start := time.Now().Add(48 * time.Hour)

	setup := func() (*fakeStore, *fakeGateway, *model.Appointment) {
		appt := acceptedAppointment(50000, start)
		store := newFakeStore(appt)
		gw := &fakeGateway{payment: &razorpay.Payment{
			ID:       "pay_456",
			OrderID:  "order_123",
			Amount:   50000,
			Currency: "INR",
			Status:   "captured",
			Method:   "upi",
		}}
		return store, gw, appt
	}

	sign := func(orderID, paymentID string) string {
		return razorpay.Sign([]byte(razorpay.SignaturePayload(orderID, paymentID)), testKeySecret)
	}

	t.Run("invalid signature mutates nothing", func(t *testing.T) {
		store, gw, appt := setup()
		svc := newTestService(store, gw, time.Time{})

		err := svc.VerifyPayment(context.Background(), VerifyInput{
			AppointmentID: appt.ID,
			OrderID:       "order_123",
			PaymentID:     "pay_456",
			Signature:     "deadbeef",
		})
		if !errors.Is(err, ErrSignatureMismatch) {
			t.Fatalf("err = %v, want ErrSignatureMismatch", err)
		}
		if n := store.mutationCount(); n != 0 {
			t.Errorf("store mutated %d times on bad signature", n)
		}
	})

	t.Run("valid signature persists gateway-reported amount", func(t *testing.T) {
		store, gw, appt := setup()
		// Gateway reports a different amount than the appointment carries.
		// The gateway value must win.
		gw.payment.Amount = 49999
		svc := newTestService(store, gw, time.Time{})

		err := svc.VerifyPayment(context.Background(), VerifyInput{
			AppointmentID: appt.ID,
			OrderID:       "order_123",
			PaymentID:     "pay_456",
			Signature:     sign("order_123", "pay_456"),
		})
		if err != nil {
			t.Fatalf("VerifyPayment: %v", err)
		}

		got, _ := store.GetAppointment(context.Background(), appt.ID)
		if got.PaymentStatus != model.PaymentPaid {
			t.Errorf("payment status = %s, want paid", got.PaymentStatus)
		}
		if got.Amount != 49999 {
			t.Errorf("amount = %d, want gateway-reported 49999", got.Amount)
		}
		if got.GatewayPaymentID == nil || *got.GatewayPaymentID != "pay_456" {
			t.Error("gateway payment id not persisted")
		}

		store.mu.Lock()
		defer store.mu.Unlock()
		if len(store.records) != 1 {
			t.Fatalf("ledger rows = %d, want 1", len(store.records))
		}
		rec := store.records[0]
		if rec.Amount != 49999 || rec.Status != model.PaymentRecordCaptured {
			t.Errorf("unexpected ledger row: %+v", rec)
		}
		var raw map[string]any
		if err := json.Unmarshal(rec.RawPayload, &raw); err != nil {
			t.Errorf("raw payload is not valid JSON: %v", err)
		}
	})

	t.Run("replayed confirmation of same payment is a no-op", func(t *testing.T) {
		store, gw, appt := setup()
		svc := newTestService(store, gw, time.Time{})

		in := VerifyInput{
			AppointmentID: appt.ID,
			OrderID:       "order_123",
			PaymentID:     "pay_456",
			Signature:     sign("order_123", "pay_456"),
		}
		if err := svc.VerifyPayment(context.Background(), in); err != nil {
			t.Fatalf("first verify: %v", err)
		}
		before := store.mutationCount()
		if err := svc.VerifyPayment(context.Background(), in); err != nil {
			t.Fatalf("replayed verify: %v", err)
		}
		if after := store.mutationCount(); after != before {
			t.Errorf("replay mutated the store (%d -> %d)", before, after)
		}
	})

	t.Run("authorized payment confirms with an authorized ledger row", func(t *testing.T) {
		store, gw, appt := setup()
		gw.payment.Status = "authorized"
		svc := newTestService(store, gw, time.Time{})

		err := svc.VerifyPayment(context.Background(), VerifyInput{
			AppointmentID: appt.ID,
			OrderID:       "order_123",
			PaymentID:     "pay_456",
			Signature:     sign("order_123", "pay_456"),
		})
		if err != nil {
			t.Fatalf("VerifyPayment: %v", err)
		}
		store.mu.Lock()
		defer store.mu.Unlock()
		if len(store.records) != 1 || store.records[0].Status != model.PaymentRecordAuthorized {
			t.Errorf("unexpected ledger rows: %+v", store.records)
		}
	})

	t.Run("failed payment is rejected", func(t *testing.T) {
		store, gw, appt := setup()
		gw.payment.Status = "failed"
		svc := newTestService(store, gw, time.Time{})

		err := svc.VerifyPayment(context.Background(), VerifyInput{
			AppointmentID: appt.ID,
			OrderID:       "order_123",
			PaymentID:     "pay_456",
			Signature:     sign("order_123", "pay_456"),
		})
		if !errors.Is(err, ErrPaymentNotCaptured) {
			t.Errorf("err = %v, want ErrPaymentNotCaptured", err)
		}
	})

	t.Run("payment belonging to a different order is rejected", func(t *testing.T) {
		store, gw, appt := setup()
		// The gateway says pay_456 was made against another order than the
		// one the caller claims.
		gw.payment.OrderID = "order_999"
		svc := newTestService(store, gw, time.Time{})

		err := svc.VerifyPayment(context.Background(), VerifyInput{
			AppointmentID: appt.ID,
			OrderID:       "order_123",
			PaymentID:     "pay_456",
			Signature:     sign("order_123", "pay_456"),
		})
		if !errors.Is(err, ErrOrderMismatch) {
			t.Errorf("err = %v, want ErrOrderMismatch", err)
		}
		if n := store.mutationCount(); n != 0 {
			t.Errorf("store mutated %d times on order mismatch", n)
		}
	})

	t.Run("payment against a superseded order still confirms", func(t *testing.T) {
		store, gw, appt := setup()
		svc := newTestService(store, gw, time.Time{})

		// The customer pays order_123, then a retry opens a fresh order.
		gw.order = &razorpay.Order{ID: "order_124", Amount: 50000, Currency: "INR"}
		if _, err := svc.CreateOrder(context.Background(), appt.ID, CreateOrderInput{}); err != nil {
			t.Fatalf("CreateOrder: %v", err)
		}

		err := svc.VerifyPayment(context.Background(), VerifyInput{
			AppointmentID: appt.ID,
			OrderID:       "order_123",
			PaymentID:     "pay_456",
			Signature:     sign("order_123", "pay_456"),
		})
		if err != nil {
			t.Fatalf("VerifyPayment after retried order: %v", err)
		}
		got, _ := store.GetAppointment(context.Background(), appt.ID)
		if got.PaymentStatus != model.PaymentPaid {
			t.Errorf("payment status = %s, want paid", got.PaymentStatus)
		}
		if got.GatewayOrderID == nil || *got.GatewayOrderID != "order_123" {
			t.Error("verified order id not persisted")
		}
	})
}

func webhookBody(t *testing.T, event, paymentID, orderID string, notes map[string]string) []byte {
	t.Helper()
	status := "captured"
	if event == "payment.authorized" {
		status = "authorized"
	}
	body, err := json.Marshal(map[string]any{
		"event": event,
		"payload": map[string]any{
			"payment": map[string]any{
				"entity": map[string]any{
					"id":       paymentID,
					"order_id": orderID,
					"amount":   50000,
					"currency": "INR",
					"status":   status,
					"method":   "card",
					"notes":    notes,
				},
			},
		},
	})
	if err != nil {
		t.Fatalf("marshal webhook body: %v", err)
	}
	return body
}

func TestHandleWebhook(t *testing.T) {
	start := time.Now().Add(48 * time.Hour)

	setup := func() (*fakeStore, *fakeGateway, *model.Appointment) {
		appt := acceptedAppointment(50000, start)
		store := newFakeStore(appt)
		gw := &fakeGateway{payment: &razorpay.Payment{
			ID:       "pay_456",
			OrderID:  "order_123",
			Amount:   50000,
			Currency: "INR",
			Status:   "captured",
			Method:   "card",
		}}
		return store, gw, appt
	}

	t.Run("captured event confirms the payment", func(t *testing.T) {
		store, gw, appt := setup()
		svc := newTestService(store, gw, time.Time{})

		body := webhookBody(t, "payment.captured", "pay_456", "order_123",
			map[string]string{"appointment_id": appt.ID.String()})
		sig := razorpay.Sign(body, testWebhookSecret)

		if err := svc.HandleWebhook(context.Background(), body, sig); err != nil {
			t.Fatalf("HandleWebhook: %v", err)
		}
		got, _ := store.GetAppointment(context.Background(), appt.ID)
		if got.PaymentStatus != model.PaymentPaid {
			t.Errorf("payment status = %s, want paid", got.PaymentStatus)
		}
	})

	t.Run("authorized event confirms the payment", func(t *testing.T) {
		store, gw, appt := setup()
		gw.payment.Status = "authorized"
		svc := newTestService(store, gw, time.Time{})

		body := webhookBody(t, "payment.authorized", "pay_456", "order_123",
			map[string]string{"appointment_id": appt.ID.String()})
		sig := razorpay.Sign(body, testWebhookSecret)

		if err := svc.HandleWebhook(context.Background(), body, sig); err != nil {
			t.Fatalf("HandleWebhook: %v", err)
		}
		got, _ := store.GetAppointment(context.Background(), appt.ID)
		if got.PaymentStatus != model.PaymentPaid {
			t.Errorf("payment status = %s, want paid", got.PaymentStatus)
		}
		store.mu.Lock()
		defer store.mu.Unlock()
		if len(store.records) != 1 || store.records[0].Status != model.PaymentRecordAuthorized {
			t.Errorf("unexpected ledger rows: %+v", store.records)
		}
	})

	t.Run("bad signature is rejected before parsing", func(t *testing.T) {
		store, gw, appt := setup()
		svc := newTestService(store, gw, time.Time{})

		body := webhookBody(t, "payment.captured", "pay_456", "order_123",
			map[string]string{"appointment_id": appt.ID.String()})

		err := svc.HandleWebhook(context.Background(), body, "bogus")
		if !errors.Is(err, ErrSignatureMismatch) {
			t.Fatalf("err = %v, want ErrSignatureMismatch", err)
		}
		if n := store.mutationCount(); n != 0 {
			t.Errorf("store mutated %d times on bad signature", n)
		}
	})

	t.Run("missing appointment note is acknowledged without effect", func(t *testing.T) {
		store, gw, _ := setup()
		svc := newTestService(store, gw, time.Time{})

		body := webhookBody(t, "payment.captured", "pay_456", "order_123", nil)
		sig := razorpay.Sign(body, testWebhookSecret)

		if err := svc.HandleWebhook(context.Background(), body, sig); err != nil {
			t.Fatalf("HandleWebhook: %v", err)
		}
		if n := store.mutationCount(); n != 0 {
			t.Errorf("store mutated %d times for foreign payment", n)
		}
	})

	t.Run("unrelated events are ignored", func(t *testing.T) {
		store, gw, appt := setup()
		svc := newTestService(store, gw, time.Time{})

		body := webhookBody(t, "payment.failed", "pay_456", "order_123",
			map[string]string{"appointment_id": appt.ID.String()})
		sig := razorpay.Sign(body, testWebhookSecret)

		if err := svc.HandleWebhook(context.Background(), body, sig); err != nil {
			t.Fatalf("HandleWebhook: %v", err)
		}
		if n := store.mutationCount(); n != 0 {
			t.Errorf("store mutated %d times for ignored event", n)
		}
	})

	t.Run("redelivery after confirmation succeeds quietly", func(t *testing.T) {
		store, gw, appt := setup()
		svc := newTestService(store, gw, time.Time{})

		body := webhookBody(t, "payment.captured", "pay_456", "order_123",
			map[string]string{"appointment_id": appt.ID.String()})
		sig := razorpay.Sign(body, testWebhookSecret)

		if err := svc.HandleWebhook(context.Background(), body, sig); err != nil {
			t.Fatalf("first delivery: %v", err)
		}
		if err := svc.HandleWebhook(context.Background(), body, sig); err != nil {
			t.Fatalf("redelivery: %v", err)
		}
	})
}

func TestCreateRefund(t *testing.T) {
	now := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)

	paidAppointment := func(start time.Time) *model.Appointment {
		appt := acceptedAppointment(10000, start)
		appt.PaymentStatus = model.PaymentPaid
		appt.GatewayPaymentID = strPtr("pay_456")
		appt.GatewayOrderID = strPtr("order_123")
		return appt
	}

	t.Run("full refund far from start", func(t *testing.T) {
		appt := paidAppointment(now.Add(30 * time.Hour))
		store := newFakeStore(appt)
		gw := &fakeGateway{refund: &razorpay.Refund{ID: "rfnd_1", PaymentID: "pay_456", Amount: 10000}}
		svc := newTestService(store, gw, now)

		res, err := svc.CreateRefund(context.Background(), appt.ID, RefundInput{Reason: "patient request"})
		if err != nil {
			t.Fatalf("CreateRefund: %v", err)
		}
		if !res.Full || res.Amount != 10000 {
			t.Errorf("result = %+v, want full 10000", res)
		}
		if gw.refundedAmt != 10000 {
			t.Errorf("gateway refunded %d, want 10000", gw.refundedAmt)
		}
		got, _ := store.GetAppointment(context.Background(), appt.ID)
		if got.PaymentStatus != model.PaymentRefunded {
			t.Errorf("payment status = %s, want refunded", got.PaymentStatus)
		}
		if store.ledgerStatus["pay_456"] != model.PaymentRecordRefunded {
			t.Error("ledger row not marked refunded")
		}
	})

	t.Run("half refund inside 24h", func(t *testing.T) {
		appt := paidAppointment(now.Add(18 * time.Hour))
		store := newFakeStore(appt)
		gw := &fakeGateway{refund: &razorpay.Refund{ID: "rfnd_2", PaymentID: "pay_456", Amount: 5000}}
		svc := newTestService(store, gw, now)

		res, err := svc.CreateRefund(context.Background(), appt.ID, RefundInput{})
		if err != nil {
			t.Fatalf("CreateRefund: %v", err)
		}
		if res.Full || res.Amount != 5000 {
			t.Errorf("result = %+v, want partial 5000", res)
		}
		got, _ := store.GetAppointment(context.Background(), appt.ID)
		if got.PaymentStatus != model.PaymentPartialRefund {
			t.Errorf("payment status = %s, want partial_refund", got.PaymentStatus)
		}
	})

	t.Run("quarter refund inside 12h", func(t *testing.T) {
		appt := paidAppointment(now.Add(9 * time.Hour))
		store := newFakeStore(appt)
		gw := &fakeGateway{refund: &razorpay.Refund{ID: "rfnd_3", PaymentID: "pay_456", Amount: 2500}}
		svc := newTestService(store, gw, now)

		res, err := svc.CreateRefund(context.Background(), appt.ID, RefundInput{})
		if err != nil {
			t.Fatalf("CreateRefund: %v", err)
		}
		if res.Amount != 2500 {
			t.Errorf("amount = %d, want 2500", res.Amount)
		}
	})

	t.Run("no refund inside 6h", func(t *testing.T) {
		appt := paidAppointment(now.Add(3 * time.Hour))
		store := newFakeStore(appt)
		gw := &fakeGateway{}
		svc := newTestService(store, gw, now)

		if _, err := svc.CreateRefund(context.Background(), appt.ID, RefundInput{}); !errors.Is(err, ErrNoRefundAvailable) {
			t.Errorf("err = %v, want ErrNoRefundAvailable", err)
		}
		if gw.refundedCalls != 0 {
			t.Error("gateway refund called despite zero entitlement")
		}
	})

	t.Run("explicit amount below entitlement", func(t *testing.T) {
		appt := paidAppointment(now.Add(30 * time.Hour))
		store := newFakeStore(appt)
		gw := &fakeGateway{refund: &razorpay.Refund{ID: "rfnd_5", PaymentID: "pay_456", Amount: 4000}}
		svc := newTestService(store, gw, now)

		res, err := svc.CreateRefund(context.Background(), appt.ID, RefundInput{Amount: int64Ptr(4000)})
		if err != nil {
			t.Fatalf("CreateRefund: %v", err)
		}
		if res.Full || res.Amount != 4000 {
			t.Errorf("result = %+v, want partial 4000", res)
		}
		got, _ := store.GetAppointment(context.Background(), appt.ID)
		if got.PaymentStatus != model.PaymentPartialRefund {
			t.Errorf("payment status = %s, want partial_refund", got.PaymentStatus)
		}
	})

	t.Run("explicit amount wins over the decay policy", func(t *testing.T) {
		appt := paidAppointment(now.Add(18 * time.Hour)) // policy alone would give 5000
		store := newFakeStore(appt)
		gw := &fakeGateway{refund: &razorpay.Refund{ID: "rfnd_6", PaymentID: "pay_456", Amount: 8000}}
		svc := newTestService(store, gw, now)

		res, err := svc.CreateRefund(context.Background(), appt.ID, RefundInput{Amount: int64Ptr(8000)})
		if err != nil {
			t.Fatalf("CreateRefund: %v", err)
		}
		if res.Full || res.Amount != 8000 {
			t.Errorf("result = %+v, want partial 8000", res)
		}
	})

	t.Run("non-positive explicit amount is rejected", func(t *testing.T) {
		appt := paidAppointment(now.Add(30 * time.Hour))
		gw := &fakeGateway{}
		svc := newTestService(newFakeStore(appt), gw, now)

		if _, err := svc.CreateRefund(context.Background(), appt.ID, RefundInput{Amount: int64Ptr(0)}); !errors.Is(err, ErrNoRefundAvailable) {
			t.Errorf("err = %v, want ErrNoRefundAvailable", err)
		}
		if gw.refundedCalls != 0 {
			t.Error("gateway refund called for non-positive amount")
		}
	})

	t.Run("refund happens at most once", func(t *testing.T) {
		appt := paidAppointment(now.Add(30 * time.Hour))
		store := newFakeStore(appt)
		gw := &fakeGateway{refund: &razorpay.Refund{ID: "rfnd_4", PaymentID: "pay_456", Amount: 10000}}
		svc := newTestService(store, gw, now)

		if _, err := svc.CreateRefund(context.Background(), appt.ID, RefundInput{}); err != nil {
			t.Fatalf("first refund: %v", err)
		}
		if _, err := svc.CreateRefund(context.Background(), appt.ID, RefundInput{}); !errors.Is(err, ErrAlreadyRefunded) {
			t.Errorf("err = %v, want ErrAlreadyRefunded", err)
		}
		if gw.refundedCalls != 1 {
			t.Errorf("gateway refund called %d times, want 1", gw.refundedCalls)
		}
	})

	t.Run("unpaid appointment has nothing to refund", func(t *testing.T) {
		appt := acceptedAppointment(10000, now.Add(30*time.Hour))
		svc := newTestService(newFakeStore(appt), &fakeGateway{}, now)

		if _, err := svc.CreateRefund(context.Background(), appt.ID, RefundInput{}); !errors.Is(err, ErrNoPayment) {
			t.Errorf("err = %v, want ErrNoPayment", err)
		}
	})

	t.Run("gateway failure leaves state untouched", func(t *testing.T) {
		appt := paidAppointment(now.Add(30 * time.Hour))
		store := newFakeStore(appt)
		gw := &fakeGateway{err: fmt.Errorf("%w: connection refused", razorpay.ErrTransport)}
		svc := newTestService(store, gw, now)

		if _, err := svc.CreateRefund(context.Background(), appt.ID, RefundInput{}); err == nil {
			t.Fatal("expected error from gateway failure")
		}
		got, _ := store.GetAppointment(context.Background(), appt.ID)
		if got.PaymentStatus != model.PaymentPaid {
			t.Errorf("payment status changed to %s on gateway failure", got.PaymentStatus)
		}
	})
}
