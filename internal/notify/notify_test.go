package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"petshop/internal/messaging"
	"petshop/internal/model"
)

type sentMail struct {
	to, subject, body string
}

type fakeSender struct {
	sent []sentMail
	err  error
}

func (s *fakeSender) Send(to, subject, body string) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, sentMail{to, subject, body})
	return nil
}

func payload(t *testing.T, ev model.OrderEvent) []byte {
	t.Helper()
	data, err := json.Marshal(ev)
	require.NoError(t, err)
	return data
}

func TestHandleEvent_OrderCreated(t *testing.T) {
	sender := &fakeSender{}
	h := NewHandler(sender, "admin@petshop.local")

	err := h.HandleEvent(context.Background(), payload(t, model.OrderEvent{
		Type:          model.EventOrderCreated,
		OrderNumber:   "ORD-0042",
		Email:         "alice@example.com",
		Status:        model.StatusPending,
		PaymentStatus: model.PaymentPending,
		Total:         1_254_000,
	}))

	require.NoError(t, err)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "alice@example.com", sender.sent[0].to)
	assert.Equal(t, "Order ORD-0042 received", sender.sent[0].subject)
	assert.Contains(t, sender.sent[0].body, "1.254.000 ₫")
	assert.Contains(t, sender.sent[0].body, "Pending")
}

func TestHandleEvent_RefundCopiesAdmin(t *testing.T) {
	sender := &fakeSender{}
	h := NewHandler(sender, "admin@petshop.local")

	err := h.HandleEvent(context.Background(), payload(t, model.OrderEvent{
		Type:        model.EventRefundRequested,
		OrderNumber: "ORD-0042",
		Email:       "alice@example.com",
		Status:      model.StatusPendingRefund,
	}))

	require.NoError(t, err)
	require.Len(t, sender.sent, 2)
	assert.Equal(t, "admin@petshop.local", sender.sent[1].to)
}

func TestHandleEvent_UnknownTypeIgnored(t *testing.T) {
	sender := &fakeSender{}

	err := NewHandler(sender, "").HandleEvent(context.Background(), payload(t, model.OrderEvent{Type: "order.archived", Email: "a@b.c"}))

	require.NoError(t, err)
	assert.Empty(t, sender.sent)
}

func TestHandleEvent_MalformedPayloadSkipped(t *testing.T) {
	err := NewHandler(&fakeSender{}, "").HandleEvent(context.Background(), []byte("{"))

	assert.ErrorIs(t, err, messaging.ErrSkip)
}

func TestHandleEvent_SendFailureReturned(t *testing.T) {
	sender := &fakeSender{err: errors.New("relay down")}

	err := NewHandler(sender, "").HandleEvent(context.Background(), payload(t, model.OrderEvent{
		Type: model.EventOrderPaid, OrderNumber: "ORD-0001", Email: "alice@example.com",
	}))

	assert.EqualError(t, err, "relay down")
}

func TestFormatVND(t *testing.T) {
	tests := map[int64]string{
		0:         "0 ₫",
		999:       "999 ₫",
		30_000:    "30.000 ₫",
		5_000_000: "5.000.000 ₫",
		-12_500:   "-12.500 ₫",
	}
	for in, want := range tests {
		assert.Equal(t, want, formatVND(in))
	}
}

func TestBuildMessage(t *testing.T) {
	msg := string(buildMessage("shop@petshop.local", "alice@example.com", "Hi", "<p>x</p>"))

	assert.Contains(t, msg, "To: alice@example.com\r\n")
	assert.Contains(t, msg, "Content-Type: text/html; charset=UTF-8\r\n\r\n<p>x</p>")
}
