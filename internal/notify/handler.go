package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"petshop/internal/messaging"
	"petshop/internal/model"
)

type Sender interface {
	Send(to, subject, body string) error
}

// Handler turns order events into customer emails.
type Handler struct {
	sender     Sender
	adminEmail string
}

// NewHandler builds a handler. adminEmail, when set, also receives refund
// requests so staff can act on them.
func NewHandler(sender Sender, adminEmail string) *Handler {
	return &Handler{sender: sender, adminEmail: adminEmail}
}

// HandleEvent satisfies messaging.Handler. Undecodable payloads are skipped
// rather than blocking the partition; send failures are retried.
func (h *Handler) HandleEvent(ctx context.Context, payload []byte) error {
	var ev model.OrderEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return fmt.Errorf("%w: decode order event: %v", messaging.ErrSkip, err)
	}

	subject, body, ok := buildEmail(ev)
	if !ok {
		return nil
	}

	recipients := []string{}
	if ev.Email != "" {
		recipients = append(recipients, ev.Email)
	}
	if ev.Type == model.EventRefundRequested && h.adminEmail != "" {
		recipients = append(recipients, h.adminEmail)
	}
	if len(recipients) == 0 {
		slog.WarnContext(ctx, "order event without recipient", "type", ev.Type, "order_id", ev.OrderID)
		return nil
	}

	for _, to := range recipients {
		if err := h.sender.Send(to, subject, body); err != nil {
			return err
		}
		slog.InfoContext(ctx, "notification sent", "type", ev.Type, "order_number", ev.OrderNumber, "to", to)
	}
	return nil
}
