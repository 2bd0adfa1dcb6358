package notify

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	"petshop/internal/model"
)

var subjects = map[string]string{
	model.EventOrderCreated:       "Order %s received",
	model.EventOrderPaid:          "Payment received for order %s",
	model.EventOrderStatusChanged: "Order %s updated",
	model.EventOrderCancelled:     "Order %s cancelled",
	model.EventRefundRequested:    "Refund requested for order %s",
}

var statusLabels = map[model.OrderStatus]string{
	model.StatusPending:       "Pending",
	model.StatusProcessing:    "Processing",
	model.StatusDelivered:     "Delivered",
	model.StatusCancelled:     "Cancelled",
	model.StatusPendingRefund: "Refund pending",
	model.StatusRefunded:      "Refunded",
}

// buildEmail renders the subject and HTML body for ev. ok is false for event
// types that do not notify the customer.
func buildEmail(ev model.OrderEvent) (subject, body string, ok bool) {
	format, ok := subjects[ev.Type]
	if !ok {
		return "", "", false
	}
	subject = fmt.Sprintf(format, ev.OrderNumber)

	label := statusLabels[ev.Status]
	if label == "" {
		label = string(ev.Status)
	}

	body = fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: sans-serif; color: #333; max-width: 600px; margin: 0 auto;">
	<h2>%s</h2>
	<table style="border-collapse: collapse;">
		<tr><td style="padding: 4px 12px 4px 0;">Order</td><td><b>%s</b></td></tr>
		<tr><td style="padding: 4px 12px 4px 0;">Status</td><td>%s</td></tr>
		<tr><td style="padding: 4px 12px 4px 0;">Payment</td><td>%s</td></tr>
		<tr><td style="padding: 4px 12px 4px 0;">Total</td><td>%s</td></tr>
	</table>
	<p style="color: #888; font-size: 12px;">Petshop</p>
</body>
</html>`,
		html.EscapeString(subject),
		html.EscapeString(ev.OrderNumber),
		html.EscapeString(label),
		html.EscapeString(string(ev.PaymentStatus)),
		formatVND(ev.Total),
	)
	return subject, body, true
}

// formatVND groups thousands with dots, e.g. 1.234.000 ₫.
func formatVND(amount int64) string {
	digits := strconv.FormatInt(amount, 10)
	sign := ""
	if strings.HasPrefix(digits, "-") {
		sign, digits = "-", digits[1:]
	}

	var b strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(d)
	}
	return sign + b.String() + " ₫"
}
