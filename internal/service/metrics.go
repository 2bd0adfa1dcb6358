package service

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("petshop/service")

var (
	ordersCreated    metric.Int64Counter
	orderTransitions metric.Int64Counter
	paymentResults   metric.Int64Counter
)

func init() {
	ordersCreated, _ = meter.Int64Counter("petshop.orders.created",
		metric.WithDescription("Orders placed, by payment method"))
	orderTransitions, _ = meter.Int64Counter("petshop.orders.transitions",
		metric.WithDescription("Order status changes, by target status"))
	paymentResults, _ = meter.Int64Counter("petshop.payments.results",
		metric.WithDescription("Gateway payment outcomes, by source and status"))
}
