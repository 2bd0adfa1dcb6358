package worker

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"petshop/internal/model"
	"petshop/internal/zalopay"
)

type PaymentStore interface {
	ListPending(ctx context.Context, olderThan time.Duration, limit int) ([]model.PaymentTransaction, error)
	MarkPaid(ctx context.Context, appTransID, zpTransID string) error
	MarkFailed(ctx context.Context, appTransID string) error
}

type GatewayQuerier interface {
	QueryOrder(ctx context.Context, appTransID string) (*zalopay.QueryResponse, error)
}

// PaymentWorker settles transactions whose callback never arrived by asking
// the gateway for their status.
type PaymentWorker struct {
	payments  PaymentStore
	gateway   GatewayQuerier
	interval  time.Duration
	minAge    time.Duration
	batchSize int
}

func NewPaymentWorker(payments PaymentStore, gateway GatewayQuerier) *PaymentWorker {
	return &PaymentWorker{
		payments:  payments,
		gateway:   gateway,
		interval:  30 * time.Second,
		minAge:    time.Minute,
		batchSize: 20,
	}
}

func (w *PaymentWorker) Start(ctx context.Context) {
	slog.Info("starting payment worker", "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("payment worker stopped")
			return
		case <-ticker.C:
			if err := w.processBatch(ctx); err != nil {
				slog.Error("batch processing failed", "error", err)
			}
		}
	}
}

func (w *PaymentWorker) processBatch(ctx context.Context) error {
	txns, err := w.payments.ListPending(ctx, w.minAge, w.batchSize)
	if err != nil {
		return fmt.Errorf("list pending transactions: %w", err)
	}

	for _, txn := range txns {
		resp, err := w.gateway.QueryOrder(ctx, txn.AppTransID)
		if err != nil {
			slog.Error("failed to query payment", "app_trans_id", txn.AppTransID, "error", err)
			continue
		}

		switch resp.ReturnCode {
		case zalopay.ReturnSuccess:
			err = w.payments.MarkPaid(ctx, txn.AppTransID, strconv.FormatInt(resp.ZPTransID, 10))
		case zalopay.ReturnFailed:
			err = w.payments.MarkFailed(ctx, txn.AppTransID)
		default:
			continue
		}

		if err != nil {
			slog.Error("failed to settle payment", "app_trans_id", txn.AppTransID, "error", err)
		} else {
			slog.Info("payment settled", "app_trans_id", txn.AppTransID, "order_id", txn.OrderID, "return_code", resp.ReturnCode)
		}
	}

	return nil
}
