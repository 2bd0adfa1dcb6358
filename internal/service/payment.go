package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"petshop/internal/model"
	"petshop/internal/zalopay"
)

type PaymentGateway interface {
	CreateOrder(ctx context.Context, req zalopay.CreateOrderRequest) (*zalopay.CreateOrderResponse, error)
	QueryOrder(ctx context.Context, appTransID string) (*zalopay.QueryResponse, error)
	VerifyCallback(req zalopay.CallbackRequest) (*zalopay.CallbackData, error)
}

type PaymentService struct {
	db      *sql.DB
	gateway PaymentGateway
	events  EventPublisher
}

// NewPaymentService builds the ZaloPay flow. A nil gateway disables online
// payment; events may be nil.
func NewPaymentService(db *sql.DB, gateway PaymentGateway, events EventPublisher) *PaymentService {
	return &PaymentService{db: db, gateway: gateway, events: events}
}

// CreateForOrder opens a new gateway order for an unpaid order owned by the
// caller. It is also how a client retries after a failed first attempt.
func (s *PaymentService) CreateForOrder(ctx context.Context, actor Actor, orderID string) (*model.PaymentTransaction, error) {
	o, err := loadOrder(ctx, s.db, orderID, false)
	if err != nil {
		return nil, err
	}
	if !actor.IsStaff() && o.UserID != actor.UserID {
		return nil, ErrOrderNotFound
	}
	return s.StartZaloPay(ctx, o)
}

func (s *PaymentService) StartZaloPay(ctx context.Context, o *model.Order) (*model.PaymentTransaction, error) {
	if s.gateway == nil {
		return nil, ErrPaymentDisabled
	}
	if o.PaymentStatus == model.PaymentPaid {
		return nil, ErrAlreadyPaid
	}
	if o.Status != model.StatusPending && o.Status != model.StatusProcessing {
		return nil, ErrNotPayable
	}

	items := make([]zalopay.Item, len(o.Items))
	for i, it := range o.Items {
		items[i] = zalopay.Item{ID: it.ItemID, Name: it.Name, Price: it.Price, Quantity: it.Quantity}
	}

	txn := &model.PaymentTransaction{
		OrderID:    o.ID,
		AppTransID: zalopay.NewAppTransID(time.Now()),
		Amount:     o.Total,
		Status:     model.TransactionPending,
	}

	resp, err := s.gateway.CreateOrder(ctx, zalopay.CreateOrderRequest{
		AppTransID:  txn.AppTransID,
		AppUser:     o.UserID,
		Amount:      o.Total,
		Description: "Petshop - Payment for order " + o.Number,
		Items:       items,
		EmbedData:   map[string]string{"orderId": o.ID},
	})
	if err != nil {
		return nil, fmt.Errorf("create gateway order: %w", err)
	}
	if resp.ReturnCode != zalopay.ReturnSuccess {
		return nil, fmt.Errorf("%w: %s (%d)", ErrGatewayRejected, resp.ReturnMessage, resp.SubReturnCode)
	}
	txn.OrderURL = resp.OrderURL

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO payment_transactions (order_id, app_trans_id, amount, status, order_url)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`, txn.OrderID, txn.AppTransID, txn.Amount, txn.Status, txn.OrderURL).Scan(&txn.ID, &txn.CreatedAt, &txn.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert transaction: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE orders SET payment_url = $1, payment_method = $2, updated_at = NOW() WHERE id = $3`,
		txn.OrderURL, model.PaymentMethodZaloPay, o.ID)
	if err != nil {
		return nil, fmt.Errorf("save payment url: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	o.PaymentURL = txn.OrderURL
	o.PaymentMethod = model.PaymentMethodZaloPay
	slog.InfoContext(ctx, "zalopay order created", "order_id", o.ID, "app_trans_id", txn.AppTransID)

	return txn, nil
}

// HandleCallback verifies and applies a gateway callback. It reports false,
// without touching any state, when the MAC does not match.
func (s *PaymentService) HandleCallback(ctx context.Context, req zalopay.CallbackRequest) (bool, error) {
	if s.gateway == nil {
		return false, ErrPaymentDisabled
	}

	data, err := s.gateway.VerifyCallback(req)
	if err != nil {
		if errors.Is(err, zalopay.ErrInvalidMAC) {
			paymentResults.Add(ctx, 1, metric.WithAttributes(
				attribute.String("source", "callback"), attribute.String("status", "invalid_mac")))
			slog.WarnContext(ctx, "zalopay callback with invalid mac")
			return false, nil
		}
		return false, err
	}

	if err := s.MarkPaid(ctx, data.AppTransID, strconv.FormatInt(data.ZPTransID, 10)); err != nil {
		return true, err
	}
	paymentResults.Add(ctx, 1, metric.WithAttributes(
		attribute.String("source", "callback"), attribute.String("status", "success")))

	return true, nil
}

// MarkPaid settles a transaction and its order. Settling an already
// successful transaction again is a no-op.
func (s *PaymentService) MarkPaid(ctx context.Context, appTransID, zpTransID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var orderID string
	var status model.TransactionStatus
	var orderStatus model.OrderStatus
	err = tx.QueryRowContext(ctx, `
		SELECT t.order_id, t.status, o.status
		FROM payment_transactions t JOIN orders o ON o.id = t.order_id
		WHERE t.app_trans_id = $1
		FOR UPDATE
	`, appTransID).Scan(&orderID, &status, &orderStatus)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrTransactionNotFound
		}
		return fmt.Errorf("lock transaction: %w", err)
	}
	if status == model.TransactionSuccess {
		return nil
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE payment_transactions SET status = $1, zp_trans_id = $2, updated_at = NOW() WHERE app_trans_id = $3`,
		model.TransactionSuccess, zpTransID, appTransID)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}

	// Money that arrives for a cancelled order is recorded on the transaction
	// for a manual refund; the order itself stays closed and unpaid.
	if orderStatus == model.StatusCancelled {
		if err = tx.Commit(); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		slog.WarnContext(ctx, "payment received for cancelled order", "order_id", orderID, "app_trans_id", appTransID, "zp_trans_id", zpTransID)
		return nil
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE orders SET payment_status = $1, updated_at = NOW() WHERE id = $2`, model.PaymentPaid, orderID)
	if err != nil {
		return fmt.Errorf("update order payment: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	slog.InfoContext(ctx, "order paid", "order_id", orderID, "app_trans_id", appTransID, "zp_trans_id", zpTransID)
	publishOrderEvent(ctx, s.db, s.events, model.EventOrderPaid, orderID)

	return nil
}

// MarkFailed closes a pending transaction the gateway reported as failed.
func (s *PaymentService) MarkFailed(ctx context.Context, appTransID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var orderID string
	err = tx.QueryRowContext(ctx, `
		UPDATE payment_transactions SET status = $1, updated_at = NOW()
		WHERE app_trans_id = $2 AND status = $3
		RETURNING order_id
	`, model.TransactionFailed, appTransID, model.TransactionPending).Scan(&orderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("update transaction: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE orders SET payment_status = $1, updated_at = NOW() WHERE id = $2 AND payment_status = $3`,
		model.PaymentFailed, orderID, model.PaymentPending)
	if err != nil {
		return fmt.Errorf("update order payment: %w", err)
	}

	return tx.Commit()
}

// GetTransaction returns the latest gateway transaction of an order.
func (s *PaymentService) GetTransaction(ctx context.Context, actor Actor, orderID string) (*model.PaymentTransaction, error) {
	o, err := loadOrder(ctx, s.db, orderID, false)
	if err != nil {
		return nil, err
	}
	if !actor.IsStaff() && o.UserID != actor.UserID {
		return nil, ErrOrderNotFound
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+transactionColumns+`
		FROM payment_transactions WHERE order_id = $1
		ORDER BY created_at DESC LIMIT 1`, o.ID)
	if err != nil {
		return nil, fmt.Errorf("query transaction: %w", err)
	}
	txns, err := scanTransactions(rows)
	if err != nil {
		return nil, err
	}
	if len(txns) == 0 {
		return nil, ErrTransactionNotFound
	}
	return &txns[0], nil
}

// ListPending returns pending transactions created more than olderThan ago,
// oldest first.
func (s *PaymentService) ListPending(ctx context.Context, olderThan time.Duration, limit int) ([]model.PaymentTransaction, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+transactionColumns+`
		FROM payment_transactions
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at ASC
		LIMIT $3`, model.TransactionPending, time.Now().Add(-olderThan), limit)
	if err != nil {
		return nil, fmt.Errorf("query pending transactions: %w", err)
	}
	return scanTransactions(rows)
}

const transactionColumns = `id, order_id, app_trans_id, amount, status, zp_trans_id, order_url, created_at, updated_at`

func scanTransactions(rows *sql.Rows) ([]model.PaymentTransaction, error) {
	defer rows.Close()

	var txns []model.PaymentTransaction
	for rows.Next() {
		var t model.PaymentTransaction
		if err := rows.Scan(&t.ID, &t.OrderID, &t.AppTransID, &t.Amount, &t.Status, &t.ZPTransID, &t.OrderURL, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txns = append(txns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}
	return txns, nil
}
