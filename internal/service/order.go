package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"petshop/internal/model"
)

// PaymentStarter opens an online payment for a freshly created order.
type PaymentStarter interface {
	StartZaloPay(ctx context.Context, order *model.Order) (*model.PaymentTransaction, error)
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// StockObserver is told about items whose stock or availability changed.
type StockObserver interface {
	InvalidateItems(ctx context.Context, items []model.OrderItem)
}

type OrderService struct {
	db       *sql.DB
	payments PaymentStarter
	events   EventPublisher
	stock    StockObserver
}

// NewOrderService wires the order lifecycle. payments, events and stock may be nil.
func NewOrderService(db *sql.DB, payments PaymentStarter, events EventPublisher, stock StockObserver) *OrderService {
	return &OrderService{db: db, payments: payments, events: events, stock: stock}
}

func (s *OrderService) stockChanged(ctx context.Context, items []model.OrderItem) {
	if s.stock != nil {
		s.stock.InvalidateItems(ctx, items)
	}
}

type ItemInput struct {
	Type     model.ItemType
	ItemID   string
	Quantity int
}

type CreateOrderInput struct {
	Items           []ItemInput
	ShippingAddress model.ShippingAddress
	Notes           string
	PaymentMethod   string
}

func (s *OrderService) Create(ctx context.Context, userID string, in CreateOrderInput) (*model.Order, error) {
	if len(in.Items) == 0 {
		return nil, ErrEmptyOrder
	}
	method := in.PaymentMethod
	if method == "" {
		method = model.PaymentMethodCOD
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	items, err := reserveItems(ctx, tx, in.Items)
	if err != nil {
		return nil, err
	}

	order := &model.Order{
		Number:          s.nextOrderNumber(ctx),
		UserID:          userID,
		Items:           items,
		Status:          model.StatusPending,
		PaymentStatus:   model.PaymentPending,
		PaymentMethod:   method,
		ShippingAddress: in.ShippingAddress,
		Notes:           in.Notes,
	}
	order.Recalculate()

	address, err := json.Marshal(order.ShippingAddress)
	if err != nil {
		return nil, fmt.Errorf("encode address: %w", err)
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO orders (number, user_id, status, payment_status, payment_method, total_items, subtotal, tax, shipping, total, shipping_address, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at, updated_at
	`, order.Number, order.UserID, order.Status, order.PaymentStatus, order.PaymentMethod,
		order.TotalItems, order.Subtotal, order.Tax, order.Shipping, order.Total, address, order.Notes,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}

	for i := range order.Items {
		it := &order.Items[i]
		err = tx.QueryRowContext(ctx, `
			INSERT INTO order_items (order_id, item_type, item_id, name, price, quantity, subtotal, position)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id
		`, order.ID, it.Type, it.ItemID, it.Name, it.Price, it.Quantity, it.Subtotal, i).Scan(&it.ID)
		if err != nil {
			return nil, fmt.Errorf("insert order item: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	s.stockChanged(ctx, order.Items)
	ordersCreated.Add(ctx, 1, metric.WithAttributes(attribute.String("payment_method", method)))
	slog.InfoContext(ctx, "order created", "order_id", order.ID, "number", order.Number, "total", order.Total)

	if method == model.PaymentMethodZaloPay && s.payments != nil {
		txn, err := s.payments.StartZaloPay(ctx, order)
		if err != nil {
			slog.ErrorContext(ctx, "failed to start zalopay payment", "order_id", order.ID, "error", err)
		} else {
			order.PaymentURL = txn.OrderURL
		}
	}

	publishOrderEvent(ctx, s.db, s.events, model.EventOrderCreated, order.ID)

	return order, nil
}

// reserveItems locks every referenced row, checks availability and takes
// product stock. Pets are only flagged unavailable once processing starts.
func reserveItems(ctx context.Context, tx *sql.Tx, inputs []ItemInput) ([]model.OrderItem, error) {
	items := make([]model.OrderItem, 0, len(inputs))
	seenPets := make(map[string]bool)

	for _, in := range inputs {
		if in.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity must be positive", ErrInvalidItem)
		}

		item := model.OrderItem{Type: in.Type, ItemID: in.ItemID, Quantity: in.Quantity}

		switch in.Type {
		case model.ItemProduct:
			var stock int
			var active bool
			err := tx.QueryRowContext(ctx,
				`SELECT name, price, stock, is_active FROM products WHERE id = $1 FOR UPDATE`, in.ItemID,
			).Scan(&item.Name, &item.Price, &stock, &active)
			if errors.Is(err, sql.ErrNoRows) || (err == nil && !active) {
				return nil, fmt.Errorf("%w: %s", ErrProductNotFound, in.ItemID)
			}
			if err != nil {
				return nil, fmt.Errorf("lock product: %w", err)
			}
			if stock < in.Quantity {
				return nil, fmt.Errorf("%w for %s: %d available", ErrInsufficientStock, item.Name, stock)
			}
			if _, err := tx.ExecContext(ctx,
				`UPDATE products SET stock = stock - $1, updated_at = NOW() WHERE id = $2`, in.Quantity, in.ItemID,
			); err != nil {
				return nil, fmt.Errorf("take stock: %w", err)
			}

		case model.ItemPet:
			if in.Quantity != 1 || seenPets[in.ItemID] {
				return nil, ErrPetQuantity
			}
			seenPets[in.ItemID] = true

			var available, active bool
			err := tx.QueryRowContext(ctx,
				`SELECT name, price, is_available, is_active FROM pets WHERE id = $1 FOR UPDATE`, in.ItemID,
			).Scan(&item.Name, &item.Price, &available, &active)
			if errors.Is(err, sql.ErrNoRows) || (err == nil && !active) {
				return nil, fmt.Errorf("%w: %s", ErrPetNotFound, in.ItemID)
			}
			if err != nil {
				return nil, fmt.Errorf("lock pet: %w", err)
			}
			if !available {
				return nil, fmt.Errorf("%w: %s", ErrPetUnavailable, item.Name)
			}

		default:
			return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidItem, in.Type)
		}

		items = append(items, item)
	}

	return items, nil
}

// nextOrderNumber runs outside the order transaction so a sequence failure
// does not abort it.
func (s *OrderService) nextOrderNumber(ctx context.Context) string {
	var seq int64
	if err := s.db.QueryRowContext(ctx, `SELECT nextval('order_number_seq')`).Scan(&seq); err != nil {
		slog.WarnContext(ctx, "order number sequence unavailable, using timestamp", "error", err)
		return model.FallbackOrderNumber(time.Now())
	}
	return model.FormatOrderNumber(seq)
}

type OrderFilter struct {
	UserID string
	Status model.OrderStatus
	Page
}

// List returns one page of orders, newest first, and the total match count.
// Customers only ever see their own orders.
func (s *OrderService) List(ctx context.Context, actor Actor, f OrderFilter) ([]model.Order, int, error) {
	if !actor.IsStaff() {
		f.UserID = actor.UserID
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, 0, ErrInvalidStatus
	}
	f.Page = f.Page.Normalize()

	var c conditions
	if f.UserID != "" {
		c.add("user_id = ?", f.UserID)
	}
	if f.Status != "" {
		c.add("status = ?", f.Status)
	}
	cond := c.where()

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`+cond, c.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	query := `SELECT ` + orderColumns + ` FROM orders` + cond + ` ORDER BY created_at DESC` + c.page(f.Page)
	rows, err := s.db.QueryContext(ctx, query, c.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	orders := []model.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, *o)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows iteration failed: %w", err)
	}

	if err := attachItems(ctx, s.db, orders); err != nil {
		return nil, 0, err
	}

	return orders, total, nil
}

// Get returns the order with items and reviews. A customer asking for
// someone else's order gets ErrOrderNotFound.
func (s *OrderService) Get(ctx context.Context, actor Actor, id string) (*model.Order, error) {
	o, err := loadOrder(ctx, s.db, id, false)
	if err != nil {
		return nil, err
	}
	if !actor.IsStaff() && o.UserID != actor.UserID {
		return nil, ErrOrderNotFound
	}

	reviews, err := loadReviews(ctx, s.db, o.ID)
	if err != nil {
		return nil, err
	}
	o.Reviews = reviews

	return o, nil
}

// Cancel lets the owner drop a pending order and gives product stock back.
func (s *OrderService) Cancel(ctx context.Context, actor Actor, id string) (*model.Order, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	o, err := loadOrder(ctx, tx, id, true)
	if err != nil {
		return nil, err
	}
	if o.UserID != actor.UserID {
		return nil, ErrOrderNotFound
	}
	if o.Status != model.StatusPending {
		return nil, ErrOrderNotCancellable
	}

	if err = transition(ctx, tx, o, model.StatusCancelled); err != nil {
		return nil, err
	}

	// Open gateway orders are closed so the worker stops polling them.
	if _, err = tx.ExecContext(ctx,
		`UPDATE payment_transactions SET status = $1, updated_at = NOW() WHERE order_id = $2 AND status = $3`,
		model.TransactionFailed, o.ID, model.TransactionPending,
	); err != nil {
		return nil, fmt.Errorf("close pending transactions: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	s.stockChanged(ctx, o.Items)
	slog.InfoContext(ctx, "order cancelled", "order_id", o.ID)
	publishOrderEvent(ctx, s.db, s.events, model.EventOrderCancelled, o.ID)

	return o, nil
}

// UpdateStatus is the staff-side transition, guarded by the status table.
func (s *OrderService) UpdateStatus(ctx context.Context, id string, status model.OrderStatus) (*model.Order, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	o, err := loadOrder(ctx, tx, id, true)
	if err != nil {
		return nil, err
	}

	from := o.Status
	if err = transition(ctx, tx, o, status); err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	s.stockChanged(ctx, o.Items)
	slog.InfoContext(ctx, "order status updated", "order_id", o.ID, "from", from, "to", o.Status)
	publishOrderEvent(ctx, s.db, s.events, model.EventOrderStatusChanged, o.ID)

	return o, nil
}

// transition applies a table-checked status change and its stock effects.
// o must have been loaded with its row lock held by tx.
func transition(ctx context.Context, tx *sql.Tx, o *model.Order, to model.OrderStatus) error {
	if err := model.CheckTransition(o.Status, to); err != nil {
		return err
	}

	for _, adj := range model.StockEffects(o.Status, to, o.Items) {
		var err error
		switch adj.Type {
		case model.ItemProduct:
			_, err = tx.ExecContext(ctx,
				`UPDATE products SET stock = stock + $1, updated_at = NOW() WHERE id = $2`, adj.StockDelta, adj.ItemID)
		case model.ItemPet:
			_, err = tx.ExecContext(ctx,
				`UPDATE pets SET is_available = $1, updated_at = NOW() WHERE id = $2`, *adj.Available, adj.ItemID)
		}
		if err != nil {
			return fmt.Errorf("apply stock effect: %w", err)
		}
	}

	payment := o.PaymentStatus
	switch {
	case to == model.StatusRefunded && payment == model.PaymentPaid:
		payment = model.PaymentRefunded
	case to == model.StatusDelivered && o.PaymentMethod == model.PaymentMethodCOD:
		payment = model.PaymentPaid
	}

	err := tx.QueryRowContext(ctx,
		`UPDATE orders SET status = $1, payment_status = $2, updated_at = NOW() WHERE id = $3 RETURNING updated_at`,
		to, payment, o.ID,
	).Scan(&o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}

	o.Status = to
	o.PaymentStatus = payment
	orderTransitions.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(to))))

	return nil
}

type RefundInput struct {
	Reason        string
	BankName      string
	AccountNumber string
	AccountName   string
	Amount        int64
	Images        []string
}

// RequestRefund moves a delivered order to pending_refund. Asking again while
// pending overwrites the stored refund details. Amount defaults to the total.
func (s *OrderService) RequestRefund(ctx context.Context, actor Actor, id string, in RefundInput) (*model.Order, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	o, err := loadOrder(ctx, tx, id, true)
	if err != nil {
		return nil, err
	}
	if o.UserID != actor.UserID {
		return nil, ErrOrderNotFound
	}
	if !o.Status.CanRequestRefund() {
		return nil, ErrRefundNotAllowed
	}

	amount := in.Amount
	if amount == 0 {
		amount = o.Total
	}
	if amount < 0 || amount > o.Total {
		return nil, ErrInvalidRefundAmount
	}

	info := &model.RefundInfo{
		Reason:        in.Reason,
		BankName:      in.BankName,
		AccountNumber: in.AccountNumber,
		AccountName:   in.AccountName,
		Amount:        amount,
		Images:        in.Images,
		RequestedAt:   time.Now().UTC(),
	}
	raw, err := json.Marshal(info)
	if err != nil {
		return nil, fmt.Errorf("encode refund info: %w", err)
	}

	err = tx.QueryRowContext(ctx,
		`UPDATE orders SET status = $1, refund_info = $2, updated_at = NOW() WHERE id = $3 RETURNING updated_at`,
		model.StatusPendingRefund, raw, o.ID,
	).Scan(&o.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("update order: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	o.Status = model.StatusPendingRefund
	o.RefundInfo = info

	slog.InfoContext(ctx, "refund requested", "order_id", o.ID, "amount", amount)
	publishOrderEvent(ctx, s.db, s.events, model.EventRefundRequested, o.ID)

	return o, nil
}

// AddReview records the owner's single review of a delivered order.
func (s *OrderService) AddReview(ctx context.Context, actor Actor, orderID string, rating int, comment string) (*model.Review, error) {
	o, err := loadOrder(ctx, s.db, orderID, false)
	if err != nil {
		return nil, err
	}
	if o.UserID != actor.UserID {
		return nil, ErrOrderNotFound
	}
	if o.Status != model.StatusDelivered {
		return nil, ErrReviewNotAllowed
	}

	r := model.Review{OrderID: o.ID, UserID: actor.UserID, Rating: rating, Comment: comment}
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO order_reviews (order_id, user_id, rating, comment)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, r.OrderID, r.UserID, r.Rating, r.Comment).Scan(&r.ID, &r.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrReviewExists
		}
		return nil, fmt.Errorf("insert review: %w", err)
	}

	return &r, nil
}

// DeleteReview removes the caller's review. Staff may remove any review on
// the order.
func (s *OrderService) DeleteReview(ctx context.Context, actor Actor, orderID string) error {
	o, err := loadOrder(ctx, s.db, orderID, false)
	if err != nil {
		return err
	}

	var res sql.Result
	switch {
	case actor.IsStaff():
		res, err = s.db.ExecContext(ctx, `DELETE FROM order_reviews WHERE order_id = $1`, o.ID)
	case o.UserID == actor.UserID:
		res, err = s.db.ExecContext(ctx, `DELETE FROM order_reviews WHERE order_id = $1 AND user_id = $2`, o.ID, actor.UserID)
	default:
		return ErrOrderNotFound
	}
	if err != nil {
		return fmt.Errorf("delete review: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrReviewNotFound
	}
	return nil
}

const orderColumns = `id, number, user_id, status, payment_status, payment_method, payment_url,
	total_items, subtotal, tax, shipping, total, shipping_address, notes, refund_info, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*model.Order, error) {
	var o model.Order
	var address, refund []byte
	err := row.Scan(&o.ID, &o.Number, &o.UserID, &o.Status, &o.PaymentStatus, &o.PaymentMethod, &o.PaymentURL,
		&o.TotalItems, &o.Subtotal, &o.Tax, &o.Shipping, &o.Total, &address, &o.Notes, &refund, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}

	if err := json.Unmarshal(address, &o.ShippingAddress); err != nil {
		return nil, fmt.Errorf("decode address: %w", err)
	}
	if len(refund) > 0 {
		o.RefundInfo = &model.RefundInfo{}
		if err := json.Unmarshal(refund, o.RefundInfo); err != nil {
			return nil, fmt.Errorf("decode refund info: %w", err)
		}
	}

	return &o, nil
}

func loadOrder(ctx context.Context, q querier, id string, forUpdate bool) (*model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	o, err := scanOrder(q.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, err
	}

	orders := []model.Order{*o}
	if err := attachItems(ctx, q, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

// attachItems loads the items of all given orders in one query.
func attachItems(ctx context.Context, q querier, orders []model.Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]string, len(orders))
	index := make(map[string]int, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
		index[orders[i].ID] = i
		orders[i].Items = []model.OrderItem{}
	}

	rows, err := q.QueryContext(ctx, `
		SELECT order_id, id, item_type, item_id, name, price, quantity, subtotal
		FROM order_items
		WHERE order_id = ANY($1::uuid[])
		ORDER BY order_id, position
	`, ids)
	if err != nil {
		return fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var orderID string
		var it model.OrderItem
		if err := rows.Scan(&orderID, &it.ID, &it.Type, &it.ItemID, &it.Name, &it.Price, &it.Quantity, &it.Subtotal); err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		i := index[orderID]
		orders[i].Items = append(orders[i].Items, it)
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows iteration failed: %w", err)
	}
	return nil
}

func loadReviews(ctx context.Context, q querier, orderID string) ([]model.Review, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, order_id, user_id, rating, comment, created_at
		FROM order_reviews WHERE order_id = $1 ORDER BY created_at
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("query reviews: %w", err)
	}
	defer rows.Close()

	var reviews []model.Review
	for rows.Next() {
		var r model.Review
		if err := rows.Scan(&r.ID, &r.OrderID, &r.UserID, &r.Rating, &r.Comment, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		reviews = append(reviews, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}
	return reviews, nil
}

// publishOrderEvent is fire-and-forget: the order is already committed, so a
// broker failure is only logged.
func publishOrderEvent(ctx context.Context, db *sql.DB, events EventPublisher, eventType, orderID string) {
	if events == nil {
		return
	}

	ev := model.OrderEvent{Type: eventType, OrderID: orderID, Timestamp: time.Now().UTC()}
	err := db.QueryRowContext(ctx, `
		SELECT o.number, o.user_id, u.email, o.status, o.payment_status, o.total
		FROM orders o JOIN users u ON u.id = o.user_id
		WHERE o.id = $1
	`, orderID).Scan(&ev.OrderNumber, &ev.UserID, &ev.Email, &ev.Status, &ev.PaymentStatus, &ev.Total)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load order for event", "order_id", orderID, "error", err)
		return
	}

	if err := events.Publish(ctx, orderID, ev); err != nil {
		slog.ErrorContext(ctx, "failed to publish order event", "type", eventType, "order_id", orderID, "error", err)
	}
}
