package service

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrUserExists         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserInactive       = errors.New("account is deactivated")
	ErrUserNotFound       = errors.New("user not found")

	ErrProductNotFound = errors.New("product not found")
	ErrPetNotFound     = errors.New("pet not found")
	ErrTermNotFound    = errors.New("term not found")
	ErrTermExists      = errors.New("term already exists")
	ErrUnknownTaxonomy = errors.New("unknown taxonomy")

	ErrOrderNotFound       = errors.New("order not found")
	ErrEmptyOrder          = errors.New("order must contain at least one item")
	ErrInvalidItem         = errors.New("invalid order item")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrPetUnavailable      = errors.New("pet is not available")
	ErrPetQuantity         = errors.New("a pet can only be ordered once")
	ErrInvalidStatus       = errors.New("unknown order status")
	ErrOrderNotCancellable = errors.New("only pending orders can be cancelled")
	ErrRefundNotAllowed    = errors.New("refund can only be requested for delivered orders")
	ErrInvalidRefundAmount = errors.New("refund amount exceeds order total")
	ErrReviewNotAllowed    = errors.New("only delivered orders can be reviewed")
	ErrReviewExists        = errors.New("order already reviewed")
	ErrReviewNotFound      = errors.New("review not found")

	ErrPaymentDisabled     = errors.New("online payment is not configured")
	ErrAlreadyPaid         = errors.New("order is already paid")
	ErrNotPayable          = errors.New("order cannot be paid online")
	ErrGatewayRejected     = errors.New("payment gateway rejected the order")
	ErrTransactionNotFound = errors.New("payment transaction not found")

	ErrStorageDisabled = errors.New("file storage is not configured")
	ErrNotAnImage      = errors.New("only image uploads are accepted")
)

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
