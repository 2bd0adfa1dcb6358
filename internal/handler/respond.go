package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgconn"

	"petshop/internal/model"
	"petshop/internal/mw"
	"petshop/internal/service"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type pagination struct {
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

type listResponse[T any] struct {
	Data       []T        `json:"data"`
	Pagination pagination `json:"pagination"`
}

// errorMapping lists every sentinel the services return, checked in order.
var errorMapping = []struct {
	err    error
	status int
	code   string
}{
	{model.ErrInvalidTransition, http.StatusBadRequest, "INVALID_STATUS_TRANSITION"},
	{service.ErrInvalidStatus, http.StatusBadRequest, "INVALID_STATUS"},

	{service.ErrUserExists, http.StatusConflict, "EMAIL_TAKEN"},
	{service.ErrInvalidCredentials, http.StatusUnauthorized, "INVALID_CREDENTIALS"},
	{service.ErrUserInactive, http.StatusForbidden, "ACCOUNT_DISABLED"},
	{service.ErrUserNotFound, http.StatusNotFound, "USER_NOT_FOUND"},

	{service.ErrProductNotFound, http.StatusNotFound, "PRODUCT_NOT_FOUND"},
	{service.ErrPetNotFound, http.StatusNotFound, "PET_NOT_FOUND"},
	{service.ErrTermNotFound, http.StatusNotFound, "TERM_NOT_FOUND"},
	{service.ErrTermExists, http.StatusConflict, "TERM_EXISTS"},
	{service.ErrUnknownTaxonomy, http.StatusNotFound, "UNKNOWN_TAXONOMY"},

	{service.ErrOrderNotFound, http.StatusNotFound, "ORDER_NOT_FOUND"},
	{service.ErrEmptyOrder, http.StatusBadRequest, "EMPTY_ORDER"},
	{service.ErrInvalidItem, http.StatusBadRequest, "INVALID_ITEM"},
	{service.ErrInsufficientStock, http.StatusBadRequest, "INSUFFICIENT_STOCK"},
	{service.ErrPetUnavailable, http.StatusBadRequest, "PET_UNAVAILABLE"},
	{service.ErrPetQuantity, http.StatusBadRequest, "INVALID_PET_QUANTITY"},
	{service.ErrOrderNotCancellable, http.StatusBadRequest, "ORDER_NOT_CANCELLABLE"},
	{service.ErrRefundNotAllowed, http.StatusBadRequest, "REFUND_NOT_ALLOWED"},
	{service.ErrInvalidRefundAmount, http.StatusBadRequest, "INVALID_REFUND_AMOUNT"},
	{service.ErrReviewNotAllowed, http.StatusBadRequest, "REVIEW_NOT_ALLOWED"},
	{service.ErrReviewExists, http.StatusConflict, "REVIEW_EXISTS"},
	{service.ErrReviewNotFound, http.StatusNotFound, "REVIEW_NOT_FOUND"},

	{service.ErrPaymentDisabled, http.StatusServiceUnavailable, "PAYMENT_DISABLED"},
	{service.ErrAlreadyPaid, http.StatusBadRequest, "ALREADY_PAID"},
	{service.ErrNotPayable, http.StatusBadRequest, "ORDER_NOT_PAYABLE"},
	{service.ErrGatewayRejected, http.StatusBadGateway, "PAYMENT_GATEWAY_ERROR"},
	{service.ErrTransactionNotFound, http.StatusNotFound, "TRANSACTION_NOT_FOUND"},

	{service.ErrStorageDisabled, http.StatusServiceUnavailable, "STORAGE_DISABLED"},
	{service.ErrNotAnImage, http.StatusBadRequest, "INVALID_FILE_TYPE"},
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: code, Message: message})
}

func writeList[T any](w http.ResponseWriter, items []T, total int, page service.Page) {
	if items == nil {
		items = []T{}
	}
	writeJSON(w, http.StatusOK, listResponse[T]{
		Data:       items,
		Pagination: pagination{Total: total, Limit: page.Limit, Offset: page.Offset},
	})
}

// handleError maps a service error to its status and code. Anything
// unmapped is logged and hidden behind a 500.
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	for _, m := range errorMapping {
		if errors.Is(err, m.err) {
			writeError(w, m.status, m.code, err.Error())
			return
		}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			writeError(w, http.StatusConflict, "CONFLICT", "resource already exists")
			return
		case "23503":
			writeError(w, http.StatusBadRequest, "INVALID_REFERENCE", "referenced resource does not exist")
			return
		case "22P02":
			writeError(w, http.StatusBadRequest, "INVALID_ID", "malformed identifier")
			return
		}
	}

	slog.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal error")
}

// decode reads a JSON body into dst and validates it. On failure the
// response has already been written.
// maxBodySize caps JSON request bodies; uploads set their own limit.
const maxBodySize = 1 << 20

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE", "request body exceeds 1 MiB")
			return false
		}
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "invalid request body")
		return false
	}

	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				field := fe.Namespace()
				if _, rest, ok := strings.Cut(field, "."); ok {
					field = rest
				}
				msgs = append(msgs, fmt.Sprintf("%s failed on %s", field, fe.Tag()))
			}
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", strings.Join(msgs, "; "))
			return false
		}
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return false
	}

	return true
}

func actorFrom(r *http.Request) service.Actor {
	claims, ok := mw.ClaimsFrom(r.Context())
	if !ok {
		return service.Actor{}
	}
	return service.Actor{UserID: claims.UserID, Role: claims.Role}
}

func pageFrom(r *http.Request) service.Page {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	return service.Page{Limit: limit, Offset: offset}.Normalize()
}

func queryBool(r *http.Request, key string) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get(key))
	return v
}

func queryInt64(r *http.Request, key string) int64 {
	v, _ := strconv.ParseInt(r.URL.Query().Get(key), 10, 64)
	return v
}
