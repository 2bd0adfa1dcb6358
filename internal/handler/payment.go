package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"petshop/internal/service"
	"petshop/internal/zalopay"
)

type createPaymentRequest struct {
	OrderID string `json:"orderId" validate:"required,uuid"`
}

// callbackResponse is the body the gateway expects back. return_code 1
// acknowledges, 0 asks for a retry, -1 rejects the callback.
type callbackResponse struct {
	ReturnCode    int    `json:"return_code"`
	ReturnMessage string `json:"return_message"`
}

func CreateZaloPayOrderHandler(payments PaymentManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createPaymentRequest
		if !decode(w, r, &req) {
			return
		}

		txn, err := payments.CreateForOrder(r.Context(), actorFrom(r), req.OrderID)
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, txn)
	}
}

// ZaloPayCallbackHandler always answers 200; the outcome is in return_code.
func ZaloPayCallbackHandler(payments PaymentManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req zalopay.CallbackRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusOK, callbackResponse{ReturnCode: -1, ReturnMessage: "invalid body"})
			return
		}

		ok, err := payments.HandleCallback(r.Context(), req)
		switch {
		case errors.Is(err, service.ErrTransactionNotFound):
			// A retry cannot create the transaction, so the gateway should stop.
			slog.WarnContext(r.Context(), "zalopay callback for unknown transaction", "error", err)
			writeJSON(w, http.StatusOK, callbackResponse{ReturnCode: -1, ReturnMessage: err.Error()})
		case err != nil:
			slog.ErrorContext(r.Context(), "zalopay callback failed", "error", err)
			writeJSON(w, http.StatusOK, callbackResponse{ReturnCode: 0, ReturnMessage: err.Error()})
		case !ok:
			writeJSON(w, http.StatusOK, callbackResponse{ReturnCode: -1, ReturnMessage: zalopay.ErrInvalidMAC.Error()})
		default:
			writeJSON(w, http.StatusOK, callbackResponse{ReturnCode: 1, ReturnMessage: "success"})
		}
	}
}

func GetTransactionHandler(payments PaymentManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		txn, err := payments.GetTransaction(r.Context(), actorFrom(r), chi.URLParam(r, "orderId"))
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, txn)
	}
}
