package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"petshop/internal/model"
	"petshop/internal/service"
)

type orderItemRequest struct {
	Type     model.ItemType `json:"type" validate:"required,oneof=pet product"`
	ItemID   string         `json:"itemId" validate:"required,uuid"`
	Quantity int            `json:"quantity" validate:"required,min=1"`
}

type createOrderRequest struct {
	Items           []orderItemRequest    `json:"items" validate:"required,min=1,dive"`
	ShippingAddress model.ShippingAddress `json:"shippingAddress"`
	Notes           string                `json:"notes" validate:"max=1000"`
	PaymentMethod   string                `json:"paymentMethod" validate:"omitempty,oneof=cod zalopay"`
}

type updateStatusRequest struct {
	Status model.OrderStatus `json:"status" validate:"required"`
}

type refundRequest struct {
	Reason        string   `json:"reason" validate:"required,max=1000"`
	BankName      string   `json:"bankName" validate:"required"`
	AccountNumber string   `json:"accountNumber" validate:"required"`
	AccountName   string   `json:"accountName" validate:"required"`
	Amount        int64    `json:"amount" validate:"min=0"`
	Images        []string `json:"images" validate:"omitempty,max=5,dive,url"`
}

type reviewRequest struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"max=1000"`
}

func CreateOrderHandler(orders OrderManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createOrderRequest
		if !decode(w, r, &req) {
			return
		}

		in := service.CreateOrderInput{
			Items:           make([]service.ItemInput, len(req.Items)),
			ShippingAddress: req.ShippingAddress,
			Notes:           req.Notes,
			PaymentMethod:   req.PaymentMethod,
		}
		for i, it := range req.Items {
			in.Items[i] = service.ItemInput{Type: it.Type, ItemID: it.ItemID, Quantity: it.Quantity}
		}

		order, err := orders.Create(r.Context(), actorFrom(r).UserID, in)
		if err != nil {
			handleError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, order)
	}
}

// ListOrdersHandler serves the caller's own orders, or every order for staff.
// Staff may narrow the list with ?userId=.
func ListOrdersHandler(orders OrderManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page := pageFrom(r)
		filter := service.OrderFilter{
			UserID: r.URL.Query().Get("userId"),
			Status: model.OrderStatus(r.URL.Query().Get("status")),
			Page:   page,
		}

		list, total, err := orders.List(r.Context(), actorFrom(r), filter)
		if err != nil {
			handleError(w, r, err)
			return
		}

		writeList(w, list, total, page)
	}
}

func GetOrderHandler(orders OrderManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		order, err := orders.Get(r.Context(), actorFrom(r), chi.URLParam(r, "id"))
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, order)
	}
}

func CancelOrderHandler(orders OrderManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		order, err := orders.Cancel(r.Context(), actorFrom(r), chi.URLParam(r, "id"))
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, order)
	}
}

func UpdateOrderStatusHandler(orders OrderManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req updateStatusRequest
		if !decode(w, r, &req) {
			return
		}

		order, err := orders.UpdateStatus(r.Context(), chi.URLParam(r, "id"), req.Status)
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, order)
	}
}

func RequestRefundHandler(orders OrderManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req refundRequest
		if !decode(w, r, &req) {
			return
		}

		order, err := orders.RequestRefund(r.Context(), actorFrom(r), chi.URLParam(r, "id"), service.RefundInput{
			Reason:        req.Reason,
			BankName:      req.BankName,
			AccountNumber: req.AccountNumber,
			AccountName:   req.AccountName,
			Amount:        req.Amount,
			Images:        req.Images,
		})
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, order)
	}
}

func AddReviewHandler(orders OrderManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req reviewRequest
		if !decode(w, r, &req) {
			return
		}

		review, err := orders.AddReview(r.Context(), actorFrom(r), chi.URLParam(r, "id"), req.Rating, req.Comment)
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, review)
	}
}

func DeleteReviewHandler(orders OrderManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := orders.DeleteReview(r.Context(), actorFrom(r), chi.URLParam(r, "id")); err != nil {
			handleError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
