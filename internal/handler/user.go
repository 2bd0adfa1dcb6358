package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"petshop/internal/service"
)

type createStaffRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	FullName string `json:"fullName" validate:"required"`
	Phone    string `json:"phone" validate:"omitempty,max=20"`
}

type setActiveRequest struct {
	IsActive *bool `json:"isActive" validate:"required"`
}

func MeHandler(users UserManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		profile, err := users.Me(r.Context(), actorFrom(r).UserID)
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, profile)
	}
}

func ListUsersHandler(users UserManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page := pageFrom(r)
		list, total, err := users.List(r.Context(), r.URL.Query().Get("role"), page)
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeList(w, list, total, page)
	}
}

func CreateStaffHandler(users UserManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createStaffRequest
		if !decode(w, r, &req) {
			return
		}

		user, err := users.CreateStaff(r.Context(), service.NewUser{
			Email:    req.Email,
			Password: req.Password,
			FullName: req.FullName,
			Phone:    req.Phone,
		})
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, user)
	}
}

func SetUserActiveHandler(users UserManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req setActiveRequest
		if !decode(w, r, &req) {
			return
		}

		user, err := users.SetActive(r.Context(), chi.URLParam(r, "id"), *req.IsActive)
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, user)
	}
}
