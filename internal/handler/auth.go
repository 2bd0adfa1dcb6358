package handler

import (
	"log/slog"
	"net/http"

	"petshop/internal/model"
	"petshop/internal/mw"
	"petshop/internal/service"
)

type registerRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	FullName string `json:"fullName" validate:"required"`
	Phone    string `json:"phone" validate:"omitempty,max=20"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type authResponse struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

func RegisterHandler(authSvc Authenticator, secret string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerRequest
		if !decode(w, r, &req) {
			return
		}

		user, err := authSvc.Register(r.Context(), service.NewUser{
			Email:    req.Email,
			Password: req.Password,
			FullName: req.FullName,
			Phone:    req.Phone,
		})
		if err != nil {
			handleError(w, r, err)
			return
		}

		respondWithToken(w, r, secret, user, http.StatusCreated)
	}
}

func LoginHandler(authSvc Authenticator, secret string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if !decode(w, r, &req) {
			return
		}

		user, err := authSvc.Authenticate(r.Context(), req.Email, req.Password)
		if err != nil {
			handleError(w, r, err)
			return
		}

		respondWithToken(w, r, secret, user, http.StatusOK)
	}
}

func respondWithToken(w http.ResponseWriter, r *http.Request, secret string, user *model.User, status int) {
	token, err := mw.NewToken(secret, user.ID, user.Role)
	if err != nil {
		slog.ErrorContext(r.Context(), "token generation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "token generation failed")
		return
	}

	w.Header().Set("Authorization", "Bearer "+token)
	writeJSON(w, status, authResponse{Token: token, User: user})
}
