package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type termRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=100"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
}

func ListTermsHandler(tax Taxonomy, kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		terms, err := tax.List(r.Context(), kind)
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, terms)
	}
}

func CreateTermHandler(tax Taxonomy, kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req termRequest
		if !decode(w, r, &req) {
			return
		}
		if req.Name == nil {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "name is required")
			return
		}
		description := ""
		if req.Description != nil {
			description = *req.Description
		}

		term, err := tax.Create(r.Context(), kind, *req.Name, description)
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, term)
	}
}

func UpdateTermHandler(tax Taxonomy, kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req termRequest
		if !decode(w, r, &req) {
			return
		}

		term, err := tax.Update(r.Context(), kind, chi.URLParam(r, "id"), req.Name, req.Description)
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, term)
	}
}

func DeleteTermHandler(tax Taxonomy, kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := tax.Delete(r.Context(), kind, chi.URLParam(r, "id")); err != nil {
			handleError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
