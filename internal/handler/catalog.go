package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"petshop/internal/model"
	"petshop/internal/mw"
	"petshop/internal/service"
)

type productRequest struct {
	Name        *string  `json:"name" validate:"omitempty,min=1,max=200"`
	Description *string  `json:"description" validate:"omitempty,max=5000"`
	Price       *int64   `json:"price" validate:"omitempty,min=0"`
	Stock       *int     `json:"stock" validate:"omitempty,min=0"`
	CategoryID  *string  `json:"categoryId" validate:"omitempty,uuid"`
	Images      []string `json:"images" validate:"omitempty,dive,url"`
	IsActive    *bool    `json:"isActive"`
}

func (p productRequest) input() service.ProductInput {
	return service.ProductInput{
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Stock:       p.Stock,
		CategoryID:  p.CategoryID,
		Images:      p.Images,
		IsActive:    p.IsActive,
	}
}

type petRequest struct {
	Name        *string  `json:"name" validate:"omitempty,min=1,max=200"`
	Description *string  `json:"description" validate:"omitempty,max=5000"`
	Price       *int64   `json:"price" validate:"omitempty,min=0"`
	CategoryID  *string  `json:"categoryId" validate:"omitempty,uuid"`
	BreedID     *string  `json:"breedId" validate:"omitempty,uuid"`
	ColorID     *string  `json:"colorId" validate:"omitempty,uuid"`
	Gender      *string  `json:"gender" validate:"omitempty,oneof=male female"`
	AgeMonths   *int     `json:"ageMonths" validate:"omitempty,min=0"`
	Images      []string `json:"images" validate:"omitempty,dive,url"`
	IsAvailable *bool    `json:"isAvailable"`
	IsActive    *bool    `json:"isActive"`
}

func (p petRequest) input() service.PetInput {
	return service.PetInput{
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		CategoryID:  p.CategoryID,
		BreedID:     p.BreedID,
		ColorID:     p.ColorID,
		Gender:      p.Gender,
		AgeMonths:   p.AgeMonths,
		Images:      p.Images,
		IsAvailable: p.IsAvailable,
		IsActive:    p.IsActive,
	}
}

func isStaff(r *http.Request) bool {
	claims, ok := mw.ClaimsFrom(r.Context())
	return ok && claims.Role != model.RoleCustomer
}

// includeInactive honours ?all=true for staff only.
func includeInactive(r *http.Request) bool {
	return isStaff(r) && queryBool(r, "all")
}

func ListProductsHandler(catalog Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page := pageFrom(r)

		products, total, err := catalog.ListProducts(r.Context(), service.ProductFilter{
			CategoryID:      q.Get("categoryId"),
			Search:          q.Get("search"),
			MinPrice:        queryInt64(r, "minPrice"),
			MaxPrice:        queryInt64(r, "maxPrice"),
			InStock:         queryBool(r, "inStock"),
			IncludeInactive: includeInactive(r),
			Page:            page,
		})
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeList(w, products, total, page)
	}
}

func GetProductHandler(catalog Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := catalog.GetProduct(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			handleError(w, r, err)
			return
		}
		if !p.IsActive && !isStaff(r) {
			handleError(w, r, service.ErrProductNotFound)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func CreateProductHandler(catalog Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req productRequest
		if !decode(w, r, &req) {
			return
		}
		if req.Name == nil || req.Price == nil {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "name and price are required")
			return
		}

		p, err := catalog.CreateProduct(r.Context(), req.input())
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, p)
	}
}

func UpdateProductHandler(catalog Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req productRequest
		if !decode(w, r, &req) {
			return
		}

		p, err := catalog.UpdateProduct(r.Context(), chi.URLParam(r, "id"), req.input())
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func DeleteProductHandler(catalog Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := catalog.DeactivateProduct(r.Context(), chi.URLParam(r, "id")); err != nil {
			handleError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func ListPetsHandler(catalog Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page := pageFrom(r)

		pets, total, err := catalog.ListPets(r.Context(), service.PetFilter{
			CategoryID:      q.Get("categoryId"),
			BreedID:         q.Get("breedId"),
			ColorID:         q.Get("colorId"),
			Gender:          q.Get("gender"),
			Search:          q.Get("search"),
			AvailableOnly:   queryBool(r, "available"),
			IncludeInactive: includeInactive(r),
			Page:            page,
		})
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeList(w, pets, total, page)
	}
}

func GetPetHandler(catalog Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := catalog.GetPet(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			handleError(w, r, err)
			return
		}
		if !p.IsActive && !isStaff(r) {
			handleError(w, r, service.ErrPetNotFound)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func CreatePetHandler(catalog Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req petRequest
		if !decode(w, r, &req) {
			return
		}
		if req.Name == nil || req.Price == nil {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "name and price are required")
			return
		}

		p, err := catalog.CreatePet(r.Context(), req.input())
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, p)
	}
}

func UpdatePetHandler(catalog Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req petRequest
		if !decode(w, r, &req) {
			return
		}

		p, err := catalog.UpdatePet(r.Context(), chi.URLParam(r, "id"), req.input())
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func DeletePetHandler(catalog Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := catalog.DeactivatePet(r.Context(), chi.URLParam(r, "id")); err != nil {
			handleError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
