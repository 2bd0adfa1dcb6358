package model

import "time"

type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Price       int64     `json:"price"`
	Stock       int       `json:"stock"`
	CategoryID  *string   `json:"categoryId,omitempty"`
	Images      []string  `json:"images"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type Pet struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Price       int64     `json:"price"`
	CategoryID  *string   `json:"categoryId,omitempty"`
	BreedID     *string   `json:"breedId,omitempty"`
	ColorID     *string   `json:"colorId,omitempty"`
	Gender      string    `json:"gender,omitempty"`
	AgeMonths   int       `json:"ageMonths"`
	Images      []string  `json:"images"`
	IsAvailable bool      `json:"isAvailable"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Term is a row of one of the catalog taxonomies (categories, breeds, colors).
type Term struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}
