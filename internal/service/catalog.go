package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"petshop/internal/model"
)

const catalogTTL = 5 * time.Minute

// CatalogService manages products and pets. Single-item reads go through the
// cache when one is configured.
type CatalogService struct {
	db    *sql.DB
	cache Cache
}

func NewCatalogService(db *sql.DB, cache Cache) *CatalogService {
	return &CatalogService{db: db, cache: cache}
}

type ProductFilter struct {
	CategoryID      string
	Search          string
	MinPrice        int64
	MaxPrice        int64
	InStock         bool
	IncludeInactive bool
	Page
}

type ProductInput struct {
	Name        *string
	Description *string
	Price       *int64
	Stock       *int
	CategoryID  *string
	Images      []string
	IsActive    *bool
}

const productColumns = `id, name, description, price, stock, category_id, images, is_active, created_at, updated_at`

func scanProduct(row rowScanner) (*model.Product, error) {
	var p model.Product
	var images []byte
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.CategoryID, &images, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("scan product: %w", err)
	}
	p.Images = decodeImages(images)
	return &p, nil
}

func (s *CatalogService) ListProducts(ctx context.Context, f ProductFilter) ([]model.Product, int, error) {
	f.Page = f.Page.Normalize()

	var c conditions
	if !f.IncludeInactive {
		c.add("is_active = ?", true)
	}
	if f.CategoryID != "" {
		c.add("category_id = ?", f.CategoryID)
	}
	if f.Search != "" {
		c.add("name ILIKE ?", "%"+f.Search+"%")
	}
	if f.MinPrice > 0 {
		c.add("price >= ?", f.MinPrice)
	}
	if f.MaxPrice > 0 {
		c.add("price <= ?", f.MaxPrice)
	}
	if f.InStock {
		c.add("stock > ?", 0)
	}
	cond := c.where()

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`+cond, c.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+productColumns+` FROM products`+cond+` ORDER BY created_at DESC`+c.page(f.Page), c.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	products := []model.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows iteration failed: %w", err)
	}

	return products, total, nil
}

func (s *CatalogService) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	var p model.Product
	if s.cacheGet(ctx, "product", id, &p) {
		return &p, nil
	}

	found, err := scanProduct(s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	s.cacheSet(ctx, "product", id, found)
	return found, nil
}

func (s *CatalogService) CreateProduct(ctx context.Context, in ProductInput) (*model.Product, error) {
	if in.Name == nil || in.Price == nil {
		return nil, fmt.Errorf("%w: name and price are required", ErrInvalidItem)
	}
	stock := 0
	if in.Stock != nil {
		stock = *in.Stock
	}
	description := ""
	if in.Description != nil {
		description = *in.Description
	}

	return scanProduct(s.db.QueryRowContext(ctx, `
		INSERT INTO products (name, description, price, stock, category_id, images)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+productColumns,
		*in.Name, description, *in.Price, stock, in.CategoryID, encodeImages(in.Images)))
}

// UpdateProduct changes only the fields set in in.
func (s *CatalogService) UpdateProduct(ctx context.Context, id string, in ProductInput) (*model.Product, error) {
	var images []byte
	if in.Images != nil {
		images = encodeImages(in.Images)
	}

	p, err := scanProduct(s.db.QueryRowContext(ctx, `
		UPDATE products SET
			name = COALESCE($1, name),
			description = COALESCE($2, description),
			price = COALESCE($3, price),
			stock = COALESCE($4, stock),
			category_id = COALESCE($5, category_id),
			images = COALESCE($6, images),
			is_active = COALESCE($7, is_active),
			updated_at = NOW()
		WHERE id = $8
		RETURNING `+productColumns,
		in.Name, in.Description, in.Price, in.Stock, in.CategoryID, images, in.IsActive, id))
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, "product", id)
	return p, nil
}

// DeactivateProduct hides the product; rows referenced by orders are never removed.
func (s *CatalogService) DeactivateProduct(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE products SET is_active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deactivate product: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrProductNotFound
	}
	s.invalidate(ctx, "product", id)
	return nil
}

type PetFilter struct {
	CategoryID      string
	BreedID         string
	ColorID         string
	Gender          string
	Search          string
	AvailableOnly   bool
	IncludeInactive bool
	Page
}

type PetInput struct {
	Name        *string
	Description *string
	Price       *int64
	CategoryID  *string
	BreedID     *string
	ColorID     *string
	Gender      *string
	AgeMonths   *int
	Images      []string
	IsAvailable *bool
	IsActive    *bool
}

const petColumns = `id, name, description, price, category_id, breed_id, color_id, gender, age_months, images, is_available, is_active, created_at, updated_at`

func scanPet(row rowScanner) (*model.Pet, error) {
	var p model.Pet
	var images []byte
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.CategoryID, &p.BreedID, &p.ColorID,
		&p.Gender, &p.AgeMonths, &images, &p.IsAvailable, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPetNotFound
		}
		return nil, fmt.Errorf("scan pet: %w", err)
	}
	p.Images = decodeImages(images)
	return &p, nil
}

func (s *CatalogService) ListPets(ctx context.Context, f PetFilter) ([]model.Pet, int, error) {
	f.Page = f.Page.Normalize()

	var c conditions
	if !f.IncludeInactive {
		c.add("is_active = ?", true)
	}
	if f.AvailableOnly {
		c.add("is_available = ?", true)
	}
	if f.CategoryID != "" {
		c.add("category_id = ?", f.CategoryID)
	}
	if f.BreedID != "" {
		c.add("breed_id = ?", f.BreedID)
	}
	if f.ColorID != "" {
		c.add("color_id = ?", f.ColorID)
	}
	if f.Gender != "" {
		c.add("gender = ?", f.Gender)
	}
	if f.Search != "" {
		c.add("name ILIKE ?", "%"+f.Search+"%")
	}
	cond := c.where()

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pets`+cond, c.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count pets: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+petColumns+` FROM pets`+cond+` ORDER BY created_at DESC`+c.page(f.Page), c.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query pets: %w", err)
	}
	defer rows.Close()

	pets := []model.Pet{}
	for rows.Next() {
		p, err := scanPet(rows)
		if err != nil {
			return nil, 0, err
		}
		pets = append(pets, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows iteration failed: %w", err)
	}

	return pets, total, nil
}

func (s *CatalogService) GetPet(ctx context.Context, id string) (*model.Pet, error) {
	var p model.Pet
	if s.cacheGet(ctx, "pet", id, &p) {
		return &p, nil
	}

	found, err := scanPet(s.db.QueryRowContext(ctx, `SELECT `+petColumns+` FROM pets WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	s.cacheSet(ctx, "pet", id, found)
	return found, nil
}

func (s *CatalogService) CreatePet(ctx context.Context, in PetInput) (*model.Pet, error) {
	if in.Name == nil || in.Price == nil {
		return nil, fmt.Errorf("%w: name and price are required", ErrInvalidItem)
	}

	return scanPet(s.db.QueryRowContext(ctx, `
		INSERT INTO pets (name, description, price, category_id, breed_id, color_id, gender, age_months, images)
		VALUES ($1, COALESCE($2, ''), $3, $4, $5, $6, COALESCE($7, ''), COALESCE($8, 0), $9)
		RETURNING `+petColumns,
		*in.Name, in.Description, *in.Price, in.CategoryID, in.BreedID, in.ColorID, in.Gender, in.AgeMonths, encodeImages(in.Images)))
}

// UpdatePet changes only the fields set in in.
func (s *CatalogService) UpdatePet(ctx context.Context, id string, in PetInput) (*model.Pet, error) {
	var images []byte
	if in.Images != nil {
		images = encodeImages(in.Images)
	}

	p, err := scanPet(s.db.QueryRowContext(ctx, `
		UPDATE pets SET
			name = COALESCE($1, name),
			description = COALESCE($2, description),
			price = COALESCE($3, price),
			category_id = COALESCE($4, category_id),
			breed_id = COALESCE($5, breed_id),
			color_id = COALESCE($6, color_id),
			gender = COALESCE($7, gender),
			age_months = COALESCE($8, age_months),
			images = COALESCE($9, images),
			is_available = COALESCE($10, is_available),
			is_active = COALESCE($11, is_active),
			updated_at = NOW()
		WHERE id = $12
		RETURNING `+petColumns,
		in.Name, in.Description, in.Price, in.CategoryID, in.BreedID, in.ColorID, in.Gender, in.AgeMonths,
		images, in.IsAvailable, in.IsActive, id))
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, "pet", id)
	return p, nil
}

func (s *CatalogService) DeactivatePet(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE pets SET is_active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deactivate pet: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrPetNotFound
	}
	s.invalidate(ctx, "pet", id)
	return nil
}

// InvalidateItems drops cached entries for items whose stock or availability
// changed outside the catalog service.
func (s *CatalogService) InvalidateItems(ctx context.Context, items []model.OrderItem) {
	for _, it := range items {
		s.invalidate(ctx, string(it.Type), it.ItemID)
	}
}

// Cache failures never fail a read or write; the database stays authoritative.

func (s *CatalogService) cacheGet(ctx context.Context, kind, id string, out any) bool {
	if s.cache == nil {
		return false
	}
	raw, err := s.cache.Get(ctx, s.cache.GenerateKey(kind, id))
	if err != nil {
		slog.WarnContext(ctx, "cache get failed", "kind", kind, "id", id, "error", err)
		return false
	}
	if raw == "" {
		return false
	}
	return json.Unmarshal([]byte(raw), out) == nil
}

func (s *CatalogService) cacheSet(ctx context.Context, kind, id string, v any) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, s.cache.GenerateKey(kind, id), raw, catalogTTL); err != nil {
		slog.WarnContext(ctx, "cache set failed", "kind", kind, "id", id, "error", err)
	}
}

func (s *CatalogService) invalidate(ctx context.Context, kind, id string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, s.cache.GenerateKey(kind, id)); err != nil {
		slog.WarnContext(ctx, "cache delete failed", "kind", kind, "id", id, "error", err)
	}
}
