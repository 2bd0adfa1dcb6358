package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"petshop/internal/model"
)

// taxonomyTables maps the public kind name to its table. Only these names
// are ever interpolated into SQL.
var taxonomyTables = map[string]string{
	"categories": "categories",
	"breeds":     "breeds",
	"colors":     "colors",
}

type TaxonomyService struct {
	db *sql.DB
}

func NewTaxonomyService(db *sql.DB) *TaxonomyService {
	return &TaxonomyService{db: db}
}

func tableFor(kind string) (string, error) {
	table, ok := taxonomyTables[kind]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTaxonomy, kind)
	}
	return table, nil
}

func scanTerm(row rowScanner) (*model.Term, error) {
	var t model.Term
	if err := row.Scan(&t.ID, &t.Name, &t.Description, &t.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTermNotFound
		}
		if isUniqueViolation(err) {
			return nil, ErrTermExists
		}
		return nil, fmt.Errorf("scan term: %w", err)
	}
	return &t, nil
}

func (s *TaxonomyService) List(ctx context.Context, kind string) ([]model.Term, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, name, description, created_at FROM `+table+` ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	terms := []model.Term{}
	for rows.Next() {
		t, err := scanTerm(rows)
		if err != nil {
			return nil, err
		}
		terms = append(terms, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}
	return terms, nil
}

func (s *TaxonomyService) Create(ctx context.Context, kind, name, description string) (*model.Term, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	return scanTerm(s.db.QueryRowContext(ctx,
		`INSERT INTO `+table+` (name, description) VALUES ($1, $2) RETURNING id, name, description, created_at`,
		name, description))
}

func (s *TaxonomyService) Update(ctx context.Context, kind, id string, name, description *string) (*model.Term, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	return scanTerm(s.db.QueryRowContext(ctx,
		`UPDATE `+table+` SET name = COALESCE($1, name), description = COALESCE($2, description)
		WHERE id = $3 RETURNING id, name, description, created_at`,
		name, description, id))
}

// Delete removes the term; catalog rows pointing at it fall back to NULL.
func (s *TaxonomyService) Delete(ctx context.Context, kind, id string) error {
	table, err := tableFor(kind)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete term: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrTermNotFound
	}
	return nil
}
