package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"petshop/internal/model"
)

type UserService struct {
	db   *sql.DB
	auth *AuthService
}

func NewUserService(db *sql.DB, auth *AuthService) *UserService {
	return &UserService{db: db, auth: auth}
}

const userColumns = `id, email, full_name, phone, role, is_active, created_at`

func scanUser(row rowScanner) (*model.User, error) {
	var u model.User
	if err := row.Scan(&u.ID, &u.Email, &u.FullName, &u.Phone, &u.Role, &u.IsActive, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

// Me returns the profile with order stats derived from live orders.
func (s *UserService) Me(ctx context.Context, userID string) (*model.Profile, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID))
	if err != nil {
		return nil, err
	}

	p := &model.Profile{User: *u}
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(total), 0)
		FROM orders
		WHERE user_id = $1 AND status NOT IN ($2, $3)
	`, userID, model.StatusCancelled, model.StatusRefunded).Scan(&p.Stats.Orders, &p.Stats.TotalSpent)
	if err != nil {
		return nil, fmt.Errorf("user stats: %w", err)
	}

	return p, nil
}

func (s *UserService) List(ctx context.Context, role string, page Page) ([]model.User, int, error) {
	page = page.Normalize()

	var c conditions
	if role != "" {
		c.add("role = ?", role)
	}
	cond := c.where()

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`+cond, c.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users`+cond+` ORDER BY created_at DESC`+c.page(page), c.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows iteration failed: %w", err)
	}

	return users, total, nil
}

func (s *UserService) CreateStaff(ctx context.Context, u NewUser) (*model.User, error) {
	u.Role = model.RoleStaff
	return s.auth.CreateUser(ctx, u)
}

func (s *UserService) SetActive(ctx context.Context, id string, active bool) (*model.User, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		`UPDATE users SET is_active = $1 WHERE id = $2 RETURNING `+userColumns, active, id))
}
