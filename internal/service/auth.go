package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"petshop/internal/model"
)

type AuthService struct {
	db *sql.DB
}

func NewAuthService(db *sql.DB) *AuthService {
	return &AuthService{db: db}
}

type NewUser struct {
	Email    string
	Password string
	FullName string
	Phone    string
	Role     string
}

func (s *AuthService) Register(ctx context.Context, u NewUser) (*model.User, error) {
	u.Role = model.RoleCustomer
	return s.CreateUser(ctx, u)
}

func (s *AuthService) CreateUser(ctx context.Context, u NewUser) (*model.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	query := `INSERT INTO users (email, password_hash, full_name, phone, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, email, full_name, phone, role, is_active, created_at`
	row := s.db.QueryRowContext(ctx, query, strings.ToLower(u.Email), hash, u.FullName, u.Phone, u.Role)

	var user model.User
	if err := row.Scan(&user.ID, &user.Email, &user.FullName, &user.Phone, &user.Role, &user.IsActive, &user.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	user.PasswordHash = hash

	return &user, nil
}

func (s *AuthService) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	query := `SELECT id, email, password_hash, full_name, phone, role, is_active, created_at FROM users WHERE email = $1`
	row := s.db.QueryRowContext(ctx, query, strings.ToLower(email))

	var user model.User
	if err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &user.FullName, &user.Phone, &user.Role, &user.IsActive, &user.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	if !user.IsActive {
		return nil, ErrUserInactive
	}

	return &user, nil
}

// EnsureAdmin creates the bootstrap admin account if it does not exist yet.
func (s *AuthService) EnsureAdmin(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return nil
	}

	_, err := s.CreateUser(ctx, NewUser{Email: email, Password: password, FullName: "Administrator", Role: model.RoleAdmin})
	switch {
	case errors.Is(err, ErrUserExists):
		return nil
	case err != nil:
		return fmt.Errorf("seed admin: %w", err)
	}
	slog.Info("bootstrap admin created", "email", email)
	return nil
}
