package model

import "time"

const (
	RoleCustomer = "customer"
	RoleStaff    = "staff"
	RoleAdmin    = "admin"
)

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash []byte    `json:"-"`
	FullName     string    `json:"fullName"`
	Phone        string    `json:"phone,omitempty"`
	Role         string    `json:"role"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
}

// UserStats is computed from the user's orders on every read; cancelled and
// refunded orders do not count.
type UserStats struct {
	Orders     int   `json:"orders"`
	TotalSpent int64 `json:"totalSpent"`
}

type Profile struct {
	User
	Stats UserStats `json:"stats"`
}
