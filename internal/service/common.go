package service

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"petshop/internal/model"
)

// Actor is the authenticated caller of a service method.
type Actor struct {
	UserID string
	Role   string
}

func (a Actor) IsStaff() bool {
	return a.Role == model.RoleStaff || a.Role == model.RoleAdmin
}

type EventPublisher interface {
	Publish(ctx context.Context, key string, event any) error
}

// Cache is a string cache. Get returns "" and no error on a miss.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	GenerateKey(operation, key string) string
}

const (
	defaultLimit = 10
	maxLimit     = 100
)

type Page struct {
	Limit  int
	Offset int
}

func (p Page) Normalize() Page {
	if p.Limit <= 0 {
		p.Limit = defaultLimit
	}
	if p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

func decodeImages(raw []byte) []string {
	images := []string{}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &images)
	}
	return images
}

func encodeImages(images []string) []byte {
	if images == nil {
		images = []string{}
	}
	b, _ := json.Marshal(images)
	return b
}

// conditions collects WHERE clauses; "?" in expr becomes the next $n.
type conditions struct {
	parts []string
	args  []any
}

func (c *conditions) add(expr string, arg any) {
	c.args = append(c.args, arg)
	c.parts = append(c.parts, strings.Replace(expr, "?", "$"+strconv.Itoa(len(c.args)), 1))
}

func (c *conditions) where() string {
	if len(c.parts) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(c.parts, " AND ")
}

// page appends LIMIT/OFFSET placeholders and returns the clause.
func (c *conditions) page(p Page) string {
	c.args = append(c.args, p.Limit, p.Offset)
	n := len(c.args)
	return " LIMIT $" + strconv.Itoa(n-1) + " OFFSET $" + strconv.Itoa(n)
}
