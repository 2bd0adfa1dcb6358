package handler

import (
	"context"
	"io"

	"petshop/internal/model"
	"petshop/internal/service"
	"petshop/internal/zalopay"
)

type Authenticator interface {
	Register(ctx context.Context, u service.NewUser) (*model.User, error)
	Authenticate(ctx context.Context, email, password string) (*model.User, error)
}

type OrderManager interface {
	Create(ctx context.Context, userID string, in service.CreateOrderInput) (*model.Order, error)
	List(ctx context.Context, actor service.Actor, f service.OrderFilter) ([]model.Order, int, error)
	Get(ctx context.Context, actor service.Actor, id string) (*model.Order, error)
	Cancel(ctx context.Context, actor service.Actor, id string) (*model.Order, error)
	UpdateStatus(ctx context.Context, id string, status model.OrderStatus) (*model.Order, error)
	RequestRefund(ctx context.Context, actor service.Actor, id string, in service.RefundInput) (*model.Order, error)
	AddReview(ctx context.Context, actor service.Actor, orderID string, rating int, comment string) (*model.Review, error)
	DeleteReview(ctx context.Context, actor service.Actor, orderID string) error
}

type PaymentManager interface {
	CreateForOrder(ctx context.Context, actor service.Actor, orderID string) (*model.PaymentTransaction, error)
	HandleCallback(ctx context.Context, req zalopay.CallbackRequest) (bool, error)
	GetTransaction(ctx context.Context, actor service.Actor, orderID string) (*model.PaymentTransaction, error)
}

type Catalog interface {
	ListProducts(ctx context.Context, f service.ProductFilter) ([]model.Product, int, error)
	GetProduct(ctx context.Context, id string) (*model.Product, error)
	CreateProduct(ctx context.Context, in service.ProductInput) (*model.Product, error)
	UpdateProduct(ctx context.Context, id string, in service.ProductInput) (*model.Product, error)
	DeactivateProduct(ctx context.Context, id string) error

	ListPets(ctx context.Context, f service.PetFilter) ([]model.Pet, int, error)
	GetPet(ctx context.Context, id string) (*model.Pet, error)
	CreatePet(ctx context.Context, in service.PetInput) (*model.Pet, error)
	UpdatePet(ctx context.Context, id string, in service.PetInput) (*model.Pet, error)
	DeactivatePet(ctx context.Context, id string) error
}

type Taxonomy interface {
	List(ctx context.Context, kind string) ([]model.Term, error)
	Create(ctx context.Context, kind, name, description string) (*model.Term, error)
	Update(ctx context.Context, kind, id string, name, description *string) (*model.Term, error)
	Delete(ctx context.Context, kind, id string) error
}

type UserManager interface {
	Me(ctx context.Context, userID string) (*model.Profile, error)
	List(ctx context.Context, role string, page service.Page) ([]model.User, int, error)
	CreateStaff(ctx context.Context, u service.NewUser) (*model.User, error)
	SetActive(ctx context.Context, id string, active bool) (*model.User, error)
}

type Uploader interface {
	UploadImage(ctx context.Context, filename, contentType string, body io.Reader, size int64) (string, error)
}
