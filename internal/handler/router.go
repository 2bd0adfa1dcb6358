package handler

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"petshop/internal/model"
	"petshop/internal/mw"
)

// Services bundles what the router needs to serve /api.
type Services struct {
	JWTSecret string
	Auth      Authenticator
	Orders    OrderManager
	Payments  PaymentManager
	Catalog   Catalog
	Taxonomy  Taxonomy
	Users     UserManager
	Uploads   Uploader
}

var taxonomyKinds = []string{"categories", "breeds", "colors"}

func NewRouter(s Services) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Post("/auth/register", RegisterHandler(s.Auth, s.JWTSecret))
		r.Post("/auth/login", LoginHandler(s.Auth, s.JWTSecret))
		r.Post("/payment/zalopay/callback", ZaloPayCallbackHandler(s.Payments))

		r.Group(func(r chi.Router) {
			r.Use(mw.OptionalAuth(s.JWTSecret))

			r.Get("/products", ListProductsHandler(s.Catalog))
			r.Get("/products/{id}", GetProductHandler(s.Catalog))
			r.Get("/pets", ListPetsHandler(s.Catalog))
			r.Get("/pets/{id}", GetPetHandler(s.Catalog))
			for _, kind := range taxonomyKinds {
				r.Get("/"+kind, ListTermsHandler(s.Taxonomy, kind))
			}
		})

		// Authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(mw.AuthMiddleware(s.JWTSecret))

			r.Get("/users/me", MeHandler(s.Users))

			r.Post("/orders", CreateOrderHandler(s.Orders))
			r.Get("/orders", ListOrdersHandler(s.Orders))
			r.Get("/orders/{id}", GetOrderHandler(s.Orders))
			r.Patch("/orders/{id}/cancel", CancelOrderHandler(s.Orders))
			r.Patch("/orders/{id}/refund", RequestRefundHandler(s.Orders))
			r.Post("/orders/{id}/review", AddReviewHandler(s.Orders))
			r.Delete("/orders/{id}/review", DeleteReviewHandler(s.Orders))

			r.Post("/payment/zalopay/create-order", CreateZaloPayOrderHandler(s.Payments))
			r.Get("/payment/transaction/{orderId}", GetTransactionHandler(s.Payments))

			// Staff routes
			r.Group(func(r chi.Router) {
				r.Use(mw.RequireRole(model.RoleStaff, model.RoleAdmin))

				r.Patch("/orders/{id}/status", UpdateOrderStatusHandler(s.Orders))

				r.Post("/products", CreateProductHandler(s.Catalog))
				r.Put("/products/{id}", UpdateProductHandler(s.Catalog))
				r.Delete("/products/{id}", DeleteProductHandler(s.Catalog))
				r.Post("/pets", CreatePetHandler(s.Catalog))
				r.Put("/pets/{id}", UpdatePetHandler(s.Catalog))
				r.Delete("/pets/{id}", DeletePetHandler(s.Catalog))

				for _, kind := range taxonomyKinds {
					r.Post("/"+kind, CreateTermHandler(s.Taxonomy, kind))
					r.Put("/"+kind+"/{id}", UpdateTermHandler(s.Taxonomy, kind))
					r.Delete("/"+kind+"/{id}", DeleteTermHandler(s.Taxonomy, kind))
				}

				r.Post("/uploads", UploadImageHandler(s.Uploads))
			})

			// Admin routes
			r.Group(func(r chi.Router) {
				r.Use(mw.RequireRole(model.RoleAdmin))

				r.Get("/users", ListUsersHandler(s.Users))
				r.Post("/staff", CreateStaffHandler(s.Users))
				r.Patch("/users/{id}/active", SetUserActiveHandler(s.Users))
			})
		})
	})

	return r
}
