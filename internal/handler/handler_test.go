package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"petshop/internal/model"
	"petshop/internal/mw"
	"petshop/internal/service"
	"petshop/internal/zalopay"
)

const testSecret = "test-secret"

// ============================================
// Fakes
// ============================================

// The embedded interfaces stay nil; tests only hit the overridden methods.
type fakeOrders struct {
	OrderManager
	created      *service.CreateOrderInput
	listFilter   service.OrderFilter
	listResult   []model.Order
	updateErr    error
	createCalled bool
}

func (f *fakeOrders) Create(_ context.Context, userID string, in service.CreateOrderInput) (*model.Order, error) {
	f.createCalled = true
	f.created = &in
	return &model.Order{ID: "o-1", Number: "ORD-0001", UserID: userID, Status: model.StatusPending}, nil
}

func (f *fakeOrders) List(_ context.Context, _ service.Actor, filter service.OrderFilter) ([]model.Order, int, error) {
	f.listFilter = filter
	return f.listResult, len(f.listResult), nil
}

func (f *fakeOrders) UpdateStatus(_ context.Context, id string, status model.OrderStatus) (*model.Order, error) {
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	return &model.Order{ID: id, Status: status}, nil
}

type fakePayments struct {
	PaymentManager
	ok  bool
	err error
}

func (f *fakePayments) HandleCallback(context.Context, zalopay.CallbackRequest) (bool, error) {
	return f.ok, f.err
}

type fakeCatalog struct {
	Catalog
	productFilter service.ProductFilter
	getErr        error
	inactive      bool
}

func (f *fakeCatalog) ListProducts(_ context.Context, filter service.ProductFilter) ([]model.Product, int, error) {
	f.productFilter = filter
	return nil, 0, nil
}

func (f *fakeCatalog) GetProduct(_ context.Context, id string) (*model.Product, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &model.Product{ID: id, Name: "Cat food", IsActive: !f.inactive}, nil
}

func (f *fakeCatalog) GetPet(_ context.Context, id string) (*model.Pet, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &model.Pet{ID: id, Name: "Milo", IsActive: !f.inactive, IsAvailable: true}, nil
}

type fakeUploader struct {
	filename, contentType string
}

func (f *fakeUploader) UploadImage(_ context.Context, filename, contentType string, _ io.Reader, _ int64) (string, error) {
	f.filename, f.contentType = filename, contentType
	return "https://cdn.example/images/" + filename, nil
}

func newTestRouter(s Services) http.Handler {
	s.JWTSecret = testSecret
	return NewRouter(s)
}

func bearer(t *testing.T, role string) string {
	t.Helper()
	token, err := mw.NewToken(testSecret, "user-1", role)
	require.NoError(t, err)
	return "Bearer " + token
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

// ============================================
// Error mapping
// ============================================

func TestHandleError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"transition", fmt.Errorf("wrap: %w", model.ErrInvalidTransition), http.StatusBadRequest, "INVALID_STATUS_TRANSITION"},
		{"order not found", service.ErrOrderNotFound, http.StatusNotFound, "ORDER_NOT_FOUND"},
		{"stock", fmt.Errorf("%w: Cat food", service.ErrInsufficientStock), http.StatusBadRequest, "INSUFFICIENT_STOCK"},
		{"gateway", service.ErrGatewayRejected, http.StatusBadGateway, "PAYMENT_GATEWAY_ERROR"},
		{"disabled", service.ErrPaymentDisabled, http.StatusServiceUnavailable, "PAYMENT_DISABLED"},
		{"unique violation", fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"}), http.StatusConflict, "CONFLICT"},
		{"bad uuid", &pgconn.PgError{Code: "22P02"}, http.StatusBadRequest, "INVALID_ID"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handleError(rec, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCode, decodeError(t, rec).Error)
		})
	}
}

func TestHandleError_HidesInternalMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	handleError(rec, httptest.NewRequest(http.MethodGet, "/", nil), errors.New("pq: password authentication failed"))

	assert.Equal(t, "internal error", decodeError(t, rec).Message)
}

// ============================================
// Orders
// ============================================

func TestCreateOrder_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"malformed json", `{"items":`, "INVALID_JSON"},
		{"no items", `{"items":[]}`, "VALIDATION_ERROR"},
		{"bad item type", `{"items":[{"type":"toy","itemId":"3f0e1c1e-8a53-4c4a-9d2b-8d3f2a1b0c9e","quantity":1}]}`, "VALIDATION_ERROR"},
		{"zero quantity", `{"items":[{"type":"product","itemId":"3f0e1c1e-8a53-4c4a-9d2b-8d3f2a1b0c9e","quantity":0}]}`, "VALIDATION_ERROR"},
		{"bad payment method", `{"items":[{"type":"product","itemId":"3f0e1c1e-8a53-4c4a-9d2b-8d3f2a1b0c9e","quantity":1}],"paymentMethod":"cash"}`, "VALIDATION_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orders := &fakeOrders{}
			router := newTestRouter(Services{Orders: orders})

			req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(tt.body))
			req.Header.Set("Authorization", bearer(t, model.RoleCustomer))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.want, decodeError(t, rec).Error)
			assert.False(t, orders.createCalled)
		})
	}
}

func TestCreateOrder_BodyTooLarge(t *testing.T) {
	orders := &fakeOrders{}
	router := newTestRouter(Services{Orders: orders})

	body := `{"notes":"` + strings.Repeat("x", maxBodySize) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(body))
	req.Header.Set("Authorization", bearer(t, model.RoleCustomer))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "BODY_TOO_LARGE", decodeError(t, rec).Error)
	assert.False(t, orders.createCalled)
}

func TestCreateOrder_PassesItemsThrough(t *testing.T) {
	orders := &fakeOrders{}
	router := newTestRouter(Services{Orders: orders})

	body := `{
		"items":[{"type":"pet","itemId":"3f0e1c1e-8a53-4c4a-9d2b-8d3f2a1b0c9e","quantity":1}],
		"shippingAddress":{"fullName":"Alice","phone":"0900","address":"1 Main St","city":"HCMC"},
		"paymentMethod":"zalopay"
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(body))
	req.Header.Set("Authorization", bearer(t, model.RoleCustomer))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, orders.created)
	assert.Equal(t, "zalopay", orders.created.PaymentMethod)
	assert.Equal(t, []service.ItemInput{{Type: model.ItemPet, ItemID: "3f0e1c1e-8a53-4c4a-9d2b-8d3f2a1b0c9e", Quantity: 1}}, orders.created.Items)

	var got model.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "user-1", got.UserID)
}

func TestCreateOrder_RequiresToken(t *testing.T) {
	router := newTestRouter(Services{Orders: &fakeOrders{}})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(`{}`)))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestListOrders_PaginationEnvelope(t *testing.T) {
	orders := &fakeOrders{listResult: []model.Order{{ID: "o-1"}, {ID: "o-2"}}}
	router := newTestRouter(Services{Orders: orders})

	req := httptest.NewRequest(http.MethodGet, "/api/orders?status=pending&limit=500&offset=4", nil)
	req.Header.Set("Authorization", bearer(t, model.RoleStaff))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.StatusPending, orders.listFilter.Status)
	assert.Equal(t, service.Page{Limit: 100, Offset: 4}, orders.listFilter.Page)

	var body listResponse[model.Order]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Data, 2)
	assert.Equal(t, pagination{Total: 2, Limit: 100, Offset: 4}, body.Pagination)
}

func TestUpdateOrderStatus_RoleGuard(t *testing.T) {
	tests := []struct {
		role string
		want int
	}{
		{model.RoleCustomer, http.StatusForbidden},
		{model.RoleStaff, http.StatusOK},
		{model.RoleAdmin, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			router := newTestRouter(Services{Orders: &fakeOrders{}})

			req := httptest.NewRequest(http.MethodPatch, "/api/orders/o-1/status", strings.NewReader(`{"status":"processing"}`))
			req.Header.Set("Authorization", bearer(t, tt.role))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestUpdateOrderStatus_InvalidTransition(t *testing.T) {
	orders := &fakeOrders{updateErr: fmt.Errorf("%w: cannot change status from delivered to pending", model.ErrInvalidTransition)}
	router := newTestRouter(Services{Orders: orders})

	req := httptest.NewRequest(http.MethodPatch, "/api/orders/o-1/status", strings.NewReader(`{"status":"pending"}`))
	req.Header.Set("Authorization", bearer(t, model.RoleStaff))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "INVALID_STATUS_TRANSITION", body.Error)
	assert.Contains(t, body.Message, "delivered to pending")
}

// ============================================
// Payments
// ============================================

func TestZaloPayCallback(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		payments *fakePayments
		wantCode int
		wantMsg  string
	}{
		{"success", `{"data":"{}","mac":"ok"}`, &fakePayments{ok: true}, 1, "success"},
		{"invalid mac", `{"data":"{}","mac":"bad"}`, &fakePayments{ok: false}, -1, "mac not equal"},
		{"unknown transaction is rejected", `{"data":"{}","mac":"ok"}`, &fakePayments{ok: true, err: service.ErrTransactionNotFound}, -1, "payment transaction not found"},
		{"processing error asks for retry", `{"data":"{}","mac":"ok"}`, &fakePayments{ok: true, err: errors.New("db down")}, 0, "db down"},
		{"garbage body", `not json`, &fakePayments{}, -1, "invalid body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(Services{Payments: tt.payments})

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/payment/zalopay/callback", strings.NewReader(tt.body)))

			require.Equal(t, http.StatusOK, rec.Code)
			var got callbackResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			assert.Equal(t, tt.wantCode, got.ReturnCode)
			assert.Equal(t, tt.wantMsg, got.ReturnMessage)
		})
	}
}

// ============================================
// Catalog
// ============================================

func TestListProducts_PublicWithFilters(t *testing.T) {
	catalog := &fakeCatalog{}
	router := newTestRouter(Services{Catalog: catalog})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/products?search=cat&minPrice=1000&inStock=true&all=true", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cat", catalog.productFilter.Search)
	assert.Equal(t, int64(1000), catalog.productFilter.MinPrice)
	assert.True(t, catalog.productFilter.InStock)
	assert.False(t, catalog.productFilter.IncludeInactive, "anonymous callers never see inactive items")
	assert.JSONEq(t, `{"data":[],"pagination":{"total":0,"limit":10,"offset":0}}`, rec.Body.String())
}

func TestListProducts_StaffMaySeeInactive(t *testing.T) {
	catalog := &fakeCatalog{}
	router := newTestRouter(Services{Catalog: catalog})

	req := httptest.NewRequest(http.MethodGet, "/api/products?all=true", nil)
	req.Header.Set("Authorization", bearer(t, model.RoleStaff))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, catalog.productFilter.IncludeInactive)
}

func TestGetProduct_NotFound(t *testing.T) {
	router := newTestRouter(Services{Catalog: &fakeCatalog{getErr: service.ErrProductNotFound}})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/products/p-404", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "PRODUCT_NOT_FOUND", decodeError(t, rec).Error)
}

func TestGetCatalogItem_InactiveHiddenFromPublic(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		role     string
		wantCode int
		wantErr  string
	}{
		{"anonymous product", "/api/products/p-1", "", http.StatusNotFound, "PRODUCT_NOT_FOUND"},
		{"customer product", "/api/products/p-1", model.RoleCustomer, http.StatusNotFound, "PRODUCT_NOT_FOUND"},
		{"staff product", "/api/products/p-1", model.RoleStaff, http.StatusOK, ""},
		{"anonymous pet", "/api/pets/pet-1", "", http.StatusNotFound, "PET_NOT_FOUND"},
		{"admin pet", "/api/pets/pet-1", model.RoleAdmin, http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(Services{Catalog: &fakeCatalog{inactive: true}})

			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.role != "" {
				req.Header.Set("Authorization", bearer(t, tt.role))
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			require.Equal(t, tt.wantCode, rec.Code)
			if tt.wantErr != "" {
				assert.Equal(t, tt.wantErr, decodeError(t, rec).Error)
			}
		})
	}
}

func TestGetPet_ActiveIsPublic(t *testing.T) {
	router := newTestRouter(Services{Catalog: &fakeCatalog{}})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/pets/pet-1", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var got model.Pet
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "Milo", got.Name)
}

func TestCreateProduct_CustomerForbidden(t *testing.T) {
	router := newTestRouter(Services{Catalog: &fakeCatalog{}})

	req := httptest.NewRequest(http.MethodPost, "/api/products", strings.NewReader(`{"name":"x","price":1}`))
	req.Header.Set("Authorization", bearer(t, model.RoleCustomer))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

// ============================================
// Uploads
// ============================================

func multipartBody(t *testing.T, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mpw := multipart.NewWriter(&buf)
	part, err := mpw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mpw.Close())
	return &buf, mpw.FormDataContentType()
}

func TestUploadImage(t *testing.T) {
	uploader := &fakeUploader{}
	router := newTestRouter(Services{Uploads: uploader})

	body, contentType := multipartBody(t, "file", "kitten.png", []byte("png-bytes"))
	req := httptest.NewRequest(http.MethodPost, "/api/uploads", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", bearer(t, model.RoleStaff))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"url":"https://cdn.example/images/kitten.png"}`, rec.Body.String())
	assert.Equal(t, "kitten.png", uploader.filename)
}

func TestUploadImage_TooLarge(t *testing.T) {
	router := newTestRouter(Services{Uploads: &fakeUploader{}})

	body, contentType := multipartBody(t, "file", "huge.png", bytes.Repeat([]byte{0}, service.MaxUploadSize+2<<20))
	req := httptest.NewRequest(http.MethodPost, "/api/uploads", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", bearer(t, model.RoleAdmin))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "FILE_TOO_LARGE", decodeError(t, rec).Error)
}

func TestUploadImage_MissingFile(t *testing.T) {
	router := newTestRouter(Services{Uploads: &fakeUploader{}})

	body, contentType := multipartBody(t, "other", "a.png", []byte("x"))
	req := httptest.NewRequest(http.MethodPost, "/api/uploads", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", bearer(t, model.RoleAdmin))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
