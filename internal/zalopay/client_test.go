package zalopay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testKey1 = "PcY4iZIKFCIdgZvA6ueMcMHHUbRLYjPL"
	testKey2 = "kLtgPl8HHhfvMuDHPwKfgfsY4Ydm9eIz"
)

func newTestClient(endpoint string) *Client {
	return NewClient(Config{
		AppID:       2553,
		Key1:        testKey1,
		Key2:        testKey2,
		Endpoint:    endpoint,
		CallbackURL: "https://shop.example/api/payment/zalopay/callback",
		RedirectURL: "https://shop.example/orders",
	}, nil)
}

func TestSign_KnownVector(t *testing.T) {
	// RFC 4231 test case 2.
	assert.Equal(t,
		"5bdcc146bf60754e6a042426089575c75a003f089d2739839dec58b964ec3843",
		Sign("Jefe", "what do ya want for nothing?"),
	)
}

func TestNewAppTransID_Format(t *testing.T) {
	now := time.Date(2024, 3, 9, 20, 0, 0, 0, time.UTC) // already Mar 10 in Vietnam
	id := NewAppTransID(now)

	assert.True(t, strings.HasPrefix(id, "240310_"), id)
	assert.Len(t, id, len("240310_")+12)
	assert.NotEqual(t, id, NewAppTransID(now))
}

func TestCreateOrder_SignsAndPostsForm(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/create", r.URL.Path)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		require.NoError(t, r.ParseForm())
		got = map[string]string{}
		for k := range r.PostForm {
			got[k] = r.PostForm.Get(k)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"return_code":    1,
			"return_message": "Giao dịch thành công",
			"order_url":      "https://qcgateway.zalopay.vn/openinapp?order=abc",
			"qr_code":        "000201...",
			"zp_trans_token": "tok",
		})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL + "/")
	res, err := c.CreateOrder(context.Background(), CreateOrderRequest{
		AppTransID:  "240310_abc",
		AppUser:     "user-1",
		Amount:      4_430_000,
		Description: "Petshop - Payment for order ORD-0001",
		Items:       []Item{{ID: "p1", Name: "Cat food", Price: 100, Quantity: 2}},
		EmbedData:   map[string]string{"orderId": "o-1"},
	})

	require.NoError(t, err)
	assert.Equal(t, ReturnSuccess, res.ReturnCode)
	assert.Equal(t, "https://qcgateway.zalopay.vn/openinapp?order=abc", res.OrderURL)

	assert.Equal(t, "2553", got["app_id"])
	assert.Equal(t, "4430000", got["amount"])
	assert.Equal(t, "https://shop.example/api/payment/zalopay/callback", got["callback_url"])
	assert.Contains(t, got["embed_data"], `"redirecturl":"https://shop.example/orders"`)
	assert.Contains(t, got["embed_data"], `"orderId":"o-1"`)

	data := strings.Join([]string{got["app_id"], got["app_trans_id"], got["app_user"], got["amount"], got["app_time"], got["embed_data"], got["item"]}, "|")
	assert.Equal(t, Sign(testKey1, data), got["mac"])
}

func TestCreateOrder_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).CreateOrder(context.Background(), CreateOrderRequest{AppTransID: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status: 502")
}

func TestQueryOrder_Signature(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/query", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, Sign(testKey1, "2553|240310_abc|"+testKey1), r.PostForm.Get("mac"))
		_, _ = w.Write([]byte(`{"return_code":3,"return_message":"processing","is_processing":true}`))
	}))
	defer srv.Close()

	res, err := newTestClient(srv.URL).QueryOrder(context.Background(), "240310_abc")

	require.NoError(t, err)
	assert.Equal(t, ReturnProcessing, res.ReturnCode)
	assert.True(t, res.IsProcessing)
}

// ============================================
// Callback verification
// ============================================

func TestVerifyCallback_Valid(t *testing.T) {
	c := newTestClient("http://unused")
	data := `{"app_id":2553,"app_trans_id":"240310_abc","amount":4430000,"zp_trans_id":240310000000123}`

	cb, err := c.VerifyCallback(CallbackRequest{Data: data, MAC: Sign(testKey2, data)})

	require.NoError(t, err)
	assert.Equal(t, "240310_abc", cb.AppTransID)
	assert.Equal(t, int64(4_430_000), cb.Amount)
	assert.Equal(t, int64(240310000000123), cb.ZPTransID)
}

func TestVerifyCallback_WrongKey(t *testing.T) {
	c := newTestClient("http://unused")
	data := `{"app_trans_id":"240310_abc"}`

	cb, err := c.VerifyCallback(CallbackRequest{Data: data, MAC: Sign(testKey1, data)})

	assert.ErrorIs(t, err, ErrInvalidMAC)
	assert.Nil(t, cb)
}

func TestVerifyCallback_TamperedData(t *testing.T) {
	c := newTestClient("http://unused")
	mac := Sign(testKey2, `{"amount":1000}`)

	_, err := c.VerifyCallback(CallbackRequest{Data: `{"amount":1}`, MAC: mac})

	assert.ErrorIs(t, err, ErrInvalidMAC)
}
