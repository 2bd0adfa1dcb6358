// Package zalopay is a small client for the ZaloPay v2 merchant API: order
// creation, order status query and callback verification.
package zalopay

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Return codes shared by the create and query endpoints.
const (
	ReturnSuccess    = 1
	ReturnFailed     = 2
	ReturnProcessing = 3
)

var ErrInvalidMAC = errors.New("mac not equal")

type Config struct {
	AppID       int
	Key1        string
	Key2        string
	Endpoint    string
	CallbackURL string
	RedirectURL string
}

type Client struct {
	cfg    Config
	client *http.Client
}

func NewClient(cfg Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")
	return &Client{cfg: cfg, client: httpClient}
}

func (c *Client) AppID() int { return c.cfg.AppID }

// Sign returns the hex HMAC-SHA256 of data under key.
func Sign(key, data string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}

// NewAppTransID builds the yymmdd_xxx transaction id the gateway requires.
// The date part must be in Vietnam time.
func NewAppTransID(now time.Time) string {
	loc := time.FixedZone("ICT", 7*60*60)
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return now.In(loc).Format("060102") + "_" + suffix
}

type Item struct {
	ID       string `json:"itemid"`
	Name     string `json:"itemname"`
	Price    int64  `json:"itemprice"`
	Quantity int    `json:"itemquantity"`
}

type CreateOrderRequest struct {
	AppTransID  string
	AppUser     string
	Amount      int64
	Description string
	Items       []Item
	// Extra keys merged into embed_data next to redirecturl.
	EmbedData map[string]string
	BankCode  string
}

type CreateOrderResponse struct {
	ReturnCode       int    `json:"return_code"`
	ReturnMessage    string `json:"return_message"`
	SubReturnCode    int    `json:"sub_return_code"`
	SubReturnMessage string `json:"sub_return_message"`
	OrderURL         string `json:"order_url"`
	ZPTransToken     string `json:"zp_trans_token"`
	OrderToken       string `json:"order_token"`
	QRCode           string `json:"qr_code"`
}

func (c *Client) CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderResponse, error) {
	embed := map[string]string{}
	for k, v := range req.EmbedData {
		embed[k] = v
	}
	if c.cfg.RedirectURL != "" {
		embed["redirecturl"] = c.cfg.RedirectURL
	}
	embedJSON, err := json.Marshal(embed)
	if err != nil {
		return nil, fmt.Errorf("encode embed_data: %w", err)
	}

	items := req.Items
	if items == nil {
		items = []Item{}
	}
	itemJSON, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("encode item: %w", err)
	}

	appID := strconv.Itoa(c.cfg.AppID)
	appTime := strconv.FormatInt(time.Now().UnixMilli(), 10)
	amount := strconv.FormatInt(req.Amount, 10)

	data := strings.Join([]string{appID, req.AppTransID, req.AppUser, amount, appTime, string(embedJSON), string(itemJSON)}, "|")

	form := url.Values{}
	form.Set("app_id", appID)
	form.Set("app_trans_id", req.AppTransID)
	form.Set("app_user", req.AppUser)
	form.Set("app_time", appTime)
	form.Set("amount", amount)
	form.Set("item", string(itemJSON))
	form.Set("embed_data", string(embedJSON))
	form.Set("description", req.Description)
	form.Set("bank_code", req.BankCode)
	form.Set("callback_url", c.cfg.CallbackURL)
	form.Set("mac", Sign(c.cfg.Key1, data))

	var res CreateOrderResponse
	if err := c.post(ctx, "/v2/create", form, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

type QueryResponse struct {
	ReturnCode       int    `json:"return_code"`
	ReturnMessage    string `json:"return_message"`
	SubReturnCode    int    `json:"sub_return_code"`
	SubReturnMessage string `json:"sub_return_message"`
	IsProcessing     bool   `json:"is_processing"`
	Amount           int64  `json:"amount"`
	ZPTransID        int64  `json:"zp_trans_id"`
}

func (c *Client) QueryOrder(ctx context.Context, appTransID string) (*QueryResponse, error) {
	appID := strconv.Itoa(c.cfg.AppID)

	form := url.Values{}
	form.Set("app_id", appID)
	form.Set("app_trans_id", appTransID)
	form.Set("mac", Sign(c.cfg.Key1, appID+"|"+appTransID+"|"+c.cfg.Key1))

	var res QueryResponse
	if err := c.post(ctx, "/v2/query", form, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// CallbackRequest is the JSON body the gateway posts to callback_url.
type CallbackRequest struct {
	Data string `json:"data"`
	MAC  string `json:"mac"`
	Type int    `json:"type"`
}

type CallbackData struct {
	AppID          int    `json:"app_id"`
	AppTransID     string `json:"app_trans_id"`
	AppTime        int64  `json:"app_time"`
	AppUser        string `json:"app_user"`
	Amount         int64  `json:"amount"`
	EmbedData      string `json:"embed_data"`
	Item           string `json:"item"`
	ZPTransID      int64  `json:"zp_trans_id"`
	ServerTime     int64  `json:"server_time"`
	Channel        int    `json:"channel"`
	MerchantUserID string `json:"merchant_user_id"`
	UserFeeAmount  int64  `json:"user_fee_amount"`
	DiscountAmount int64  `json:"discount_amount"`
}

// VerifyCallback checks the callback MAC against key2 and decodes its data.
// A MAC mismatch returns ErrInvalidMAC.
func (c *Client) VerifyCallback(req CallbackRequest) (*CallbackData, error) {
	expected := Sign(c.cfg.Key2, req.Data)
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(req.MAC))) {
		return nil, ErrInvalidMAC
	}

	var data CallbackData
	if err := json.Unmarshal([]byte(req.Data), &data); err != nil {
		return nil, fmt.Errorf("decode callback data: %w", err)
	}
	return &data, nil
}

func (c *Client) post(ctx context.Context, path string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint+path, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("unexpected status: %d, body: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
