package posapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"pos-terminal/internal/models"
	"pos-terminal/internal/util"

	"go.uber.org/zap"
)

const maxErrorBody = 4096

// Config holds the endpoints and credentials of the order and product API
type Config struct {
	// BaseURL is the sales API root, e.g. http://host/api/sales/
	BaseURL string
	// ProductsURL is the product list endpoint, e.g. http://host/api/products/
	ProductsURL       string
	CSRFToken         string
	SessionCookieName string
	SessionCookie     string
	Timeout           time.Duration
}

// StatusError is returned for any non-2xx answer. Body carries the server's
// explanation so it can be shown to the cashier.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s failed: %d - %s", e.Op, e.StatusCode, e.Body)
}

// UnreadableOrderError means the server accepted the order (2xx) but its
// reply could not be read. The order most likely exists.
type UnreadableOrderError struct {
	Body string
	Err  error
}

func (e *UnreadableOrderError) Error() string {
	return fmt.Sprintf("order accepted but the response could not be read: %v", e.Err)
}

func (e *UnreadableOrderError) Unwrap() error {
	return e.Err
}

// OrderAccepted reports that the order reached the server
func (e *UnreadableOrderError) OrderAccepted() bool {
	return true
}

// Client talks to the server-owned order, receipt and product endpoints
type Client struct {
	httpClient  *http.Client
	baseURL     *url.URL
	productsURL *url.URL
	cfg         Config
	logger      *zap.Logger
}

// NewClient creates a client sharing one cookie jar across calls, the way a
// same-origin browser session does.
func NewClient(cfg Config) (*Client, error) {
	baseURL, err := url.Parse(ensureTrailingSlash(cfg.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	productsURL, err := url.Parse(cfg.ProductsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid products url: %w", err)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	if cfg.SessionCookie != "" {
		name := cfg.SessionCookieName
		if name == "" {
			name = "sessionid"
		}
		jar.SetCookies(baseURL, []*http.Cookie{{Name: name, Value: cfg.SessionCookie, Path: "/"}})
	}
	if cfg.CSRFToken != "" {
		jar.SetCookies(baseURL, []*http.Cookie{{Name: "csrftoken", Value: cfg.CSRFToken, Path: "/"}})
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &Client{
		httpClient:  &http.Client{Timeout: timeout, Jar: jar},
		baseURL:     baseURL,
		productsURL: productsURL,
		cfg:         cfg,
		logger:      util.ComponentLogger("posapi"),
	}, nil
}

func ensureTrailingSlash(s string) string {
	if strings.HasSuffix(s, "/") {
		return s
	}
	return s + "/"
}

// CreateOrder posts a new order and returns the server assigned id
func (c *Client) CreateOrder(ctx context.Context, req *models.OrderRequest, idempotencyKey string) (*models.CreatedOrder, error) {
	ctx, span := util.StartSpan(ctx, "PosAPI.CreateOrder")
	defer span.End()

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal order: %w", err)
	}

	endpoint := c.baseURL.ResolveReference(&url.URL{Path: "orders/"})
	httpReq, err := c.newRequest(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	if idempotencyKey != "" {
		httpReq.Header.Set("Idempotency-Key", idempotencyKey)
	}

	c.logger.Debug("Sending order", zap.Int("items", len(req.Items)), zap.String("idempotency_key", idempotencyKey))

	respBody, err := c.do(httpReq, "create_order", "Order creation")
	if err != nil {
		return nil, err
	}

	var order models.CreatedOrder
	if err := json.Unmarshal(respBody, &order); err != nil {
		return nil, c.unreadableOrder(respBody, fmt.Errorf("failed to decode created order: %w", err))
	}
	if order.ID == "" {
		return nil, c.unreadableOrder(respBody, errors.New("created order has no id"))
	}

	c.logger.Info("Order created", zap.String("order_id", order.ID.String()))
	return &order, nil
}

func (c *Client) unreadableOrder(body []byte, err error) error {
	text := strings.TrimSpace(string(body))
	if len(text) > maxErrorBody {
		text = text[:maxErrorBody]
	}
	c.logger.Error("Order accepted but response unreadable", zap.String("body", text), zap.Error(err))
	return &UnreadableOrderError{Body: text, Err: err}
}

// FetchReceipt returns the HTML receipt rendered by the server for an order
func (c *Client) FetchReceipt(ctx context.Context, orderID string) (string, error) {
	ctx, span := util.StartSpan(ctx, "PosAPI.FetchReceipt")
	defer span.End()

	endpoint := c.baseURL.ResolveReference(&url.URL{
		Path:     "orders/" + orderID + "/receipt/",
		RawQuery: "format=html",
	})
	httpReq, err := c.newRequest(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return "", err
	}

	body, err := c.do(httpReq, "fetch_receipt", "Receipt generation")
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// ListProducts returns the authoritative product list. Both a bare array and
// a paginated {"results": [...]} envelope are accepted.
func (c *Client) ListProducts(ctx context.Context) ([]models.Product, error) {
	ctx, span := util.StartSpan(ctx, "PosAPI.ListProducts")
	defer span.End()

	httpReq, err := c.newRequest(ctx, http.MethodGet, c.productsURL.String(), nil)
	if err != nil {
		return nil, err
	}

	body, err := c.do(httpReq, "list_products", "Product reload")
	if err != nil {
		return nil, err
	}

	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '{' {
		var page struct {
			Results []models.Product `json:"results"`
		}
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("failed to decode products: %w", err)
		}
		return page.Results, nil
	}

	var products []models.Product
	if err := json.Unmarshal(body, &products); err != nil {
		return nil, fmt.Errorf("failed to decode products: %w", err)
	}
	return products, nil
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.CSRFToken != "" {
		req.Header.Set("X-CSRFToken", c.cfg.CSRFToken)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, operation, label string) ([]byte, error) {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		util.UpstreamRequestDuration.WithLabelValues(operation, "error").Observe(time.Since(start).Seconds())
		return nil, fmt.Errorf("%s request failed: %w", strings.ToLower(label), err)
	}
	defer resp.Body.Close()

	util.UpstreamRequestDuration.WithLabelValues(operation, strconv.Itoa(resp.StatusCode)).Observe(time.Since(start).Seconds())

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", strings.ToLower(label), err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text := strings.TrimSpace(string(body))
		if len(text) > maxErrorBody {
			text = text[:maxErrorBody]
		}
		c.logger.Error(label+" failed",
			zap.Int("status", resp.StatusCode),
			zap.String("body", text))
		return nil, &StatusError{Op: label, StatusCode: resp.StatusCode, Body: text}
	}

	return body, nil
}
