package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// ErrGatewayNotReady is returned when pay is attempted before the gateway is loaded.
var ErrGatewayNotReady = errors.New("payment gateway is not loaded yet, try again shortly")

// PayParams is the gateway call, in the gateway's own field names.
type PayParams struct {
	PG            string `json:"pg"`
	PayMethod     string `json:"pay_method"`
	MerchantUID   string `json:"merchant_uid"`
	Name          string `json:"name"`
	Amount        int64  `json:"amount"`
	BuyerEmail    string `json:"buyer_email"`
	BuyerName     string `json:"buyer_name"`
	BuyerTel      string `json:"buyer_tel"`
	BuyerAddr     string `json:"buyer_addr"`
	BuyerPostcode string `json:"buyer_postcode"`
}

// PayResult is what the gateway reports back.
type PayResult struct {
	Success     bool   `json:"success"`
	ErrorMsg    string `json:"error_msg"`
	ImpUID      string `json:"imp_uid"`
	MerchantUID string `json:"merchant_uid"`
	PaidAmount  int64  `json:"paid_amount"`
}

// Gateway authorizes charges.
type Gateway interface {
	Ready() bool
	RequestPay(ctx context.Context, params PayParams) (PayResult, error)
}

// HTTPClient is implemented by http.Client.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPGateway calls a hosted payment gateway. It reports ready only after
// Warmup succeeded once.
type HTTPGateway struct {
	httpClient HTTPClient
	baseURL    string
	apiKey     string
	ready      atomic.Bool
}

func NewHTTPGateway(baseURL, apiKey string, timeout time.Duration) *HTTPGateway {
	return &HTTPGateway{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
	}
}

// WithHTTPClient replaces the transport, mainly for tests.
func (g *HTTPGateway) WithHTTPClient(httpClient HTTPClient) *HTTPGateway {
	g.httpClient = httpClient
	return g
}

func (g *HTTPGateway) Ready() bool {
	return g.ready.Load()
}

// Warmup probes the gateway and marks it ready on a 2xx answer.
func (g *HTTPGateway) Warmup(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	g.authorize(req)
	res, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("probe payment gateway: %w", err)
	}
	defer func() {
		_ = res.Body.Close()
	}()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("probe payment gateway: status %d", res.StatusCode)
	}
	g.ready.Store(true)
	return nil
}

// RequestPay submits the charge. A declined charge is a PayResult with
// Success false, not an error; errors mean the gateway could not be asked.
func (g *HTTPGateway) RequestPay(ctx context.Context, params PayParams) (PayResult, error) {
	if !g.Ready() {
		return PayResult{}, ErrGatewayNotReady
	}
	payload, err := json.Marshal(params)
	if err != nil {
		return PayResult{}, fmt.Errorf("marshal pay params: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/payments/request", bytes.NewReader(payload))
	if err != nil {
		return PayResult{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	g.authorize(req)

	res, err := g.httpClient.Do(req)
	if err != nil {
		return PayResult{}, fmt.Errorf("request pay: %w", err)
	}
	defer func() {
		_ = res.Body.Close()
	}()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return PayResult{}, fmt.Errorf("read pay response: %w", err)
	}

	var result PayResult
	if err := json.Unmarshal(body, &result); err != nil {
		return PayResult{}, fmt.Errorf("decode pay response (status %d): %w", res.StatusCode, err)
	}
	if res.StatusCode >= 300 && result.Success {
		result.Success = false
	}
	if !result.Success && result.ErrorMsg == "" {
		result.ErrorMsg = fmt.Sprintf("payment declined (status %d)", res.StatusCode)
	}
	return result, nil
}

func (g *HTTPGateway) authorize(req *http.Request) {
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}
}
