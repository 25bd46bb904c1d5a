package payment

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

type stubHTTPClient struct {
	responses map[string]*http.Response
	paths     []string
}

func (s *stubHTTPClient) Do(req *http.Request) (*http.Response, error) {
	s.paths = append(s.paths, req.URL.Path)
	res, ok := s.responses[req.URL.Path]
	if !ok {
		return nil, errors.New("no route")
	}
	return res, nil
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}
}

func TestHTTPGateway_NotReadyBeforeWarmup(t *testing.T) {
	stub := &stubHTTPClient{}
	g := NewHTTPGateway("https://pg.test", "key", time.Second).WithHTTPClient(stub)

	if g.Ready() {
		t.Fatal("gateway must not be ready before warmup")
	}
	if _, err := g.RequestPay(context.Background(), PayParams{}); !errors.Is(err, ErrGatewayNotReady) {
		t.Errorf("expected ErrGatewayNotReady, got %v", err)
	}
	if len(stub.paths) != 0 {
		t.Errorf("unexpected calls %v", stub.paths)
	}
}

func TestHTTPGateway_WarmupAndPay(t *testing.T) {
	stub := &stubHTTPClient{responses: map[string]*http.Response{
		"/health":           jsonResponse(http.StatusOK, `{}`),
		"/payments/request": jsonResponse(http.StatusOK, `{"success":true,"imp_uid":"imp_9","paid_amount":24000}`),
	}}
	g := NewHTTPGateway("https://pg.test/", "key", time.Second).WithHTTPClient(stub)

	if err := g.Warmup(context.Background()); err != nil {
		t.Fatalf("Warmup: %v", err)
	}
	result, err := g.RequestPay(context.Background(), PayParams{Amount: 24000})
	if err != nil {
		t.Fatalf("RequestPay: %v", err)
	}
	if !result.Success || result.ImpUID != "imp_9" {
		t.Errorf("result = %+v", result)
	}
}

func TestHTTPGateway_DeclineWithoutMessage(t *testing.T) {
	stub := &stubHTTPClient{responses: map[string]*http.Response{
		"/health":           jsonResponse(http.StatusOK, `{}`),
		"/payments/request": jsonResponse(http.StatusPaymentRequired, `{"success":true}`),
	}}
	g := NewHTTPGateway("https://pg.test", "", time.Second).WithHTTPClient(stub)
	_ = g.Warmup(context.Background())

	result, err := g.RequestPay(context.Background(), PayParams{})
	if err != nil {
		t.Fatal(err)
	}
	if result.Success || !strings.Contains(result.ErrorMsg, "402") {
		t.Errorf("result = %+v", result)
	}
}

func TestHTTPGateway_WarmupFailure(t *testing.T) {
	stub := &stubHTTPClient{responses: map[string]*http.Response{
		"/health": jsonResponse(http.StatusServiceUnavailable, ``),
	}}
	g := NewHTTPGateway("https://pg.test", "", time.Second).WithHTTPClient(stub)

	if err := g.Warmup(context.Background()); err == nil {
		t.Fatal("expected warmup error")
	}
	if g.Ready() {
		t.Error("gateway should stay not ready")
	}
}
