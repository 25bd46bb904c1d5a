package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lunchbox-market/order-composer/internal/backend"
	"github.com/lunchbox-market/order-composer/internal/models"
)

// ErrChargeFailed wraps the gateway's decline or transport failure.
var ErrChargeFailed = errors.New("payment failed")

// Step names reported in an Outcome.
const (
	StepGatewayReady    = "gateway_ready"
	StepBuyerProfile    = "buyer_profile"
	StepCharge          = "charge"
	StepRecordPayment   = "record_payment"
	StepDeletePaidItems = "delete_paid_items"
)

// Status is the final state of a payment attempt.
type Status string

const (
	StatusRejected         Status = "rejected"
	StatusChargeFailed     Status = "charge_failed"
	StatusPaid             Status = "paid"
	StatusPaidUnreconciled Status = "paid_unreconciled"
)

// Paid reports whether money was taken.
func (s Status) Paid() bool {
	return s == StatusPaid || s == StatusPaidUnreconciled
}

// StepResult records how one step went.
type StepResult struct {
	Name       string `json:"name"`
	OK         bool   `json:"ok"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"durationMs"`
}

// Outcome is the full report of a payment attempt.
type Outcome struct {
	Status       Status       `json:"status"`
	ImpUID       string       `json:"impUid,omitempty"`
	MerchantUIDs []string     `json:"merchantUids"`
	Amount       int64        `json:"amount"`
	Message      string       `json:"message,omitempty"`
	Steps        []StepResult `json:"steps"`
}

// Backend is the part of the backend API the payment path needs.
type Backend interface {
	Nickname(ctx context.Context, auth backend.Auth) (string, error)
	UserInfo(ctx context.Context, auth backend.Auth) ([]models.Address, error)
	PaymentCallback(ctx context.Context, auth backend.Auth, record backend.PaymentRecord) error
	DeletePaidItems(ctx context.Context, auth backend.Auth, req backend.DeletePaidItemsRequest) error
}

// PipelineConfig names the gateway provider and method.
type PipelineConfig struct {
	PG        string
	PayMethod string
}

// Pipeline runs the payment steps in order. Nothing is retried and nothing
// is rolled back; each step's result lands in the Outcome.
type Pipeline struct {
	gateway Gateway
	backend Backend
	cfg     PipelineConfig
	log     *slog.Logger
}

func NewPipeline(gateway Gateway, backend Backend, cfg PipelineConfig, log *slog.Logger) *Pipeline {
	return &Pipeline{gateway: gateway, backend: backend, cfg: cfg, log: log}
}

// Submit charges req for vendorID. A nil error means money was taken, even
// if the backend could not be told (StatusPaidUnreconciled).
func (p *Pipeline) Submit(ctx context.Context, req models.PaymentRequest, buyer models.BuyerInfo, vendorID string, auth backend.Auth) (Outcome, error) {
	outcome := Outcome{
		MerchantUIDs: req.MerchantUIDs,
		Amount:       req.TotalAmount,
	}

	start := time.Now()
	if !p.gateway.Ready() {
		outcome.record(StepGatewayReady, start, ErrGatewayNotReady)
		outcome.Status = StatusRejected
		outcome.Message = ErrGatewayNotReady.Error()
		return outcome, ErrGatewayNotReady
	}
	outcome.record(StepGatewayReady, start, nil)

	start = time.Now()
	buyer, err := p.completeBuyer(ctx, buyer, auth)
	outcome.record(StepBuyerProfile, start, err)
	if err != nil {
		p.log.Warn("could not complete buyer profile", "error", err)
	}

	merchantUID := JoinUIDs(req.MerchantUIDs)
	start = time.Now()
	result, err := p.gateway.RequestPay(ctx, PayParams{
		PG:            p.cfg.PG,
		PayMethod:     p.cfg.PayMethod,
		MerchantUID:   merchantUID,
		Name:          req.CombinedItemName,
		Amount:        req.TotalAmount,
		BuyerEmail:    buyer.Email,
		BuyerName:     buyer.Name,
		BuyerTel:      buyer.Phone,
		BuyerAddr:     buyer.Address,
		BuyerPostcode: buyer.Postcode,
	})
	if err == nil && !result.Success {
		err = errors.New(result.ErrorMsg)
	}
	outcome.record(StepCharge, start, err)
	if err != nil {
		outcome.Status = StatusChargeFailed
		outcome.Message = err.Error()
		p.log.Info("payment not completed", "vendor_id", vendorID, "amount", req.TotalAmount, "error", err)
		return outcome, fmt.Errorf("%w: %s", ErrChargeFailed, err.Error())
	}
	outcome.ImpUID = result.ImpUID
	outcome.Status = StatusPaid
	p.log.Info("payment charged", "vendor_id", vendorID, "amount", req.TotalAmount, "imp_uid", result.ImpUID)

	start = time.Now()
	err = p.backend.PaymentCallback(ctx, auth, backend.PaymentRecord{
		PG:            p.cfg.PG,
		PayMethod:     p.cfg.PayMethod,
		ImpUID:        result.ImpUID,
		MerchantUID:   merchantUID,
		CompanyID:     vendorID,
		BuyerName:     buyer.Name,
		BuyerEmail:    buyer.Email,
		BuyerTel:      buyer.Phone,
		BuyerAddr:     buyer.Address,
		BuyerPostcode: buyer.Postcode,
		Amount:        req.TotalAmount,
	})
	outcome.record(StepRecordPayment, start, err)
	if err != nil {
		outcome.Status = StatusPaidUnreconciled
		p.log.Error("failed to record payment after charge", "imp_uid", result.ImpUID, "error", err)
	}

	start = time.Now()
	err = p.backend.DeletePaidItems(ctx, auth, backend.DeletePaidItemsRequest{
		MerchantUIDs: req.MerchantUIDs,
		CompanyID:    vendorID,
	})
	outcome.record(StepDeletePaidItems, start, err)
	if err != nil {
		outcome.Status = StatusPaidUnreconciled
		p.log.Error("failed to delete paid cart items", "imp_uid", result.ImpUID, "error", err)
	}

	return outcome, nil
}

// completeBuyer fills a missing name from the nickname and a missing address
// from the default address book entry.
func (p *Pipeline) completeBuyer(ctx context.Context, buyer models.BuyerInfo, auth backend.Auth) (models.BuyerInfo, error) {
	var errs []error
	if buyer.Name == "" {
		name, err := p.backend.Nickname(ctx, auth)
		if err != nil {
			errs = append(errs, fmt.Errorf("nickname: %w", err))
		}
		buyer.Name = name
	}
	if buyer.Address == "" {
		addrs, err := p.backend.UserInfo(ctx, auth)
		if err != nil {
			errs = append(errs, fmt.Errorf("user info: %w", err))
		}
		if addr, ok := pickAddress(addrs); ok {
			buyer.Address = addr.Address
			if addr.Detail != "" {
				buyer.Address += " " + addr.Detail
			}
			if buyer.Postcode == "" {
				buyer.Postcode = addr.Postcode
			}
		}
	}
	return buyer, errors.Join(errs...)
}

func pickAddress(addrs []models.Address) (models.Address, bool) {
	for _, a := range addrs {
		if a.Default {
			return a, true
		}
	}
	if len(addrs) > 0 {
		return addrs[0], true
	}
	return models.Address{}, false
}

func (o *Outcome) record(name string, start time.Time, err error) {
	step := StepResult{
		Name:       name,
		OK:         err == nil,
		DurationMS: time.Since(start).Milliseconds(),
	}
	if err != nil {
		step.Error = err.Error()
	}
	o.Steps = append(o.Steps, step)
}
