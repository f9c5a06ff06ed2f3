package service

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-payment-events/app/factory"
	"github.com/vibast-solutions/ms-go-payment-events/app/provider"
)

type createPaymentRequest interface {
	GetGateway() string
	GetAmount() decimal.Decimal
	GetCurrency() string
	GetDescription() string
	GetMetadata() map[string]string
	GetReturnURL() string
	GetCancelURL() string
}

type refundPaymentRequest interface {
	GetGateway() string
	GetTransactionID() string
	GetAmount() *decimal.Decimal
	GetReason() string
}

// PaymentService forwards payment operations to the configured gateways.
type PaymentService struct {
	gateways *provider.Registry
	logger   logrus.FieldLogger
}

func NewPaymentService(gateways *provider.Registry) *PaymentService {
	return &PaymentService{
		gateways: gateways,
		logger:   factory.NewModuleLogger("payment-service"),
	}
}

func (s *PaymentService) Create(ctx context.Context, req createPaymentRequest) (provider.PaymentResult, error) {
	gateway, err := s.resolve(req.GetGateway())
	if err != nil {
		return provider.PaymentResult{}, err
	}
	if !req.GetAmount().IsPositive() {
		return provider.PaymentResult{}, ErrInvalidRequest
	}

	result := gateway.CreatePayment(ctx, provider.CreatePaymentInput{
		Amount:      req.GetAmount(),
		Currency:    strings.ToUpper(strings.TrimSpace(req.GetCurrency())),
		Description: req.GetDescription(),
		Metadata:    req.GetMetadata(),
		ReturnURL:   req.GetReturnURL(),
		CancelURL:   req.GetCancelURL(),
	})
	s.logger.WithFields(logrus.Fields{
		"gateway":        gateway.Name(),
		"transaction_id": result.TransactionID,
		"success":        result.Success,
	}).Info("Payment created")
	return result, nil
}

func (s *PaymentService) Verify(ctx context.Context, gatewayName, transactionID string) (provider.PaymentResult, error) {
	gateway, err := s.resolve(gatewayName)
	if err != nil {
		return provider.PaymentResult{}, err
	}
	transactionID = strings.TrimSpace(transactionID)
	if transactionID == "" {
		return provider.PaymentResult{}, ErrInvalidRequest
	}
	return gateway.VerifyPayment(ctx, transactionID), nil
}

func (s *PaymentService) Refund(ctx context.Context, req refundPaymentRequest) (provider.RefundResult, error) {
	gateway, err := s.resolve(req.GetGateway())
	if err != nil {
		return provider.RefundResult{}, err
	}
	transactionID := strings.TrimSpace(req.GetTransactionID())
	if transactionID == "" {
		return provider.RefundResult{}, ErrInvalidRequest
	}
	if amount := req.GetAmount(); amount != nil && !amount.IsPositive() {
		return provider.RefundResult{}, ErrInvalidRequest
	}

	result := gateway.ProcessRefund(ctx, transactionID, req.GetAmount(), req.GetReason())
	s.logger.WithFields(logrus.Fields{
		"gateway":        gateway.Name(),
		"transaction_id": transactionID,
		"success":        result.Success,
	}).Info("Refund processed")
	return result, nil
}

// Gateways returns the configured gateway names and the active one.
func (s *PaymentService) Gateways() ([]string, string) {
	return s.gateways.Names(), s.gateways.Active().Name()
}

// resolve returns the named gateway, or the active one when name is empty.
func (s *PaymentService) resolve(name string) (provider.Gateway, error) {
	if strings.TrimSpace(name) == "" {
		return s.gateways.Active(), nil
	}
	gateway, err := s.gateways.Get(name)
	if err != nil {
		return nil, ErrProviderUnsupported
	}
	return gateway, nil
}
