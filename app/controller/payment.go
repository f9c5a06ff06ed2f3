package controller

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-payment-events/app/factory"
	"github.com/vibast-solutions/ms-go-payment-events/app/mapper"
	"github.com/vibast-solutions/ms-go-payment-events/app/service"
	"github.com/vibast-solutions/ms-go-payment-events/app/types"
)

type PaymentController struct {
	paymentService *service.PaymentService
	logger         logrus.FieldLogger
}

func NewPaymentController(paymentService *service.PaymentService) *PaymentController {
	return &PaymentController{
		paymentService: paymentService,
		logger:         factory.NewModuleLogger("payments-controller"),
	}
}

// CreatePayment answers 502 with the gateway result when the gateway refused the payment.
func (c *PaymentController) CreatePayment(ctx echo.Context) error {
	req, err := types.NewCreatePaymentRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	result, err := c.paymentService.Create(ctx.Request().Context(), req)
	if err != nil {
		return c.writePaymentError(ctx, err, "Create payment failed")
	}
	if !result.Success {
		return ctx.JSON(http.StatusBadGateway, mapper.PaymentResultToResponse(result))
	}

	return ctx.JSON(http.StatusCreated, mapper.PaymentResultToResponse(result))
}

func (c *PaymentController) GetPayment(ctx echo.Context) error {
	req, err := types.NewGetPaymentRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	result, err := c.paymentService.Verify(ctx.Request().Context(), req.Gateway, req.TransactionID)
	if err != nil {
		return c.writePaymentError(ctx, err, "Verify payment failed")
	}
	if !result.Success {
		return ctx.JSON(http.StatusBadGateway, mapper.PaymentResultToResponse(result))
	}

	return ctx.JSON(http.StatusOK, mapper.PaymentResultToResponse(result))
}

func (c *PaymentController) Refund(ctx echo.Context) error {
	req, err := types.NewRefundPaymentRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	result, err := c.paymentService.Refund(ctx.Request().Context(), req)
	if err != nil {
		return c.writePaymentError(ctx, err, "Refund payment failed")
	}
	if !result.Success {
		return ctx.JSON(http.StatusBadGateway, mapper.RefundResultToResponse(result))
	}

	return ctx.JSON(http.StatusOK, mapper.RefundResultToResponse(result))
}

func (c *PaymentController) Gateways(ctx echo.Context) error {
	names, active := c.paymentService.Gateways()
	return ctx.JSON(http.StatusOK, &types.GatewaysResponse{Active: active, Gateways: names})
}

func (c *PaymentController) writePaymentError(ctx echo.Context, err error, logMessage string) error {
	switch {
	case errors.Is(err, service.ErrInvalidRequest), errors.Is(err, service.ErrProviderUnsupported):
		return writeError(ctx, http.StatusBadRequest, err.Error())
	default:
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error(logMessage)
		return writeError(ctx, http.StatusInternalServerError, "internal server error")
	}
}
