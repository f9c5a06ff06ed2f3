package controller

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-payment-events/app/factory"
	"github.com/vibast-solutions/ms-go-payment-events/app/mapper"
	"github.com/vibast-solutions/ms-go-payment-events/app/provider"
	"github.com/vibast-solutions/ms-go-payment-events/app/service"
	"github.com/vibast-solutions/ms-go-payment-events/app/signature"
	"github.com/vibast-solutions/ms-go-payment-events/app/types"
)

type WebhookController struct {
	webhookService *service.WebhookService
	logger         logrus.FieldLogger
}

func NewWebhookController(webhookService *service.WebhookService) *WebhookController {
	return &WebhookController{
		webhookService: webhookService,
		logger:         factory.NewModuleLogger("webhook-controller"),
	}
}

func (c *WebhookController) Stripe(ctx echo.Context) error {
	return c.handleProvider(ctx, provider.StripeName, types.HeaderStripeSignature)
}

func (c *WebhookController) MercadoPago(ctx echo.Context) error {
	return c.handleProvider(ctx, provider.MercadoPagoName, types.HeaderMPSignature)
}

func (c *WebhookController) Mock(ctx echo.Context) error {
	return c.handleProvider(ctx, provider.MockName, signature.HeaderSignature)
}

func (c *WebhookController) handleProvider(ctx echo.Context, providerName, signatureHeader string) error {
	req, err := types.NewProviderWebhookRequestFromContext(ctx, providerName, signatureHeader)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	outcome, err := c.webhookService.HandleProviderWebhook(ctx.Request().Context(), req.Provider, req.Payload, req.Signature)
	if err != nil {
		return c.writeWebhookError(ctx, err, "Provider webhook failed")
	}

	return ctx.JSON(http.StatusAccepted, mapper.WebhookOutcomeToResponse(outcome))
}

func (c *WebhookController) External(ctx echo.Context) error {
	req, err := types.NewExternalWebhookRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	outcome, err := c.webhookService.HandleExternalWebhook(ctx.Request().Context(), req)
	if err != nil {
		return c.writeWebhookError(ctx, err, "External webhook failed")
	}

	return ctx.JSON(http.StatusAccepted, mapper.WebhookOutcomeToResponse(outcome))
}

func (c *WebhookController) Test(ctx echo.Context) error {
	req, err := types.NewTestWebhookRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	outcome, err := c.webhookService.SendTestWebhook(ctx.Request().Context(), req.EventType, req.Data)
	if err != nil {
		if errors.Is(err, service.ErrWebhookSecretMissing) {
			return writeError(ctx, http.StatusServiceUnavailable, err.Error())
		}
		return c.writeWebhookError(ctx, err, "Test webhook failed")
	}

	return ctx.JSON(http.StatusAccepted, mapper.WebhookOutcomeToResponse(outcome))
}

func (c *WebhookController) ListEvents(ctx echo.Context) error {
	req, err := types.NewListEventsRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid limit")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	items, err := c.webhookService.ListEvents(ctx.Request().Context(), req.Limit)
	if err != nil {
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("List events failed")
		return writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, &types.ListEventsResponse{Total: len(items), Events: mapper.ProcessedEventsToResponse(items)})
}

func (c *WebhookController) writeWebhookError(ctx echo.Context, err error, logMessage string) error {
	switch {
	case errors.Is(err, service.ErrInvalidSignature),
		errors.Is(err, service.ErrStaleTimestamp),
		errors.Is(err, service.ErrWebhookSecretMissing):
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Warn("Webhook rejected")
		return writeError(ctx, http.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrMalformedPayload),
		errors.Is(err, service.ErrMalformedTimestamp),
		errors.Is(err, service.ErrInvalidRequest),
		errors.Is(err, service.ErrProviderUnsupported),
		errors.Is(err, service.ErrUnknownEventType):
		return writeError(ctx, http.StatusBadRequest, err.Error())
	default:
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error(logMessage)
		return writeError(ctx, http.StatusInternalServerError, "internal server error")
	}
}
