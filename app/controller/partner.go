package controller

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-payment-events/app/entity"
	"github.com/vibast-solutions/ms-go-payment-events/app/factory"
	"github.com/vibast-solutions/ms-go-payment-events/app/mapper"
	"github.com/vibast-solutions/ms-go-payment-events/app/service"
	"github.com/vibast-solutions/ms-go-payment-events/app/types"
)

type PartnerController struct {
	partnerService *service.PartnerService
	dispatcher     *service.Dispatcher
	backend        *service.BackendClient
	logger         logrus.FieldLogger
}

func NewPartnerController(partnerService *service.PartnerService, dispatcher *service.Dispatcher, backend *service.BackendClient) *PartnerController {
	return &PartnerController{
		partnerService: partnerService,
		dispatcher:     dispatcher,
		backend:        backend,
		logger:         factory.NewModuleLogger("partner-controller"),
	}
}

func (c *PartnerController) Register(ctx echo.Context) error {
	req, err := types.NewRegisterPartnerRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.partnerService.Register(ctx.Request().Context(), req)
	if err != nil {
		return c.writePartnerError(ctx, err, "Register partner failed")
	}

	return ctx.JSON(http.StatusCreated, &types.PartnerEnvelopeResponse{
		Partner: mapper.PartnerToResponse(item, true),
		Message: "Store the secret now, it will not be shown again",
	})
}

func (c *PartnerController) List(ctx echo.Context) error {
	activeOnly := strings.EqualFold(strings.TrimSpace(ctx.QueryParam("active")), "true")
	items, err := c.partnerService.List(ctx.Request().Context(), activeOnly)
	if err != nil {
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("List partners failed")
		return writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, &types.ListPartnersResponse{Total: len(items), Partners: mapper.PartnersToResponse(items)})
}

func (c *PartnerController) Get(ctx echo.Context) error {
	id := strings.TrimSpace(ctx.Param("id"))
	item, err := c.partnerService.Get(ctx.Request().Context(), id)
	if err != nil {
		return c.writePartnerError(ctx, err, "Get partner failed")
	}

	return ctx.JSON(http.StatusOK, &types.PartnerEnvelopeResponse{Partner: mapper.PartnerToResponse(item, false)})
}

func (c *PartnerController) Update(ctx echo.Context) error {
	req, err := types.NewUpdatePartnerRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.partnerService.Update(ctx.Request().Context(), req.ID, service.PartnerPatch{
		Name:         req.Name,
		WebhookURL:   req.WebhookURL,
		Events:       req.Events,
		Active:       req.Active,
		Description:  req.Description,
		ContactEmail: req.ContactEmail,
	})
	if err != nil {
		return c.writePartnerError(ctx, err, "Update partner failed")
	}

	return ctx.JSON(http.StatusOK, &types.PartnerEnvelopeResponse{Partner: mapper.PartnerToResponse(item, false), Message: "Partner updated"})
}

func (c *PartnerController) Delete(ctx echo.Context) error {
	if err := c.partnerService.Delete(ctx.Request().Context(), strings.TrimSpace(ctx.Param("id"))); err != nil {
		return c.writePartnerError(ctx, err, "Delete partner failed")
	}

	return ctx.JSON(http.StatusOK, &types.MessageResponse{Message: "Partner deleted"})
}

func (c *PartnerController) RotateSecret(ctx echo.Context) error {
	item, err := c.partnerService.RotateSecret(ctx.Request().Context(), strings.TrimSpace(ctx.Param("id")))
	if err != nil {
		return c.writePartnerError(ctx, err, "Rotate partner secret failed")
	}

	return ctx.JSON(http.StatusOK, &types.PartnerEnvelopeResponse{
		Partner: mapper.PartnerToResponse(item, true),
		Message: "Secret rotated, the previous secret is no longer valid",
	})
}

func (c *PartnerController) AvailableEvents(ctx echo.Context) error {
	items := mapper.EventCatalogToResponse(c.partnerService.AvailableEvents())
	return ctx.JSON(http.StatusOK, &types.AvailableEventsResponse{Total: len(items), Events: items})
}

func (c *PartnerController) VerifyWebhook(ctx echo.Context) error {
	result, err := c.dispatcher.VerifyPartner(ctx.Request().Context(), strings.TrimSpace(ctx.Param("id")))
	if err != nil {
		return c.writePartnerError(ctx, err, "Verify partner webhook failed")
	}

	return ctx.JSON(http.StatusOK, mapper.DeliveryResultToResponse(result))
}

// Notify fans an event raised by another internal system out to partners. When a
// business id is given only the partners linked to that business receive it.
func (c *PartnerController) Notify(ctx echo.Context) error {
	req, err := types.NewNotifyPartnersRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}
	if !entity.IsKnownEventType(req.EventType) {
		return writeError(ctx, http.StatusBadRequest, service.ErrUnknownEventType.Error())
	}

	data := req.Data
	if data == nil {
		data = map[string]interface{}{}
	}
	if req.BusinessID != "" {
		data["business_id"] = req.BusinessID
	}
	event := service.NewInternalEvent(entity.EventType(req.EventType), data, req.Metadata)

	if req.BusinessID == "" {
		return ctx.JSON(http.StatusOK, mapper.DispatchSummaryToResponse(c.dispatcher.Dispatch(ctx.Request().Context(), event)))
	}

	partnerIDs, err := c.backend.PartnersForBusiness(ctx.Request().Context(), req.BusinessID)
	if err != nil {
		factory.LoggerWithContext(c.logger, ctx).WithError(err).WithField("business_id", req.BusinessID).Error("Resolve business partners failed")
		return writeError(ctx, http.StatusBadGateway, "could not resolve business partners")
	}

	return ctx.JSON(http.StatusOK, mapper.DispatchSummaryToResponse(c.dispatcher.DispatchTo(ctx.Request().Context(), event, partnerIDs)))
}

func (c *PartnerController) writePartnerError(ctx echo.Context, err error, logMessage string) error {
	switch {
	case errors.Is(err, service.ErrPartnerNotFound):
		return writeError(ctx, http.StatusNotFound, "partner not found")
	case errors.Is(err, service.ErrPartnerAlreadyExists):
		return writeError(ctx, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrInvalidRequest), errors.Is(err, service.ErrUnknownEventType):
		return writeError(ctx, http.StatusBadRequest, err.Error())
	default:
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error(logMessage)
		return writeError(ctx, http.StatusInternalServerError, "internal server error")
	}
}
