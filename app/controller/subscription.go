package controller

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-payment-events/app/entity"
	"github.com/vibast-solutions/ms-go-payment-events/app/factory"
	"github.com/vibast-solutions/ms-go-payment-events/app/mapper"
	"github.com/vibast-solutions/ms-go-payment-events/app/service"
	"github.com/vibast-solutions/ms-go-payment-events/app/types"
)

type SubscriptionController struct {
	subscriptionService *service.SubscriptionService
	logger              logrus.FieldLogger
}

func NewSubscriptionController(subscriptionService *service.SubscriptionService) *SubscriptionController {
	return &SubscriptionController{
		subscriptionService: subscriptionService,
		logger:              factory.NewModuleLogger("subscription-controller"),
	}
}

func (c *SubscriptionController) Create(ctx echo.Context) error {
	req, err := types.NewCreateSubscriptionRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.subscriptionService.Create(ctx.Request().Context(), req)
	if err != nil {
		return c.writeSubscriptionError(ctx, err, "Create subscription failed")
	}

	message := "Subscription activated"
	if item.State == entity.SubscriptionTrial {
		message = "Trial started"
	}
	return ctx.JSON(http.StatusCreated, &types.SubscriptionEnvelopeResponse{Subscription: mapper.SubscriptionToResponse(item), Message: message})
}

func (c *SubscriptionController) Get(ctx echo.Context) error {
	req, err := c.idRequest(ctx, "id")
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.subscriptionService.Get(ctx.Request().Context(), req.ID)
	if err != nil {
		return c.writeSubscriptionError(ctx, err, "Get subscription failed")
	}

	return ctx.JSON(http.StatusOK, &types.SubscriptionEnvelopeResponse{Subscription: mapper.SubscriptionToResponse(item)})
}

func (c *SubscriptionController) GetByUser(ctx echo.Context) error {
	req, err := c.idRequest(ctx, "user_id")
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.subscriptionService.GetByUser(ctx.Request().Context(), req.ID)
	if err != nil {
		return c.writeSubscriptionError(ctx, err, "Get user subscription failed")
	}

	return ctx.JSON(http.StatusOK, &types.SubscriptionEnvelopeResponse{Subscription: mapper.SubscriptionToResponse(item)})
}

func (c *SubscriptionController) VerifyPremium(ctx echo.Context) error {
	req, err := c.idRequest(ctx, "user_id")
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	status, err := c.subscriptionService.VerifyPremium(ctx.Request().Context(), req.ID)
	if err != nil {
		return c.writeSubscriptionError(ctx, err, "Verify premium failed")
	}

	return ctx.JSON(http.StatusOK, mapper.PremiumStatusToResponse(status))
}

func (c *SubscriptionController) Cancel(ctx echo.Context) error {
	req, err := types.NewCancelSubscriptionRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.subscriptionService.Cancel(ctx.Request().Context(), req)
	if err != nil {
		return c.writeSubscriptionError(ctx, err, "Cancel subscription failed")
	}

	return ctx.JSON(http.StatusOK, &types.SubscriptionEnvelopeResponse{Subscription: mapper.SubscriptionToResponse(item), Message: "Subscription cancelled"})
}

func (c *SubscriptionController) Renew(ctx echo.Context) error {
	return c.lifecycle(ctx, c.subscriptionService.Renew, "Subscription renewed", "Renew subscription failed")
}

func (c *SubscriptionController) Pause(ctx echo.Context) error {
	return c.lifecycle(ctx, c.subscriptionService.Pause, "Subscription paused", "Pause subscription failed")
}

func (c *SubscriptionController) Resume(ctx echo.Context) error {
	return c.lifecycle(ctx, c.subscriptionService.Resume, "Subscription resumed", "Resume subscription failed")
}

func (c *SubscriptionController) PremiumUsers(ctx echo.Context) error {
	users, err := c.subscriptionService.PremiumUsers(ctx.Request().Context())
	if err != nil {
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("List premium users failed")
		return writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, &types.PremiumUsersResponse{Total: len(users), Users: users})
}

func (c *SubscriptionController) PlanInfo(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, mapper.PlanInfoToResponse(c.subscriptionService.PlanInfo()))
}

func (c *SubscriptionController) lifecycle(
	ctx echo.Context,
	action func(context.Context, string) (*entity.Subscription, error),
	message, logMessage string,
) error {
	req, err := c.idRequest(ctx, "id")
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := action(ctx.Request().Context(), req.ID)
	if err != nil {
		return c.writeSubscriptionError(ctx, err, logMessage)
	}

	return ctx.JSON(http.StatusOK, &types.SubscriptionEnvelopeResponse{Subscription: mapper.SubscriptionToResponse(item), Message: message})
}

func (c *SubscriptionController) idRequest(ctx echo.Context, param string) (*types.SubscriptionIDRequest, error) {
	req, err := types.NewSubscriptionIDRequestFromContext(ctx, param)
	if err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return req, nil
}

func (c *SubscriptionController) writeSubscriptionError(ctx echo.Context, err error, logMessage string) error {
	switch {
	case errors.Is(err, service.ErrSubscriptionNotFound):
		return writeError(ctx, http.StatusNotFound, "subscription not found")
	case errors.Is(err, service.ErrSubscriptionAlreadyActive):
		return writeError(ctx, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrInvalidTransition), errors.Is(err, service.ErrInvalidRequest):
		return writeError(ctx, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrGatewayRejected):
		return writeError(ctx, http.StatusBadGateway, err.Error())
	default:
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error(logMessage)
		return writeError(ctx, http.StatusInternalServerError, "internal server error")
	}
}
