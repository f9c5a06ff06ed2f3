package controller

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/vibast-solutions/ms-go-payment-events/app/service"
	"github.com/vibast-solutions/ms-go-payment-events/app/types"
)

type HealthController struct {
	paymentService *service.PaymentService
	bus            *service.EventBusForwarder
}

func NewHealthController(paymentService *service.PaymentService, bus *service.EventBusForwarder) *HealthController {
	return &HealthController{paymentService: paymentService, bus: bus}
}

// Health always answers 200. A bus outage is reported, not treated as fatal.
func (c *HealthController) Health(ctx echo.Context) error {
	names, active := c.paymentService.Gateways()

	checkCtx, cancel := context.WithTimeout(ctx.Request().Context(), 3*time.Second)
	defer cancel()

	busStatus := "ok"
	if err := c.bus.Health(checkCtx); err != nil {
		busStatus = "unavailable"
		if errors.Is(err, service.ErrBusDisabled) {
			busStatus = "disabled"
		}
	}

	return ctx.JSON(http.StatusOK, &types.HealthResponse{Status: "ok", Gateway: active, Gateways: names, EventBus: busStatus})
}
