package controller

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-payment-events/app/factory"
	"github.com/vibast-solutions/ms-go-payment-events/app/mapper"
	"github.com/vibast-solutions/ms-go-payment-events/app/service"
	"github.com/vibast-solutions/ms-go-payment-events/app/types"
)

type DiscountController struct {
	discountService *service.DiscountService
	logger          logrus.FieldLogger
}

func NewDiscountController(discountService *service.DiscountService) *DiscountController {
	return &DiscountController{
		discountService: discountService,
		logger:          factory.NewModuleLogger("discount-controller"),
	}
}

func (c *DiscountController) ForUser(ctx echo.Context) error {
	userID := strings.TrimSpace(ctx.Param("user_id"))
	if userID == "" {
		return writeError(ctx, http.StatusBadRequest, "user_id is required")
	}

	items, err := c.discountService.ForUser(ctx.Request().Context(), userID)
	if err != nil {
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("List user discounts failed")
		return writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, &types.UserDiscountsResponse{UserID: userID, Total: len(items), Discounts: mapper.DiscountsToResponse(items)})
}

func (c *DiscountController) Claim(ctx echo.Context) error {
	req, err := types.NewClaimDiscountsRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	result, err := c.discountService.Claim(ctx.Request().Context(), req.Email, req.UserID)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRequest) {
			return writeError(ctx, http.StatusBadRequest, err.Error())
		}
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Claim discounts failed")
		return writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, mapper.ClaimResultToResponse(result))
}

func (c *DiscountController) Stats(ctx echo.Context) error {
	stats, err := c.discountService.Stats(ctx.Request().Context())
	if err != nil {
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Discount stats failed")
		return writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, mapper.DiscountStatsToResponse(stats))
}
