package controller

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/vibast-solutions/ms-go-payment-events/app/types"
)

const HeaderAPIKey = "X-API-Key"

func writeError(ctx echo.Context, statusCode int, message string) error {
	return ctx.JSON(statusCode, &types.ErrorResponse{Error: message})
}

// RequireAPIKey guards administrative routes. An empty key leaves them open.
func RequireAPIKey(key string) echo.MiddlewareFunc {
	key = strings.TrimSpace(key)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if key == "" {
				return next(ctx)
			}
			provided := strings.TrimSpace(ctx.Request().Header.Get(HeaderAPIKey))
			if provided == "" {
				return writeError(ctx, http.StatusUnauthorized, "api key is required")
			}
			if subtle.ConstantTimeCompare([]byte(provided), []byte(key)) != 1 {
				return writeError(ctx, http.StatusForbidden, "invalid api key")
			}
			return next(ctx)
		}
	}
}
