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

type QueueController struct {
	queueService *service.QueueService
	logger       logrus.FieldLogger
}

func NewQueueController(queueService *service.QueueService) *QueueController {
	return &QueueController{
		queueService: queueService,
		logger:       factory.NewModuleLogger("queue-controller"),
	}
}

func (c *QueueController) Enqueue(ctx echo.Context) error {
	req, err := types.NewEnqueueRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	result, err := c.queueService.Enqueue(ctx.Request().Context(), req)
	if err != nil {
		return c.writeQueueError(ctx, err, "Enqueue booking failed")
	}

	message := "Booking queued"
	if result.Entry.IsPremium {
		message = "Booking queued with premium priority"
	}
	return ctx.JSON(http.StatusCreated, &types.EnqueueResponse{
		Entry:    mapper.QueueEntryToResponse(result.Entry),
		Position: result.Position,
		Total:    result.Total,
		Message:  message,
	})
}

func (c *QueueController) Next(ctx echo.Context) error {
	req, err := c.keyRequest(ctx, "business_id")
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	entry, err := c.queueService.Next(ctx.Request().Context(), req.ID)
	if err != nil {
		return c.writeQueueError(ctx, err, "Dequeue booking failed")
	}

	return ctx.JSON(http.StatusOK, &types.QueueEntryEnvelopeResponse{Entry: mapper.QueueEntryToResponse(entry)})
}

func (c *QueueController) Peek(ctx echo.Context) error {
	req, err := c.keyRequest(ctx, "business_id")
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	entry, err := c.queueService.Peek(ctx.Request().Context(), req.ID)
	if err != nil {
		return c.writeQueueError(ctx, err, "Peek queue failed")
	}

	return ctx.JSON(http.StatusOK, &types.QueueEntryEnvelopeResponse{Entry: mapper.QueueEntryToResponse(entry)})
}

func (c *QueueController) Position(ctx echo.Context) error {
	req, err := c.keyRequest(ctx, "booking_id")
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	result, err := c.queueService.Position(ctx.Request().Context(), req.ID)
	if err != nil {
		return c.writeQueueError(ctx, err, "Queue position failed")
	}

	return ctx.JSON(http.StatusOK, &types.QueuePositionResponse{
		Entry:    mapper.QueueEntryToResponse(result.Entry),
		Position: result.Position,
		Total:    result.Total,
	})
}

func (c *QueueController) Cancel(ctx echo.Context) error {
	req, err := c.keyRequest(ctx, "booking_id")
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	if err := c.queueService.Cancel(ctx.Request().Context(), req.ID); err != nil {
		return c.writeQueueError(ctx, err, "Cancel queue entry failed")
	}

	return ctx.JSON(http.StatusOK, &types.MessageResponse{Message: "Booking removed from queue"})
}

func (c *QueueController) List(ctx echo.Context) error {
	req, err := c.keyRequest(ctx, "business_id")
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	items := c.queueService.List(ctx.Request().Context(), req.ID)
	return ctx.JSON(http.StatusOK, &types.QueueListResponse{
		BusinessID: req.ID,
		Total:      len(items),
		Entries:    mapper.QueueEntriesToResponse(items),
	})
}

func (c *QueueController) Stats(ctx echo.Context) error {
	req, err := c.keyRequest(ctx, "business_id")
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	return ctx.JSON(http.StatusOK, mapper.QueueStatsToResponse(req.ID, c.queueService.Stats(ctx.Request().Context(), req.ID)))
}

func (c *QueueController) Clear(ctx echo.Context) error {
	req, err := c.keyRequest(ctx, "business_id")
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	cleared := c.queueService.Clear(ctx.Request().Context(), req.ID)
	return ctx.JSON(http.StatusOK, &types.QueueClearedResponse{BusinessID: req.ID, Cleared: cleared})
}

func (c *QueueController) keyRequest(ctx echo.Context, param string) (*types.QueueKeyRequest, error) {
	req, err := types.NewQueueKeyRequestFromContext(ctx, param)
	if err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return req, nil
}

func (c *QueueController) writeQueueError(ctx echo.Context, err error, logMessage string) error {
	switch {
	case errors.Is(err, service.ErrQueueEmpty), errors.Is(err, service.ErrQueueEntryNotFound):
		return writeError(ctx, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrAlreadyQueued):
		return writeError(ctx, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrInvalidRequest):
		return writeError(ctx, http.StatusBadRequest, err.Error())
	default:
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error(logMessage)
		return writeError(ctx, http.StatusInternalServerError, "internal server error")
	}
}
