package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/vibast-solutions/ms-go-payment-events/app/mapper"
	"github.com/vibast-solutions/ms-go-payment-events/app/service"
	"github.com/vibast-solutions/ms-go-payment-events/app/types"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

type Server struct {
	queueService        *service.QueueService
	subscriptionService *service.SubscriptionService
}

func NewServer(queueService *service.QueueService, subscriptionService *service.SubscriptionService) *Server {
	return &Server{queueService: queueService, subscriptionService: subscriptionService}
}

func (s *Server) Enqueue(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	l := loggerWithContext(ctx)
	req := &types.EnqueueRequest{
		BusinessID:   stringField(in, "business_id"),
		BookingID:    stringField(in, "booking_id"),
		UserID:       stringField(in, "user_id"),
		ForcePremium: boolField(in, "force_premium"),
		Payload:      structField(in, "payload"),
	}
	if err := req.Validate(); err != nil {
		l.WithError(err).Debug("Enqueue validation failed")
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	result, err := s.queueService.Enqueue(ctx, req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAlreadyQueued):
			return nil, status.Error(codes.AlreadyExists, err.Error())
		case errors.Is(err, service.ErrInvalidRequest):
			return nil, status.Error(codes.InvalidArgument, err.Error())
		default:
			l.WithError(err).Error("Enqueue failed")
			return nil, status.Error(codes.Internal, "internal server error")
		}
	}

	message := "Booking queued"
	if result.Entry.IsPremium {
		message = "Booking queued with premium priority"
	}
	return toStruct(&types.EnqueueResponse{
		Entry:    mapper.QueueEntryToResponse(result.Entry),
		Position: result.Position,
		Total:    result.Total,
		Message:  message,
	})
}

func (s *Server) Dequeue(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	businessID := stringField(in, "business_id")
	if businessID == "" {
		return nil, status.Error(codes.InvalidArgument, "business_id is required")
	}

	entry, err := s.queueService.Next(ctx, businessID)
	if err != nil {
		if errors.Is(err, service.ErrQueueEmpty) {
			return nil, status.Error(codes.NotFound, err.Error())
		}
		loggerWithContext(ctx).WithError(err).Error("Dequeue failed")
		return nil, status.Error(codes.Internal, "internal server error")
	}

	return toStruct(&types.QueueEntryEnvelopeResponse{Entry: mapper.QueueEntryToResponse(entry)})
}

func (s *Server) Stats(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	businessID := stringField(in, "business_id")
	if businessID == "" {
		return nil, status.Error(codes.InvalidArgument, "business_id is required")
	}

	return toStruct(mapper.QueueStatsToResponse(businessID, s.queueService.Stats(ctx, businessID)))
}

func (s *Server) VerifyPremium(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	userID := stringField(in, "user_id")
	if userID == "" {
		return nil, status.Error(codes.InvalidArgument, "user_id is required")
	}

	result, err := s.subscriptionService.VerifyPremium(ctx, userID)
	if err != nil {
		loggerWithContext(ctx).WithError(err).Error("Verify premium failed")
		return nil, status.Error(codes.Internal, "internal server error")
	}

	return toStruct(mapper.PremiumStatusToResponse(result))
}

// toStruct converts a response through its JSON form so field names match the HTTP API.
func toStruct(v interface{}) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, "internal server error")
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, status.Error(codes.Internal, "internal server error")
	}
	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Error(codes.Internal, "internal server error")
	}
	return out, nil
}

func stringField(in *structpb.Struct, key string) string {
	if in == nil {
		return ""
	}
	return strings.TrimSpace(in.GetFields()[key].GetStringValue())
}

func boolField(in *structpb.Struct, key string) bool {
	if in == nil {
		return false
	}
	return in.GetFields()[key].GetBoolValue()
}

func structField(in *structpb.Struct, key string) map[string]interface{} {
	if in == nil {
		return nil
	}
	nested := in.GetFields()[key].GetStructValue()
	if nested == nil {
		return nil
	}
	return nested.AsMap()
}
