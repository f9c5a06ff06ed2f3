package mapper

import (
	"github.com/vibast-solutions/ms-go-payment-events/app/entity"
	"github.com/vibast-solutions/ms-go-payment-events/app/service"
	"github.com/vibast-solutions/ms-go-payment-events/app/types"
)

func WebhookOutcomeToResponse(item *service.WebhookOutcome) *types.WebhookAcceptedResponse {
	if item == nil {
		return nil
	}

	message := "Event accepted for processing"
	if item.Duplicate {
		message = "Event already processed"
	}
	return &types.WebhookAcceptedResponse{
		Received:  true,
		EventID:   item.EventID,
		EventType: string(item.EventType),
		Duplicate: item.Duplicate,
		Message:   message,
	}
}

func ProcessedEventToResponse(item entity.ProcessedEvent) *types.ProcessedEventResponse {
	return &types.ProcessedEventResponse{
		EventID:      item.EventID,
		EventType:    string(item.EventType),
		Provider:     item.Provider,
		PartnersSent: item.PartnersSent,
		PartnersOK:   item.PartnersOK,
		BusDelivered: item.BusDelivered,
		Fallback:     item.Fallback,
		ReceivedAt:   item.ReceivedAt.UTC(),
	}
}

func ProcessedEventsToResponse(items []entity.ProcessedEvent) []*types.ProcessedEventResponse {
	out := make([]*types.ProcessedEventResponse, 0, len(items))
	for _, item := range items {
		out = append(out, ProcessedEventToResponse(item))
	}
	return out
}
