package mapper

import (
	"github.com/vibast-solutions/ms-go-payment-events/app/entity"
	"github.com/vibast-solutions/ms-go-payment-events/app/service"
	"github.com/vibast-solutions/ms-go-payment-events/app/types"
)

// PartnerToResponse hides the signing secret unless includeSecret is set. Only
// registration and rotation hand the secret back to the caller.
func PartnerToResponse(item *entity.Partner, includeSecret bool) *types.PartnerResponse {
	if item == nil {
		return nil
	}

	resp := &types.PartnerResponse{
		ID:                   item.ID,
		Name:                 item.Name,
		WebhookURL:           item.WebhookURL,
		Events:               eventTypesToStrings(item.Events),
		Description:          item.Description,
		ContactEmail:         item.ContactEmail,
		Active:               item.Active,
		DeliverySuccessCount: item.DeliverySuccessCount,
		DeliveryFailureCount: item.DeliveryFailureCount,
		LastDeliveryAt:       utcPtr(item.LastDeliveryAt),
		CreatedAt:            item.CreatedAt.UTC(),
		UpdatedAt:            item.UpdatedAt.UTC(),
	}
	if includeSecret {
		resp.Secret = item.Secret
	}
	return resp
}

func PartnersToResponse(items []*entity.Partner) []*types.PartnerResponse {
	out := make([]*types.PartnerResponse, 0, len(items))
	for _, item := range items {
		out = append(out, PartnerToResponse(item, false))
	}
	return out
}

func EventCatalogToResponse(items []entity.EventDescriptor) []*types.EventDescriptorResponse {
	out := make([]*types.EventDescriptorResponse, 0, len(items))
	for _, item := range items {
		out = append(out, &types.EventDescriptorResponse{Event: string(item.Type), Description: item.Description})
	}
	return out
}

func DeliveryResultToResponse(item service.DeliveryResult) *types.DeliveryResultResponse {
	return &types.DeliveryResultResponse{
		PartnerID:   item.PartnerID,
		PartnerName: item.PartnerName,
		Success:     item.Success,
		StatusCode:  item.StatusCode,
		Attempts:    item.Attempts,
		Error:       item.Error,
	}
}

func DispatchSummaryToResponse(item service.DispatchSummary) *types.DispatchSummaryResponse {
	results := make([]*types.DeliveryResultResponse, 0, len(item.Results))
	for _, r := range item.Results {
		results = append(results, DeliveryResultToResponse(r))
	}
	return &types.DispatchSummaryResponse{
		EventID:   item.EventID,
		EventType: string(item.EventType),
		Total:     item.Total,
		Succeeded: item.Succeeded,
		Failed:    item.Failed,
		Results:   results,
	}
}

func eventTypesToStrings(items []entity.EventType) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, string(item))
	}
	return out
}
