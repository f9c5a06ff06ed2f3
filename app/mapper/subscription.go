package mapper

import (
	"time"

	"github.com/vibast-solutions/ms-go-payment-events/app/entity"
	"github.com/vibast-solutions/ms-go-payment-events/app/service"
	"github.com/vibast-solutions/ms-go-payment-events/app/types"
)

func SubscriptionToResponse(item *entity.Subscription) *types.SubscriptionResponse {
	if item == nil {
		return nil
	}

	return &types.SubscriptionResponse{
		ID:                 item.ID,
		UserID:             item.UserID,
		Email:              item.Email,
		State:              string(item.State),
		MonthlyPrice:       item.MonthlyPrice.StringFixed(2),
		BasePrice:          item.BasePrice.StringFixed(2),
		Currency:           item.Currency,
		TrialDaysRemaining: item.TrialDaysRemaining,
		NextChargeAt:       utcPtr(item.NextChargeAt),
		EndsAt:             utcPtr(item.EndsAt),
		Benefits:           cloneStrings(item.Benefits),
		ExternalID:         item.ExternalID,
		PaymentMethod:      item.PaymentMethod,
		AppliedDiscounts:   cloneStrings(item.AppliedDiscounts),
		CancelReason:       item.CancelReason,
		CreatedAt:          item.CreatedAt.UTC(),
		UpdatedAt:          item.UpdatedAt.UTC(),
	}
}

func PremiumStatusToResponse(item *service.PremiumStatus) *types.PremiumStatusResponse {
	if item == nil {
		return nil
	}

	return &types.PremiumStatusResponse{
		UserID:    item.UserID,
		IsPremium: item.IsPremium,
		Priority:  item.Priority,
		State:     string(item.State),
		Benefits:  cloneStrings(item.Benefits),
		ExpiresAt: utcPtr(item.ExpiresAt),
	}
}

func PlanInfoToResponse(item service.PlanInfo) *types.PlanInfoResponse {
	return &types.PlanInfoResponse{
		MonthlyPrice: item.MonthlyPrice.StringFixed(2),
		Currency:     item.Currency,
		TrialDays:    item.TrialDays,
		Benefits:     cloneStrings(item.Benefits),
	}
}

func DiscountToResponse(item *entity.Discount) *types.DiscountResponse {
	if item == nil {
		return nil
	}

	return &types.DiscountResponse{
		ID:             item.ID,
		Kind:           string(item.Kind),
		Percentage:     item.Percentage.String(),
		SourceEvent:    item.SourceEvent,
		SubscriptionID: item.SubscriptionID,
		Applied:        item.Applied,
		ExpiresAt:      item.ExpiresAt.UTC(),
		CreatedAt:      item.CreatedAt.UTC(),
	}
}

func DiscountsToResponse(items []*entity.Discount) []*types.DiscountResponse {
	out := make([]*types.DiscountResponse, 0, len(items))
	for _, item := range items {
		out = append(out, DiscountToResponse(item))
	}
	return out
}

func ClaimResultToResponse(item *service.ClaimResult) *types.ClaimDiscountsResponse {
	if item == nil {
		return nil
	}
	return &types.ClaimDiscountsResponse{
		UserID:  item.UserID,
		Email:   item.Email,
		Claimed: item.Claimed,
		Applied: item.Applied,
	}
}

func DiscountStatsToResponse(item *service.DiscountStats) *types.DiscountStatsResponse {
	if item == nil {
		return nil
	}

	byKind := make(map[string]*types.DiscountKindStatsResponse, len(item.ByKind))
	for kind, stats := range item.ByKind {
		byKind[string(kind)] = &types.DiscountKindStatsResponse{Total: stats.Total, Active: stats.Active}
	}
	return &types.DiscountStatsResponse{
		Total:   item.Total,
		Active:  item.Active,
		Pending: item.Pending,
		Users:   item.Users,
		ByKind:  byKind,
	}
}

func utcPtr(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	t := v.UTC()
	return &t
}

func cloneStrings(src []string) []string {
	if len(src) == 0 {
		return []string{}
	}
	return append([]string(nil), src...)
}
