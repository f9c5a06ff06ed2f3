package mapper

import (
	"github.com/vibast-solutions/ms-go-payment-events/app/queue"
	"github.com/vibast-solutions/ms-go-payment-events/app/types"
)

func QueueEntryToResponse(item queue.Entry) *types.QueueEntryResponse {
	return &types.QueueEntryResponse{
		BookingID:  item.BookingID,
		BusinessID: item.BusinessID,
		UserID:     item.UserID,
		Tier:       item.Tier.String(),
		Priority:   int(item.Tier),
		IsPremium:  item.IsPremium,
		EnqueuedAt: item.EnqueuedAt.UTC(),
		Payload:    item.Payload,
	}
}

func QueueEntriesToResponse(items []queue.Entry) []*types.QueueEntryResponse {
	out := make([]*types.QueueEntryResponse, 0, len(items))
	for _, item := range items {
		out = append(out, QueueEntryToResponse(item))
	}
	return out
}

func QueueStatsToResponse(businessID string, stats queue.Stats) *types.QueueStatsResponse {
	resp := &types.QueueStatsResponse{
		BusinessID:   businessID,
		Total:        stats.Total,
		PremiumCount: stats.PremiumCount,
		NormalCount:  stats.NormalCount,
		LowCount:     stats.LowCount,
	}
	if stats.Next != nil {
		resp.Next = QueueEntryToResponse(*stats.Next)
	}
	return resp
}
