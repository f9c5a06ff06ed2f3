package mapper

import (
	"github.com/vibast-solutions/ms-go-payment-events/app/provider"
	"github.com/vibast-solutions/ms-go-payment-events/app/types"
)

func PaymentResultToResponse(item provider.PaymentResult) *types.PaymentResultResponse {
	resp := &types.PaymentResultResponse{
		Success:       item.Success,
		TransactionID: item.TransactionID,
		ExternalID:    item.ExternalID,
		State:         string(item.State),
		CheckoutURL:   item.CheckoutURL,
		Currency:      item.Currency,
		Message:       item.Message,
		Error:         item.Error,
		Metadata:      item.Metadata,
		Timestamp:     item.Timestamp.UTC(),
	}
	if !item.Amount.IsZero() {
		resp.Amount = item.Amount.StringFixed(2)
	}
	return resp
}

func RefundResultToResponse(item provider.RefundResult) *types.RefundResultResponse {
	resp := &types.RefundResultResponse{
		Success:               item.Success,
		RefundID:              item.RefundID,
		OriginalTransactionID: item.OriginalTransactionID,
		State:                 string(item.State),
		Message:               item.Message,
		Error:                 item.Error,
	}
	if !item.Amount.IsZero() {
		resp.Amount = item.Amount.StringFixed(2)
	}
	return resp
}
