package entity

import "time"

type Partner struct {
	ID           string
	Name         string
	WebhookURL   string
	Events       []EventType
	Secret       string
	Description  string
	ContactEmail string
	Active       bool

	DeliverySuccessCount int64
	DeliveryFailureCount int64
	LastDeliveryAt       *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (p *Partner) SubscribedTo(eventType EventType) bool {
	for _, e := range p.Events {
		if e == eventType {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers never share slices with the store.
func (p *Partner) Clone() *Partner {
	if p == nil {
		return nil
	}
	out := *p
	out.Events = append([]EventType(nil), p.Events...)
	if p.LastDeliveryAt != nil {
		ts := *p.LastDeliveryAt
		out.LastDeliveryAt = &ts
	}
	return &out
}
