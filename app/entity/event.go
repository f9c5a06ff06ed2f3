package entity

import "time"

type EventType string

const (
	EventBookingConfirmed EventType = "booking.confirmed"
	EventBookingCancelled EventType = "booking.cancelled"
	EventBookingUpdated   EventType = "booking.updated"
	EventBookingCompleted EventType = "booking.completed"

	EventPaymentSuccess  EventType = "payment.success"
	EventPaymentFailed   EventType = "payment.failed"
	EventPaymentRefunded EventType = "payment.refunded"

	EventSubscriptionCreated   EventType = "subscription.created"
	EventSubscriptionActivated EventType = "subscription.activated"
	EventSubscriptionCancelled EventType = "subscription.cancelled"
	EventSubscriptionRenewed   EventType = "subscription.renewed"

	EventServiceActivated   EventType = "service.activated"
	EventServiceDeactivated EventType = "service.deactivated"

	EventBusinessCreated EventType = "business.created"
	EventBusinessUpdated EventType = "business.updated"

	EventOrderCreated       EventType = "order.created"
	EventTourPurchased      EventType = "tour.purchased"
	EventExternalService    EventType = "external.service"
	EventAnimalAdopted      EventType = "animal.adopted"
	EventAdoptionCompleted  EventType = "adoption.completed"
	EventDiscountApplied    EventType = "discount.applied"
	EventPromotionActivated EventType = "promotion.activated"

	// EventPing is only used for partner endpoint verification.
	EventPing EventType = "ping"
)

type EventDescriptor struct {
	Type        EventType `json:"event"`
	Description string    `json:"description"`
}

var eventCatalog = []EventDescriptor{
	{EventBookingConfirmed, "A booking was confirmed"},
	{EventBookingCancelled, "A booking was cancelled"},
	{EventBookingUpdated, "A booking was updated"},
	{EventBookingCompleted, "A booking was completed"},
	{EventPaymentSuccess, "A payment was captured"},
	{EventPaymentFailed, "A payment attempt failed"},
	{EventPaymentRefunded, "A payment was refunded"},
	{EventSubscriptionCreated, "A premium subscription was created"},
	{EventSubscriptionActivated, "A premium subscription left its trial"},
	{EventSubscriptionCancelled, "A premium subscription was cancelled"},
	{EventSubscriptionRenewed, "A premium subscription was renewed"},
	{EventServiceActivated, "A business service was activated"},
	{EventServiceDeactivated, "A business service was deactivated"},
	{EventBusinessCreated, "A business was created"},
	{EventBusinessUpdated, "A business was updated"},
	{EventOrderCreated, "An order was created"},
	{EventTourPurchased, "A tour was purchased"},
	{EventExternalService, "Generic event from an external service"},
	{EventAnimalAdopted, "An animal was adopted"},
	{EventAdoptionCompleted, "An adoption process finished"},
	{EventDiscountApplied, "A discount was applied"},
	{EventPromotionActivated, "A partner promotion was activated"},
}

var knownEvents = func() map[EventType]struct{} {
	items := make(map[EventType]struct{}, len(eventCatalog))
	for _, d := range eventCatalog {
		items[d.Type] = struct{}{}
	}
	return items
}()

// EventCatalog lists every subscribable event type.
func EventCatalog() []EventDescriptor {
	out := make([]EventDescriptor, len(eventCatalog))
	copy(out, eventCatalog)
	return out
}

// ParseEventType returns the canonical type for raw, or EventExternalService when unknown.
func ParseEventType(raw string) EventType {
	t := EventType(raw)
	if _, ok := knownEvents[t]; ok {
		return t
	}
	return EventExternalService
}

func IsKnownEventType(raw string) bool {
	_, ok := knownEvents[EventType(raw)]
	return ok
}

// NormalizedEvent is the provider independent form of an inbound webhook.
// ID is the idempotency key.
type NormalizedEvent struct {
	ID         string
	Type       EventType
	Provider   string
	Amount     int64
	Currency   string
	UserID     string
	BusinessID string
	BookingID  string
	Data       map[string]interface{}
	Metadata   map[string]string
	Timestamp  time.Time
}

// ProcessedEvent is the event log row written after an event has been handled.
type ProcessedEvent struct {
	EventID      string
	EventType    EventType
	Provider     string
	PartnersSent int
	PartnersOK   int
	BusDelivered bool
	Fallback     bool
	ReceivedAt   time.Time
}
