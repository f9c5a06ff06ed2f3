package service

import "errors"

var (
	ErrInvalidRequest      = errors.New("invalid request")
	ErrProviderUnsupported = errors.New("provider is not supported")

	ErrInvalidSignature     = errors.New("invalid signature")
	ErrStaleTimestamp       = errors.New("timestamp outside tolerance")
	ErrMalformedTimestamp   = errors.New("malformed timestamp")
	ErrMalformedPayload     = errors.New("malformed payload")
	ErrWebhookSecretMissing = errors.New("webhook secret is not configured")

	ErrPartnerNotFound      = errors.New("partner not found")
	ErrPartnerAlreadyExists = errors.New("partner already exists")
	ErrUnknownEventType     = errors.New("unknown event type")

	ErrQueueEntryNotFound = errors.New("queue entry not found")
	ErrAlreadyQueued      = errors.New("booking already queued")
	ErrQueueEmpty         = errors.New("queue is empty")

	ErrSubscriptionNotFound      = errors.New("subscription not found")
	ErrSubscriptionAlreadyActive = errors.New("user already has an active subscription")
	ErrInvalidTransition         = errors.New("invalid subscription state transition")
	ErrGatewayRejected           = errors.New("payment gateway rejected the request")

	ErrDiscountNotFound = errors.New("discount not found")
)
