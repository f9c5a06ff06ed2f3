package repository

import "errors"

var (
	ErrPartnerNotFound      = errors.New("partner not found")
	ErrPartnerAlreadyExists = errors.New("partner already exists")

	ErrSubscriptionNotFound      = errors.New("subscription not found")
	ErrCurrentSubscriptionExists = errors.New("user already has a current subscription")

	ErrDiscountNotFound = errors.New("discount not found")
)
