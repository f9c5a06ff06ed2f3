package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

type DiscountKind string

const (
	DiscountAnimalAdoption   DiscountKind = "adopcion_animal"
	DiscountFirstService     DiscountKind = "primer_servicio"
	DiscountReferral         DiscountKind = "referido"
	DiscountPartnerPromotion DiscountKind = "promocion_partner"
)

type Discount struct {
	ID             string
	UserID         string
	Email          string
	Kind           DiscountKind
	Percentage     decimal.Decimal
	SourceEvent    string
	SubscriptionID string
	ExpiresAt      time.Time
	Active         bool
	Applied        bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Pending reports whether the discount still waits for a user to claim it.
func (d *Discount) Pending() bool {
	return d.UserID == ""
}

func (d *Discount) Usable(now time.Time) bool {
	return d.Active && now.Before(d.ExpiresAt)
}
