package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/vibast-solutions/ms-go-payment-events/app/repository"
)

func TestRegisterPartnerValidation(t *testing.T) {
	svc := NewPartnerService(repository.NewMemoryPartnerStore())
	ctx := context.Background()

	cases := []struct {
		name string
		req  partnerRequest
		want error
	}{
		{"missing name", partnerRequest{url: "https://p.test", events: []string{"booking.confirmed"}}, ErrInvalidRequest},
		{"bad url", partnerRequest{name: "P", url: "ftp://p.test", events: []string{"booking.confirmed"}}, ErrInvalidRequest},
		{"no events", partnerRequest{name: "P", url: "https://p.test"}, ErrInvalidRequest},
		{"unknown event", partnerRequest{name: "P", url: "https://p.test", events: []string{"booking.exploded"}}, ErrUnknownEventType},
	}
	for _, tc := range cases {
		if _, err := svc.Register(ctx, tc.req); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}

	partner, err := svc.Register(ctx, partnerRequest{name: "P", url: "https://p.test", events: []string{"booking.confirmed", "booking.confirmed"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(partner.ID, "partner_") || !strings.HasPrefix(partner.Secret, "whsec_") || len(partner.Events) != 1 {
		t.Fatalf("unexpected partner: %+v", partner)
	}
	if _, err := svc.Register(ctx, partnerRequest{name: "p", url: "https://p.test", events: []string{"booking.confirmed"}}); !errors.Is(err, ErrPartnerAlreadyExists) {
		t.Fatalf("expected ErrPartnerAlreadyExists, got %v", err)
	}
}

func TestPartnerUpdateRotateAndDelete(t *testing.T) {
	svc := NewPartnerService(repository.NewMemoryPartnerStore())
	ctx := context.Background()
	partner := registerPartner(t, svc, "P", "https://p.test", "order.created")

	inactive := false
	updated, err := svc.Update(ctx, partner.ID, PartnerPatch{Active: &inactive, Events: []string{"tour.purchased"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Active || !updated.SubscribedTo("tour.purchased") {
		t.Fatalf("unexpected update: %+v", updated)
	}
	if found, _ := svc.FindByEvent(ctx, "tour.purchased"); len(found) != 0 {
		t.Fatal("inactive partners must not receive events")
	}

	rotated, err := svc.RotateSecret(ctx, partner.ID)
	if err != nil || rotated.Secret == partner.Secret {
		t.Fatalf("expected a new secret, got %v", err)
	}

	if err := svc.Delete(ctx, partner.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Get(ctx, partner.ID); !errors.Is(err, ErrPartnerNotFound) {
		t.Fatalf("expected ErrPartnerNotFound, got %v", err)
	}
	if err := svc.Delete(ctx, partner.ID); !errors.Is(err, ErrPartnerNotFound) {
		t.Fatalf("expected ErrPartnerNotFound on second delete, got %v", err)
	}
}
