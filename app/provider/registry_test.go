package provider

import (
	"errors"
	"testing"
)

func TestRegistryResolvesGateways(t *testing.T) {
	reg, err := NewRegistry("Stripe", NewMockGateway(), NewStripeGateway(StripeConfig{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reg.Active().Name() != StripeName {
		t.Fatalf("unexpected active gateway: %s", reg.Active().Name())
	}
	if g, err := reg.Get("mock"); err != nil || g.Name() != MockName {
		t.Fatalf("unexpected mock lookup: %v %v", g, err)
	}
	if _, err := reg.Get("paypal"); !errors.Is(err, ErrGatewayNotSupported) {
		t.Fatalf("expected ErrGatewayNotSupported, got %v", err)
	}
	names := reg.Names()
	if len(names) != 2 || names[0] != MockName || names[1] != StripeName {
		t.Fatalf("unexpected names: %v", names)
	}
}

func TestRegistryRejectsUnknownActive(t *testing.T) {
	if _, err := NewRegistry("paypal", NewMockGateway()); !errors.Is(err, ErrGatewayNotSupported) {
		t.Fatalf("expected ErrGatewayNotSupported, got %v", err)
	}
}
