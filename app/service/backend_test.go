package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestBackendUpdatePremium(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch || r.URL.Path != "/api/usuarios/u1/premium" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body map[string]bool
		_ = json.NewDecoder(r.Body).Decode(&body)
		if !body["es_premium"] {
			t.Errorf("unexpected body: %v", body)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := NewBackendClient(srv.URL+"/", time.Second)
	if err := client.UpdatePremium(context.Background(), "u1", true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestBackendUpdatePremiumErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	if err := NewBackendClient(srv.URL, time.Second).UpdatePremium(context.Background(), "u1", false); err == nil {
		t.Fatal("expected error for 404")
	}
	if err := NewBackendClient("", time.Second).UpdatePremium(context.Background(), "u1", false); err != nil {
		t.Fatalf("unconfigured backend should be a no-op, got %v", err)
	}
}

func TestBackendPartnersForBusiness(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/negocios/n1/partners" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"partner_ids":["p1"],"partners":[{"id":"p2"},{"name":"no id"}]}`))
	}))
	defer srv.Close()

	ids, err := NewBackendClient(srv.URL, time.Second).PartnersForBusiness(context.Background(), "n1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 2 || ids[0] != "p1" || ids[1] != "p2" {
		t.Fatalf("unexpected ids: %v", ids)
	}
}
