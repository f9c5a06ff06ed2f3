//go:build e2e
// +build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/vibast-solutions/ms-go-payment-events/app/signature"
	"github.com/vibast-solutions/ms-go-payment-events/app/types"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	defaultHTTPBase     = "http://localhost:48080"
	defaultGRPCAddr     = "localhost:49090"
	defaultAdminAPIKey  = "payment-events-admin-key"
	defaultGlobalSecret = "payment-events-e2e-secret"

	queueEnqueueMethod = "/paymentevents.QueueService/Enqueue"
	queueStatsMethod   = "/paymentevents.QueueService/Stats"
)

func envOr(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

type httpClient struct {
	baseURL string
	client  *http.Client
}

func newHTTPClient(baseURL string) *httpClient {
	return &httpClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *httpClient) do(t *testing.T, method, path string, body []byte, headers map[string]string) (*http.Response, []byte) {
	t.Helper()

	req, err := http.NewRequest(method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("new request failed: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-ID", fmt.Sprintf("e2e-http-%d", time.Now().UnixNano()))
	for name, value := range headers {
		req.Header.Set(name, value)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		t.Fatalf("http request failed: %v", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response failed: %v", err)
	}
	return resp, bodyBytes
}

func (c *httpClient) doJSON(t *testing.T, method, path string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var raw []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("json marshal failed: %v", err)
		}
		raw = data
	}
	return c.do(t, method, path, raw, headers)
}

func waitForHTTP(baseURL string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	client := &http.Client{Timeout: 2 * time.Second}
	for time.Now().Before(deadline) {
		resp, err := client.Get(baseURL + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(500 * time.Millisecond)
	}
	return fmt.Errorf("http service not ready at %s", baseURL)
}

func waitForGRPC(addr string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
		if err == nil {
			_ = conn.Close()
			return nil
		}
		time.Sleep(500 * time.Millisecond)
	}
	return fmt.Errorf("grpc service not ready at %s", addr)
}

func grpcContext(requestID string) context.Context {
	ctx := context.Background()
	if requestID != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "x-request-id", requestID)
	}
	return ctx
}

func TestPaymentEventsE2E(t *testing.T) {
	httpBase := envOr("PAYMENT_EVENTS_HTTP_URL", defaultHTTPBase)
	grpcAddr := envOr("PAYMENT_EVENTS_GRPC_ADDR", defaultGRPCAddr)
	adminKey := envOr("PAYMENT_EVENTS_API_KEY", defaultAdminAPIKey)
	globalSecret := envOr("PAYMENT_EVENTS_GLOBAL_SECRET", defaultGlobalSecret)
	admin := map[string]string{"X-API-Key": adminKey}

	if err := waitForHTTP(httpBase, 30*time.Second); err != nil {
		t.Fatalf("http not ready: %v", err)
	}
	if err := waitForGRPC(grpcAddr, 30*time.Second); err != nil {
		t.Fatalf("grpc not ready: %v", err)
	}

	client := newHTTPClient(httpBase)
	conn, err := grpc.NewClient(grpcAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("grpc dial failed: %v", err)
	}
	defer conn.Close()

	t.Run("HTTPAdminRequiresAPIKey", func(t *testing.T) {
		resp, _ := client.do(t, http.MethodGet, "/partners", nil, nil)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("expected 401 for missing x-api-key, got %d", resp.StatusCode)
		}
		resp, _ = client.do(t, http.MethodGet, "/partners", nil, map[string]string{"X-API-Key": "wrong"})
		if resp.StatusCode != http.StatusForbidden {
			t.Fatalf("expected 403 for wrong x-api-key, got %d", resp.StatusCode)
		}
	})

	t.Run("HTTPMockWebhookSignature", func(t *testing.T) {
		payload := []byte(fmt.Sprintf(`{"id":"e2e_%d","tipo":"payment.completed","data":{"amount":1500,"currency":"USD"}}`, time.Now().UnixNano()))

		resp, body := client.do(t, http.MethodPost, "/webhooks/mock", payload, map[string]string{signature.HeaderSignature: "bad"})
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("expected 401 for bad signature, got %d body=%s", resp.StatusCode, string(body))
		}

		headers := map[string]string{signature.HeaderSignature: signature.PlainHMAC(payload, globalSecret)}
		resp, body = client.do(t, http.MethodPost, "/webhooks/mock", payload, headers)
		if resp.StatusCode != http.StatusAccepted {
			t.Fatalf("expected 202, got %d body=%s", resp.StatusCode, string(body))
		}

		resp, body = client.do(t, http.MethodPost, "/webhooks/mock", payload, headers)
		var accepted types.WebhookAcceptedResponse
		if err := json.Unmarshal(body, &accepted); err != nil {
			t.Fatalf("unmarshal webhook response failed: %v body=%s", err, string(body))
		}
		if resp.StatusCode != http.StatusAccepted || !accepted.Duplicate {
			t.Fatalf("expected duplicate delivery to be acknowledged, got %d %+v", resp.StatusCode, accepted)
		}
	})

	t.Run("HTTPPartnerLifecycle", func(t *testing.T) {
		name := fmt.Sprintf("e2e-partner-%d", time.Now().UnixNano())
		resp, body := client.doJSON(t, http.MethodPost, "/partners/register", map[string]any{
			"name":        name,
			"webhook_url": "http://partner.invalid/hook",
			"events":      []string{"payment.success"},
		}, admin)
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("expected 201, got %d body=%s", resp.StatusCode, string(body))
		}
		var created types.PartnerEnvelopeResponse
		if err := json.Unmarshal(body, &created); err != nil {
			t.Fatalf("unmarshal partner failed: %v body=%s", err, string(body))
		}
		if created.Partner == nil || created.Partner.Secret == "" {
			t.Fatalf("expected secret on registration, got %s", string(body))
		}

		resp, _ = client.do(t, http.MethodDelete, "/partners/"+created.Partner.ID, nil, admin)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200 on delete, got %d", resp.StatusCode)
		}
		resp, _ = client.do(t, http.MethodGet, "/partners/"+created.Partner.ID, nil, admin)
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("expected 404 after delete, got %d", resp.StatusCode)
		}
	})

	t.Run("HTTPQueueValidation", func(t *testing.T) {
		resp, _ := client.doJSON(t, http.MethodPost, "/queue", map[string]any{}, nil)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("expected 400 for invalid enqueue, got %d", resp.StatusCode)
		}
	})

	t.Run("GRPCMissingRequestID", func(t *testing.T) {
		in, _ := structpb.NewStruct(map[string]any{"business_id": "e2e"})
		err := conn.Invoke(context.Background(), queueStatsMethod, in, new(structpb.Struct))
		if status.Code(err) != codes.InvalidArgument {
			t.Fatalf("expected InvalidArgument for missing x-request-id, got %v", err)
		}
	})

	t.Run("GRPCEnqueueAndStats", func(t *testing.T) {
		business := fmt.Sprintf("e2e-biz-%d", time.Now().UnixNano())
		in, _ := structpb.NewStruct(map[string]any{"business_id": business, "booking_id": business + "-b1", "user_id": "e2e-user"})
		out := new(structpb.Struct)
		if err := conn.Invoke(grpcContext("e2e-grpc-enqueue"), queueEnqueueMethod, in, out); err != nil {
			t.Fatalf("grpc enqueue failed: %v", err)
		}
		if err := conn.Invoke(grpcContext("e2e-grpc-enqueue-dup"), queueEnqueueMethod, in, out); status.Code(err) != codes.AlreadyExists {
			t.Fatalf("expected AlreadyExists, got %v", err)
		}

		statsIn, _ := structpb.NewStruct(map[string]any{"business_id": business})
		stats := new(structpb.Struct)
		if err := conn.Invoke(grpcContext("e2e-grpc-stats"), queueStatsMethod, statsIn, stats); err != nil {
			t.Fatalf("grpc stats failed: %v", err)
		}
		if stats.GetFields()["total"].GetNumberValue() != 1 {
			t.Fatalf("unexpected stats: %v", stats)
		}
	})
}
