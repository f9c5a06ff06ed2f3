package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-payment-events/app/factory"
)

// BackendClient talks to the REST booking backend. It is never consulted for payment logic.
type BackendClient struct {
	baseURL string
	client  *http.Client
	logger  logrus.FieldLogger
}

func NewBackendClient(baseURL string, timeout time.Duration) *BackendClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &BackendClient{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  factory.NewModuleLogger("backend-client"),
	}
}

// UpdatePremium pushes the premium flag of a user. 200 and 204 count as success.
func (c *BackendClient) UpdatePremium(ctx context.Context, userID string, premium bool) error {
	if c.baseURL == "" {
		return nil
	}

	body, err := json.Marshal(map[string]bool{"es_premium": premium})
	if err != nil {
		return err
	}
	endpoint := fmt.Sprintf("%s/api/usuarios/%s/premium", c.baseURL, url.PathEscape(userID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	c.logger.WithFields(logrus.Fields{
		"user_id":     userID,
		"premium":     premium,
		"status":      resp.StatusCode,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Debug("Premium status pushed to backend")

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("backend returned status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	return nil
}

// PartnersForBusiness returns the partner ids linked to a business.
func (c *BackendClient) PartnersForBusiness(ctx context.Context, businessID string) ([]string, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("backend url is not configured")
	}

	endpoint := fmt.Sprintf("%s/api/negocios/%s/partners", c.baseURL, url.PathEscape(businessID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("backend returned status=%d", resp.StatusCode)
	}

	var body struct {
		PartnerIDs []string `json:"partner_ids"`
		Partners   []struct {
			ID string `json:"id"`
		} `json:"partners"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return nil, err
	}

	ids := append([]string(nil), body.PartnerIDs...)
	for _, p := range body.Partners {
		if p.ID != "" {
			ids = append(ids, p.ID)
		}
	}
	return ids, nil
}
