package service

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-payment-events/app/entity"
	"github.com/vibast-solutions/ms-go-payment-events/app/provider"
)

const (
	metadataOriginalType = "original_event_type"
	metadataOrigin       = "origin"
)

var (
	userIDKeys     = []string{"usuario_id", "user_id"}
	businessIDKeys = []string{"negocio_id", "business_id"}
	bookingIDKeys  = []string{"cita_id", "booking_id"}
)

// Normalizer turns provider webhooks into NormalizedEvents. Normalizing the same
// payload twice yields the same id, type and data.
type Normalizer struct {
	gateways *provider.Registry
}

func NewNormalizer(gateways *provider.Registry) *Normalizer {
	return &Normalizer{gateways: gateways}
}

func (n *Normalizer) Normalize(providerName string, payload []byte) (*entity.NormalizedEvent, error) {
	gateway, err := n.gateways.Get(providerName)
	if err != nil {
		if errors.Is(err, provider.ErrGatewayNotSupported) {
			return nil, ErrProviderUnsupported
		}
		return nil, err
	}

	fields, err := gateway.NormalizeWebhook(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	data := fields.Data
	if data == nil {
		data = map[string]interface{}{}
	}
	metadata := stringMetadata(data["metadata"])
	metadata[metadataOriginalType] = fields.OriginalType

	event := &entity.NormalizedEvent{
		ID:        fields.ID,
		Type:      fields.Type,
		Provider:  gateway.Name(),
		Amount:    minorAmount(data),
		Currency:  strings.ToUpper(lookupString(data, nil, "currency", "moneda")),
		Data:      data,
		Metadata:  metadata,
		Timestamp: fields.Timestamp.UTC(),
	}
	fillReferences(event, data, metadata)
	return event, nil
}

// NormalizeExternal builds an event for partner and external-service webhooks. The
// id comes from data id/event_id, or a hash of the canonical data when absent.
func (n *Normalizer) NormalizeExternal(origin, eventType string, data map[string]interface{}) (*entity.NormalizedEvent, error) {
	if data == nil {
		data = map[string]interface{}{}
	}

	id := lookupString(data, nil, "event_id", "id")
	if id == "" {
		canonical, err := json.Marshal(map[string]interface{}{
			"origin": origin,
			"type":   eventType,
			"data":   data,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		sum := sha256.Sum256(canonical)
		id = "ext_evt_" + hex.EncodeToString(sum[:])[:16]
	}

	metadata := stringMetadata(data["metadata"])
	metadata[metadataOriginalType] = eventType
	if origin != "" {
		metadata[metadataOrigin] = origin
	}

	event := &entity.NormalizedEvent{
		ID:        id,
		Type:      entity.ParseEventType(eventType),
		Provider:  "external",
		Amount:    minorAmount(data),
		Currency:  strings.ToUpper(lookupString(data, nil, "currency", "moneda")),
		Data:      data,
		Metadata:  metadata,
		Timestamp: time.Now().UTC(),
	}
	fillReferences(event, data, metadata)
	return event, nil
}

func fillReferences(event *entity.NormalizedEvent, data map[string]interface{}, metadata map[string]string) {
	event.UserID = lookupString(data, metadata, userIDKeys...)
	event.BusinessID = lookupString(data, metadata, businessIDKeys...)
	event.BookingID = lookupString(data, metadata, bookingIDKeys...)
}

// minorAmount reads amount_cents as minor units. An integer amount is already minor
// units, while decimal and string amounts are major units.
func minorAmount(data map[string]interface{}) int64 {
	if raw, ok := data["amount_cents"]; ok {
		if d, ok := toDecimal(raw); ok {
			return d.Round(0).IntPart()
		}
	}
	for _, key := range []string{"amount", "monto"} {
		raw, ok := data[key]
		if !ok {
			continue
		}
		switch v := raw.(type) {
		case int64:
			return v
		case int:
			return int64(v)
		case json.Number:
			if n, err := v.Int64(); err == nil {
				return n
			}
		}
		if d, ok := toDecimal(raw); ok {
			return d.Shift(2).Round(0).IntPart()
		}
	}
	return 0
}

func toDecimal(raw interface{}) (decimal.Decimal, bool) {
	switch v := raw.(type) {
	case int64:
		return decimal.NewFromInt(v), true
	case int:
		return decimal.NewFromInt(int64(v)), true
	case float64:
		return decimal.NewFromFloat(v), true
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		return d, err == nil
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(v))
		return d, err == nil
	}
	return decimal.Zero, false
}

func lookupString(data map[string]interface{}, metadata map[string]string, keys ...string) string {
	for _, key := range keys {
		if s := stringValue(data[key]); s != "" {
			return s
		}
	}
	for _, key := range keys {
		if s := strings.TrimSpace(metadata[key]); s != "" {
			return s
		}
	}
	return ""
}

func stringValue(v interface{}) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return decimal.NewFromFloat(t).String()
	case int64:
		return decimal.NewFromInt(t).String()
	case int:
		return decimal.NewFromInt(int64(t)).String()
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "true"
		}
		return "false"
	}
	return ""
}

func stringMetadata(v interface{}) map[string]string {
	out := map[string]string{}
	switch m := v.(type) {
	case map[string]interface{}:
		for k, raw := range m {
			if s := stringValue(raw); s != "" {
				out[k] = s
			}
		}
	case map[string]string:
		for k, s := range m {
			out[k] = s
		}
	}
	return out
}
