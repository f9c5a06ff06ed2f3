package service

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-payment-events/app/entity"
	"github.com/vibast-solutions/ms-go-payment-events/app/factory"
	"github.com/vibast-solutions/ms-go-payment-events/app/repository"
	"github.com/vibast-solutions/ms-go-payment-events/app/signature"
)

type registerPartnerRequest interface {
	GetName() string
	GetWebhookURL() string
	GetEvents() []string
	GetDescription() string
	GetContactEmail() string
}

// PartnerPatch holds optional updates. Nil fields are left unchanged.
type PartnerPatch struct {
	Name         *string
	WebhookURL   *string
	Events       []string
	Active       *bool
	Description  *string
	ContactEmail *string
}

type partnerStore interface {
	Create(ctx context.Context, partner *entity.Partner) error
	Update(ctx context.Context, partner *entity.Partner) error
	FindByID(ctx context.Context, id string) (*entity.Partner, error)
	FindByName(ctx context.Context, name string) (*entity.Partner, error)
	List(ctx context.Context, activeOnly bool) ([]*entity.Partner, error)
	Delete(ctx context.Context, id string) error
	RecordDelivery(ctx context.Context, id string, success bool, at time.Time) error
}

// PartnerService owns partner records. Secrets are generated on registration and
// replaced only by RotateSecret.
type PartnerService struct {
	store  partnerStore
	logger logrus.FieldLogger
	now    func() time.Time
}

func NewPartnerService(store partnerStore) *PartnerService {
	return &PartnerService{
		store:  store,
		logger: factory.NewModuleLogger("partner-service"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *PartnerService) Register(ctx context.Context, req registerPartnerRequest) (*entity.Partner, error) {
	name := strings.TrimSpace(req.GetName())
	webhookURL := strings.TrimSpace(req.GetWebhookURL())
	if name == "" || !validWebhookURL(webhookURL) {
		return nil, ErrInvalidRequest
	}

	events, err := parseSubscribedEvents(req.GetEvents())
	if err != nil {
		return nil, err
	}

	existing, err := s.store.FindByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrPartnerAlreadyExists
	}

	secret, err := signature.GenerateSecret()
	if err != nil {
		return nil, err
	}

	now := s.now()
	partner := &entity.Partner{
		ID:           "partner_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12],
		Name:         name,
		WebhookURL:   webhookURL,
		Events:       events,
		Secret:       secret,
		Description:  strings.TrimSpace(req.GetDescription()),
		ContactEmail: strings.TrimSpace(req.GetContactEmail()),
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.store.Create(ctx, partner); err != nil {
		if errors.Is(err, repository.ErrPartnerAlreadyExists) {
			return nil, ErrPartnerAlreadyExists
		}
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{"partner_id": partner.ID, "events": len(events)}).Info("Partner registered")
	return partner, nil
}

func (s *PartnerService) Get(ctx context.Context, id string) (*entity.Partner, error) {
	partner, err := s.store.FindByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, err
	}
	if partner == nil {
		return nil, ErrPartnerNotFound
	}
	return partner, nil
}

func (s *PartnerService) List(ctx context.Context, activeOnly bool) ([]*entity.Partner, error) {
	return s.store.List(ctx, activeOnly)
}

func (s *PartnerService) Update(ctx context.Context, id string, patch PartnerPatch) (*entity.Partner, error) {
	partner, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, ErrInvalidRequest
		}
		partner.Name = name
	}
	if patch.WebhookURL != nil {
		webhookURL := strings.TrimSpace(*patch.WebhookURL)
		if !validWebhookURL(webhookURL) {
			return nil, ErrInvalidRequest
		}
		partner.WebhookURL = webhookURL
	}
	if patch.Events != nil {
		events, err := parseSubscribedEvents(patch.Events)
		if err != nil {
			return nil, err
		}
		partner.Events = events
	}
	if patch.Active != nil {
		partner.Active = *patch.Active
	}
	if patch.Description != nil {
		partner.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.ContactEmail != nil {
		partner.ContactEmail = strings.TrimSpace(*patch.ContactEmail)
	}
	partner.UpdatedAt = s.now()

	if err := s.store.Update(ctx, partner); err != nil {
		return nil, mapPartnerStoreErr(err)
	}
	return partner, nil
}

func (s *PartnerService) Delete(ctx context.Context, id string) error {
	return mapPartnerStoreErr(s.store.Delete(ctx, strings.TrimSpace(id)))
}

// RotateSecret replaces the partner secret. Signatures made with the old secret stop
// verifying at once.
func (s *PartnerService) RotateSecret(ctx context.Context, id string) (*entity.Partner, error) {
	partner, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	secret, err := signature.GenerateSecret()
	if err != nil {
		return nil, err
	}
	partner.Secret = secret
	partner.UpdatedAt = s.now()

	if err := s.store.Update(ctx, partner); err != nil {
		return nil, mapPartnerStoreErr(err)
	}

	s.logger.WithField("partner_id", partner.ID).Info("Partner secret rotated")
	return partner, nil
}

// FindByEvent returns active partners subscribed to eventType.
func (s *PartnerService) FindByEvent(ctx context.Context, eventType entity.EventType) ([]*entity.Partner, error) {
	partners, err := s.store.List(ctx, true)
	if err != nil {
		return nil, err
	}

	out := make([]*entity.Partner, 0, len(partners))
	for _, partner := range partners {
		if partner.SubscribedTo(eventType) {
			out = append(out, partner)
		}
	}
	return out, nil
}

func (s *PartnerService) RecordDeliveryOutcome(ctx context.Context, id string, success bool) error {
	return mapPartnerStoreErr(s.store.RecordDelivery(ctx, id, success, s.now()))
}

func (s *PartnerService) AvailableEvents() []entity.EventDescriptor {
	return entity.EventCatalog()
}

func parseSubscribedEvents(raw []string) ([]entity.EventType, error) {
	if len(raw) == 0 {
		return nil, ErrInvalidRequest
	}

	seen := make(map[entity.EventType]struct{}, len(raw))
	events := make([]entity.EventType, 0, len(raw))
	for _, item := range raw {
		item = strings.TrimSpace(item)
		if !entity.IsKnownEventType(item) {
			return nil, ErrUnknownEventType
		}
		eventType := entity.EventType(item)
		if _, ok := seen[eventType]; ok {
			continue
		}
		seen[eventType] = struct{}{}
		events = append(events, eventType)
	}
	return events, nil
}

func validWebhookURL(raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}

func mapPartnerStoreErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrPartnerNotFound):
		return ErrPartnerNotFound
	case errors.Is(err, repository.ErrPartnerAlreadyExists):
		return ErrPartnerAlreadyExists
	default:
		return err
	}
}
