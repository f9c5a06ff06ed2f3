package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/vibast-solutions/ms-go-payment-events/app/entity"
)

const partnerColumns = `
	id, name, webhook_url, events_json, secret, description, contact_email, active,
	delivery_success_count, delivery_failure_count, last_delivery_at, created_at, updated_at
`

// PartnerRepository persists partners in MySQL. The name column carries a
// case-insensitive unique index.
type PartnerRepository struct {
	db DBTX
}

func NewPartnerRepository(db DBTX) *PartnerRepository {
	return &PartnerRepository{db: db}
}

func (r *PartnerRepository) Create(ctx context.Context, partner *entity.Partner) error {
	eventsJSON, err := serializeEvents(partner.Events)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO partners (` + partnerColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, query,
		partner.ID,
		partner.Name,
		partner.WebhookURL,
		eventsJSON,
		partner.Secret,
		nullableStringValue(partner.Description),
		nullableStringValue(partner.ContactEmail),
		partner.Active,
		partner.DeliverySuccessCount,
		partner.DeliveryFailureCount,
		nullableTimeValue(partner.LastDeliveryAt),
		partner.CreatedAt,
		partner.UpdatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrPartnerAlreadyExists
		}
		return err
	}
	return nil
}

// Update writes the editable columns. Delivery counters are only changed by RecordDelivery.
func (r *PartnerRepository) Update(ctx context.Context, partner *entity.Partner) error {
	eventsJSON, err := serializeEvents(partner.Events)
	if err != nil {
		return err
	}

	query := `
		UPDATE partners SET
			name = ?,
			webhook_url = ?,
			events_json = ?,
			secret = ?,
			description = ?,
			contact_email = ?,
			active = ?,
			updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		partner.Name,
		partner.WebhookURL,
		eventsJSON,
		partner.Secret,
		nullableStringValue(partner.Description),
		nullableStringValue(partner.ContactEmail),
		partner.Active,
		partner.UpdatedAt,
		partner.ID,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrPartnerAlreadyExists
		}
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrPartnerNotFound
	}
	return nil
}

func (r *PartnerRepository) FindByID(ctx context.Context, id string) (*entity.Partner, error) {
	query := `SELECT ` + partnerColumns + ` FROM partners WHERE id = ?`

	partner, err := scanPartner(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return partner, err
}

func (r *PartnerRepository) FindByName(ctx context.Context, name string) (*entity.Partner, error) {
	query := `SELECT ` + partnerColumns + ` FROM partners WHERE LOWER(name) = LOWER(?) LIMIT 1`

	partner, err := scanPartner(r.db.QueryRowContext(ctx, query, name))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return partner, err
}

func (r *PartnerRepository) List(ctx context.Context, activeOnly bool) ([]*entity.Partner, error) {
	query := `SELECT ` + partnerColumns + ` FROM partners`
	if activeOnly {
		query += " WHERE active = 1"
	}
	query += " ORDER BY created_at ASC, id ASC"

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	partners := make([]*entity.Partner, 0)
	for rows.Next() {
		item, err := scanPartner(rows)
		if err != nil {
			return nil, err
		}
		partners = append(partners, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return partners, nil
}

func (r *PartnerRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM partners WHERE id = ?`, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrPartnerNotFound
	}
	return nil
}

// RecordDelivery increments in a single statement so concurrent deliveries stay consistent.
func (r *PartnerRepository) RecordDelivery(ctx context.Context, id string, success bool, at time.Time) error {
	query := `
		UPDATE partners SET
			delivery_success_count = delivery_success_count + ?,
			delivery_failure_count = delivery_failure_count + ?,
			last_delivery_at = ?
		WHERE id = ?
	`

	var ok, failed int
	if success {
		ok = 1
	} else {
		failed = 1
	}

	result, err := r.db.ExecContext(ctx, query, ok, failed, at, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrPartnerNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPartner(row rowScanner) (*entity.Partner, error) {
	var (
		partner      entity.Partner
		eventsJSON   string
		description  sql.NullString
		contactEmail sql.NullString
		lastDelivery sql.NullTime
	)
	if err := row.Scan(
		&partner.ID,
		&partner.Name,
		&partner.WebhookURL,
		&eventsJSON,
		&partner.Secret,
		&description,
		&contactEmail,
		&partner.Active,
		&partner.DeliverySuccessCount,
		&partner.DeliveryFailureCount,
		&lastDelivery,
		&partner.CreatedAt,
		&partner.UpdatedAt,
	); err != nil {
		return nil, err
	}

	events, err := parseEvents(eventsJSON)
	if err != nil {
		return nil, err
	}
	partner.Events = events
	partner.Description = description.String
	partner.ContactEmail = contactEmail.String
	partner.LastDeliveryAt = timePtrFromNull(lastDelivery)
	return &partner, nil
}
