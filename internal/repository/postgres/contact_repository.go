package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/acme/simpledialer/internal/domain"
	"github.com/acme/simpledialer/internal/repository"
)

// ContactRepository implements repository.ContactRepository using PostgreSQL.
type ContactRepository struct {
	db *sqlx.DB
}

// NewContactRepository constructs the repository.
func NewContactRepository(db *sqlx.DB) *ContactRepository {
	return &ContactRepository{db: db}
}

// BulkInsert inserts a batch of contacts.
func (r *ContactRepository) BulkInsert(ctx context.Context, campaignID uuid.UUID, contacts []*domain.Contact) error {
	if len(contacts) == 0 {
		return nil
	}

	q := `INSERT INTO contacts (
		id, campaign_id, name, phone_number, status, call_attempts, created_at
	) VALUES (:id, :campaign_id, :name, :phone_number, :status, :call_attempts, :created_at)
	ON CONFLICT (id) DO NOTHING`

	rows := make([]map[string]any, 0, len(contacts))
	for _, c := range contacts {
		rows = append(rows, map[string]any{
			"id":            c.ID,
			"campaign_id":   campaignID,
			"name":          c.Name,
			"phone_number":  c.PhoneNumber,
			"status":        c.Status,
			"call_attempts": c.CallAttempts,
			"created_at":    c.CreatedAt,
		})
	}

	const chunkSize = 500
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		for start := 0; start < len(rows); start += chunkSize {
			end := start + chunkSize
			if end > len(rows) {
				end = len(rows)
			}
			if _, err := tx.NamedExecContext(ctx, q, rows[start:end]); err != nil {
				return fmt.Errorf("contact repo: bulk insert: %w", err)
			}
		}
		return nil
	})
	return err
}

// ListPending loads the pending snapshot for a campaign in stable order.
func (r *ContactRepository) ListPending(ctx context.Context, campaignID uuid.UUID) ([]*domain.Contact, error) {
	rows, err := r.db.QueryxContext(ctx, `SELECT id, campaign_id, name, phone_number, status, call_attempts, last_called, created_at
		FROM contacts
		WHERE campaign_id = $1 AND status = $2
		ORDER BY created_at ASC, id ASC`, campaignID, domain.ContactStatusPending)
	if err != nil {
		return nil, fmt.Errorf("contact repo: list pending: %w", err)
	}
	defer rows.Close()

	var results []*domain.Contact
	for rows.Next() {
		var rec contactRecord
		if err := rows.StructScan(&rec); err != nil {
			return nil, fmt.Errorf("contact repo: scan: %w", err)
		}
		contact := rec.toDomain()
		results = append(results, &contact)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("contact repo: rows err: %w", err)
	}

	return results, nil
}

// SetStatus overwrites the contact status, bumps the attempt counter and
// stamps last_called.
func (r *ContactRepository) SetStatus(ctx context.Context, contactID uuid.UUID, status domain.ContactStatus) error {
	res, err := r.db.ExecContext(ctx, `UPDATE contacts
		SET status = $1, call_attempts = call_attempts + 1, last_called = NOW()
		WHERE id = $2`, status, contactID)
	if err != nil {
		return fmt.Errorf("contact repo: set status: %w", err)
	}
	return requireRow(res, "contact repo")
}

// CountByStatus aggregates contact counts per status for a campaign.
func (r *ContactRepository) CountByStatus(ctx context.Context, campaignID uuid.UUID) (map[domain.ContactStatus]int64, error) {
	rows, err := r.db.QueryxContext(ctx, `SELECT status, COUNT(*) AS count
		FROM contacts WHERE campaign_id = $1 GROUP BY status`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("contact repo: count by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.ContactStatus]int64)
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("contact repo: scan count: %w", err)
		}
		counts[domain.ContactStatus(status)] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("contact repo: rows err: %w", err)
	}

	return counts, nil
}

var _ repository.ContactRepository = (*ContactRepository)(nil)

type contactRecord struct {
	ID           uuid.UUID  `db:"id"`
	CampaignID   uuid.UUID  `db:"campaign_id"`
	Name         string     `db:"name"`
	PhoneNumber  string     `db:"phone_number"`
	Status       string     `db:"status"`
	CallAttempts int        `db:"call_attempts"`
	LastCalled   *time.Time `db:"last_called"`
	CreatedAt    time.Time  `db:"created_at"`
}

func (r contactRecord) toDomain() domain.Contact {
	return domain.Contact{
		ID:           r.ID,
		CampaignID:   r.CampaignID,
		Name:         r.Name,
		PhoneNumber:  r.PhoneNumber,
		Status:       domain.ContactStatus(r.Status),
		CallAttempts: r.CallAttempts,
		LastCalled:   r.LastCalled,
		CreatedAt:    r.CreatedAt,
	}
}
