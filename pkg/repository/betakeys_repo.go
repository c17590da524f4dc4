package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/onairfm/gatekeeper/pkg/domain"
)

// BetaKeysRepository handles beta access key persistence.
type BetaKeysRepository struct {
	db *sql.DB
}

// NewBetaKeysRepository creates a new beta keys repository.
func NewBetaKeysRepository(db *sql.DB) *BetaKeysRepository {
	return &BetaKeysRepository{db: db}
}

// Create creates a new beta key.
func (r *BetaKeysRepository) Create(ctx context.Context, key *domain.BetaKey) error {
	query := `
		INSERT INTO beta_keys (key_code, is_active, expires_at, usage_count, max_usage, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query,
		key.KeyCode, key.IsActive, key.ExpiresAt, key.UsageCount, key.MaxUsage, key.CreatedAt,
	)
	return err
}

// GetActiveByCode retrieves an active beta key by exact code.
// Inactive or missing keys both map to ErrInvalidKey so callers cannot tell
// the two apart.
func (r *BetaKeysRepository) GetActiveByCode(ctx context.Context, code string) (*domain.BetaKey, error) {
	query := `
		SELECT key_code, is_active, expires_at, usage_count, max_usage, created_at
		FROM beta_keys
		WHERE key_code = $1 AND is_active = TRUE
	`
	key := &domain.BetaKey{}
	err := r.db.QueryRowContext(ctx, query, code).Scan(
		&key.KeyCode, &key.IsActive, &key.ExpiresAt,
		&key.UsageCount, &key.MaxUsage, &key.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrInvalidKey
	}
	if err != nil {
		return nil, err
	}
	return key, nil
}

// Redeem increments the usage counter guarded by a compare-and-swap on the
// previously observed count, deactivating the key in the same statement when
// the new count reaches max_usage. A zero-row update means another redeemer
// won the race.
func (r *BetaKeysRepository) Redeem(ctx context.Context, code string, observedCount int) error {
	query := `
		UPDATE beta_keys
		SET usage_count = usage_count + 1,
		    is_active = CASE
		        WHEN usage_count + 1 >= max_usage THEN FALSE
		        ELSE is_active
		    END
		WHERE key_code = $1 AND is_active = TRUE AND usage_count = $2
	`
	result, err := r.db.ExecContext(ctx, query, code, observedCount)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrConcurrentRedemption
	}
	return nil
}

// DeleteExpired removes keys whose expiry is older than the cutoff.
// Housekeeping only; redemption never depends on it.
func (r *BetaKeysRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM beta_keys WHERE expires_at < $1`
	result, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
