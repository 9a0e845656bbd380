package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"iris.app/engage/core/db"
)

type profileStore struct {
	db *db.DB
}

// NewProfileStore creates the Postgres-backed warm tier.
func NewProfileStore(database *db.DB) ProfileStore {
	return &profileStore{db: database}
}

func (s *profileStore) Get(ctx context.Context, userID string) (map[string]string, error) {
	var raw []byte
	err := s.db.Pool().QueryRow(ctx,
		`SELECT profile FROM user_profiles WHERE user_id = $1`,
		userID,
	).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying profile: %w", err)
	}

	profile := map[string]string{}
	if err := json.Unmarshal(raw, &profile); err != nil {
		return nil, fmt.Errorf("decoding profile for user %s: %w", userID, err)
	}
	return profile, nil
}

func (s *profileStore) Merge(ctx context.Context, userID string, patch map[string]string) error {
	if len(patch) == 0 {
		return nil
	}

	raw, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("encoding profile patch: %w", err)
	}

	// jsonb || takes the right operand's value on key conflicts, so the
	// patch overrides stored keys and leaves the rest intact.
	_, err = s.db.Pool().Exec(ctx,
		`INSERT INTO user_profiles (user_id, profile, updated_at)
		 VALUES ($1, $2::jsonb, now())
		 ON CONFLICT (user_id)
		 DO UPDATE SET profile = user_profiles.profile || EXCLUDED.profile, updated_at = now()`,
		userID, raw,
	)
	if err != nil {
		return fmt.Errorf("merging profile for user %s: %w", userID, err)
	}
	return nil
}
