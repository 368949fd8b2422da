package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Get returns a stored preference value; ok is false when the key is unset.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.q.Get(ctx, "get-dictionary", &value, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get dictionary %q: %w", key, err)
	}
	return value, true, nil
}

// Set stores a preference value, replacing any previous one.
func (s *Store) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return fmt.Errorf("dictionary key must not be empty")
	}
	if _, err := s.q.Exec(ctx, "upsert-dictionary", key, value, s.timestamp()); err != nil {
		return fmt.Errorf("set dictionary %q: %w", key, err)
	}
	return nil
}
