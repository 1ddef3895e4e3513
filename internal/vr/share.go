package vr

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// shareRetries is how many fresh tokens Issue tries after a collision.
const shareRetries = 3

// ShareEngine issues and revokes share tokens. Expiration is lazy: nothing
// here purges expired links, RecordStore.FindByShareToken simply stops
// resolving them.
type ShareEngine struct {
	store  *RecordStore
	tokens IDGenerator
	clock  Clock
	logger Logger
}

// NewShareEngine creates a ShareEngine drawing tokens from tokens.
func NewShareEngine(store *RecordStore, tokens IDGenerator, clock Clock, logger Logger) *ShareEngine {
	return &ShareEngine{
		store:  store,
		tokens: tokens,
		clock:  clock,
		logger: logger,
	}
}

// Issue makes the record public under a fresh token and returns it.
// expirationDays of 0 means the link never expires; a positive value sets
// the expiration that many days from now. Issuing again replaces the
// record's previous token and expiration.
func (e *ShareEngine) Issue(ctx context.Context, id string, expirationDays int) (string, error) {
	if expirationDays < 0 {
		return "", fmt.Errorf("expiration days must not be negative, got %d: %w", expirationDays, ErrInvalidInput)
	}

	var expiresAt *time.Time
	if expirationDays > 0 {
		t := e.clock.Now().AddDate(0, 0, expirationDays)
		expiresAt = &t
	}

	for attempt := 0; ; attempt++ {
		token := e.tokens.New()
		_, err := e.store.Update(ctx, id, RecordUpdate{
			Share: &ShareState{Token: token, ExpiresAt: expiresAt},
		})
		if err == nil {
			e.logger.Info("share link issued", "id", id, "expiration_days", expirationDays)
			return token, nil
		}
		if !errors.Is(err, ErrConstraintViolation) || attempt == shareRetries {
			return "", fmt.Errorf("issuing share link: %w", err)
		}
		e.logger.Warn("share token collision, retrying", "id", id, "attempt", attempt+1)
	}
}

// Revoke makes the record private again: the token, the public flag and
// the expiration are cleared together.
func (e *ShareEngine) Revoke(ctx context.Context, id string) error {
	if _, err := e.store.Update(ctx, id, RecordUpdate{Share: &ShareState{}}); err != nil {
		return fmt.Errorf("revoking share link: %w", err)
	}
	e.logger.Info("share link revoked", "id", id)
	return nil
}
