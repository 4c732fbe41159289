package prefs

import (
	"context"
	"errors"
	"fmt"

	"github.com/acornstash/notifier/pkg/notify"
	"github.com/acornstash/notifier/pkg/quiethours"
)

// Resolver is the preference store adapter consumed by the dispatch
// coordinator. It centralizes the "absent configuration means defaults"
// rule: a missing user row is never an error and never means "no delivery
// at all".
type Resolver struct {
	store Store
}

// NewResolver creates a resolver over the given store.
func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// ResolveCategory returns the effective channel enablement for a user and
// category. Store misses and sparse category maps fall back to the default
// table; only store unavailability is surfaced as an error.
func (r *Resolver) ResolveCategory(ctx context.Context, userID string, category notify.Category) (CategoryPreference, error) {
	if !category.Valid() {
		return CategoryPreference{}, notify.ErrUnknownCategory
	}

	stored, err := r.store.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return DefaultFor(category), nil
		}
		return CategoryPreference{}, fmt.Errorf("resolve preferences: %w", err)
	}

	if pref, ok := stored.Categories[category]; ok {
		return pref, nil
	}
	return DefaultFor(category), nil
}

// QuietHours returns the user's quiet-hours window, disabled when the user
// has no stored configuration.
func (r *Resolver) QuietHours(ctx context.Context, userID string) (quiethours.Config, error) {
	stored, err := r.store.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return quiethours.Disabled(), nil
		}
		return quiethours.Config{}, fmt.Errorf("resolve quiet hours: %w", err)
	}
	return stored.QuietHours, nil
}

// DigestFrequency returns the user's digest cadence, DigestNone when the
// user has no stored configuration.
func (r *Resolver) DigestFrequency(ctx context.Context, userID string) (DigestFrequency, error) {
	stored, err := r.store.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return DigestNone, nil
		}
		return DigestNone, fmt.Errorf("resolve digest frequency: %w", err)
	}
	if stored.Digest == "" {
		return DigestNone, nil
	}
	return stored.Digest, nil
}

// ListByDigest returns the users subscribed to the given digest cadence.
func (r *Resolver) ListByDigest(ctx context.Context, freq DigestFrequency) ([]string, error) {
	return r.store.ListByDigest(ctx, freq)
}

// Upsert merges the supplied partial preferences into the user's existing
// configuration, or creates one with defaults filling the rest.
func (r *Resolver) Upsert(ctx context.Context, userID string, patch Patch) error {
	current, err := r.store.Get(ctx, userID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("load preferences for upsert: %w", err)
		}
		defaults := Defaults()
		current = &defaults
	}

	for cat, pref := range patch.Categories {
		if !cat.Valid() {
			return notify.ErrUnknownCategory
		}
		if current.Categories == nil {
			current.Categories = make(map[notify.Category]CategoryPreference)
		}
		current.Categories[cat] = pref
	}
	if patch.QuietHours != nil {
		current.QuietHours = *patch.QuietHours
	}
	if patch.Digest != nil {
		if !patch.Digest.Valid() {
			return fmt.Errorf("invalid digest frequency %q", *patch.Digest)
		}
		current.Digest = *patch.Digest
	}

	return r.store.Put(ctx, userID, *current)
}
