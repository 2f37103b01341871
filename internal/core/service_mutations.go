package core

import (
	"context"

	"github.com/bridgetrack/bridgetrack/internal/logging"
)

// Create stores a new bridge built from p.
//
// p must carry a non-blank "bin". Coordinates must be numeric; descriptive
// fields default to "". An existing BIN fails with ErrConflict and leaves
// the stored record untouched. Emits one created event on success.
func (s *Service) Create(ctx context.Context, p Payload) (Bridge, error) {
	parsed, err := parsePayload("create", p, true)
	if err != nil {
		return Bridge{}, err
	}

	b := Bridge{BIN: parsed.bin}
	parsed.update.Apply(&b)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Insert(ctx, b); err != nil {
		return Bridge{}, classify("create", b.BIN, err)
	}
	s.notify(EventCreated, b)

	logging.FromContext(ctx).Info("bridge created", "bin", b.BIN)
	return b, nil
}

// Patch merges the known keys of p into the bridge with the given BIN.
//
// Unknown keys are ignored. A "bin" key naming a different BIN is rejected
// because BINs are immutable. A missing bridge is reported before the
// payload is examined. Emits one updated event on success.
func (s *Service) Patch(ctx context.Context, bin string, p Payload) (Bridge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.store.Get(ctx, bin)
	if err != nil {
		return Bridge{}, classify("patch", bin, err)
	}

	parsed, err := parsePayload("patch", p, false)
	if err != nil {
		return Bridge{}, withBIN(err, bin)
	}
	if parsed.hasBIN && parsed.bin != bin {
		return Bridge{}, validationError("patch", bin, "bin", "BIN cannot be changed")
	}

	parsed.update.Apply(&b)
	if err := s.store.Update(ctx, b); err != nil {
		return Bridge{}, classify("patch", bin, err)
	}
	s.notify(EventUpdated, b)

	logging.FromContext(ctx).Info("bridge updated", "bin", bin, "fields", len(parsed.update.Text)+coordCount(parsed.update))
	return b, nil
}

// Delete removes the bridge with the given BIN and emits one deleted event.
func (s *Service) Delete(ctx context.Context, bin string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Delete(ctx, bin); err != nil {
		return classify("delete", bin, err)
	}
	s.notify(EventDeleted, DeletedPayload{BIN: bin})

	logging.FromContext(ctx).Info("bridge deleted", "bin", bin)
	return nil
}

func withBIN(err error, bin string) error {
	if ce, ok := err.(*Error); ok && ce.BIN == "" {
		ce.BIN = bin
	}
	return err
}

func coordCount(u Update) int {
	n := 0
	if u.Lat != nil {
		n++
	}
	if u.Lon != nil {
		n++
	}
	return n
}
