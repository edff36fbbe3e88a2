package editor

import (
	"context"
	"errors"
	"fmt"

	"claritysim/internal/api"
)

// BulkError reports where a sequential bulk update stopped. Items before
// Position were applied and are not rolled back; the reload that follows
// reveals the true resulting state.
type BulkError struct {
	Position int // 1-based position in the collection
	ID       string
	Applied  int
	Err      error
}

func (e *BulkError) Error() string {
	return fmt.Sprintf("bulk update stopped at item %d (%s) after %d applied: %v",
		e.Position, e.ID, e.Applied, e.Err)
}

func (e *BulkError) Unwrap() error {
	return e.Err
}

// BulkSetEnabled enables or disables every intervention in the persisted
// collection, one update call at a time. The first failure stops the loop;
// prior updates stand. Requires explicit confirmation. The collection is
// reloaded afterwards either way.
func (s *Session) BulkSetEnabled(ctx context.Context, enabled, confirmed bool) error {
	if !confirmed {
		return ErrConfirmationRequired
	}

	s.mu.Lock()
	store := s.draftStore
	list := append([]api.Intervention(nil), s.interventions...)
	businessID := s.businessID
	s.mu.Unlock()
	if store == nil {
		return errors.New("no interventions loaded")
	}

	if err := s.beginMutation(); err != nil {
		return err
	}
	defer s.endMutation()

	var bulkErr *BulkError
	applied := 0
	for idx, iv := range list {
		persisted, ok := store.Persisted(iv.ID)
		if !ok {
			continue
		}
		patch := toUpdate(persisted)
		patch.Enabled = enabled
		if _, err := s.backend.UpdateSimIntervention(ctx, businessID, iv.ID, patch); err != nil {
			bulkErr = &BulkError{Position: idx + 1, ID: iv.ID, Applied: applied, Err: err}
			break
		}
		applied++
	}

	s.record("bulk_enabled_set", map[string]any{
		"enabled": enabled,
		"applied": applied,
		"total":   len(list),
	})
	if applied > 0 {
		s.notifyAfterSave()
	}

	if loadErr := s.Load(ctx); loadErr != nil && bulkErr == nil {
		return loadErr
	}
	if bulkErr != nil {
		return bulkErr
	}
	return nil
}

// Duplicate creates a brand-new intervention from an existing persisted
// record: id and timestamps stripped, name suffixed. The source record is
// untouched.
func (s *Session) Duplicate(ctx context.Context, id string) error {
	s.mu.Lock()
	store := s.draftStore
	businessID := s.businessID
	s.mu.Unlock()
	if store == nil {
		return errors.New("no interventions loaded")
	}
	source, ok := store.Persisted(id)
	if !ok {
		return fmt.Errorf("no intervention %s", id)
	}

	payload := toUpdate(source)
	payload.Kind = source.Kind
	payload.Name = source.Name + " (copy)"

	if err := s.beginMutation(); err != nil {
		return err
	}
	defer s.endMutation()

	created, err := s.backend.CreateSimIntervention(ctx, businessID, payload)
	if err != nil {
		return fmt.Errorf("duplicate intervention %s: %w", id, err)
	}
	s.record("intervention_duplicated", map[string]any{"source": id, "id": created.ID})
	s.notifyAfterSave()
	return s.Load(ctx)
}

// Delete removes an intervention permanently. Requires explicit
// confirmation; there is no undo from this surface.
func (s *Session) Delete(ctx context.Context, id string, confirmed bool) error {
	if !confirmed {
		return ErrConfirmationRequired
	}

	s.mu.Lock()
	businessID := s.businessID
	s.mu.Unlock()

	if err := s.beginMutation(); err != nil {
		return err
	}
	defer s.endMutation()

	if err := s.backend.DeleteSimIntervention(ctx, businessID, id); err != nil {
		return fmt.Errorf("delete intervention %s: %w", id, err)
	}
	s.record("intervention_deleted", map[string]any{"id": id})
	s.notifyAfterSave()
	return s.Load(ctx)
}

// toUpdate maps a persisted record onto an update payload, dropping the
// server-assigned id and timestamp.
func toUpdate(iv api.Intervention) api.InterventionUpdate {
	return api.InterventionUpdate{
		Name:         iv.Name,
		StartDate:    iv.StartDate,
		DurationDays: iv.DurationDays,
		Params:       iv.Params,
		Enabled:      iv.Enabled,
	}
}
