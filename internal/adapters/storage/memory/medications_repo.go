package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"med-minder/internal/domain/medications"
	"med-minder/internal/platform/calendar"
)

var (
	ErrNotFound = errors.New("not found")
)

type medicationRepo struct {
	mu   sync.RWMutex
	byID map[string]medications.Medication
}

func NewMedicationRepo() medications.Repository {
	return &medicationRepo{
		byID: make(map[string]medications.Medication),
	}
}

func (r *medicationRepo) Create(ctx context.Context, m medications.Medication) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if strings.TrimSpace(m.ID) == "" {
		return errors.New("medication id required")
	}
	if _, exists := r.byID[m.ID]; exists {
		return errors.New("medication already exists")
	}
	r.byID[m.ID] = clone(m)
	return nil
}

func (r *medicationRepo) GetByID(ctx context.Context, id string) (medications.Medication, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.byID[id]
	if !ok {
		return medications.Medication{}, ErrNotFound
	}
	return clone(m), nil
}

func (r *medicationRepo) ListByOwner(ctx context.Context, ownerID string) ([]medications.Medication, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]medications.Medication, 0)
	for _, m := range r.byID {
		if m.OwnerID == ownerID {
			out = append(out, clone(m))
		}
	}

	// Orden estable por created_at asc (solo para consistencia en dev)
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})

	return out, nil
}

func (r *medicationRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[id]; !ok {
		return ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

func (r *medicationRepo) SetTaken(ctx context.Context, medicationID string, date calendar.Date, tod calendar.TimeOfDay, taken bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.byID[medicationID]
	if !ok {
		return ErrNotFound
	}
	if m.Taken == nil {
		m.Taken = medications.IntakeRecord{}
	}
	m.Taken.Set(date, tod, taken)
	r.byID[medicationID] = m
	return nil
}

// clone copia el value con su IntakeRecord: cada load es dueño de su copia,
// el map interno del repo no se comparte mutable con el engine.
func clone(m medications.Medication) medications.Medication {
	out := m
	out.DoseTimes = append([]string(nil), m.DoseTimes...)
	out.Recurrence.Weekdays = append([]time.Weekday(nil), m.Recurrence.Weekdays...)
	out.Taken = m.Taken.Clone()
	return out
}
