package medications

import (
	"context"

	"med-minder/internal/platform/calendar"
)

// Repository es el contrato contra el store remoto. El engine solo lo
// consume; el record-of-truth vive del otro lado. Toda query va scoped
// por owner.
type Repository interface {
	Create(ctx context.Context, m Medication) error
	GetByID(ctx context.Context, id string) (Medication, error)
	ListByOwner(ctx context.Context, ownerID string) ([]Medication, error)
	Delete(ctx context.Context, id string) error

	// SetTaken persiste el estado de una toma concreta (fecha + hora).
	SetTaken(ctx context.Context, medicationID string, date calendar.Date, timeOfDay calendar.TimeOfDay, taken bool) error
}
