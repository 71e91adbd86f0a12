package medications

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"med-minder/internal/platform/calendar"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrForbidden    = errors.New("forbidden")
)

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{
		repo: repo,
		now:  time.Now,
	}
}

// CreateInput acepta el payload crudo de la app, incluidas las formas legacy
// de recurrencia (repeat_day único o days_of_week array). DoseTimes admite
// "HH:MM" o "HH:MM:SS".
type CreateInput struct {
	Name      string
	Dosage    string
	DoseTimes []string
	StartDate string // "YYYY-MM-DD", opcional
	EndDate   string // "YYYY-MM-DD", opcional

	RepeatDay  string   // legacy: un solo día
	DaysOfWeek []string // autoritativo si viene junto con RepeatDay
}

func (s *Service) Create(ctx context.Context, ownerID string, in CreateInput) (Medication, error) {
	if strings.TrimSpace(ownerID) == "" {
		return Medication{}, ErrInvalidInput
	}
	if strings.TrimSpace(in.Name) == "" {
		return Medication{}, fmt.Errorf("%w: name required", ErrInvalidInput)
	}
	if strings.TrimSpace(in.Dosage) == "" {
		return Medication{}, fmt.Errorf("%w: dosage required", ErrInvalidInput)
	}

	times, err := normalizeDoseTimes(in.DoseTimes)
	if err != nil {
		return Medication{}, err
	}

	start, end, err := normalizeWindow(in.StartDate, in.EndDate)
	if err != nil {
		return Medication{}, err
	}

	// InvalidRecurrence se rechaza acá, en el borde del repositorio;
	// nunca llega al evaluator.
	rec, err := NormalizeRecurrence(strings.TrimSpace(in.RepeatDay), in.DaysOfWeek)
	if err != nil {
		return Medication{}, err
	}

	now := s.now()
	m := Medication{
		ID:         uuid.NewString(),
		OwnerID:    ownerID,
		Name:       strings.TrimSpace(in.Name),
		Dosage:     strings.TrimSpace(in.Dosage),
		DoseTimes:  times,
		StartDate:  start,
		EndDate:    end,
		Recurrence: rec,
		Taken:      IntakeRecord{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.repo.Create(ctx, m); err != nil {
		return Medication{}, err
	}
	return m, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (Medication, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Medication{}, ErrInvalidInput
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByOwner(ctx context.Context, ownerID string) ([]Medication, error) {
	return s.repo.ListByOwner(ctx, ownerID)
}

// Delete borra un medicamento, verificando que el caller sea el owner.
func (s *Service) Delete(ctx context.Context, ownerID, id string) error {
	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if m.OwnerID != ownerID {
		return ErrForbidden
	}
	return s.repo.Delete(ctx, id)
}

// SetTaken persiste el estado de una toma, con owner check y validación de
// fecha/hora antes de tocar el store.
func (s *Service) SetTaken(ctx context.Context, ownerID, medicationID, rawDate, rawTime string, taken bool) error {
	m, err := s.repo.GetByID(ctx, medicationID)
	if err != nil {
		return err
	}
	if m.OwnerID != ownerID {
		return ErrForbidden
	}

	date, err := calendar.ParseDate(rawDate)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	tod, err := calendar.ParseTimeOfDay(rawTime)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	return s.repo.SetTaken(ctx, medicationID, date, tod, taken)
}

func normalizeDoseTimes(raw []string) ([]string, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: at least one scheduled time required", ErrInvalidInput)
	}

	seen := map[string]bool{}
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		t, err := calendar.ParseTimeOfDay(r)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		canon := t.String()
		if seen[canon] {
			return nil, fmt.Errorf("%w: duplicate scheduled time %s", ErrInvalidInput, canon)
		}
		seen[canon] = true
		out = append(out, canon)
	}
	return out, nil
}

func normalizeWindow(rawStart, rawEnd string) (string, string, error) {
	rawStart = strings.TrimSpace(rawStart)
	rawEnd = strings.TrimSpace(rawEnd)

	var start, end *calendar.Date
	if rawStart != "" {
		d, err := calendar.ParseDate(rawStart)
		if err != nil {
			return "", "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		start = &d
	}
	if rawEnd != "" {
		d, err := calendar.ParseDate(rawEnd)
		if err != nil {
			return "", "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		end = &d
	}

	if start != nil && end != nil && end.Before(*start) {
		return "", "", fmt.Errorf("%w: start_date must be <= end_date", ErrInvalidRecurrence)
	}

	var s, e string
	if start != nil {
		s = start.String()
	}
	if end != nil {
		e = end.String()
	}
	return s, e, nil
}
