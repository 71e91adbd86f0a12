package medications

import (
	"context"
	"errors"
	"testing"
	"time"

	"med-minder/internal/platform/calendar"
)

// -------------------------
// Test repo (in-memory)
// -------------------------

var errRepoNotFound = errors.New("repo: not found")

type testRepo struct {
	byID map[string]Medication
}

func newTestRepo() *testRepo {
	return &testRepo{byID: map[string]Medication{}}
}

func (r *testRepo) Create(ctx context.Context, m Medication) error {
	if m.ID == "" {
		return errors.New("repo: id required")
	}
	if _, ok := r.byID[m.ID]; ok {
		return errors.New("repo: already exists")
	}
	r.byID[m.ID] = m
	return nil
}

func (r *testRepo) GetByID(ctx context.Context, id string) (Medication, error) {
	m, ok := r.byID[id]
	if !ok {
		return Medication{}, errRepoNotFound
	}
	return m, nil
}

func (r *testRepo) ListByOwner(ctx context.Context, ownerID string) ([]Medication, error) {
	out := make([]Medication, 0)
	for _, m := range r.byID {
		if m.OwnerID == ownerID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *testRepo) Delete(ctx context.Context, id string) error {
	if _, ok := r.byID[id]; !ok {
		return errRepoNotFound
	}
	delete(r.byID, id)
	return nil
}

func (r *testRepo) SetTaken(ctx context.Context, medicationID string, date calendar.Date, tod calendar.TimeOfDay, taken bool) error {
	m, ok := r.byID[medicationID]
	if !ok {
		return errRepoNotFound
	}
	if m.Taken == nil {
		m.Taken = IntakeRecord{}
	}
	m.Taken.Set(date, tod, taken)
	r.byID[medicationID] = m
	return nil
}

// -------------------------
// Tests
// -------------------------

func validInput() CreateInput {
	return CreateInput{
		Name:      "Metformin",
		Dosage:    "500mg",
		DoseTimes: []string{"08:00"},
		StartDate: "2024-01-01",
		EndDate:   "2024-12-31",
		DaysOfWeek: []string{
			"Monday", "Wednesday", "Friday",
		},
	}
}

func TestService_Create_OK(t *testing.T) {
	repo := newTestRepo()
	svc := NewService(repo)

	now := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	m, err := svc.Create(context.Background(), "owner-1", validInput())
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if m.ID == "" {
		t.Error("expected generated id")
	}
	if m.OwnerID != "owner-1" {
		t.Errorf("OwnerID = %q, want owner-1", m.OwnerID)
	}
	if m.Recurrence.Kind != RecurrenceWeekly || len(m.Recurrence.Weekdays) != 3 {
		t.Errorf("Recurrence = %+v, want weekly Mon/Wed/Fri", m.Recurrence)
	}
	if !m.CreatedAt.Equal(now) || !m.UpdatedAt.Equal(now) {
		t.Error("timestamps should come from the injected clock")
	}
	if _, err := repo.GetByID(context.Background(), m.ID); err != nil {
		t.Error("medication should be persisted")
	}
}

func TestService_Create_TrimsFreeText(t *testing.T) {
	svc := NewService(newTestRepo())

	in := validInput()
	in.Name = "  Metformin  "
	in.Dosage = " 500mg "

	m, err := svc.Create(context.Background(), "owner-1", in)
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if m.Name != "Metformin" || m.Dosage != "500mg" {
		t.Errorf("expected trimmed name/dosage, got %q / %q", m.Name, m.Dosage)
	}
}

func TestService_Create_Validation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*CreateInput)
		ownerID string
		wantErr error
	}{
		{
			name:    "empty owner",
			mutate:  func(in *CreateInput) {},
			ownerID: "  ",
			wantErr: ErrInvalidInput,
		},
		{
			name:    "blank name",
			mutate:  func(in *CreateInput) { in.Name = "   " },
			ownerID: "owner-1",
			wantErr: ErrInvalidInput,
		},
		{
			name:    "blank dosage",
			mutate:  func(in *CreateInput) { in.Dosage = "" },
			ownerID: "owner-1",
			wantErr: ErrInvalidInput,
		},
		{
			name:    "no dose times",
			mutate:  func(in *CreateInput) { in.DoseTimes = nil },
			ownerID: "owner-1",
			wantErr: ErrInvalidInput,
		},
		{
			name:    "malformed dose time",
			mutate:  func(in *CreateInput) { in.DoseTimes = []string{"8am"} },
			ownerID: "owner-1",
			wantErr: ErrInvalidInput,
		},
		{
			name:    "duplicate dose times",
			mutate:  func(in *CreateInput) { in.DoseTimes = []string{"08:00", "08:00:30"} },
			ownerID: "owner-1",
			wantErr: ErrInvalidInput,
		},
		{
			name:    "start after end",
			mutate:  func(in *CreateInput) { in.StartDate, in.EndDate = "2024-12-31", "2024-01-01" },
			ownerID: "owner-1",
			wantErr: ErrInvalidRecurrence,
		},
		{
			name:    "malformed start date",
			mutate:  func(in *CreateInput) { in.StartDate = "January 1" },
			ownerID: "owner-1",
			wantErr: ErrInvalidInput,
		},
		{
			name:    "empty days_of_week",
			mutate:  func(in *CreateInput) { in.DaysOfWeek = []string{} },
			ownerID: "owner-1",
			wantErr: ErrInvalidRecurrence,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newTestRepo()
			svc := NewService(repo)

			in := validInput()
			tt.mutate(&in)

			_, err := svc.Create(context.Background(), tt.ownerID, in)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Create() error = %v, want %v", err, tt.wantErr)
			}
			if len(repo.byID) != 0 {
				t.Error("nothing should be persisted on validation failure")
			}
		})
	}
}

func TestService_Create_SecondsIgnoredInDoseTimes(t *testing.T) {
	svc := NewService(newTestRepo())

	in := validInput()
	in.DoseTimes = []string{"08:00:45", "20:30"}

	m, err := svc.Create(context.Background(), "owner-1", in)
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if m.DoseTimes[0] != "08:00" || m.DoseTimes[1] != "20:30" {
		t.Errorf("DoseTimes = %v, want canonical HH:MM", m.DoseTimes)
	}
}

func TestService_Delete_OwnerCheck(t *testing.T) {
	repo := newTestRepo()
	svc := NewService(repo)

	m, err := svc.Create(context.Background(), "owner-1", validInput())
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	if err := svc.Delete(context.Background(), "intruder", m.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("Delete by non-owner error = %v, want ErrForbidden", err)
	}
	if err := svc.Delete(context.Background(), "owner-1", m.ID); err != nil {
		t.Errorf("Delete by owner error = %v", err)
	}
	if len(repo.byID) != 0 {
		t.Error("medication should be gone after owner delete")
	}
}

func TestService_SetTaken(t *testing.T) {
	repo := newTestRepo()
	svc := NewService(repo)

	m, err := svc.Create(context.Background(), "owner-1", validInput())
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	if err := svc.SetTaken(context.Background(), "owner-1", m.ID, "2024-01-03", "08:00", true); err != nil {
		t.Fatalf("SetTaken() error: %v", err)
	}

	// Round trip: un fetch fresco refleja la toma marcada.
	got, err := repo.GetByID(context.Background(), m.ID)
	if err != nil {
		t.Fatalf("GetByID() error: %v", err)
	}
	d, _ := calendar.ParseDate("2024-01-03")
	tod, _ := calendar.ParseTimeOfDay("08:00")
	if !got.Taken.TakenAt(d, tod) {
		t.Error("expected taken=true after SetTaken round trip")
	}

	// Owner check
	if err := svc.SetTaken(context.Background(), "intruder", m.ID, "2024-01-03", "08:00", false); !errors.Is(err, ErrForbidden) {
		t.Errorf("SetTaken by non-owner error = %v, want ErrForbidden", err)
	}

	// Fecha/hora malformadas
	if err := svc.SetTaken(context.Background(), "owner-1", m.ID, "bad", "08:00", true); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("SetTaken malformed date error = %v, want ErrInvalidInput", err)
	}
	if err := svc.SetTaken(context.Background(), "owner-1", m.ID, "2024-01-03", "8am", true); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("SetTaken malformed time error = %v, want ErrInvalidInput", err)
	}
}
