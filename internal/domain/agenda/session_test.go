package agenda

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"med-minder/internal/domain/medications"
	"med-minder/internal/platform/calendar"
)

// -------------------------
// Test repo (in-memory, con fallas y bloqueo inyectables)
// -------------------------

type sessionTestRepo struct {
	mu    sync.Mutex
	taken map[medications.IntakeKey]bool

	failNext bool
	// blockCh: si no es nil, SetTaken se queda esperando hasta que lo cierren
	// (simula un write en vuelo).
	blockCh chan struct{}
}

func newSessionTestRepo() *sessionTestRepo {
	return &sessionTestRepo{taken: map[medications.IntakeKey]bool{}}
}

func (r *sessionTestRepo) Create(ctx context.Context, m medications.Medication) error { return nil }
func (r *sessionTestRepo) GetByID(ctx context.Context, id string) (medications.Medication, error) {
	return medications.Medication{}, errors.New("not implemented")
}
func (r *sessionTestRepo) ListByOwner(ctx context.Context, ownerID string) ([]medications.Medication, error) {
	return nil, nil
}
func (r *sessionTestRepo) Delete(ctx context.Context, id string) error { return nil }

func (r *sessionTestRepo) SetTaken(ctx context.Context, medicationID string, date calendar.Date, tod calendar.TimeOfDay, taken bool) error {
	r.mu.Lock()
	block := r.blockCh
	fail := r.failNext
	r.failNext = false
	r.mu.Unlock()

	if block != nil {
		<-block
	}
	if fail {
		return errors.New("network down")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.taken[medications.IntakeKey{Date: date.String(), Time: tod.String()}] = taken
	return nil
}

func (r *sessionTestRepo) takenAt(date, tod string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.taken[medications.IntakeKey{Date: date, Time: tod}]
}

// -------------------------
// Helpers
// -------------------------

func testAgenda(t *testing.T) Agenda {
	t.Helper()
	meds := []medications.Medication{
		{ID: "med-1", Name: "Metformin", Dosage: "500mg", DoseTimes: []string{"08:00", "20:00"}, Recurrence: medications.Daily()},
		{ID: "med-2", Name: "Vitamin D", Dosage: "1000IU", DoseTimes: []string{"08:00"}, Recurrence: medications.Daily()},
	}
	return Build(meds, date(t, "2024-01-03"))
}

func keyOf(t *testing.T, medID, tod string) Key {
	t.Helper()
	return Key{MedicationID: medID, Date: "2024-01-03", Time: tod}
}

func findItem(t *testing.T, a Agenda, key Key) Occurrence {
	t.Helper()
	for _, it := range a.Items {
		if it.Key() == key {
			return it
		}
	}
	t.Fatalf("occurrence %+v not in agenda", key)
	return Occurrence{}
}

// -------------------------
// Tests
// -------------------------

func TestSession_Toggle_PersistsAndFlips(t *testing.T) {
	repo := newSessionTestRepo()
	s := NewSession(repo, testAgenda(t))
	key := keyOf(t, "med-1", "08:00")

	got, err := s.Toggle(context.Background(), key)
	if err != nil {
		t.Fatalf("Toggle() error: %v", err)
	}
	if !got {
		t.Error("Toggle() = false, want true after first toggle")
	}
	if !repo.takenAt("2024-01-03", "08:00") {
		t.Error("repo should have the new value persisted")
	}
	if !findItem(t, s.Agenda(), key).Taken {
		t.Error("local agenda should reflect the toggle")
	}
}

func TestSession_DoubleToggle_RestoresOriginal(t *testing.T) {
	repo := newSessionTestRepo()
	s := NewSession(repo, testAgenda(t))
	key := keyOf(t, "med-1", "08:00")

	if _, err := s.Toggle(context.Background(), key); err != nil {
		t.Fatalf("first Toggle() error: %v", err)
	}
	got, err := s.Toggle(context.Background(), key)
	if err != nil {
		t.Fatalf("second Toggle() error: %v", err)
	}
	if got {
		t.Error("double toggle should restore taken=false")
	}
	if repo.takenAt("2024-01-03", "08:00") {
		t.Error("repo should also be back to false (toggle, not set-true)")
	}
}

func TestSession_Toggle_RevertsOnFailure(t *testing.T) {
	repo := newSessionTestRepo()
	repo.failNext = true
	s := NewSession(repo, testAgenda(t))
	key := keyOf(t, "med-1", "08:00")

	got, err := s.Toggle(context.Background(), key)
	if !errors.Is(err, ErrSyncFailed) {
		t.Fatalf("Toggle() error = %v, want ErrSyncFailed", err)
	}
	if got {
		t.Error("returned value should be the reverted (previous) one")
	}
	// Garantía: cuando ErrSyncFailed llega al caller, lo local ya se revirtió.
	if findItem(t, s.Agenda(), key).Taken {
		t.Error("local state must be reverted before the error surfaces")
	}
	if repo.takenAt("2024-01-03", "08:00") {
		t.Error("nothing should be persisted on failure")
	}

	// Después del fallo, el guard quedó libre: un retry funciona.
	if _, err := s.Toggle(context.Background(), key); err != nil {
		t.Errorf("retry after failure should work, got %v", err)
	}
}

func TestSession_Toggle_GuardSameOccurrence(t *testing.T) {
	repo := newSessionTestRepo()
	repo.blockCh = make(chan struct{})
	s := NewSession(repo, testAgenda(t))
	key := keyOf(t, "med-1", "08:00")

	firstDone := make(chan error, 1)
	go func() {
		_, err := s.Toggle(context.Background(), key)
		firstDone <- err
	}()

	// Esperar a que el primer toggle haya aplicado su update optimista.
	deadline := time.After(2 * time.Second)
	for !findItem(t, s.Agenda(), key).Taken {
		select {
		case <-deadline:
			t.Fatal("first toggle never applied its optimistic update")
		case <-time.After(time.Millisecond):
		}
	}

	// Segundo toggle de la MISMA occurrence mientras el write sigue en vuelo.
	if _, err := s.Toggle(context.Background(), key); !errors.Is(err, ErrToggleInProgress) {
		t.Errorf("concurrent toggle error = %v, want ErrToggleInProgress", err)
	}

	close(repo.blockCh)
	if err := <-firstDone; err != nil {
		t.Fatalf("first toggle error: %v", err)
	}
}

func TestSession_Toggle_DifferentOccurrencesAreIndependent(t *testing.T) {
	repo := newSessionTestRepo()
	repo.blockCh = make(chan struct{})
	s := NewSession(repo, testAgenda(t))

	keyA := keyOf(t, "med-1", "08:00")
	keyB := keyOf(t, "med-2", "08:00")

	firstDone := make(chan error, 1)
	go func() {
		_, err := s.Toggle(context.Background(), keyA)
		firstDone <- err
	}()

	deadline := time.After(2 * time.Second)
	for !findItem(t, s.Agenda(), keyA).Taken {
		select {
		case <-deadline:
			t.Fatal("first toggle never applied its optimistic update")
		case <-time.After(time.Millisecond):
		}
	}

	// Una occurrence DISTINTA no se bloquea por el write en vuelo de keyA:
	// su update optimista aplica de inmediato, sin ErrToggleInProgress.
	secondDone := make(chan error, 1)
	go func() {
		_, err := s.Toggle(context.Background(), keyB)
		secondDone <- err
	}()

	deadline = time.After(2 * time.Second)
	for !findItem(t, s.Agenda(), keyB).Taken {
		select {
		case <-deadline:
			t.Fatal("second toggle (different occurrence) was blocked by the guard")
		case <-time.After(time.Millisecond):
		}
	}

	close(repo.blockCh)
	if err := <-firstDone; err != nil {
		t.Fatalf("first toggle error: %v", err)
	}
	if err := <-secondDone; err != nil {
		t.Fatalf("second toggle error: %v", err)
	}
}

func TestSession_Toggle_UnknownOccurrence(t *testing.T) {
	s := NewSession(newSessionTestRepo(), testAgenda(t))
	if _, err := s.Toggle(context.Background(), Key{MedicationID: "nope", Date: "2024-01-03", Time: "08:00"}); !errors.Is(err, ErrUnknownOccurrence) {
		t.Errorf("error = %v, want ErrUnknownOccurrence", err)
	}
}

func TestSession_Reconcile_LastWriterByIntent(t *testing.T) {
	repo := newSessionTestRepo()
	s := NewSession(repo, testAgenda(t))
	key := keyOf(t, "med-1", "08:00")

	fetchStart := time.Now()

	// Toggle despachado DESPUÉS de que arrancó el fetch: su valor gana sobre
	// lo que el fetch traiga (el fetch no pudo haberlo visto).
	if _, err := s.Toggle(context.Background(), key); err != nil {
		t.Fatalf("Toggle() error: %v", err)
	}

	// El fetch "viejo" trae taken=false para esa toma.
	staleMeds := []medications.Medication{
		{ID: "med-1", Name: "Metformin", Dosage: "500mg", DoseTimes: []string{"08:00", "20:00"}, Recurrence: medications.Daily()},
		{ID: "med-2", Name: "Vitamin D", Dosage: "1000IU", DoseTimes: []string{"08:00"}, Recurrence: medications.Daily()},
	}

	got := s.Reconcile(staleMeds, fetchStart)
	if !findItem(t, got, key).Taken {
		t.Error("toggle dispatched after fetchStart must win over the stale fetched value")
	}
}

func TestSession_Reconcile_NewerFetchWins(t *testing.T) {
	repo := newSessionTestRepo()
	s := NewSession(repo, testAgenda(t))
	key := keyOf(t, "med-1", "08:00")

	// Toggle viejo (taken=true).
	if _, err := s.Toggle(context.Background(), key); err != nil {
		t.Fatalf("Toggle() error: %v", err)
	}

	// Un fetch que ARRANCA después del dispatch ve el estado más nuevo del
	// store (p.ej. otro dispositivo lo desmarcó): gana el fetch.
	fetchStart := time.Now().Add(time.Second)

	fresh := medications.IntakeRecord{}
	fresh.Set(date(t, "2024-01-03"), calendar.TimeOfDay{Hour: 8}, false)
	freshMeds := []medications.Medication{
		{ID: "med-1", Name: "Metformin", Dosage: "500mg", DoseTimes: []string{"08:00", "20:00"}, Recurrence: medications.Daily(), Taken: fresh},
		{ID: "med-2", Name: "Vitamin D", Dosage: "1000IU", DoseTimes: []string{"08:00"}, Recurrence: medications.Daily()},
	}

	got := s.Reconcile(freshMeds, fetchStart)
	if findItem(t, got, key).Taken {
		t.Error("a fetch started after the intent must be authoritative")
	}
}

func TestSession_Reconcile_PendingWriteKeepsLocalValue(t *testing.T) {
	repo := newSessionTestRepo()
	repo.blockCh = make(chan struct{})
	s := NewSession(repo, testAgenda(t))
	key := keyOf(t, "med-1", "08:00")

	firstDone := make(chan error, 1)
	go func() {
		_, err := s.Toggle(context.Background(), key)
		firstDone <- err
	}()

	deadline := time.After(2 * time.Second)
	for !findItem(t, s.Agenda(), key).Taken {
		select {
		case <-deadline:
			t.Fatal("toggle never applied its optimistic update")
		case <-time.After(time.Millisecond):
		}
	}

	staleMeds := []medications.Medication{
		{ID: "med-1", Name: "Metformin", Dosage: "500mg", DoseTimes: []string{"08:00", "20:00"}, Recurrence: medications.Daily()},
	}
	got := s.Reconcile(staleMeds, time.Now())
	if !findItem(t, got, key).Taken {
		t.Error("while a write is in flight the local optimistic value must be kept")
	}

	close(repo.blockCh)
	if err := <-firstDone; err != nil {
		t.Fatalf("toggle error: %v", err)
	}
}
