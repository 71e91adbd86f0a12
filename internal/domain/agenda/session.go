package agenda

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"med-minder/internal/domain/medications"
)

var (
	// ErrToggleInProgress: ya hay un write en vuelo para esa misma toma.
	// El caller debería ignorar el tap duplicado, no tratarlo como fallo.
	ErrToggleInProgress = errors.New("toggle already in progress")

	// ErrUnknownOccurrence: la key no corresponde a ninguna fila de esta agenda.
	ErrUnknownOccurrence = errors.New("unknown occurrence")

	// ErrSyncFailed: el write falló después del update optimista. Cuando se
	// devuelve, el estado local YA fue revertido a su valor previo.
	ErrSyncFailed = errors.New("sync failed")
)

// Session es el estado de intake de una carga de pantalla: la copia local de
// la agenda más el protocolo optimista contra el Repository. El flag se
// actualiza en memoria de inmediato y el write viaja después; si falla, se
// revierte y se reporta. El estado percibido nunca diverge del persistido por
// más de un round trip fallido.
type Session struct {
	mu   sync.Mutex
	repo medications.Repository

	agenda Agenda

	// pending guarda el valor previo de cada toggle en vuelo; además de
	// servir para revertir, es el guard: un segundo toggle de la MISMA
	// occurrence mientras hay uno pendiente se rechaza (dos writes sin
	// orden en la red podrían dejar el estado al revés del último tap).
	// Occurrences distintas no se bloquean entre sí.
	pending map[Key]bool

	// intents registra el último valor pedido por el usuario y cuándo se
	// despachó, para resolver carreras contra reloads (ver Reconcile).
	intents map[Key]intent

	now func() time.Time
}

type intent struct {
	taken        bool
	dispatchedAt time.Time
}

func NewSession(repo medications.Repository, a Agenda) *Session {
	return &Session{
		repo:    repo,
		agenda:  a,
		pending: make(map[Key]bool),
		intents: make(map[Key]intent),
		now:     time.Now,
	}
}

// Agenda devuelve una copia de la agenda local actual.
func (s *Session) Agenda() Agenda {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Agenda {
	out := Agenda{Date: s.agenda.Date}
	out.Items = append([]Occurrence(nil), s.agenda.Items...)
	out.Issues = append([]Issue(nil), s.agenda.Issues...)
	return out
}

// Toggle invierte el flag de la toma indicada. Dos llamadas seguidas (ambas
// exitosas) togglean dos veces y restauran el valor original: es un toggle,
// no un "set true".
//
// El flip local ocurre antes del write; el write corre en la goroutine del
// caller (lanzar `go session.Toggle(...)` da el despacho asíncrono de la UI).
// Devuelve el nuevo valor local; con ErrSyncFailed el valor ya volvió al
// previo.
func (s *Session) Toggle(ctx context.Context, key Key) (bool, error) {
	s.mu.Lock()

	idx := s.indexOfLocked(key)
	if idx < 0 {
		s.mu.Unlock()
		return false, ErrUnknownOccurrence
	}
	if _, inFlight := s.pending[key]; inFlight {
		taken := s.agenda.Items[idx].Taken
		s.mu.Unlock()
		return taken, ErrToggleInProgress
	}

	prev := s.agenda.Items[idx].Taken
	next := !prev
	s.agenda.Items[idx].Taken = next
	s.pending[key] = prev
	s.intents[key] = intent{taken: next, dispatchedAt: s.now()}
	item := s.agenda.Items[idx]
	s.mu.Unlock()

	err := s.repo.SetTaken(ctx, item.MedicationID, item.Date, item.Time, next)

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, key)

	if err != nil {
		// Revert antes de reportar: el guard garantiza que nadie más tocó
		// esta fila mientras el write estaba en vuelo.
		if i := s.indexOfLocked(key); i >= 0 {
			s.agenda.Items[i].Taken = prev
		}
		delete(s.intents, key)
		return prev, fmt.Errorf("%w: %v", ErrSyncFailed, err)
	}

	return next, nil
}

// Reconcile integra una respuesta fresca del store con los toggles locales.
// fetchStart es el instante en que ARRANCÓ el fetch: un toggle despachado
// después de ese instante es más nuevo que lo que el fetch pudo haber visto,
// así que el valor del toggle gana; si no, gana el valor traído del store.
// Last-writer-by-intent, no last-response-by-arrival.
func (s *Session) Reconcile(meds []medications.Medication, fetchStart time.Time) Agenda {
	s.mu.Lock()
	defer s.mu.Unlock()

	rebuilt := Build(meds, s.agenda.Date)

	for i := range rebuilt.Items {
		key := rebuilt.Items[i].Key()

		if _, inFlight := s.pending[key]; inFlight {
			// Write todavía en vuelo: el valor local (optimista) manda.
			if j := s.indexOfLocked(key); j >= 0 {
				rebuilt.Items[i].Taken = s.agenda.Items[j].Taken
			}
			continue
		}

		in, ok := s.intents[key]
		if !ok {
			continue
		}
		if in.dispatchedAt.After(fetchStart) {
			rebuilt.Items[i].Taken = in.taken
		} else {
			// El fetch es más nuevo que el intent: el store ya lo refleja
			// (o lo pisó otro dispositivo); el intent se descarta.
			delete(s.intents, key)
		}
	}

	s.agenda = rebuilt
	return s.snapshotLocked()
}

func (s *Session) indexOfLocked(key Key) int {
	for i := range s.agenda.Items {
		if s.agenda.Items[i].Key() == key {
			return i
		}
	}
	return -1
}
