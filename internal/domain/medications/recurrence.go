package medications

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"med-minder/internal/platform/calendar"
)

var (
	ErrInvalidRecurrence = errors.New("invalid recurrence")
)

// Recurrence describe cuándo recurre un medicamento: todos los días, o un
// set no vacío de días de la semana. Un set vacío es inválido y se rechaza
// al construir; nunca se interpreta en silencio como "nunca" ni como "daily".
type Recurrence struct {
	Kind     RecurrenceKind
	Weekdays []time.Weekday // solo para Weekly; ordenado, sin duplicados
}

// Daily ocurre cada fecha dentro de la ventana de validez.
func Daily() Recurrence {
	return Recurrence{Kind: RecurrenceDaily}
}

// Weekly ocurre en las fechas cuyo weekday está en days.
func Weekly(days []time.Weekday) (Recurrence, error) {
	seen := map[time.Weekday]bool{}
	out := make([]time.Weekday, 0, len(days))
	for _, d := range days {
		if d < time.Sunday || d > time.Saturday {
			return Recurrence{}, fmt.Errorf("%w: weekday out of range: %d", ErrInvalidRecurrence, d)
		}
		if seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	if len(out) == 0 {
		return Recurrence{}, fmt.Errorf("%w: empty weekday set", ErrInvalidRecurrence)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return Recurrence{Kind: RecurrenceWeekly, Weekdays: out}, nil
}

// NormalizeRecurrence unifica las representaciones legacy del store:
//   - days_of_week presente (array) => Weekly(set); es autoritativo aunque
//     también venga repeat_day (transición de esquema).
//   - solo repeat_day (string)      => Weekly({day}).
//   - nada                          => Daily.
//
// Un array presente pero que mapea a set vacío se rechaza, no se adivina.
func NormalizeRecurrence(repeatDay string, daysOfWeek []string) (Recurrence, error) {
	if daysOfWeek != nil {
		days := make([]time.Weekday, 0, len(daysOfWeek))
		for _, s := range daysOfWeek {
			wd, err := ParseWeekday(s)
			if err != nil {
				return Recurrence{}, err
			}
			days = append(days, wd)
		}
		return Weekly(days)
	}

	if repeatDay != "" {
		wd, err := ParseWeekday(repeatDay)
		if err != nil {
			return Recurrence{}, err
		}
		return Weekly([]time.Weekday{wd})
	}

	return Daily(), nil
}

// Validate chequea los invariantes de una Recurrence ya construida
// (p.ej. una que viene deserializada del store).
func (r Recurrence) Validate() error {
	switch r.Kind {
	case RecurrenceDaily:
		return nil
	case RecurrenceWeekly:
		if len(r.Weekdays) == 0 {
			return fmt.Errorf("%w: empty weekday set", ErrInvalidRecurrence)
		}
		for _, d := range r.Weekdays {
			if d < time.Sunday || d > time.Saturday {
				return fmt.Errorf("%w: weekday out of range: %d", ErrInvalidRecurrence, d)
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidRecurrence, r.Kind)
	}
}

func (r Recurrence) matches(wd time.Weekday) bool {
	switch r.Kind {
	case RecurrenceDaily:
		return true
	case RecurrenceWeekly:
		for _, d := range r.Weekdays {
			if d == wd {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// Schedule es la forma normalizada del horario de un medicamento: ventana de
// validez parseada, recurrencia y horas de toma. Es lo único que consume el
// builder de agenda.
type Schedule struct {
	From       *calendar.Date
	To         *calendar.Date
	Recurrence Recurrence
	Times      []calendar.TimeOfDay
}

// Schedule normaliza los strings almacenados. Un registro que no parsea
// devuelve error; quien construye la agenda lo excluye y reporta sin abortar
// el resto del build.
func (m Medication) Schedule() (Schedule, error) {
	s := Schedule{Recurrence: m.Recurrence}

	if m.StartDate != "" {
		d, err := calendar.ParseDate(m.StartDate)
		if err != nil {
			return Schedule{}, fmt.Errorf("start_date: %w", err)
		}
		s.From = &d
	}
	if m.EndDate != "" {
		d, err := calendar.ParseDate(m.EndDate)
		if err != nil {
			return Schedule{}, fmt.Errorf("end_date: %w", err)
		}
		s.To = &d
	}

	if err := m.Recurrence.Validate(); err != nil {
		return Schedule{}, err
	}

	s.Times = make([]calendar.TimeOfDay, 0, len(m.DoseTimes))
	for _, raw := range m.DoseTimes {
		t, err := calendar.ParseTimeOfDay(raw)
		if err != nil {
			return Schedule{}, fmt.Errorf("scheduled_time: %w", err)
		}
		s.Times = append(s.Times, t)
	}

	return s, nil
}

// OccursOn decide si el horario ocurre en la fecha dada. Es puro: mismo
// (schedule, fecha) => mismo resultado, sin depender de "ahora".
func (s Schedule) OccursOn(date calendar.Date) bool {
	if s.From != nil && date.Before(*s.From) {
		return false
	}
	if s.To != nil && date.After(*s.To) {
		return false
	}
	return s.Recurrence.matches(date.Weekday())
}
