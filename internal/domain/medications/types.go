package medications

import (
	"fmt"
	"strings"
	"time"
)

// RecurrenceKind distingue las dos formas canónicas de recurrencia.
// El esquema original fue mutando entre un weekday único (repeat_day),
// un array de weekdays (days_of_week) y ningún campo; todas las variantes
// legacy se normalizan a una de estas dos al entrar al sistema.
type RecurrenceKind string

const (
	RecurrenceDaily  RecurrenceKind = "daily"
	RecurrenceWeekly RecurrenceKind = "weekly"
)

// weekdayNames acepta los nombres que manda la app ("Monday") y
// abreviaciones de tres letras, case-insensitive.
var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"sun":       time.Sunday,
	"monday":    time.Monday,
	"mon":       time.Monday,
	"tuesday":   time.Tuesday,
	"tue":       time.Tuesday,
	"wednesday": time.Wednesday,
	"wed":       time.Wednesday,
	"thursday":  time.Thursday,
	"thu":       time.Thursday,
	"friday":    time.Friday,
	"fri":       time.Friday,
	"saturday":  time.Saturday,
	"sat":       time.Saturday,
}

// ParseWeekday parsea un nombre de día tal como viene del store.
func ParseWeekday(s string) (time.Weekday, error) {
	wd, ok := weekdayNames[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("%w: unknown weekday %q", ErrInvalidRecurrence, s)
	}
	return wd, nil
}
