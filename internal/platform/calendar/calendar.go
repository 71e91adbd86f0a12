package calendar

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	DateLayout = "2006-01-02"
)

var (
	ErrMalformedDate = errors.New("malformed date")
	ErrMalformedTime = errors.New("malformed time")
)

// Date es una fecha de calendario sin timezone (año, mes, día).
// Siempre se interpreta en la zona local del dispositivo: la comparación
// "¿es hoy?" nunca debe hacerse en UTC, porque cerca de medianoche el día
// UTC puede no coincidir con el día local.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseDate parsea "YYYY-MM-DD".
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrMalformedDate, s)
	}
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil
}

// FromTime reduce un time.Time a fecha de calendario, en la zona del propio t.
// No convierte a UTC.
func FromTime(t time.Time) Date {
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

// Today devuelve la fecha actual en loc (nil => zona local del sistema).
// Debe llamarse UNA sola vez por construcción de agenda, para que el build
// sea consistente aunque el reloj avance a mitad del cómputo.
func Today(loc *time.Location) Date {
	if loc == nil {
		loc = time.Local
	}
	return FromTime(time.Now().In(loc))
}

func (d Date) IsZero() bool {
	return d == Date{}
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// Weekday devuelve el día de la semana de la fecha.
func (d Date) Weekday() time.Weekday {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC).Weekday()
}

func (d Date) Before(other Date) bool {
	if d.Year != other.Year {
		return d.Year < other.Year
	}
	if d.Month != other.Month {
		return d.Month < other.Month
	}
	return d.Day < other.Day
}

func (d Date) After(other Date) bool {
	return other.Before(d)
}

// AddDays devuelve la fecha desplazada n días (n puede ser negativo).
func (d Date) AddDays(n int) Date {
	t := time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
	return FromTime(t)
}

// TimeOfDay es una hora del día sin fecha ni zona.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parsea "HH:MM" o "HH:MM:SS" (los segundos se ignoran).
// Componentes fuera de rango o no numéricos => ErrMalformedTime.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	raw := strings.TrimSpace(s)
	parts := strings.Split(raw, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return TimeOfDay{}, fmt.Errorf("%w: %q", ErrMalformedTime, s)
	}

	hour, err := parseComponent(parts[0], 0, 23)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("%w: %q", ErrMalformedTime, s)
	}
	minute, err := parseComponent(parts[1], 0, 59)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("%w: %q", ErrMalformedTime, s)
	}
	if len(parts) == 3 {
		if _, err := parseComponent(parts[2], 0, 59); err != nil {
			return TimeOfDay{}, fmt.Errorf("%w: %q", ErrMalformedTime, s)
		}
	}

	return TimeOfDay{Hour: hour, Minute: minute}, nil
}

func parseComponent(s string, min, max int) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > 2 {
		return 0, ErrMalformedTime
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < min || n > max {
		return 0, ErrMalformedTime
	}
	return n, nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Minutes devuelve minutos desde medianoche (clave de orden en la agenda).
func (t TimeOfDay) Minutes() int {
	return t.Hour*60 + t.Minute
}

// Format12Hour formatea en 12h para UI ("08:30" => "8:30 AM").
func (t TimeOfDay) Format12Hour() string {
	period := "AM"
	if t.Hour >= 12 {
		period = "PM"
	}
	h := t.Hour % 12
	if h == 0 {
		h = 12
	}
	return fmt.Sprintf("%d:%02d %s", h, t.Minute, period)
}
