package medications

import (
	"time"

	"med-minder/internal/platform/calendar"
)

// Medication es el registro tal como lo entrega el store. El engine lo trata
// como valor inmutable por carga: nunca muta los campos de schedule, solo los
// lee para derivar agendas. Fechas y horas se guardan como strings
// ("YYYY-MM-DD", "HH:MM") igual que en el store remoto; la normalización a
// tipos de calendario ocurre en Schedule().
type Medication struct {
	ID      string
	OwnerID string

	Name   string
	Dosage string

	// Horas del día en que se toma ("HH:MM"), sin duplicados, al menos una.
	DoseTimes []string

	// Ventana de validez ("YYYY-MM-DD"). Vacío = sin límite por ese lado.
	StartDate string
	EndDate   string

	Recurrence Recurrence

	// Taken registra por (fecha, hora) si esa toma concreta se marcó.
	// Es el análogo durable del flag efímero "taken de hoy": el estado de
	// días pasados no se pisa con el toggle de hoy.
	Taken IntakeRecord

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IntakeKey identifica una toma concreta dentro de un medicamento.
type IntakeKey struct {
	Date string // "YYYY-MM-DD"
	Time string // "HH:MM"
}

// IntakeRecord mapea (fecha, hora) => tomado. Ausente = false.
type IntakeRecord map[IntakeKey]bool

// TakenAt devuelve si la toma (date, t) está marcada.
func (r IntakeRecord) TakenAt(date calendar.Date, t calendar.TimeOfDay) bool {
	if r == nil {
		return false
	}
	return r[IntakeKey{Date: date.String(), Time: t.String()}]
}

// Set marca o desmarca una toma.
func (r IntakeRecord) Set(date calendar.Date, t calendar.TimeOfDay, taken bool) {
	r[IntakeKey{Date: date.String(), Time: t.String()}] = taken
}

// Clone copia el registro (los loads por pantalla no comparten estado mutable).
func (r IntakeRecord) Clone() IntakeRecord {
	out := make(IntakeRecord, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
