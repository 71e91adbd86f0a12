package agenda

import (
	"sort"

	"med-minder/internal/domain/medications"
	"med-minder/internal/platform/calendar"
)

// Occurrence es una fila de agenda: una toma concreta (medicamento, fecha,
// hora), anotada con su estado taken. Derivada, no persistida.
type Occurrence struct {
	MedicationID string
	Name         string
	Dosage       string
	Date         calendar.Date
	Time         calendar.TimeOfDay
	Taken        bool
}

// Key identifica una occurrence; dos occurrences son la misma fila sii
// coinciden los tres campos.
type Key struct {
	MedicationID string
	Date         string // "YYYY-MM-DD"
	Time         string // "HH:MM"
}

func (o Occurrence) Key() Key {
	return Key{
		MedicationID: o.MedicationID,
		Date:         o.Date.String(),
		Time:         o.Time.String(),
	}
}

// Issue reporta un medicamento excluido del build porque su registro
// almacenado no normaliza (fecha u hora ilegible).
type Issue struct {
	MedicationID string
	Name         string
	Err          error
}

// Agenda es la lista ordenada de tomas de una fecha para un usuario.
// Se reconstruye en cada load; cada pantalla es dueña de su copia.
type Agenda struct {
	Date   calendar.Date
	Items  []Occurrence
	Issues []Issue
}

// Build arma la agenda de una fecha a partir del set completo de
// medicamentos del usuario. No hace I/O y no falla para input bien formado:
// un registro malformado se excluye y reporta, los hermanos siguen
// apareciendo (partial-failure por registro).
//
// date debe venir de una sola llamada a calendar.Today (o del request):
// el build entero usa esa fecha, aunque el reloj avance en el medio.
func Build(meds []medications.Medication, date calendar.Date) Agenda {
	a := Agenda{Date: date}

	for _, m := range meds {
		sched, err := m.Schedule()
		if err != nil {
			a.Issues = append(a.Issues, Issue{MedicationID: m.ID, Name: m.Name, Err: err})
			continue
		}
		if !sched.OccursOn(date) {
			continue
		}
		for _, tod := range sched.Times {
			a.Items = append(a.Items, Occurrence{
				MedicationID: m.ID,
				Name:         m.Name,
				Dosage:       m.Dosage,
				Date:         date,
				Time:         tod,
				Taken:        m.Taken.TakenAt(date, tod),
			})
		}
	}

	// Orden total y estable: (hora asc, nombre asc, id) para display
	// determinístico; el orden de evaluación de los meds no importa.
	sort.Slice(a.Items, func(i, j int) bool {
		ii, jj := a.Items[i], a.Items[j]
		if ii.Time.Minutes() != jj.Time.Minutes() {
			return ii.Time.Minutes() < jj.Time.Minutes()
		}
		if ii.Name != jj.Name {
			return ii.Name < jj.Name
		}
		return ii.MedicationID < jj.MedicationID
	})

	return a
}
