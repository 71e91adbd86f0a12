package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"med-minder/internal/domain/medications"
	"med-minder/internal/platform/calendar"
)

// MedicationsRepo es el espejo sqlite del repo de Postgres: mismas columnas,
// placeholders "?" y upsert con sintaxis de sqlite.
type MedicationsRepo struct {
	db *sql.DB
}

func NewMedicationsRepo(db *sql.DB) *MedicationsRepo {
	return &MedicationsRepo{db: db}
}

func (r *MedicationsRepo) Create(ctx context.Context, m medications.Medication) error {
	doseTimes, err := json.Marshal(m.DoseTimes)
	if err != nil {
		return err
	}
	days := make([]int, 0, len(m.Recurrence.Weekdays))
	for _, d := range m.Recurrence.Weekdays {
		days = append(days, int(d))
	}
	weekdays, err := json.Marshal(days)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO medications (
			id, owner_id,
			name, dosage,
			dose_times, start_date, end_date,
			recurrence_kind, weekdays,
			created_at, updated_at
		) VALUES (?,?,?,?,?,?,?,?,?,?,?)
	`,
		m.ID,
		m.OwnerID,
		m.Name,
		m.Dosage,
		string(doseTimes),
		m.StartDate,
		m.EndDate,
		string(m.Recurrence.Kind),
		string(weekdays),
		m.CreatedAt,
		m.UpdatedAt,
	)
	return err
}

func (r *MedicationsRepo) GetByID(ctx context.Context, id string) (medications.Medication, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return medications.Medication{}, ErrNotFound
	}

	row := r.db.QueryRowContext(ctx, `
		SELECT
			id, owner_id,
			name, dosage,
			dose_times, start_date, end_date,
			recurrence_kind, weekdays,
			created_at, updated_at
		FROM medications
		WHERE id = ?
	`, id)

	m, err := scanMedication(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return medications.Medication{}, ErrNotFound
		}
		return medications.Medication{}, err
	}

	if err := r.loadIntakes(ctx, map[string]*medications.Medication{m.ID: &m},
		`SELECT medication_id, intake_date, intake_time, taken
		 FROM medication_intakes WHERE medication_id = ?`, id); err != nil {
		return medications.Medication{}, err
	}

	return m, nil
}

func (r *MedicationsRepo) ListByOwner(ctx context.Context, ownerID string) ([]medications.Medication, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT
			id, owner_id,
			name, dosage,
			dose_times, start_date, end_date,
			recurrence_kind, weekdays,
			created_at, updated_at
		FROM medications
		WHERE owner_id = ?
		ORDER BY created_at ASC
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]medications.Medication, 0)
	for rows.Next() {
		m, err := scanMedication(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	byID := make(map[string]*medications.Medication, len(out))
	for i := range out {
		byID[out[i].ID] = &out[i]
	}

	if err := r.loadIntakes(ctx, byID,
		`SELECT i.medication_id, i.intake_date, i.intake_time, i.taken
		 FROM medication_intakes i
		 JOIN medications m ON m.id = i.medication_id
		 WHERE m.owner_id = ?`, ownerID); err != nil {
		return nil, err
	}

	return out, nil
}

func (r *MedicationsRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM medications WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MedicationsRepo) SetTaken(ctx context.Context, medicationID string, date calendar.Date, tod calendar.TimeOfDay, taken bool) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO medication_intakes (medication_id, intake_date, intake_time, taken)
		VALUES (?,?,?,?)
		ON CONFLICT (medication_id, intake_date, intake_time)
		DO UPDATE SET taken = excluded.taken
	`,
		medicationID,
		date.String(),
		tod.String(),
		taken,
	)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMedication(row rowScanner) (medications.Medication, error) {
	var (
		m         medications.Medication
		doseTimes string
		kind      string
		weekdays  string
	)
	if err := row.Scan(
		&m.ID,
		&m.OwnerID,
		&m.Name,
		&m.Dosage,
		&doseTimes,
		&m.StartDate,
		&m.EndDate,
		&kind,
		&weekdays,
		&m.CreatedAt,
		&m.UpdatedAt,
	); err != nil {
		return medications.Medication{}, err
	}

	if err := json.Unmarshal([]byte(doseTimes), &m.DoseTimes); err != nil {
		return medications.Medication{}, fmt.Errorf("decoding dose_times for %s: %w", m.ID, err)
	}

	var days []int
	if err := json.Unmarshal([]byte(weekdays), &days); err != nil {
		return medications.Medication{}, fmt.Errorf("decoding weekdays for %s: %w", m.ID, err)
	}
	m.Recurrence.Kind = medications.RecurrenceKind(kind)
	for _, d := range days {
		m.Recurrence.Weekdays = append(m.Recurrence.Weekdays, time.Weekday(d))
	}

	m.Taken = medications.IntakeRecord{}
	return m, nil
}

func (r *MedicationsRepo) loadIntakes(ctx context.Context, byID map[string]*medications.Medication, query string, arg any) error {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			medID, d, t string
			taken       bool
		)
		if err := rows.Scan(&medID, &d, &t, &taken); err != nil {
			return err
		}
		if m, ok := byID[medID]; ok {
			m.Taken[medications.IntakeKey{Date: d, Time: t}] = taken
		}
	}
	return rows.Err()
}
