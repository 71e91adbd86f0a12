package postgres

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

// Esquema esperado (dates y times como TEXT "YYYY-MM-DD"/"HH:MM": el engine
// compara días de calendario, no instantes; guardar DATE/TIMESTAMP acá mete
// conversiones de zona que no queremos):
//
//	CREATE TABLE medications (
//		id              TEXT PRIMARY KEY,
//		owner_id        TEXT NOT NULL,
//		name            TEXT NOT NULL,
//		dosage          TEXT NOT NULL,
//		dose_times      TEXT NOT NULL,  -- JSON array de "HH:MM"
//		start_date      TEXT NOT NULL DEFAULT '',
//		end_date        TEXT NOT NULL DEFAULT '',
//		recurrence_kind TEXT NOT NULL,
//		weekdays        TEXT NOT NULL DEFAULT '[]',  -- JSON array de int (0=Sunday)
//		created_at      TIMESTAMPTZ NOT NULL,
//		updated_at      TIMESTAMPTZ NOT NULL
//	);
//
//	CREATE TABLE medication_intakes (
//		medication_id TEXT NOT NULL REFERENCES medications(id) ON DELETE CASCADE,
//		intake_date   TEXT NOT NULL,  -- "YYYY-MM-DD"
//		intake_time   TEXT NOT NULL,  -- "HH:MM"
//		taken         BOOLEAN NOT NULL DEFAULT FALSE,
//		PRIMARY KEY (medication_id, intake_date, intake_time)
//	);
type MedicationsRepo struct {
	db *sql.DB
}

func NewMedicationsRepo(db *sql.DB) *MedicationsRepo {
	return &MedicationsRepo{db: db}
}

func (r *MedicationsRepo) Create(ctx context.Context, m medications.Medication) error {
	doseTimes, weekdays, err := encodeSchedule(m)
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
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`,
		m.ID,
		m.OwnerID,
		m.Name,
		m.Dosage,
		doseTimes,
		m.StartDate,
		m.EndDate,
		string(m.Recurrence.Kind),
		weekdays,
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
		WHERE id = $1
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
		 FROM medication_intakes WHERE medication_id = $1`, id); err != nil {
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
		WHERE owner_id = $1
		ORDER BY created_at ASC
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]medications.Medication, 0)
	byID := make(map[string]*medications.Medication)
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
	for i := range out {
		byID[out[i].ID] = &out[i]
	}

	if err := r.loadIntakes(ctx, byID,
		`SELECT i.medication_id, i.intake_date, i.intake_time, i.taken
		 FROM medication_intakes i
		 JOIN medications m ON m.id = i.medication_id
		 WHERE m.owner_id = $1`, ownerID); err != nil {
		return nil, err
	}

	return out, nil
}

func (r *MedicationsRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM medications WHERE id = $1`, id)
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
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO medication_intakes (medication_id, intake_date, intake_time, taken)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (medication_id, intake_date, intake_time)
		DO UPDATE SET taken = EXCLUDED.taken
	`,
		medicationID,
		date.String(),
		tod.String(),
		taken,
	)
	if err != nil {
		// FK violation cuando el medicamento no existe
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
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

func encodeSchedule(m medications.Medication) (doseTimes, weekdays string, err error) {
	dt, err := json.Marshal(m.DoseTimes)
	if err != nil {
		return "", "", err
	}

	days := make([]int, 0, len(m.Recurrence.Weekdays))
	for _, d := range m.Recurrence.Weekdays {
		days = append(days, int(d))
	}
	wd, err := json.Marshal(days)
	if err != nil {
		return "", "", err
	}

	return string(dt), string(wd), nil
}
