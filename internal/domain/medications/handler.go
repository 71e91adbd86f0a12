package medications

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"med-minder/internal/middleware"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Route("/medications", func(mr chi.Router) {
		mr.Post("/", createMedicationHandler(svc))
		mr.Get("/", listMedicationsHandler(svc))
		mr.Delete("/{medicationID}", deleteMedicationHandler(svc))

		// Marca/desmarca una toma concreta (fecha + hora).
		mr.Post("/{medicationID}/intake", setIntakeHandler(svc))
	})
}

type createMedicationRequest struct {
	Name   string `json:"name"`
	Dosage string `json:"dosage"`

	// scheduled_times es la forma nueva; scheduled_time (singular) se
	// acepta por compatibilidad con clientes viejos.
	ScheduledTimes []string `json:"scheduled_times"`
	ScheduledTime  string   `json:"scheduled_time"`

	StartDate string `json:"start_date"` // YYYY-MM-DD opcional
	EndDate   string `json:"end_date"`   // YYYY-MM-DD opcional

	RepeatDay  string   `json:"repeat_day"`   // legacy
	DaysOfWeek []string `json:"days_of_week"` // autoritativo si vienen ambos
}

type medicationResponse struct {
	ID             string    `json:"id"`
	OwnerID        string    `json:"owner_id"`
	Name           string    `json:"name"`
	Dosage         string    `json:"dosage"`
	ScheduledTimes []string  `json:"scheduled_times"`
	StartDate      string    `json:"start_date,omitempty"`
	EndDate        string    `json:"end_date,omitempty"`
	Recurrence     string    `json:"recurrence"`
	DaysOfWeek     []string  `json:"days_of_week,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type setIntakeRequest struct {
	Date  string `json:"date"` // YYYY-MM-DD
	Time  string `json:"time"` // HH:MM
	Taken bool   `json:"taken"`
}

func createMedicationHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req createMedicationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		times := req.ScheduledTimes
		if len(times) == 0 && strings.TrimSpace(req.ScheduledTime) != "" {
			times = []string{req.ScheduledTime}
		}

		m, err := svc.Create(r.Context(), claims.UserID, CreateInput{
			Name:       req.Name,
			Dosage:     req.Dosage,
			DoseTimes:  times,
			StartDate:  req.StartDate,
			EndDate:    req.EndDate,
			RepeatDay:  req.RepeatDay,
			DaysOfWeek: req.DaysOfWeek,
		})
		if err != nil {
			switch {
			case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrInvalidRecurrence):
				http.Error(w, err.Error(), http.StatusBadRequest)
			default:
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
			return
		}

		writeJSON(w, http.StatusCreated, toMedicationResponse(m))
	}
}

func listMedicationsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		items, err := svc.ListByOwner(r.Context(), claims.UserID)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		out := make([]medicationResponse, 0, len(items))
		for _, m := range items {
			out = append(out, toMedicationResponse(m))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func deleteMedicationHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		id := chi.URLParam(r, "medicationID")
		if err := svc.Delete(r.Context(), claims.UserID, id); err != nil {
			switch {
			case errors.Is(err, ErrForbidden):
				http.Error(w, "forbidden", http.StatusForbidden)
			case errors.Is(err, ErrInvalidInput):
				http.Error(w, err.Error(), http.StatusBadRequest)
			default:
				http.Error(w, "medication not found", http.StatusNotFound)
			}
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func setIntakeHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req setIntakeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		id := chi.URLParam(r, "medicationID")
		err := svc.SetTaken(r.Context(), claims.UserID, id, req.Date, req.Time, req.Taken)
		if err != nil {
			switch {
			case errors.Is(err, ErrForbidden):
				http.Error(w, "forbidden", http.StatusForbidden)
			case errors.Is(err, ErrInvalidInput):
				http.Error(w, err.Error(), http.StatusBadRequest)
			default:
				http.Error(w, "medication not found", http.StatusNotFound)
			}
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func toMedicationResponse(m Medication) medicationResponse {
	resp := medicationResponse{
		ID:             m.ID,
		OwnerID:        m.OwnerID,
		Name:           m.Name,
		Dosage:         m.Dosage,
		ScheduledTimes: m.DoseTimes,
		StartDate:      m.StartDate,
		EndDate:        m.EndDate,
		Recurrence:     string(m.Recurrence.Kind),
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
	if m.Recurrence.Kind == RecurrenceWeekly {
		for _, wd := range m.Recurrence.Weekdays {
			resp.DaysOfWeek = append(resp.DaysOfWeek, wd.String())
		}
	}
	return resp
}

// writeJSON está duplicado intencionalmente en handlers de distintos módulos
// (medications/agenda) para no crear helpers compartidos demasiado pronto.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
