package agenda

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"med-minder/internal/domain/medications"
	"med-minder/internal/middleware"
	"med-minder/internal/platform/calendar"
)

func RegisterRoutes(r chi.Router, medsSvc *medications.Service) {
	r.Get("/agenda", getAgendaHandler(medsSvc))
}

type agendaResponse struct {
	Date    string                `json:"date"`
	Items   []agendaItemResponse  `json:"items"`
	Skipped []agendaIssueResponse `json:"skipped,omitempty"`
}

type agendaItemResponse struct {
	MedicationID string `json:"medication_id"`
	Name         string `json:"name"`
	Dosage       string `json:"dosage"`
	Time         string `json:"time"`     // "HH:MM"
	Time12h      string `json:"time_12h"` // "8:00 AM", para UI
	Taken        bool   `json:"taken"`
}

type agendaIssueResponse struct {
	MedicationID string `json:"medication_id"`
	Name         string `json:"name"`
	Error        string `json:"error"`
}

// getAgendaHandler responde la agenda de una fecha para el owner autenticado.
//   - ?date=YYYY-MM-DD  (default: hoy)
//   - ?tz=IANA name     (zona para resolver "hoy"; default: zona del server)
//
// Si el fetch al store falla, se responde error: estado vacío antes que data
// parcial/vieja.
func getAgendaHandler(medsSvc *medications.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var date calendar.Date
		if raw := strings.TrimSpace(r.URL.Query().Get("date")); raw != "" {
			d, err := calendar.ParseDate(raw)
			if err != nil {
				http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
				return
			}
			date = d
		} else {
			loc := time.Local
			if tz := strings.TrimSpace(r.URL.Query().Get("tz")); tz != "" {
				l, err := time.LoadLocation(tz)
				if err != nil {
					http.Error(w, "invalid tz", http.StatusBadRequest)
					return
				}
				loc = l
			}
			// Única lectura de "hoy" para todo el build.
			date = calendar.Today(loc)
		}

		meds, err := medsSvc.ListByOwner(r.Context(), claims.UserID)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		a := Build(meds, date)

		resp := agendaResponse{
			Date:  a.Date.String(),
			Items: make([]agendaItemResponse, 0, len(a.Items)),
		}
		for _, it := range a.Items {
			resp.Items = append(resp.Items, agendaItemResponse{
				MedicationID: it.MedicationID,
				Name:         it.Name,
				Dosage:       it.Dosage,
				Time:         it.Time.String(),
				Time12h:      it.Time.Format12Hour(),
				Taken:        it.Taken,
			})
		}
		for _, is := range a.Issues {
			resp.Skipped = append(resp.Skipped, agendaIssueResponse{
				MedicationID: is.MedicationID,
				Name:         is.Name,
				Error:        is.Err.Error(),
			})
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

// writeJSON está duplicado intencionalmente en handlers de distintos módulos
// (medications/agenda) para no crear helpers compartidos demasiado pronto.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
