package router

import (
	"database/sql"
	"net/http"
	"os"

	mem "med-minder/internal/adapters/storage/memory"
	pg "med-minder/internal/adapters/storage/postgres"
	sq "med-minder/internal/adapters/storage/sqlite"
	"med-minder/internal/domain/agenda"
	"med-minder/internal/domain/medications"
	"med-minder/internal/middleware"
	"med-minder/internal/platform/logger"
	"med-minder/internal/ports/auth"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

type Options struct {
	AuthVerifier auth.AuthVerifier // puede ser nil (modo dev)

	// Opcional: si viene, usa Postgres. Si no, intenta por env
	// (DB_DSN => Postgres, SQLITE_PATH => sqlite local, sino in-memory).
	DB *sql.DB

	Log logger.Logger // puede ser nil
}

func NewRouter(opts Options) http.Handler {
	log := opts.Log
	if log == nil {
		log = logger.NewFromEnv()
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Use(middleware.AuthContext(opts.AuthVerifier))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	medsRepo := selectRepo(opts, log)

	medsSvc := medications.NewService(medsRepo)

	// Rutas por módulo
	medications.RegisterRoutes(r, medsSvc)
	agenda.RegisterRoutes(r, medsSvc)

	return r
}

// Si no te pasan DB explícita, intenta por env (para dev/handoff).
func selectRepo(opts Options, log logger.Logger) medications.Repository {
	db := opts.DB
	if db == nil {
		if dsn := os.Getenv("DB_DSN"); dsn != "" {
			opened, err := pg.Open(dsn)
			if err != nil {
				log.Warn("postgres no disponible, usando fallback", map[string]any{"error": err.Error()})
			} else {
				db = opened
			}
		}
	}
	if db != nil {
		log.Info("storage seleccionado", map[string]any{"backend": "postgres"})
		return pg.NewMedicationsRepo(db)
	}

	if path := os.Getenv("SQLITE_PATH"); path != "" {
		sdb, err := sq.Open(path)
		if err != nil {
			log.Warn("sqlite no disponible, usando fallback", map[string]any{"error": err.Error(), "path": path})
		} else {
			log.Info("storage seleccionado", map[string]any{"backend": "sqlite", "path": path})
			return sq.NewMedicationsRepo(sdb)
		}
	}

	log.Info("storage seleccionado", map[string]any{"backend": "memory"})
	return mem.NewMedicationRepo()
}
