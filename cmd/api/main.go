package main

import (
	"net/http"
	"os"
	"time"

	"med-minder/internal/adapters/auth/supabase"
	"med-minder/internal/platform/logger"
	"med-minder/internal/ports/auth"
	"med-minder/internal/router"
)

func main() {
	log := logger.NewFromEnv()

	addr := ":8080"
	if v := os.Getenv("PORT"); v != "" {
		addr = ":" + v
	}

	verifier := buildVerifier(log)

	r := router.NewRouter(router.Options{
		AuthVerifier: verifier,
		Log:          log,
	})

	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	log.Info("starting server", map[string]any{"addr": addr})
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
}

// Sin SUPABASE_* configurado devuelve nil y el middleware queda en modo dev
// (header X-Debug-User-ID).
func buildVerifier(log logger.Logger) auth.AuthVerifier {
	secret := os.Getenv("SUPABASE_JWT_SECRET")
	url := os.Getenv("SUPABASE_URL")
	anonKey := os.Getenv("SUPABASE_ANON_KEY")

	if secret == "" && url == "" {
		log.Warn("auth sin configurar, modo dev", nil)
		return nil
	}

	client, err := supabase.NewClient(supabase.Config{
		ProjectURL: url,
		AnonKey:    anonKey,
		Timeout:    5 * time.Second,
	})
	if err != nil {
		log.Error("no se pudo crear el cliente supabase", map[string]any{"error": err.Error()})
		os.Exit(1)
	}

	return supabase.NewVerifier(secret, client)
}
