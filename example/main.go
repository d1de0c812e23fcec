package main

import (
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/Morditux/websession"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	// SESSION_KEY holds 32 hex-encoded bytes; a random key invalidates
	// sessions on every restart.
	key, err := hex.DecodeString(os.Getenv("SESSION_KEY"))
	if err != nil || len(key) == 0 {
		key, err = websession.GenerateKey()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to generate key")
		}
	}
	enc, err := websession.NewAEADEncrypter(key)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create encrypter")
	}
	codec := websession.NewCodec(enc)

	settings := websession.NewSettings(map[string]any{
		"session": map[string]any{
			"store":    "file",
			"files":    "storage/sessions",
			"lifetime": 60,
			"httpOnly": true,
			"sameSite": "LAX",
		},
	})
	if path := os.Getenv("SESSION_CONFIG"); path != "" {
		settings, err = websession.LoadSettings(path)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load settings")
		}
	}

	reg := prometheus.NewRegistry()
	metrics := websession.NewStoreMetrics(reg)
	cfg := websession.Config{
		Settings: settings,
		Registry: metrics.Instrumented(websession.NewDefaultRegistry(codec)),
	}

	// A throwaway manager resolves the store the sweeper will clean.
	mgr, err := websession.NewManager(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create session manager")
	}
	sweeper, err := websession.NewSweeper(mgr.Store(), websession.SweeperConfig{Schedule: "@every 5m"})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create sweeper")
	}
	sweeper.Start()
	defer sweeper.Stop()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		session := websession.SessionFromContext(r.Context())

		count, _ := session.Get("count", 0.0).(float64)
		count++
		session.Set("count", count)

		fmt.Fprintf(w, "Hello! You have visited this page %d times.", int(count))
	})

	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		m, _ := websession.ManagerFromContext(r.Context())
		m.Session().Set("user", map[string]any{"name": "mordicus", "role": "admin"})
		if err := m.Regenerate(r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, "Logged in!")
	})

	mux.HandleFunc("/whoami", func(w http.ResponseWriter, r *http.Request) {
		session := websession.SessionFromContext(r.Context())
		fmt.Fprintf(w, "name=%v role=%v", session.Get("user.name", "guest"), session.Get("user.role", "none"))
	})

	mux.HandleFunc("/logout", func(w http.ResponseWriter, r *http.Request) {
		m, _ := websession.ManagerFromContext(r.Context())
		m.Destroy(r.Context())
		fmt.Fprint(w, "Logged out!")
	})

	root := http.NewServeMux()
	root.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	root.Handle("/", websession.Middleware(cfg)(mux))

	log.Info().Str("addr", ":8080").Msg("server starting")
	if err := http.ListenAndServe(":8080", root); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
