package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/techcert/internal/catalog"
	"github.com/pavelanni/techcert/internal/exam"
	"github.com/pavelanni/techcert/internal/handler"
	appI18n "github.com/pavelanni/techcert/internal/i18n"
	"github.com/pavelanni/techcert/internal/kv"
	"github.com/pavelanni/techcert/internal/llm"
	"github.com/pavelanni/techcert/internal/model"
	"github.com/pavelanni/techcert/internal/store"
	"github.com/pavelanni/techcert/internal/validator"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP exam server",
		RunE:  runServe,
	}
	addStoreFlags(cmd)
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.StringP("catalog", "c", "", "Exam catalog JSON file (empty = built-in catalog)")
	f.Duration("exam-duration", 60*time.Minute, "Exam time limit (0 = untimed)")
	f.Float64("passing-percent", 70, "Minimum percentage to pass")
	f.String("admin-password", "", "Admin password (or set TECHCERT_ADMIN_PASSWORD)")
	f.String("seed-trainees", "", "JSON file of initial trainees (empty = built-in defaults)")
	f.String("kv-backend", "sqlite", "Client session state backend (sqlite, redis)")
	f.String("redis-url", "redis://localhost:6379/0", "Redis URL for --kv-backend=redis")
	f.Duration("state-ttl", 7*24*time.Hour, "Drop client session state idle for longer than this (0 = keep)")
	f.String("llm-url", "https://api.openai.com/v1", "OpenAI-compatible API base URL")
	f.String("llm-key", "", "API key for the AI review assistant")
	f.String("llm-model", "gpt-4o-mini", "LLM model name")
	f.StringP("lang", "l", "en", "UI language (en, fil)")
	f.String("base-path", "", "URL prefix for sub-path deployments (e.g. /cert)")
	f.Bool("secure-cookies", true, "Set Secure flag on cookies")
	f.StringSlice("allowed-origins", nil, "Origins allowed to open the admin feed (empty = any)")
	f.Duration("save-timeout", 30*time.Second, "Timeout for writing an exam record")
	return cmd
}

// backend is what both the database store and the offline fallback provide.
type backend interface {
	exam.Backend
	handler.Store
}

// openBackend opens the database, falling back to an in-memory trainee list
// when it cannot be opened or its trainee reads fail. The returned
// *store.Store is nil in offline mode.
func openBackend(ctx context.Context, v *viper.Viper) (backend, *store.Store, error) {
	seeds, err := store.LoadSeeds(v.GetString("seed-trainees"))
	if err != nil {
		return nil, nil, fmt.Errorf("load seed trainees: %w", err)
	}

	db, err := store.New(v.GetString("db"), v.GetString("app-id"))
	if err != nil {
		slog.Error("database unavailable, running in offline mode", "db", v.GetString("db"), "error", err)
		off, oerr := store.NewOffline(seeds, store.BannerOffline)
		if oerr != nil {
			return nil, nil, fmt.Errorf("create offline store: %w", oerr)
		}
		return off, nil, nil
	}

	if n, err := db.SeedTrainees(ctx, seeds); err != nil {
		slog.Error("failed to seed trainees", "error", err)
	} else if n > 0 {
		slog.Info("seeded trainees", "count", n)
	}
	fb, err := store.WithTraineeFallback(db, seeds)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return fb, db, nil
}

// openKV picks the client session state backend.
func openKV(ctx context.Context, v *viper.Viper, db *store.Store) (exam.KV, func(), error) {
	switch strings.ToLower(v.GetString("kv-backend")) {
	case "redis":
		prefix := store.CollectionPath(v.GetString("app-id"), "state") + ":"
		r, err := kv.NewRedis(ctx, v.GetString("redis-url"), prefix, v.GetDuration("state-ttl"))
		if err != nil {
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		return r, func() { r.Close() }, nil
	case "", "sqlite":
		if db == nil {
			slog.Warn("no database, client session state kept in memory")
			return kv.NewMemory(), func() {}, nil
		}
		return db, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown kv-backend %q", v.GetString("kv-backend"))
	}
}

// sweepLoop evicts idle client controllers and, with the SQLite backend,
// deletes their stale persisted state. db is nil when nothing is purged.
func sweepLoop(ctx context.Context, registry *exam.Registry, db *store.Store, ttl time.Duration) {
	interval := min(ttl, time.Hour)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := registry.Sweep(ttl); n > 0 {
				slog.Info("evicted idle clients", "count", n)
			}
			if db == nil {
				continue
			}
			n, err := db.PurgeValues(ctx, time.Now().Add(-ttl))
			if err != nil {
				slog.Warn("failed to purge stale client state", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("purged stale client state", "count", n)
			}
		}
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	v := loadConfig(cmd)
	setupLogging(v)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	mods, err := catalog.Load(v.GetString("catalog"))
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	slog.Info("loaded catalog", "modules", len(mods), "questions", catalog.TotalQuestions(mods))

	be, db, err := openBackend(ctx, v)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	sessionKV, closeKV, err := openKV(ctx, v, db)
	if err != nil {
		return err
	}
	defer closeKV()

	var adminHash string
	if pw := v.GetString("admin-password"); pw != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hash admin password: %w", err)
		}
		adminHash = string(hash)
	} else {
		slog.Warn("no admin password set, admin screen disabled")
	}

	val, err := validator.New()
	if err != nil {
		return fmt.Errorf("create validator: %w", err)
	}

	llmClient := llm.New(v.GetString("llm-url"), v.GetString("llm-key"), v.GetString("llm-model"))
	if err := llm.CheckKey(v.GetString("llm-key")); err != nil {
		slog.Warn("AI review assistant disabled", "error", err)
	}
	startChat := func(ctx context.Context, m model.Module) (exam.Chat, error) {
		sess, err := llmClient.StartSession(ctx, m)
		if err != nil {
			return nil, err
		}
		return sess, nil
	}

	cfg := model.Config{
		ExamDuration:   v.GetDuration("exam-duration"),
		PassingPercent: v.GetFloat64("passing-percent"),
		AppID:          v.GetString("app-id"),
		SecureCookies:  v.GetBool("secure-cookies"),
		AdminHash:      adminHash,
	}
	registry := exam.NewRegistry(exam.Deps{
		Backend:     be,
		KV:          sessionKV,
		Modules:     mods,
		Config:      cfg,
		StartChat:   startChat,
		Validate:    val.Trainee,
		SaveTimeout: v.GetDuration("save-timeout"),
	})
	defer registry.Close()

	if ttl := v.GetDuration("state-ttl"); ttl > 0 {
		purgeDB := db
		if strings.EqualFold(v.GetString("kv-backend"), "redis") {
			purgeDB = nil
		}
		go sweepLoop(ctx, registry, purgeDB, ttl)
	}

	// Normalize base path.
	basePath := strings.TrimRight(v.GetString("base-path"), "/")
	if basePath != "" && !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}

	h := handler.New(registry, be, mods, val, llmClient.StudyGuideOrFallback, handler.Config{
		BasePath:       basePath,
		SecureCookies:  cfg.SecureCookies,
		PassingPercent: cfg.PassingPercent,
		AllowedOrigins: v.GetStringSlice("allowed-origins"),
	})

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(lang))

	if basePath != "" {
		r.Route(basePath, h.Routes)
		r.Get(basePath, func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, basePath+"/", http.StatusMovedPermanently)
		})
	} else {
		h.Routes(r)
	}

	addr := v.GetString("addr")
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server",
			"addr", addr,
			"lang", lang,
			"exam_duration", cfg.ExamDuration,
			"passing_percent", cfg.PassingPercent,
			"kv_backend", v.GetString("kv-backend"),
			"offline", db == nil,
			"base_path", basePath,
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
