package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/bugradavut/dev-vizionmenu-sub013/pkg/authn"
	"github.com/bugradavut/dev-vizionmenu-sub013/pkg/breaker"
	"github.com/bugradavut/dev-vizionmenu-sub013/pkg/db"
	"github.com/bugradavut/dev-vizionmenu-sub013/pkg/domain"
	"github.com/bugradavut/dev-vizionmenu-sub013/pkg/httpx"
	"github.com/bugradavut/dev-vizionmenu-sub013/pkg/outcome"
	"github.com/bugradavut/dev-vizionmenu-sub013/pkg/profile"
	"github.com/bugradavut/dev-vizionmenu-sub013/pkg/webhooks"
	"github.com/bugradavut/dev-vizionmenu-sub013/services/delivery/internal/config"
	"github.com/bugradavut/dev-vizionmenu-sub013/services/delivery/internal/ingest"
	"github.com/bugradavut/dev-vizionmenu-sub013/services/delivery/internal/metrics"
	"github.com/bugradavut/dev-vizionmenu-sub013/services/delivery/internal/queue"
	"github.com/bugradavut/dev-vizionmenu-sub013/services/delivery/internal/receipts"
	"github.com/bugradavut/dev-vizionmenu-sub013/services/delivery/internal/store"
	"github.com/bugradavut/dev-vizionmenu-sub013/services/delivery/internal/transmit"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/delivery.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Error("configuration invalid", "error", err.Error())
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.DatabaseURL, cfg.MaxDBConns)
	if err != nil {
		log.Error("database connect failed", "error", err.Error())
		os.Exit(1)
	}
	defer pool.Close()

	queueStore := store.NewQueueStore(pool)
	profileStore := store.NewProfileStore(pool)

	var breakerStore breaker.Store = store.NewBreakerStore(pool)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Error("redis url invalid", "error", err.Error())
			os.Exit(1)
		}
		breakerStore = store.NewRedisBreakerStore(redis.NewClient(opts), 24*time.Hour)
		log.Info("breaker state backed by redis")
	}
	brk := breaker.New(breakerStore, breaker.Config{
		FailureThreshold: cfg.FailureThreshold,
		Cooldown:         cfg.BreakerCooldown,
	})

	var encryptionKey []byte
	if cfg.EncryptionKeyHex != "" {
		encryptionKey, err = hex.DecodeString(cfg.EncryptionKeyHex)
		if err != nil {
			log.Error("credential encryption key is not hex", "error", err.Error())
			os.Exit(1)
		}
	}
	resolver, err := profile.NewResolver(profileStore, encryptionKey, cfg.Environment, fallbackProfiles(cfg.Environment))
	if err != nil {
		log.Error("profile resolver init failed", "error", err.Error())
		os.Exit(1)
	}

	recorder := receipts.NewRecorder(cfg.VerificationBaseURL, log)
	driver := queue.NewDriver(queueStore, resolver, brk,
		transmit.NewClient(cfg.RegulatorURL, cfg.RequestTimeout), recorder,
		queue.DriverConfig{
			Workers:      cfg.Workers,
			PollInterval: cfg.PollInterval,
			Lease:        cfg.ClaimLease,
			MaxRetries:   cfg.MaxRetries,
			Backoff:      outcome.BackoffConfig{Base: cfg.BackoffBase, Max: cfg.BackoffMax},
			Environment:  cfg.Environment,
		})

	metrics.Register()
	go driver.Run(ctx)

	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaTopic != "" {
		consumer, err := ingest.NewConsumer(cfg.KafkaBrokers, cfg.KafkaGroupID, cfg.KafkaTopic, queueStore, log)
		if err != nil {
			log.Error("kafka consumer init failed", "error", err.Error())
			os.Exit(1)
		}
		defer consumer.Close()
		go func() {
			if err := consumer.Run(ctx); err != nil {
				log.Error("kafka consumer stopped", "error", err.Error())
			}
		}()
	}

	if cfg.JWTSecret == "" {
		log.Warn("JWT_SECRET not set, operator endpoints are unauthenticated")
	}

	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/srm", func(api chi.Router) {
		posVerifier := webhooks.NewVerifier()
		api.Post("/transactions", func(w http.ResponseWriter, r *http.Request) {
			raw, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
			if err != nil {
				httpx.WriteError(w, 400, "BAD_BODY", err.Error())
				return
			}
			if cfg.POSWebhookSecret != "" {
				res, err := posVerifier.Verify(r.Header, raw, time.Now(), cfg.POSWebhookSecret)
				if err != nil || !res.Valid {
					httpx.WriteError(w, 401, "BAD_SIGNATURE", "request signature rejected")
					return
				}
			}
			var req struct {
				Scope          domain.DeviceScope `json:"scope"`
				Path           string             `json:"path"`
				Payload        json.RawMessage    `json:"payload"`
				IdempotencyKey string             `json:"idempotency_key"`
			}
			if err := json.Unmarshal(raw, &req); err != nil {
				httpx.WriteError(w, 400, "BAD_JSON", err.Error())
				return
			}
			if req.Scope.TenantID == "" || req.Scope.BranchID == "" || req.Scope.DeviceID == "" {
				httpx.WriteError(w, 400, "BAD_SCOPE", "tenant_id, branch_id and device_id are required")
				return
			}
			if key := r.Header.Get("Idempotency-Key"); key != "" {
				req.IdempotencyKey = key
			}
			entry, err := queueStore.Enqueue(r.Context(), domain.QueueEntry{
				Scope:          req.Scope,
				Path:           req.Path,
				Payload:        req.Payload,
				IdempotencyKey: req.IdempotencyKey,
			})
			if err != nil {
				httpx.WriteError(w, 500, "DB_ERROR", err.Error())
				return
			}
			httpx.WriteJSON(w, 202, map[string]any{
				"request_id": httpx.NewRequestID(),
				"entry":      entry,
			})
		})

		api.Get("/transactions/{entry_id}", func(w http.ResponseWriter, r *http.Request) {
			entry, err := queueStore.Get(r.Context(), chi.URLParam(r, "entry_id"))
			if err != nil {
				if errors.Is(err, queue.ErrNotFound) {
					httpx.WriteError(w, 404, "NOT_FOUND", "no such entry")
					return
				}
				httpx.WriteError(w, 500, "DB_ERROR", err.Error())
				return
			}
			httpx.WriteJSON(w, 200, map[string]any{
				"request_id": httpx.NewRequestID(),
				"entry":      entry,
			})
		})

		api.Get("/dead-letters", requireOperator(cfg.JWTSecret, "queue.read", func(w http.ResponseWriter, r *http.Request) {
			limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
			entries, err := queueStore.ListDeadLetters(r.Context(), limit)
			if err != nil {
				httpx.WriteError(w, 500, "DB_ERROR", err.Error())
				return
			}
			httpx.WriteJSON(w, 200, map[string]any{
				"request_id": httpx.NewRequestID(),
				"entries":    entries,
			})
		}))

		api.Post("/dead-letters/{entry_id}/requeue", requireOperator(cfg.JWTSecret, "queue.requeue", func(w http.ResponseWriter, r *http.Request) {
			id := chi.URLParam(r, "entry_id")
			err := queueStore.Requeue(r.Context(), id, time.Now().UTC())
			switch {
			case errors.Is(err, queue.ErrNotFound):
				httpx.WriteError(w, 404, "NOT_FOUND", "no such entry")
			case errors.Is(err, queue.ErrNotRequeueable):
				httpx.WriteError(w, 409, "NOT_REQUEUEABLE", "entry is not dead-lettered")
			case err != nil:
				httpx.WriteError(w, 500, "DB_ERROR", err.Error())
			default:
				httpx.WriteJSON(w, 200, map[string]any{
					"request_id": httpx.NewRequestID(),
					"requeued":   true,
					"entry_id":   id,
				})
			}
		}))

		api.Get("/breaker/{scope}", requireOperator(cfg.JWTSecret, "breaker.read", func(w http.ResponseWriter, r *http.Request) {
			st, err := brk.State(r.Context(), chi.URLParam(r, "scope"))
			if err != nil {
				httpx.WriteError(w, 500, "STORE_ERROR", err.Error())
				return
			}
			httpx.WriteJSON(w, 200, map[string]any{
				"request_id": httpx.NewRequestID(),
				"state":      st,
			})
		}))

		api.Post("/breaker/{scope}/reset", requireOperator(cfg.JWTSecret, "breaker.reset", func(w http.ResponseWriter, r *http.Request) {
			scope := chi.URLParam(r, "scope")
			if err := brk.Reset(r.Context(), scope); err != nil {
				httpx.WriteError(w, 500, "STORE_ERROR", err.Error())
				return
			}
			httpx.WriteJSON(w, 200, map[string]any{
				"request_id": httpx.NewRequestID(),
				"reset":      true,
				"scope":      scope,
			})
		}))
	})

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.HTTPPort),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("delivery service listening", "port", cfg.HTTPPort, "environment", string(cfg.Environment))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("http server failed", "error", err.Error())
		os.Exit(1)
	}
}

// requireOperator gates an operator endpoint behind a bearer token carrying
// the given scope. An empty secret disables the check for local development.
func requireOperator(secret, scope string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if secret == "" {
			next(w, r)
			return
		}
		id, err := authn.AuthenticateOperatorBearer([]byte(secret), r.Header.Get("Authorization"))
		if err != nil {
			httpx.WriteError(w, 401, "UNAUTHORIZED", "missing or invalid bearer token")
			return
		}
		if !authn.HasScope(id.Scopes, scope) {
			httpx.WriteError(w, 403, "FORBIDDEN", "token lacks scope "+scope)
			return
		}
		next(w, r)
	}
}

// fallbackProfiles wires built-in development credentials when they are
// provided through the environment. Production runs carry none.
func fallbackProfiles(env domain.Environment) map[domain.Environment]domain.DeviceProfile {
	keyPEM := os.Getenv("SRM_FALLBACK_KEY_PEM")
	certPEM := os.Getenv("SRM_FALLBACK_CERT_PEM")
	if keyPEM == "" || certPEM == "" || env == domain.EnvProd {
		return nil
	}
	return map[domain.Environment]domain.DeviceProfile{
		env: profile.Builtin(env, keyPEM, certPEM),
	}
}
