package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"auditflow/internal/activity"
	"auditflow/internal/activity/relay"
	"auditflow/internal/audits"
	"auditflow/internal/directory"
	jwttoken "auditflow/internal/jwt_token"
	"auditflow/internal/meeting"
	"auditflow/internal/messaging"
	"auditflow/internal/notify"
	"auditflow/internal/plan"
	"auditflow/internal/platform/config"
	"auditflow/internal/platform/httpserver"
	"auditflow/internal/platform/logger"
	"auditflow/internal/platform/metrics"
	"auditflow/internal/platform/postgres"
	platformredis "auditflow/internal/platform/redis"
	"auditflow/internal/team"
	httptransport "auditflow/internal/transport/http"
	"auditflow/pkg/platform/tx"
)

// main wires dependencies and owns the process lifecycle. Postgres, Redis,
// and Kafka are all optional: an unset URL falls back to in-memory stores,
// no live push, and no activity relay, which is the local development shape.
func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()
	log := logger.New()
	slog.SetDefault(log)

	db, err := postgres.Open(cfg.DatabaseURL)
	if err != nil {
		log.Error("postgres setup failed", "error", err)
		os.Exit(1)
	}
	if db != nil {
		defer db.Close()
	}

	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		log.Error("redis setup failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	m := metrics.New()
	deps := buildDependencies(db, redisClient, cfg, log, m)

	tokens := jwttoken.NewJWTService(cfg.JWTSigningKey, "auditflow", "auditflow-api")
	handler := httptransport.NewHandler(deps.teams, deps.meetings, deps.plans, deps.audits, tokens, log)
	srv := httpserver.New(cfg.Addr, httptransport.NewRouter(handler))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if db != nil && cfg.KafkaBrokers != "" {
		activityRelay, err := relay.New(db, strings.Split(cfg.KafkaBrokers, ","), cfg.ActivityTopic, log)
		if err != nil {
			log.Error("activity relay setup failed", "error", err)
			os.Exit(1)
		}
		defer activityRelay.Close()
		go func() {
			if err := activityRelay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("activity relay stopped", "error", err)
			}
		}()
	}

	go func() {
		log.Info("starting auditflow", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}

type dependencies struct {
	teams    *team.Service
	meetings *meeting.Service
	plans    *plan.Service
	audits   *audits.Service
}

// buildDependencies assembles the store layer (postgres or in-memory) and
// the domain services on top of it.
func buildDependencies(db *sql.DB, redisClient *platformredis.Client, cfg config.Config, log *slog.Logger, m *metrics.Metrics) dependencies {
	var (
		runner        tx.Runner
		activityStore activity.Store
		auditStore    audits.Store
		teamStore     team.Store
		meetingStore  meeting.Store
		planStore     plan.Store
		notifyStore   notify.Store
		messenger     messaging.Messenger
		dir           directory.Directory
	)
	if db != nil {
		runner = tx.NewSQLRunner(db).WithTimeout(cfg.TxTimeout)
		activityStore = activity.NewPostgresStore(db)
		auditStore = audits.NewPostgresStore(db)
		teamStore = team.NewPostgresStore(db)
		meetingStore = meeting.NewPostgresStore(db)
		planStore = plan.NewPostgresStore(db)
		notifyStore = notify.NewPostgresStore(db)
		messenger = messaging.NewPostgresStore(db)
		dir = directory.NewPostgresDirectory(db)
	} else {
		runner = tx.NewMemoryRunner()
		activityStore = activity.NewMemoryStore()
		auditStore = audits.NewMemoryStore()
		teamStore = team.NewMemoryStore()
		meetingStore = meeting.NewMemoryStore()
		planStore = plan.NewMemoryStore()
		notifyStore = notify.NewMemoryStore()
		messenger = messaging.NewMemoryStore()
		dir = directory.NewMemoryDirectory()
	}

	notifyOpts := []notify.Option{notify.WithLogger(log)}
	if redisClient != nil {
		notifyOpts = append(notifyOpts, notify.WithLivePublisher(notify.NewRedisLivePublisher(redisClient)))
	}
	dispatcher := notify.NewService(notifyStore, dir, notifyOpts...)
	recorder := activity.NewRecorder(activityStore)

	return dependencies{
		teams: team.NewService(teamStore, auditStore, dispatcher, messenger, recorder, runner,
			team.WithLogger(log), team.WithMetrics(m)),
		meetings: meeting.NewService(meetingStore, teamStore, auditStore, dir, dispatcher, messenger, recorder, runner,
			meeting.WithLogger(log), meeting.WithMetrics(m)),
		plans: plan.NewService(planStore, auditStore, teamStore, dispatcher, recorder, runner,
			plan.WithLogger(log), plan.WithMetrics(m)),
		audits: audits.NewService(auditStore, dispatcher, recorder, runner,
			audits.WithLogger(log), audits.WithMetrics(m),
			audits.WithDedupWindow(cfg.GeneralNotificationWindow)),
	}
}
