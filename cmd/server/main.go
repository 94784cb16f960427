package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"famledger/internal/audit"
	audithandler "famledger/internal/audit/handler"
	"famledger/internal/audit/stream"
	"famledger/internal/danger"
	dangerhandler "famledger/internal/danger/handler"
	httpapi "famledger/internal/http"
	"famledger/internal/jwttoken"
	"famledger/internal/membership"
	"famledger/internal/permission"
	permissionhandler "famledger/internal/permission/handler"
	"famledger/internal/platform/config"
	"famledger/internal/platform/database"
	"famledger/internal/platform/httpserver"
	"famledger/internal/platform/logger"
	"famledger/internal/platform/metrics"
	platformredis "famledger/internal/platform/redis"
	id "famledger/pkg/domain"
)

// main wires dependencies and owns the process lifecycle. Business logic
// lives in the internal services.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	m := metrics.New()

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
		if err := database.Migrate(context.Background(), db); err != nil {
			return err
		}
	}

	members, grants, auditStore, requests := buildStores(db)
	if err := grants.Seed(context.Background(), permission.DefaultGrants); err != nil {
		return err
	}

	var grantStore permission.GrantStore = grants
	if cfg.Redis.URL != "" {
		redisClient, err := platformredis.New(cfg.Redis)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		grantStore = permission.NewCachedGrants(grants, redisClient, log)
		log.Info("permission grant cache enabled")
	}

	matrix, err := permission.New(members, grantStore,
		permission.WithLogger(log), permission.WithMetrics(m))
	if err != nil {
		return err
	}

	trailOpts := []audit.Option{audit.WithLogger(log), audit.WithMetrics(m)}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher, err := stream.New(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		if err != nil {
			return err
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := publisher.Close(ctx); err != nil {
				log.Error("audit stream close failed", "error", err)
			}
		}()
		trailOpts = append(trailOpts, audit.WithPublisher(publisher))
		log.Info("audit stream enabled", "topic", cfg.Kafka.Topic)
	}
	trail, err := audit.NewTrail(auditStore, trailOpts...)
	if err != nil {
		return err
	}

	quorum, err := danger.NewQuorumResolver(members)
	if err != nil {
		return err
	}
	registry := danger.NewRegistry()
	if err := registerExecutors(registry, log); err != nil {
		return err
	}
	fanout := danger.NewFanout(log, danger.NewLogNotifier(log))

	workflow, err := danger.NewWorkflow(requests, matrix, quorum, registry, trail,
		danger.WithLogger(log),
		danger.WithMetrics(m),
		danger.WithNotifications(fanout),
		danger.WithCoolingPeriod(cfg.CoolingPeriod),
	)
	if err != nil {
		return err
	}

	tokens := jwttoken.NewService(cfg.JWTSigningKey, "famledger", "famledger")
	if db == nil {
		seedDevFamily(log, members, tokens)
	}

	router := httpapi.NewRouter(httpapi.Dependencies{
		Logger:      log,
		Resolver:    tokens,
		Danger:      dangerhandler.New(workflow, log),
		Audit:       audithandler.New(trail, matrix, log),
		Permissions: permissionhandler.New(matrix, log),
	})

	srv := httpserver.New(cfg.Addr, router)
	errCh := make(chan error, 1)
	go func() {
		log.Info("famledger governance service listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		log.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

func buildStores(db *sql.DB) (membership.Store, permission.GrantSeeder, audit.Store, danger.Store) {
	if db != nil {
		return membership.NewPostgres(db),
			permission.NewPostgres(db),
			audit.NewPostgres(db),
			danger.NewPostgresStore(db)
	}
	return membership.NewInMemory(),
		permission.NewInMemory(),
		audit.NewInMemory(),
		danger.NewInMemoryStore()
}

// registerExecutors binds every governed action kind. The executors log the
// approved mutation for the owning services to apply; swapping these for
// real clients is a wiring change, not a workflow change.
func registerExecutors(registry *danger.Registry, log *slog.Logger) error {
	for _, kind := range danger.Kinds() {
		exec := danger.ExecutorFunc(func(ctx context.Context, familyID id.FamilyID, payload json.RawMessage) error {
			decoded, err := danger.DecodePayload(kind, payload)
			if err != nil {
				return err
			}
			log.InfoContext(ctx, "executing approved danger action",
				"kind", kind, "family_id", familyID, "payload", decoded)
			return nil
		})
		if err := registry.Register(kind, exec); err != nil {
			return err
		}
	}
	return nil
}

// seedDevFamily provisions a small family in the in-memory stores and prints
// ready-to-use bearer tokens. Only runs without a database.
func seedDevFamily(log *slog.Logger, members membership.Store, tokens *jwttoken.Service) {
	writer, ok := members.(membership.Writer)
	if !ok {
		return
	}

	familyID := id.NewFamilyID()
	roles := []membership.Role{
		membership.RolePresident,
		membership.RoleTreasurer,
		membership.RoleMember,
	}
	for _, role := range roles {
		userID := id.NewUserID()
		if err := writer.Upsert(context.Background(), membership.Membership{
			UserID:   userID,
			FamilyID: familyID,
			Role:     role,
			Status:   membership.StatusActive,
			JoinedAt: time.Now().UTC(),
		}); err != nil {
			log.Error("dev seed failed", "error", err)
			return
		}

		token, err := tokens.GenerateActorToken(uuid.UUID(userID), 24*time.Hour)
		if err != nil {
			log.Error("dev token generation failed", "error", err)
			return
		}
		log.Info("dev member seeded",
			"family_id", familyID, "user_id", userID, "role", role, "token", token)
	}
}
