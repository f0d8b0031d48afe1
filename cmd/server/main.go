package main

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/weeklytasks/api/chat"
	apiHandler "github.com/fastygo/weeklytasks/api/handler"
	"github.com/fastygo/weeklytasks/internal/config"
	"github.com/fastygo/weeklytasks/internal/infrastructure/boltdb"
	"github.com/fastygo/weeklytasks/internal/infrastructure/monitor"
	pgInfra "github.com/fastygo/weeklytasks/internal/infrastructure/postgres"
	redisInfra "github.com/fastygo/weeklytasks/internal/infrastructure/redis"
	"github.com/fastygo/weeklytasks/internal/metrics"
	"github.com/fastygo/weeklytasks/internal/middleware"
	"github.com/fastygo/weeklytasks/internal/router"
	"github.com/fastygo/weeklytasks/internal/scheduler"
	"github.com/fastygo/weeklytasks/internal/services/lifecycle"
	"github.com/fastygo/weeklytasks/pkg/httpcontext"
	"github.com/fastygo/weeklytasks/pkg/logger"
	"github.com/fastygo/weeklytasks/pkg/weekclock"
	"github.com/fastygo/weeklytasks/repository"
	boltRepo "github.com/fastygo/weeklytasks/repository/bolt"
	"github.com/fastygo/weeklytasks/repository/postgres"
	redisRepo "github.com/fastygo/weeklytasks/repository/redis"
	"github.com/fastygo/weeklytasks/usecase"
	registrationUC "github.com/fastygo/weeklytasks/usecase/registration"
	statsUC "github.com/fastygo/weeklytasks/usecase/stats"
	taskUC "github.com/fastygo/weeklytasks/usecase/task"
)

// stores groups the repositories of whichever durable driver is configured.
type stores struct {
	tasks       repository.TaskRepository
	stats       repository.StatsRepository
	users       repository.UserRepository
	chats       repository.ChatRepository
	memberships repository.MembershipRepository
	ping        monitor.PingFunc
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:      cfg.Logger.Level,
		Encoding:   cfg.Logger.Encoding,
		File:       cfg.Logger.File,
		MaxSizeMB:  cfg.Logger.MaxSizeMB,
		MaxBackups: cfg.Logger.MaxBackups,
		MaxAgeDays: cfg.Logger.MaxAgeDays,
	})
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer zapLogger.Sync()

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manager := lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger)
	manager.Listen(cancel)

	store, err := openStores(appCtx, cfg, manager, zapLogger)
	if err != nil {
		zapLogger.Fatal("storage initialisation failed", zap.String("driver", cfg.Storage.Driver), zap.Error(err))
	}

	redisClient, err := redisInfra.NewClient(appCtx, cfg.Redis)
	switch {
	case errors.Is(err, redisInfra.ErrDisabled):
		zapLogger.Warn("redis disabled: conversations fall back to one-shot commands and triggers are not locked across replicas")
	case err != nil:
		zapLogger.Fatal("redis connection failed", zap.Error(err))
	default:
		manager.Register("redis", func(ctx context.Context) error {
			return redisClient.Close()
		})
	}

	var (
		locker   *redisInfra.Locker
		sessions repository.ConversationRepository
	)
	if redisClient != nil {
		locker = redisInfra.NewLocker(redisClient, cfg.Schedule.LockTTL)
		sessions = redisRepo.NewConversationRepository(redisClient, cfg.Conversation.TTL)
	}

	clock := weekclock.New(cfg.Week.ZoneOffset)
	retrier := usecase.NewRetrier(cfg.Storage.RetryCount, 100*time.Millisecond, zapLogger)

	taskUseCase := taskUC.New(store.tasks, store.memberships, clock, retrier, taskUC.Config{
		MaxPerWeek:     cfg.Limits.MaxTasksPerWeek,
		MinPerWeek:     cfg.Limits.MinTasksPerWeek,
		DescriptionMax: cfg.Limits.DescriptionMax,
		PageSize:       cfg.Limits.PageSize,
	}, zapLogger)
	statsUseCase := statsUC.New(store.tasks, store.stats, clock, retrier, cfg.Limits.HistoryLimit, zapLogger)
	registrationUseCase := registrationUC.New(store.users, store.chats, store.memberships, retrier, zapLogger)

	sched, err := scheduler.New(statsUseCase, clock, locker, scheduler.Config{
		StatsSpec:       cfg.Schedule.StatsSpec,
		ResetSpec:       cfg.Schedule.ResetSpec,
		MaxRetries:      cfg.Schedule.MaxRetries,
		RetryInterval:   cfg.Schedule.RetryInterval,
		FinalizeOnReset: cfg.Schedule.FinalizeOnReset,
	}, zapLogger)
	if err != nil {
		zapLogger.Fatal("invalid schedule", zap.Error(err))
	}
	if cfg.Schedule.Enabled {
		manager.Add(lifecycle.Component{
			Name: "scheduler",
			Start: func(ctx context.Context) error {
				sched.Start()
				return nil
			},
			Stop: func(ctx context.Context) error {
				sched.Stop(ctx)
				return nil
			},
		})
	}

	mon := monitor.New(cfg.Storage.Driver, store.ping, redisClient, 10*time.Second, zapLogger)
	manager.Add(lifecycle.Component{
		Name: "monitor",
		Start: func(ctx context.Context) error {
			mon.Start()
			return nil
		},
		Stop: func(ctx context.Context) error {
			mon.Stop()
			return nil
		},
	})

	ctxAdapter := httpcontext.NewAdapter(cfg.Context.RequestTimeout)
	bot := chat.NewBot(registrationUseCase, taskUseCase, statsUseCase, sessions, zapLogger)

	handlers := router.Handlers{
		Task:         apiHandler.NewTaskHandler(taskUseCase, ctxAdapter, zapLogger),
		Stats:        apiHandler.NewStatsHandler(statsUseCase, taskUseCase, ctxAdapter, zapLogger),
		Registration: apiHandler.NewRegistrationHandler(registrationUseCase, ctxAdapter, zapLogger),
		Chat:         apiHandler.NewChatHandler(bot, ctxAdapter, zapLogger),
		Admin:        apiHandler.NewAdminHandler(sched, ctxAdapter, zapLogger),
		Health:       apiHandler.NewHealthHandler(mon, clock, ctxAdapter, zapLogger),
	}
	if cfg.HTTP.EnableMetrics {
		handlers.Metrics = metrics.Handler()
	}

	authMiddleware := middleware.JWTAuth(cfg.JWT.Secret, cfg.JWT.Issuer, zapLogger)
	serviceMiddleware := middleware.RequireUsers(cfg.JWT.ServiceUserIDs, zapLogger)
	r := router.New(handlers, authMiddleware, serviceMiddleware)

	server := &fasthttp.Server{
		Handler:            r.Handler,
		ReadTimeout:        cfg.HTTP.ReadTimeout,
		WriteTimeout:       cfg.HTTP.WriteTimeout,
		IdleTimeout:        cfg.HTTP.IdleTimeout,
		MaxConnsPerIP:      cfg.HTTP.MaxConn,
		Name:               cfg.AppName,
		MaxRequestBodySize: 64 * 1024,
	}

	manager.Add(lifecycle.Component{
		Name: "http_server",
		Start: func(ctx context.Context) error {
			go func() {
				zapLogger.Info("server started",
					zap.String("address", cfg.Address()),
					zap.String("week_zone", clock.Location().String()),
					zap.Stringer("week", clock.Current()),
				)
				if err := server.ListenAndServe(cfg.Address()); err != nil {
					zapLogger.Error("server stopped", zap.Error(err))
					cancel()
				}
			}()
			return nil
		},
		Stop: func(ctx context.Context) error {
			return server.ShutdownWithContext(ctx)
		},
	})

	if err := manager.Start(appCtx); err != nil {
		zapLogger.Fatal("startup failed", zap.Error(err))
	}

	<-appCtx.Done()

	if err := manager.Shutdown(context.Background()); err != nil {
		zapLogger.Error("graceful shutdown error", zap.Error(err))
	}
}

// openStores connects the configured driver and registers its close hook.
func openStores(ctx context.Context, cfg *config.Config, manager *lifecycle.Manager, zapLogger *zap.Logger) (*stores, error) {
	switch cfg.Storage.Driver {
	case config.DriverBolt:
		db, err := boltdb.Open(cfg.Storage.BoltPath)
		if err != nil {
			return nil, err
		}
		manager.Register("boltdb", func(ctx context.Context) error {
			return db.Close()
		})
		zapLogger.Info("using embedded store", zap.String("path", cfg.Storage.BoltPath))
		return &stores{
			tasks:       boltRepo.NewTaskRepository(db),
			stats:       boltRepo.NewStatsRepository(db),
			users:       boltRepo.NewUserRepository(db),
			chats:       boltRepo.NewChatRepository(db),
			memberships: boltRepo.NewMembershipRepository(db),
			ping: func(ctx context.Context) error {
				return db.Ping()
			},
		}, nil
	default:
		if err := pgInfra.RunMigrations(cfg, zapLogger); err != nil {
			return nil, err
		}
		pool, err := pgInfra.NewPool(ctx, cfg.Database, cfg.AppName, zapLogger)
		if err != nil {
			return nil, err
		}
		manager.Register("postgres", func(ctx context.Context) error {
			pool.Close()
			return nil
		})
		return &stores{
			tasks:       postgres.NewTaskRepository(pool),
			stats:       postgres.NewStatsRepository(pool),
			users:       postgres.NewUserRepository(pool),
			chats:       postgres.NewChatRepository(pool),
			memberships: postgres.NewMembershipRepository(pool),
			ping:        pgInfra.Ping(pool),
		}, nil
	}
}
