package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"google.golang.org/grpc"

	"garagebook/internal/auth"
	"garagebook/internal/config"
	"garagebook/internal/outbox"
	"garagebook/internal/scheduling"
	"garagebook/internal/service/appointments"
	"garagebook/internal/service/catalog"
	"garagebook/internal/service/tokens"
	"garagebook/internal/store/postgres"
	"garagebook/internal/telemetry"
	grpcTransport "garagebook/internal/transport/grpc"
	"garagebook/internal/transport/rest"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and gRPC servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, log)
		},
	}
}

func openDatabase(ctx context.Context, cfg config.Config, log *slog.Logger) (*bun.DB, error) {
	log.Info("connecting to database", databaseLogArgs(cfg.DatabaseURL)...)
	db, err := postgres.Open(ctx, cfg.DatabaseURL, postgres.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
	})
	if err != nil {
		args := append([]any{slog.Any("err", err)}, databaseLogArgs(cfg.DatabaseURL)...)
		log.Error("database connection failed", args...)
		return nil, err
	}
	return db, nil
}

func serve(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	log.Info("starting",
		slog.String("http_addr", cfg.HTTPAddr),
		slog.String("grpc_addr", cfg.GRPCAddr),
		slog.String("log_level", cfg.LogLevel),
		slog.String("location", cfg.Location.String()),
	)

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:     cfg.OTelEnabled,
		ServiceName: serviceName,
		Endpoint:    cfg.OTelEndpoint,
		SampleRatio: cfg.OTelSampleRatio,
	})
	if err != nil {
		log.Error("tracing setup failed", slog.Any("err", err))
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Warn("tracing shutdown failed", slog.Any("err", err))
		}
	}()

	db, err := openDatabase(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := postgres.Close(db); err != nil {
			log.Warn("database close failed", slog.Any("err", err))
		}
	}()
	st := postgres.NewStore(db)

	readyChecks := []rest.ReadyCheck{{Name: "postgres", Check: st.Ping}}
	guardOpts := []auth.Option{auth.WithLogger(log)}
	var limiter rest.Limiter = rest.NewLocalLimiter(cfg.RateLimit, cfg.RateLimitWindow)

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer func() {
			if err := rdb.Close(); err != nil {
				log.Warn("redis close failed", slog.Any("err", err))
			}
		}()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn("redis unreachable at startup", slog.String("redis_addr", cfg.RedisAddr), slog.Any("err", err))
		}
		guardOpts = append(guardOpts, auth.WithCache(auth.NewRedisCache(rdb), cfg.AuthCacheTTL))
		limiter = rest.NewRedisLimiter(rdb, cfg.RateLimit, cfg.RateLimitWindow, "garagebook:rl")
		readyChecks = append(readyChecks, rest.ReadyCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		})
		log.Info("redis enabled", slog.String("redis_addr", cfg.RedisAddr))
	}

	guard := auth.NewGuard(st, guardOpts...)
	apptSvc := appointments.NewService(st, guard,
		appointments.WithGenerator(scheduling.Generator{Window: cfg.Window, Location: cfg.Location}),
	)
	catalogSvc := catalog.NewService(st)
	tokenSvc := tokens.NewService(st, guard)

	gin.SetMode(gin.ReleaseMode)
	router := rest.NewRouter(rest.NewHandler(apptSvc, catalogSvc, tokenSvc, log, cfg.Location), rest.RouterConfig{
		Logger:         log,
		Limiter:        limiter,
		FailOpen:       true,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		TrustedProxies: cfg.TrustedProxies,
		ReadyChecks:    readyChecks,
	})
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           otelhttp.NewHandler(router, "garagebook.http"),
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			grpcTransport.UnaryServerRequestIDInterceptor(),
			grpcTransport.UnaryServerLoggingInterceptor(log),
			grpcTransport.UnaryServerTimeoutInterceptor(cfg.GRPCRequestTimeout),
		),
	)
	grpcTransport.RegisterAppointmentsServer(grpcServer, grpcTransport.NewAppointmentsServer(apptSvc, log, cfg.Location))

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Error("grpc listen failed", slog.Any("err", err), slog.String("grpc_addr", cfg.GRPCAddr))
		return err
	}

	var workers sync.WaitGroup
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	if brokers := outbox.SplitBrokers(cfg.KafkaBrokers); len(brokers) > 0 {
		writer := outbox.NewKafkaWriter(brokers)
		publisher := outbox.NewPublisher(st, writer, log, outbox.Config{
			TopicPrefix: cfg.KafkaTopicPrefix,
			PollEvery:   cfg.OutboxPollInterval,
			BatchSize:   cfg.OutboxBatchSize,
		})
		workers.Add(1)
		go func() {
			defer workers.Done()
			publisher.Run(workerCtx)
			if err := writer.Close(); err != nil {
				log.Warn("kafka writer close failed", slog.Any("err", err))
			}
		}()
		log.Info("outbox publisher enabled", slog.Any("brokers", brokers))
	}

	errCh := make(chan error, 2)
	go func() {
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errCh <- err
		}
	}()
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	log.Info("servers started", slog.String("http_addr", cfg.HTTPAddr), slog.String("grpc_addr", cfg.GRPCAddr))

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case serveErr = <-errCh:
		log.Error("server stopped with error", slog.Any("err", serveErr))
	}

	shutdown(log, httpServer, grpcServer, cfg.ShutdownTimeout)
	stopWorkers()
	workers.Wait()
	return serveErr
}

func shutdown(log *slog.Logger, hs *http.Server, gs *grpc.Server, timeout time.Duration) {
	log.Info("shutting down servers", slog.Duration("timeout", timeout))

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := hs.Shutdown(ctx); err != nil {
		log.Warn("http graceful shutdown failed; closing", slog.Any("err", err))
		_ = hs.Close()
	}

	done := make(chan struct{})
	go func() {
		gs.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		log.Info("grpc server stopped")
	case <-ctx.Done():
		log.Warn("grpc graceful shutdown timed out; forcing stop")
		gs.Stop()
	}
}
