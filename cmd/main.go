package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/syncdata/cdc-relay/internal/cdc"
	"github.com/syncdata/cdc-relay/internal/config"
	"github.com/syncdata/cdc-relay/internal/consumer"
	"github.com/syncdata/cdc-relay/internal/deadletter"
	"github.com/syncdata/cdc-relay/internal/handler"
	"github.com/syncdata/cdc-relay/internal/metrics"
	"github.com/syncdata/cdc-relay/internal/repository"
	"github.com/syncdata/cdc-relay/internal/service"
	"github.com/syncdata/cdc-relay/internal/sink"
	"github.com/syncdata/cdc-relay/pkg/database"
	pkglog "github.com/syncdata/cdc-relay/pkg/log"
)

const serviceName = "cdc-relay"

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load config")
	}

	// 2. Initialize structured logger
	pkglog.Init(pkglog.Config{
		Level:       cfg.Log.Level,
		Pretty:      cfg.Log.Pretty,
		ServiceName: serviceName,
	})
	logger := pkglog.L()

	// 3. System of record
	db, err := database.New(&database.Config{
		Driver:          cfg.Database.Driver,
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		DBName:          cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		FilePath:        cfg.Database.FilePath,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		LogLevel:        cfg.Database.LogLevel,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to get underlying sql.DB")
	}
	defer sqlDB.Close()

	dbPinger := database.NewPinger(db)
	if err := dbPinger.Ping(context.Background()); err != nil {
		logger.Fatal().Err(err).Msg("failed to reach database")
	}
	logger.Info().Str("driver", cfg.Database.Driver).Str("host", cfg.Database.Host).Msg("database connected")

	snapshots, err := repository.NewGormSnapshotRepository(db, repository.SnapshotConfig{
		Table:       cfg.Snapshot.Table,
		PrimaryKey:  cfg.Snapshot.PrimaryKey,
		Query:       cfg.Snapshot.Query,
		JSONColumns: cfg.Snapshot.JSONColumns,
		Timeout:     cfg.Snapshot.Timeout,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid snapshot configuration")
	}

	// 4. Document store
	mongoCfg := sink.MongoConfig{
		URI:        cfg.Mongo.URI,
		Database:   cfg.Mongo.Database,
		Collection: cfg.Mongo.Collection,
		Timeout:    cfg.Mongo.Timeout,
	}
	mongoClient, err := sink.ConnectMongo(context.Background(), mongoCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to mongodb")
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mongoClient.Disconnect(ctx); err != nil {
			logger.Warn().Err(err).Msg("error disconnecting mongodb")
		}
	}()
	logger.Info().Str("database", cfg.Mongo.Database).Str("collection", cfg.Mongo.Collection).Msg("mongodb connected")

	collection, err := sink.MongoCollection(mongoClient, mongoCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid mongodb configuration")
	}
	breakerCfg := sink.BreakerConfig{
		MaxFailures: cfg.Breaker.MaxFailures,
		OpenTimeout: cfg.Breaker.OpenTimeout,
	}
	documents := sink.NewBreakingDocumentSink(
		sink.NewMongoDocumentSink(collection, cfg.Mongo.Timeout),
		breakerCfg,
		logger,
	)

	// 5. Search index
	if cfg.Elasticsearch.InsecureSkipVerify {
		logger.Warn().Msg("elasticsearch certificate verification is disabled")
	}
	esClient, err := sink.NewESClient(sink.ESConfig{
		Addresses:          cfg.Elasticsearch.Addresses,
		Username:           cfg.Elasticsearch.Username,
		Password:           cfg.Elasticsearch.Password,
		CACertPath:         cfg.Elasticsearch.CACertPath,
		InsecureSkipVerify: cfg.Elasticsearch.InsecureSkipVerify,
		Timeout:            cfg.Elasticsearch.Timeout,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create elasticsearch client")
	}
	esPinger := sink.NewESPinger(esClient)
	if err := esPinger.Ping(context.Background()); err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to elasticsearch")
	}
	logger.Info().Strs("addresses", cfg.Elasticsearch.Addresses).Str("index", cfg.Elasticsearch.Index).Msg("elasticsearch connected")

	search := sink.NewBreakingSearchSink(
		sink.NewESSearchSink(esClient, cfg.Elasticsearch.Index, cfg.Elasticsearch.Refresh, cfg.Elasticsearch.Timeout),
		breakerCfg,
		logger,
	)

	// 6. Dead-letter capture
	deadLetters, err := deadletter.NewPublisher(deadletter.Config{
		Driver:  cfg.DeadLetter.Driver,
		Brokers: strings.Join(cfg.Kafka.Brokers, ","),
		Topic:   cfg.DeadLetter.Topic,
		Redis: deadletter.RedisConfig{
			Address:  cfg.DeadLetter.Redis.Address,
			Password: cfg.DeadLetter.Redis.Password,
			DB:       cfg.DeadLetter.Redis.DB,
			Key:      cfg.DeadLetter.Redis.Key,
			MaxLen:   cfg.DeadLetter.Redis.MaxLen,
		},
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create dead-letter publisher")
	}
	defer deadLetters.Close()
	logger.Info().Str("driver", cfg.DeadLetter.Driver).Msg("dead-letter capture ready")

	// 7. Orchestrator
	policy, err := service.ParseSearchDeletePolicy(cfg.Sync.SearchDeletePolicy)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid sync configuration")
	}
	m := metrics.New()
	svc := service.NewSyncService(
		cdc.NewDecoder(cfg.Snapshot.PrimaryKey),
		snapshots,
		documents,
		search,
		deadLetters,
		m,
		service.Options{
			TableSuffix:        cfg.Sync.TableSuffix,
			SearchDeletePolicy: policy,
		},
	)

	// 8. Change stream consumer
	changeConsumer, err := consumer.NewConfluentConsumer(consumer.Config{
		Brokers:          cfg.Kafka.Brokers,
		Topics:           cfg.Kafka.Topics,
		GroupID:          cfg.Kafka.GroupID,
		AutoOffsetReset:  cfg.Kafka.AutoOffsetReset,
		SessionTimeoutMs: cfg.Kafka.SessionTimeoutMs,
		PollTimeout:      cfg.Kafka.PollTimeout,
	}, svc)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create kafka consumer")
	}

	// 9. Setup Gin router + HTTP server
	var lister handler.DeadLetterLister
	if l, ok := deadLetters.(handler.DeadLetterLister); ok {
		lister = l
	}
	httpHandler := handler.NewHandler(map[string]handler.Pinger{
		"database":      dbPinger,
		"mongodb":       sink.NewMongoPinger(mongoClient),
		"elasticsearch": esPinger,
	}, 2*time.Second, m.Handler(), lister)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(pkglog.GinMiddleware(logger, "/health", "/ready", "/metrics"))
	httpHandler.RegisterRoutes(r)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", addr).Msg("cdc-relay http server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	// 10. Consume until signalled or the client fails
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consumerDone := make(chan error, 1)
	go func() {
		consumerDone <- changeConsumer.Run(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	consumerStopped := false
	select {
	case sig := <-quit:
		logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-consumerDone:
		consumerStopped = true
		if err != nil {
			logger.Error().Err(err).Msg("change event consumer stopped")
		}
	}

	// 11. Shutdown: stop the loop, let the in-flight event finish, close
	// the consumer, drain HTTP. Deferred closes run afterwards.
	cancel()
	if !consumerStopped {
		select {
		case <-consumerDone:
			consumerStopped = true
		case <-time.After(30 * time.Second):
			logger.Warn().Msg("consumer shutdown timed out after 30s")
		}
	}
	if consumerStopped {
		if err := changeConsumer.Close(); err != nil {
			logger.Warn().Err(err).Msg("error closing kafka consumer")
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("HTTP server forced to shutdown")
	}

	logger.Info().Msg("cdc-relay stopped")
}

