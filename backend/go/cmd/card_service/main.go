package main

import (
	"context"
	"log"
	"time"

	"github.com/mutusfa/Neurodeck/backend/go/internal/anki"
	"github.com/mutusfa/Neurodeck/backend/go/internal/card_service/api"
	"github.com/mutusfa/Neurodeck/backend/go/internal/card_service/service"
	"github.com/mutusfa/Neurodeck/backend/go/internal/card_service/store"
	"github.com/mutusfa/Neurodeck/backend/go/internal/config"
	"github.com/mutusfa/Neurodeck/backend/go/internal/database/kafka"
	"github.com/mutusfa/Neurodeck/backend/go/internal/database/milvus"
	"github.com/mutusfa/Neurodeck/backend/go/internal/database/minio"
	"github.com/mutusfa/Neurodeck/backend/go/internal/database/mysql"
	redisdb "github.com/mutusfa/Neurodeck/backend/go/internal/database/redis"
	"github.com/mutusfa/Neurodeck/backend/go/internal/database/sqlite"
	"github.com/mutusfa/Neurodeck/backend/go/internal/embedding"
	"github.com/mutusfa/Neurodeck/backend/go/internal/generation"
	"github.com/mutusfa/Neurodeck/backend/go/internal/ingestion"
	"github.com/mutusfa/Neurodeck/backend/go/internal/llm"
	"github.com/mutusfa/Neurodeck/backend/go/internal/media"
	"github.com/mutusfa/Neurodeck/backend/go/internal/models"
	"github.com/mutusfa/Neurodeck/backend/go/internal/similarity"
	pkghttp "github.com/mutusfa/Neurodeck/backend/go/pkg/http"
	"github.com/mutusfa/Neurodeck/backend/go/pkg/logger"

	goredis "github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Init(cfg.Logger.Level)
	appLogger := logger.New("card_service", "")
	appLogger.Info("Logger initialized")

	ctx := context.Background()

	// Relational storage: SQLite for a single-user install, MySQL when shared
	var db *gorm.DB
	switch cfg.Databases.Driver {
	case "", "sqlite":
		db, err = sqlite.GetDB(&cfg.Databases.SQLite)
	case "mysql":
		db, err = mysql.GetDB(&cfg.Databases.MySQL)
	default:
		log.Fatalf("unknown database driver: %q", cfg.Databases.Driver)
	}
	if err != nil {
		appLogger.Fatal(err.Error())
	}

	// Auto-migrate database schema
	if err := db.AutoMigrate(&models.Document{}, &models.Card{}, &models.AnkiNoteFeedback{}); err != nil {
		appLogger.Fatal(err.Error())
	}
	appLogger.Info("Database migration completed")
	st := store.NewStore(db)

	// Optional Redis cache for LLM generations
	var rdb *goredis.Client
	if cfg.Databases.Redis.Enabled {
		rdb, err = redisdb.GetClient(&cfg.Databases.Redis)
		if err != nil {
			appLogger.Fatal(err.Error())
		}
		defer redisdb.Close()
	}

	// LLM provider and card generator
	llmClient, err := llm.NewClient(cfg.LLM)
	if err != nil {
		appLogger.Fatal(err.Error())
	}
	cacheTTL := parseDurationOr(cfg.Generation.CacheTTL, 720*time.Hour)
	cache := generation.NewCache(rdb, cacheTTL, appLogger)
	generator := generation.NewGenerator(llmClient, cache, cfg.LLM.ActiveModel(), cfg.Generation, appLogger)

	// Ingestion pipeline; URL fetches share the outbound circuit breaker config
	fetcher, err := pkghttp.NewClient(cfg.Middleware.CircuitBreaker)
	if err != nil {
		appLogger.Fatal(err.Error())
	}
	ingest := ingestion.New(fetcher, parseDurationOr(cfg.Ingestion.FetchTimeout, 30*time.Second))

	// Media archive: MinIO when enabled, a local directory otherwise
	var mediaStore media.Store
	if cfg.Databases.MinIO.Enabled {
		minioClient, err := minio.GetClient(&cfg.Databases.MinIO)
		if err != nil {
			appLogger.Fatal(err.Error())
		}
		defer minio.Close()
		mediaStore, err = media.NewMinioStore(ctx, minioClient, cfg.Databases.MinIO.Bucket)
		if err != nil {
			appLogger.Fatal(err.Error())
		}
	} else {
		dir := cfg.Ingestion.MediaDir
		if dir == "" {
			dir = "media"
		}
		mediaStore, err = media.NewLocalStore(dir)
		if err != nil {
			appLogger.Fatal(err.Error())
		}
	}

	// Optional similarity index over Milvus
	var simIndex *similarity.Index
	if cfg.Databases.Milvus.Enabled {
		milvusClient, err := milvus.GetClient(ctx, &cfg.Databases.Milvus)
		if err != nil {
			appLogger.Fatal(err.Error())
		}
		defer milvusClient.Close()
		if err := milvusClient.EnsureCollection(ctx); err != nil {
			appLogger.Fatal(err.Error())
		}
		embedder, err := embedding.NewEmdModel(cfg.Embedding.Provider, cfg.Embedding.Model, cfg.Embedding.APIKey, cfg.Embedding.BaseURL)
		if err != nil {
			appLogger.Fatal(err.Error())
		}
		simIndex, err = similarity.NewIndex(milvusClient, embedder, appLogger)
		if err != nil {
			appLogger.Fatal(err.Error())
		}
	}

	// Optional Kafka publisher for card lifecycle events
	var events *kafka.CardEventPublisher
	if cfg.Databases.Kafka.Enabled {
		kafkaClient, err := kafka.GetClient(&cfg.Databases.Kafka)
		if err != nil {
			appLogger.Fatal(err.Error())
		}
		defer kafkaClient.Close()
		events = kafka.NewCardEventPublisher(kafkaClient)
	}

	// AnkiConnect adapter and sync engine
	deck, err := anki.NewConnectClient(&cfg.Anki)
	if err != nil {
		appLogger.Fatal(err.Error())
	}
	deckName := cfg.Anki.DeckName
	if deckName == "" {
		deckName = "Neurodeck"
	}
	engine := anki.NewEngine(deck, st, st, deckName,
		anki.WithTags(cfg.Anki.Tags),
		anki.WithLogger(appLogger),
	)

	// Assemble dependencies (Store -> Service -> Handler)
	svc := service.NewService(st, mediaStore, ingest, generator, engine, deck, simIndex, events, appLogger)
	handler := api.NewHandler(svc, appLogger)
	appLogger.Info("Dependencies injected")

	// Mount the gin router behind the middleware-wrapped server so rate
	// limiting and circuit breaking from the config apply to every route.
	router := api.SetupRouter(handler)
	srv, err := pkghttp.NewServer(cfg, pkghttp.WithAddress(cfg.Server.Address))
	if err != nil {
		appLogger.Fatal(err.Error())
	}
	srv.Handle("/", router)

	if err := srv.ListenAndServe(); err != nil {
		appLogger.Fatal(err.Error())
	}
}

// parseDurationOr parses a duration from the config, falling back to a
// default for empty or malformed values.
func parseDurationOr(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("invalid duration %q, using %s", raw, fallback)
		return fallback
	}
	return d
}
