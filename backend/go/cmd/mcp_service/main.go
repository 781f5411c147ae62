package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/server"
	goredis "github.com/go-redis/redis/v8"
	"gorm.io/gorm"

	"github.com/mutusfa/Neurodeck/backend/go/internal/anki"
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
	"github.com/mutusfa/Neurodeck/backend/go/internal/mcp"
	"github.com/mutusfa/Neurodeck/backend/go/internal/media"
	"github.com/mutusfa/Neurodeck/backend/go/internal/models"
	"github.com/mutusfa/Neurodeck/backend/go/internal/similarity"
	pkghttp "github.com/mutusfa/Neurodeck/backend/go/pkg/http"
	"github.com/mutusfa/Neurodeck/backend/go/pkg/logger"
)

// STDIO transport (default)
//	go run main.go
//	go run main.go -transport=stdio
//
// SSE transport on port 8086
//	go run main.go -transport=sse -port=8086
//
// StreamableHTTP transport on port 9000
//	go run main.go -transport=httpstream -port=9000

func main() {
	transport := flag.String("transport", "stdio", "Transport method: stdio, sse, or httpstream")
	port := flag.String("port", "8086", "Port for HTTP-based transports (sse, httpstream)")
	configPath := flag.String("config", "config.yaml", "Path to the configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	// Initialize logger. Over stdio the protocol owns stdout, so every log
	// line has to go to stderr.
	logger.Init(cfg.Logger.Level)
	logger.SetOutput(os.Stderr)
	log.SetOutput(os.Stderr)
	appLogger := logger.New("mcp_service", "")

	svc, cleanup := buildService(cfg, appLogger)
	defer cleanup()
	s := mcp.NewServer(svc)

	// Start server based on transport selection
	switch *transport {
	case "sse":
		log.Printf("Starting Neurodeck MCP server with SSE transport on port %s", *port)
		sseServer := server.NewSSEServer(s)
		if err := sseServer.Start(":" + *port); err != nil {
			log.Fatalf("SSE server error: %v", err)
		}
	case "httpstream":
		log.Printf("Starting Neurodeck MCP server with StreamableHTTP transport on port %s", *port)
		httpServer := server.NewStreamableHTTPServer(s)
		if err := httpServer.Start(":" + *port); err != nil {
			log.Fatalf("HTTP server error: %v", err)
		}
	case "stdio":
		log.Println("Starting Neurodeck MCP server with STDIO transport")
		if err := server.ServeStdio(s); err != nil {
			log.Fatalf("STDIO server error: %v", err)
		}
	default:
		log.Fatalf("Unknown transport: %s. Use stdio, sse, or httpstream", *transport)
	}
}

// buildService wires the same dependency stack as the card service: both
// frontends share one database and one set of capabilities. The returned
// cleanup function closes every connection the build opened.
func buildService(cfg *config.AppConfig, appLogger *logger.Logger) (*service.Service, func()) {
	ctx := context.Background()
	var closers []func()

	var db *gorm.DB
	var err error
	switch cfg.Databases.Driver {
	case "", "sqlite":
		db, err = sqlite.GetDB(&cfg.Databases.SQLite)
		closers = append(closers, func() { _ = sqlite.Close() })
	case "mysql":
		db, err = mysql.GetDB(&cfg.Databases.MySQL)
		closers = append(closers, func() { _ = mysql.Close() })
	default:
		log.Fatalf("unknown database driver: %q", cfg.Databases.Driver)
	}
	if err != nil {
		appLogger.Fatal(err.Error())
	}
	if err := db.AutoMigrate(&models.Document{}, &models.Card{}, &models.AnkiNoteFeedback{}); err != nil {
		appLogger.Fatal(err.Error())
	}
	st := store.NewStore(db)

	var rdb *goredis.Client
	if cfg.Databases.Redis.Enabled {
		rdb, err = redisdb.GetClient(&cfg.Databases.Redis)
		if err != nil {
			appLogger.Fatal(err.Error())
		}
		closers = append(closers, func() { _ = redisdb.Close() })
	}

	llmClient, err := llm.NewClient(cfg.LLM)
	if err != nil {
		appLogger.Fatal(err.Error())
	}
	cacheTTL := parseDurationOr(cfg.Generation.CacheTTL, 720*time.Hour)
	cache := generation.NewCache(rdb, cacheTTL, appLogger)
	generator := generation.NewGenerator(llmClient, cache, cfg.LLM.ActiveModel(), cfg.Generation, appLogger)

	fetcher, err := pkghttp.NewClient(cfg.Middleware.CircuitBreaker)
	if err != nil {
		appLogger.Fatal(err.Error())
	}
	ingest := ingestion.New(fetcher, parseDurationOr(cfg.Ingestion.FetchTimeout, 30*time.Second))

	var mediaStore media.Store
	if cfg.Databases.MinIO.Enabled {
		minioClient, err := minio.GetClient(&cfg.Databases.MinIO)
		if err != nil {
			appLogger.Fatal(err.Error())
		}
		closers = append(closers, minio.Close)
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

	var simIndex *similarity.Index
	if cfg.Databases.Milvus.Enabled {
		milvusClient, err := milvus.GetClient(ctx, &cfg.Databases.Milvus)
		if err != nil {
			appLogger.Fatal(err.Error())
		}
		closers = append(closers, milvusClient.Close)
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

	var events *kafka.CardEventPublisher
	if cfg.Databases.Kafka.Enabled {
		kafkaClient, err := kafka.GetClient(&cfg.Databases.Kafka)
		if err != nil {
			appLogger.Fatal(err.Error())
		}
		closers = append(closers, func() { _ = kafkaClient.Close() })
		events = kafka.NewCardEventPublisher(kafkaClient)
	}

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

	svc := service.NewService(st, mediaStore, ingest, generator, engine, deck, simIndex, events, appLogger)
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	return svc, cleanup
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
