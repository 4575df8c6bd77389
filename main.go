package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/effectmoe/contract-system/config"
	"github.com/effectmoe/contract-system/handler"
	"github.com/effectmoe/contract-system/pkg/logger"
	"github.com/effectmoe/contract-system/service"
)

var version = "dev"

func main() {
	if err := rootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:          "contract-system",
		Short:        "Electronic contract management backend",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(configPath)
		},
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Config file path (YAML)")

	cmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(configPath)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Create Mongo indexes, the MinIO bucket and the standard templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			return migrate(cmd.Context(), configPath)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("contract-system version %s\n", version)
		},
	})

	return cmd
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger.Init(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	slog.Info("configuration loaded", "mode", cfg.Mode)
	return cfg, nil
}

// stores holds the backends selected by the configured mode.
type stores struct {
	contracts   service.ContractBackend
	templates   service.TemplateStore
	mongoClient *mongo.Client
	mongoStore  *service.MongoStore
}

func (s *stores) Close(ctx context.Context) {
	if s.mongoClient != nil {
		if err := s.mongoClient.Disconnect(ctx); err != nil {
			slog.Warn("failed to disconnect from MongoDB", "error", err)
		}
	}
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	if cfg.Mode == config.ModeDemo {
		memory := service.NewMemoryStore(cfg.Store.MaxContracts)
		templates := service.NewMemoryTemplateStore()
		if err := service.SeedDemo(ctx, memory, templates, time.Now()); err != nil {
			return nil, err
		}
		slog.Info("using in-memory demo data", "max_contracts", cfg.Store.MaxContracts)
		return &stores{contracts: memory, templates: templates}, nil
	}

	client, err := service.ConnectMongo(ctx, &cfg.Mongo)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	db := client.Database(cfg.Mongo.Database)
	mongoStore := service.NewMongoStore(db, cfg.Mongo.Timeout)
	slog.Info("connected to MongoDB", "database", cfg.Mongo.Database)
	return &stores{
		contracts:   mongoStore,
		templates:   service.NewMongoTemplateStore(db, cfg.Mongo.Timeout),
		mongoClient: client,
		mongoStore:  mongoStore,
	}, nil
}

// openBlobs returns nil when MinIO is not configured; callers treat a nil
// store as "blob storage unavailable".
func openBlobs(cfg *config.Config) (*service.MinioService, error) {
	if !cfg.Minio.Enabled() {
		slog.Warn("MinIO not configured, attachments are disabled")
		return nil, nil
	}
	minioSvc, err := service.NewMinioService(&cfg.Minio)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MinIO service: %w", err)
	}
	return minioSvc, nil
}

func openCounter(ctx context.Context, cfg *config.Config) (service.CounterStore, *redis.Client) {
	if cfg.Redis.URL == "" {
		return service.NewMemoryCounter(), nil
	}
	client, err := service.NewRedisClient(ctx, cfg.Redis.URL, cfg.Redis.Timeout)
	if err != nil {
		// The limiter's fail policy covers later outages; at startup fall
		// back to per-process counters rather than refusing to boot.
		slog.Warn("redis unavailable, using in-memory rate limit counters", "error", err)
		return service.NewMemoryCounter(), nil
	}
	slog.Info("using redis rate limit counters")
	return service.NewRedisCounter(client, cfg.Redis.Timeout), client
}

func serve(configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	gin.SetMode(gin.ReleaseMode)

	ctx := context.Background()
	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close(context.Background())

	minioSvc, err := openBlobs(cfg)
	if err != nil {
		return err
	}
	var blobs service.BlobStore
	if minioSvc != nil {
		if err := minioSvc.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed to ensure MinIO bucket: %w", err)
		}
		blobs = minioSvc
	}

	counter, redisClient := openCounter(ctx, cfg)
	if redisClient != nil {
		defer redisClient.Close()
	}

	var mailer service.Mailer = service.LogMailer{}
	if cfg.Email.APIKey != "" {
		mailer = service.NewResendMailer(&cfg.Email)
	} else {
		slog.Warn("RESEND_API_KEY not set, signature emails are only logged")
	}

	repo := service.NewContractRepository(st.contracts)
	audit := service.NewAuditAppender(st.contracts, cfg.Mongo.Timeout)
	contracts := service.NewContractService(repo, audit)

	router := handler.NewRouter(handler.Deps{
		Config:      cfg,
		Limiter:     service.NewRateLimiter(counter, cfg.RateLimit.AllowOnStoreError()),
		Contracts:   contracts,
		Analysis:    service.NewAnalysisService(repo, service.NewAIClient(&cfg.AI), audit, cfg.AI.Model, cfg.AI.Timeout),
		OCR:         service.NewOCRService(service.NewOCRClient(&cfg.OCR), blobs),
		Signatures:  service.NewSignatureService(repo, audit, mailer, cfg.Email.BaseURL),
		Templates:   service.NewTemplateService(st.templates, contracts),
		Attachments: service.NewAttachmentService(repo, audit, blobs),
		Documents:   service.NewDocumentService(repo, service.NewPDFRenderer(&cfg.PDF), blobs),
	})

	return run(cfg, router)
}

func run(cfg *config.Config, router http.Handler) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.Server.Port, "mode", cfg.Mode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	case <-quit:
	}
	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	slog.Info("server exited gracefully")
	return nil
}

// migrate prepares persistent backends. It is idempotent.
func migrate(ctx context.Context, configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	if cfg.Mode == config.ModePersistent {
		st, err := openStores(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close(context.Background())

		if err := st.mongoStore.EnsureIndexes(ctx); err != nil {
			return fmt.Errorf("failed to create indexes: %w", err)
		}
		existing, err := st.templates.List(ctx)
		if err != nil {
			return fmt.Errorf("failed to list templates: %w", err)
		}
		if len(existing) == 0 {
			for _, t := range service.DemoTemplates(time.Now()) {
				if err := st.templates.Insert(ctx, t); err != nil {
					return fmt.Errorf("failed to insert template %s: %w", t.ID, err)
				}
			}
			slog.Info("standard templates installed")
		}
	} else {
		slog.Info("demo mode, nothing to migrate in MongoDB")
	}

	minioSvc, err := openBlobs(cfg)
	if err != nil {
		return err
	}
	if minioSvc != nil {
		if err := minioSvc.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed to ensure MinIO bucket: %w", err)
		}
	}

	slog.Info("migration complete")
	return nil
}
