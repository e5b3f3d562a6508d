package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"ragchat/features/booking"
	"ragchat/features/converse"
	"ragchat/features/document"
	"ragchat/features/stats"
	"ragchat/internal/config"
	"ragchat/internal/middleware"
	"ragchat/internal/retrieval"
	"ragchat/internal/validate"
	"ragchat/internal/vector"
	"ragchat/internal/worker"
)

type App struct {
	Handler          http.Handler
	DocumentService  *document.Service
	RetrievalService *retrieval.Service
	MetadataConsumer *worker.MetadataConsumer

	port int
}

// New wires features onto deps. deps.Index is wrapped with the ingest/search
// guard unless it already is one.
func New(cfg *config.Config, deps *Dependencies, logger *slog.Logger) (*App, error) {
	if deps == nil || deps.DB == nil || deps.Index == nil || deps.Conversations == nil || deps.Embedder == nil || deps.Generator == nil {
		return nil, errors.New("app: incomplete dependencies")
	}
	if logger == nil {
		logger = slog.Default()
	}

	index, ok := deps.Index.(*vector.Guarded)
	if !ok {
		index = vector.NewGuarded(deps.Index)
	}
	collection := cfg.CollectionName
	if collection == "" {
		collection = "documents_collection"
	}
	v := validate.New()

	// Feature: Document
	var pub document.EventPublisher
	if deps.Publisher != nil {
		pub = deps.Publisher
	}
	documentRepo := document.NewPostgresRepo(deps.DB)
	documentService := document.NewService(documentRepo, deps.Embedder, index, pub, document.Options{
		Collection: collection,
		Recreate:   cfg.RecreateOnIngest,
		Dimension:  cfg.EmbeddingDimension,
	})
	documentHandler := document.NewHandler(documentService, int(cfg.MaxUploadSizeMB))

	// Feature: Converse
	queryLogger := retrieval.NewQueryLogger(os.Stdout)
	if cfg.QueryLogPath != "" {
		fileLogger, err := retrieval.NewFileQueryLogger(cfg.QueryLogPath)
		if err != nil {
			logger.Warn("failed to create query logger, falling back to stdout", "error", err)
		} else {
			queryLogger = fileLogger
		}
	}

	opts := retrieval.DefaultOptions()
	opts.Collection = collection
	if cfg.DefaultTopK > 0 {
		opts.DefaultTopK = cfg.DefaultTopK
	}
	if cfg.HistoryWindow > 0 {
		opts.HistoryWindow = cfg.HistoryWindow
	}
	if cfg.GeneratorTimeoutSeconds > 0 {
		opts.GeneratorTimeout = cfg.GeneratorTimeout()
	}
	opts.Serialize = cfg.SerializeConversations

	retrievalService := retrieval.NewService(deps.Embedder, index, deps.Conversations, deps.Generator, queryLogger, opts)
	converseHandler := converse.NewHandler(retrievalService, v)

	// Feature: Booking
	bookingRepo := booking.NewPostgresRepo(deps.DB)
	bookingHandler := booking.NewHandler(booking.NewService(bookingRepo, v))

	// Feature: Stats
	statsHandler := stats.NewHandler(documentRepo, bookingRepo, index, stats.Options{
		Collection: collection,
		Mode:       documentService.Mode(),
	})

	// Middleware: CORS
	enableCORS := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Correlation-ID")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next(w, r)
		}
	}

	// Routes
	mux := http.NewServeMux()

	mux.Handle("POST /upload", middleware.CorrelationID(enableCORS(documentHandler.Upload)))
	mux.Handle("GET /documents", middleware.CorrelationID(enableCORS(documentHandler.List)))

	mux.Handle("POST /converse", middleware.CorrelationID(enableCORS(converseHandler.Converse)))
	mux.Handle("GET /memory/{id}", middleware.CorrelationID(enableCORS(converseHandler.GetMemory)))
	mux.Handle("DELETE /memory/{id}", middleware.CorrelationID(enableCORS(converseHandler.ClearMemory)))

	mux.Handle("POST /book_interview", middleware.CorrelationID(enableCORS(bookingHandler.Create)))
	mux.Handle("GET /bookings", middleware.CorrelationID(enableCORS(bookingHandler.List)))

	mux.Handle("GET /stats", middleware.CorrelationID(enableCORS(statsHandler.GetStats)))

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8081
	}

	return &App{
		Handler:          mux,
		DocumentService:  documentService,
		RetrievalService: retrievalService,
		MetadataConsumer: worker.NewMetadataConsumer(documentRepo),
		port:             port,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.port),
		Handler:           a.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}()

	slog.Info("server starting", "port", a.port)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}
