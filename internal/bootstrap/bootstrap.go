package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/zoning-feasibility/internal/config"
	"github.com/kirillkom/zoning-feasibility/internal/core/ports"
	"github.com/kirillkom/zoning-feasibility/internal/core/usecase"
	"github.com/kirillkom/zoning-feasibility/internal/infrastructure/chunking"
	"github.com/kirillkom/zoning-feasibility/internal/infrastructure/extractor/html"
	"github.com/kirillkom/zoning-feasibility/internal/infrastructure/extractor/pdf"
	"github.com/kirillkom/zoning-feasibility/internal/infrastructure/extractor/plaintext"
	"github.com/kirillkom/zoning-feasibility/internal/infrastructure/gis/arcgis"
	"github.com/kirillkom/zoning-feasibility/internal/infrastructure/ledger"
	"github.com/kirillkom/zoning-feasibility/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/zoning-feasibility/internal/infrastructure/queue/nats"
	"github.com/kirillkom/zoning-feasibility/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/zoning-feasibility/internal/infrastructure/resilience"
	"github.com/kirillkom/zoning-feasibility/internal/infrastructure/source"
	"github.com/kirillkom/zoning-feasibility/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/zoning-feasibility/internal/infrastructure/vector/chromem"
	"github.com/kirillkom/zoning-feasibility/internal/infrastructure/vector/qdrant"
)

type App struct {
	Config config.Config

	Queue   *nats.Queue
	Storage *localfs.Storage
	Fetcher *html.Fetcher

	Builder   *usecase.BuildIndexUseCase
	Retriever *usecase.RetrieveUseCase
	Extractor *usecase.ExtractFactsUseCase
	Zoning    *usecase.ZoningUseCase
	Site      *usecase.SiteUseCase
	Draw      *usecase.DrawVarianceUseCase

	// IndexAdmin and Uploader need the rebuild queue; they are nil in a
	// local App.
	IndexAdmin *usecase.IndexAdminUseCase
	Uploader   *usecase.UploadDocumentUseCase

	closers []func()
}

// New wires the full graph used by the API and the worker, including the
// NATS rebuild queue.
func New(ctx context.Context, cfg config.Config, opts ...Option) (*App, error) {
	return build(ctx, cfg, true, opts...)
}

type options struct {
	deliveryLag func(time.Duration)
	observer    resilience.Observer
}

type Option func(*options)

// WithDeliveryLagObserver reports rebuild request queue lag to fn.
func WithDeliveryLagObserver(fn func(time.Duration)) Option {
	return func(o *options) { o.deliveryLag = fn }
}

// WithResilienceObserver reports dependency retries and breaker states.
func WithResilienceObserver(observer resilience.Observer) Option {
	return func(o *options) { o.observer = observer }
}

// NewLocal wires the graph without NATS. zoningctl and the MCP server build
// and query the index in-process.
func NewLocal(ctx context.Context, cfg config.Config) (*App, error) {
	return build(ctx, cfg, false)
}

func build(ctx context.Context, cfg config.Config, withQueue bool, opts ...Option) (_ *App, err error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	app := &App{Config: cfg}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	var executorOpts []resilience.Option
	if o.observer != nil {
		executorOpts = append(executorOpts, resilience.WithObserver(o.observer))
	}
	executor := resilience.NewExecutor(resilienceConfig(cfg), executorOpts...)

	storage, err := localfs.New(cfg.DocumentsPath)
	if err != nil {
		return nil, fmt.Errorf("init documents storage: %w", err)
	}
	app.Storage = storage

	index, err := openIndex(cfg, executor)
	if err != nil {
		return nil, err
	}

	var journal ports.BuildJournal
	if cfg.PostgresDSN != "" {
		db, repo, err := openJournal(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, func() { _ = db.Close() })
		journal = repo
	}

	ollamaClient := ollama.NewWithOptions(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, ollama.Options{
		Timeout:  cfg.OllamaTimeout,
		Executor: executor,
	})
	embedder := ollama.NewEmbedder(ollamaClient)
	generator := ollama.NewGenerator(ollamaClient)

	documents := source.NewDirectorySource(storage, map[string]source.Extractor{
		".pdf":  pdf.NewExtractor(),
		".txt":  plaintext.NewExtractor(),
		".md":   plaintext.NewExtractor(),
		".html": html.NewExtractor(),
		".htm":  html.NewExtractor(),
	})
	chunker := chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)

	geo := arcgis.New(arcgis.Endpoints{
		Geocoder:     cfg.GISGeocoderURL,
		Parcels:      cfg.GISParcelsURL,
		BaseZoning:   cfg.GISBaseZoningURL,
		Overlays:     cfg.GISOverlaysURL,
		FloodHazards: cfg.GISFloodHazardsURL,
	}, cfg.GISTimeout, executor)

	app.Fetcher = html.NewFetcher(cfg.GISTimeout, executor)
	app.Builder = usecase.NewBuildIndexUseCase(documents, chunker, embedder, index, journal, cfg.IndexCollection, cfg.EmbedBatchSize)
	app.Retriever = usecase.NewRetrieveUseCase(embedder, index)
	app.Extractor = usecase.NewExtractFactsUseCase(generator, cfg.ExtractMaxAttempts)
	app.Zoning = usecase.NewZoningUseCase(app.Retriever, app.Extractor, generator, cfg.RAGTopK)
	app.Site = usecase.NewSiteUseCase(geo, app.Retriever, app.Extractor, generator)
	app.Draw = usecase.NewDrawVarianceUseCase(ledger.NewReader())

	if withQueue {
		queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			ResilienceExecutor:  executor,
			DeliveryLagObserver: o.deliveryLag,
		})
		if err != nil {
			return nil, fmt.Errorf("init rebuild queue: %w", err)
		}
		app.closers = append(app.closers, queue.Close)
		app.Queue = queue
		app.IndexAdmin = usecase.NewIndexAdminUseCase(index, journal, queue, cfg.IndexCollection)
		app.Uploader = usecase.NewUploadDocumentUseCase(storage, queue)
	}

	slog.Info("bootstrap_ready",
		"index_backend", cfg.IndexBackend,
		"collection", cfg.IndexCollection,
		"documents_path", storage.BasePath(),
		"journal", journal != nil,
		"queue", withQueue,
	)
	return app, nil
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func openIndex(cfg config.Config, executor *resilience.Executor) (ports.ChunkIndex, error) {
	switch cfg.IndexBackend {
	case config.BackendQdrant:
		return qdrant.NewWithExecutor(cfg.QdrantURL, cfg.IndexCollection, executor), nil
	case config.BackendChromem:
		store, err := chromem.Open(cfg.IndexPath, cfg.IndexCollection, cfg.IndexCompress)
		if err != nil {
			return nil, fmt.Errorf("open chunk index: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownBackend, cfg.IndexBackend)
	}
}

func openJournal(ctx context.Context, dsn string) (*sql.DB, *postgres.BuildRepository, error) {
	db, err := postgres.OpenDB(dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewBuildRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ensure schema: %w", err)
	}
	return db, repo, nil
}

func resilienceConfig(cfg config.Config) resilience.Config {
	out := resilience.DefaultConfig()
	out.RetryMaxAttempts = cfg.ResilienceRetryMaxAttempts
	out.RetryInitialBackoff = cfg.ResilienceRetryInitialBackoff
	out.RetryMaxBackoff = cfg.ResilienceRetryMaxBackoff
	out.BreakerEnabled = cfg.ResilienceBreakerEnabled
	out.BreakerFailureRatio = cfg.ResilienceBreakerFailureRatio
	out.BreakerOpenTimeout = cfg.ResilienceBreakerOpenTimeout
	if cfg.ResilienceBreakerMinRequests > 0 {
		out.BreakerMinRequests = uint32(cfg.ResilienceBreakerMinRequests)
	}
	if cfg.ResilienceBreakerHalfOpenMaxReq > 0 {
		out.BreakerHalfOpenMaxCalls = uint32(cfg.ResilienceBreakerHalfOpenMaxReq)
	}
	// RESILIENCE_GENERATE_MAX_ATTEMPTS bounds generation separately.
	out.OperationAttempts = map[string]int{
		"ollama.generate": cfg.ResilienceGenerateMaxAttempts,
	}
	return out
}
