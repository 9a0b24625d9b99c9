package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/avpetrov/reportgen/internal/config"
	"github.com/avpetrov/reportgen/internal/core/ports"
	"github.com/avpetrov/reportgen/internal/core/usecase"
	"github.com/avpetrov/reportgen/internal/infrastructure/chunking"
	"github.com/avpetrov/reportgen/internal/infrastructure/export"
	"github.com/avpetrov/reportgen/internal/infrastructure/extractor"
	"github.com/avpetrov/reportgen/internal/infrastructure/llm/ollama"
	"github.com/avpetrov/reportgen/internal/infrastructure/llm/openai"
	natsqueue "github.com/avpetrov/reportgen/internal/infrastructure/queue/nats"
	"github.com/avpetrov/reportgen/internal/infrastructure/repository/postgres"
	"github.com/avpetrov/reportgen/internal/infrastructure/storage/localfs"
	"github.com/avpetrov/reportgen/internal/report/artifacts"
)

// App wires configuration, infrastructure and use cases for both binaries.
// The worker consumes the pipeline stages, the API serves everything.
type App struct {
	Config config.Config

	Queue     ports.MessageQueue
	Documents ports.DocumentRepository
	Reports   ports.ReportRepository

	UploadUC   *usecase.UploadUseCase
	IngestUC   *usecase.IngestUseCase
	EmbedUC    *usecase.EmbedUseCase
	RetrieveUC *usecase.RetrieveUseCase
	GenerateUC *usecase.GenerateUseCase

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	projects := postgres.NewProjectRepository(db)
	documents := postgres.NewDocumentRepository(db)
	chunks := postgres.NewChunkRepository(db)
	embeddings := postgres.NewEmbeddingRepository(db)
	reports := postgres.NewReportRepository(db)

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}
	exporter, err := export.New(cfg.ExportPath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init exporter: %w", err)
	}

	queue, err := natsqueue.New(cfg.NATSURL, cfg.NATSSubject)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	embedder, generator, err := buildProviders(cfg)
	if err != nil {
		queue.Close()
		_ = db.Close()
		return nil, err
	}

	chunker := chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	extract := extractor.New(storage)

	uploadUC := usecase.NewUploadUseCase(projects, documents, storage, queue, usecase.UploadLimits{
		MaxBytes:          cfg.MaxUploadBytes,
		AllowedExtensions: cfg.AllowedExtensions,
	})
	ingestUC := usecase.NewIngestUseCase(projects, documents, chunks, embeddings, extract, chunker)
	embedUC := usecase.NewEmbedUseCase(projects, chunks, embeddings, embedder, usecase.EmbedConfig{
		BatchSize:     cfg.EmbedBatchSize,
		BatchInterval: cfg.EmbedBatchInterval,
		InputLimit:    cfg.EmbedInputLimit,
		CallTimeout:   cfg.ProviderTimeout,
	})
	retrieveUC := usecase.NewRetrieveUseCase(embedder, embeddings, cfg.RAGTopK, cfg.MinSimilarity)
	generateUC := usecase.NewGenerateUseCase(
		projects,
		documents,
		chunks,
		embeddings,
		reports,
		retrieveUC,
		generator,
		exporter,
		artifacts.NewRegistry(),
		cfg.SectionLengthBudget,
		logger,
	)

	return &App{
		Config: cfg,

		Queue:     queue,
		Documents: documents,
		Reports:   reports,

		UploadUC:   uploadUC,
		IngestUC:   ingestUC,
		EmbedUC:    embedUC,
		RetrieveUC: retrieveUC,
		GenerateUC: generateUC,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

// buildProviders selects the embedding/generation backend. An empty provider
// keeps the template-only generation path with Ollama embeddings.
func buildProviders(cfg config.Config) (ports.Embedder, ports.TextGenerator, error) {
	switch cfg.GenProvider {
	case "", "ollama":
		client := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, cfg.ProviderTimeout)
		if cfg.GenProvider == "" {
			return ollama.NewEmbedder(client), nil, nil
		}
		return ollama.NewEmbedder(client), ollama.NewGenerator(client), nil
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, nil, fmt.Errorf("GEN_PROVIDER=openai requires OPENAI_API_KEY")
		}
		client := openai.New(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIGenModel, cfg.OpenAIEmbedModel)
		return openai.NewEmbedder(client), openai.NewGenerator(client), nil
	default:
		return nil, nil, fmt.Errorf("unknown GEN_PROVIDER %q", cfg.GenProvider)
	}
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
