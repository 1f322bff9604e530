package bootstrap

import (
	"context"
	"fmt"
	"os"

	"github.com/covlens/covlens/internal/config"
	"github.com/covlens/covlens/internal/core/parser"
	"github.com/covlens/covlens/internal/core/ports"
	"github.com/covlens/covlens/internal/core/usecase"
	"github.com/covlens/covlens/internal/infrastructure/extractor/pdfproposal"
	"github.com/covlens/covlens/internal/infrastructure/graph/neo4j"
	"github.com/covlens/covlens/internal/infrastructure/mappingtable/excel"
	"github.com/covlens/covlens/internal/infrastructure/queue/nats"
	"github.com/covlens/covlens/internal/infrastructure/refdata/kcd"
	"github.com/covlens/covlens/internal/infrastructure/refdata/seed"
	"github.com/covlens/covlens/internal/infrastructure/repository/postgres"
	"github.com/covlens/covlens/internal/infrastructure/resilience"
	"github.com/covlens/covlens/internal/infrastructure/storage/localfs"
	"github.com/covlens/covlens/internal/observability/metrics"
)

type App struct {
	Config config.Config

	Queue     ports.MessageQueue
	Documents ports.ProposalReader
	IngestUC  ports.ProposalIngestor
	ProcessUC ports.ProposalProcessor
	CompareUC ports.CoverageComparator
	Universe  ports.UniverseChecker
	RefAdmin  *usecase.ReferenceAdminUseCase
	Lineage   ports.ScopeLineageProjector

	Pipeline *metrics.PipelineMetrics

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	proposals := postgres.NewProposalRepository(db)
	if err := proposals.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	mappings := postgres.NewMappingRepository(db)
	refdata := postgres.NewReferenceDataRepository(db)

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	pipelineMetrics := metrics.NewPipelineMetrics()

	executor := resilience.NewExecutor(resilience.DefaultConfig())
	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
		LagObserver:        pipelineMetrics.ObserveQueueLag,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	mappingTable := excel.NewLoader(cfg.MappingWorkbookPath)
	diseaseCodes := kcd.NewLoader(kcd.Options{
		CSVPath:            cfg.KCDCSVPath,
		FetchURL:           cfg.KCDFetchURL,
		ResilienceExecutor: executor,
	})

	var seedSource ports.ReferenceSeedSource
	if cfg.ReferenceSeedPath != "" {
		seedSource = seed.NewLoader(cfg.ReferenceSeedPath)
	}

	var projector ports.ScopeLineageProjector
	var closeProjector func()
	if cfg.Neo4jURI != "" {
		graph, err := neo4j.New(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword)
		if err != nil {
			return nil, fmt.Errorf("init lineage graph: %w", err)
		}
		projector = graph
		closeProjector = func() { _ = graph.Close(context.Background()) }
	}

	parsers, err := parser.BuiltinRegistry()
	if err != nil {
		return nil, fmt.Errorf("compile rule packs: %w", err)
	}
	if cfg.ParserOverlayPath != "" {
		overlay, err := os.ReadFile(cfg.ParserOverlayPath)
		if err != nil {
			return nil, fmt.Errorf("read rule pack overlay: %w", err)
		}
		if err := parsers.ApplyOverlay(overlay); err != nil {
			return nil, fmt.Errorf("apply rule pack overlay: %w", err)
		}
	}

	extractor := pdfproposal.NewExtractor(storage)
	snapshots := usecase.NewSnapshotBuilder(refdata)
	resolver := usecase.NewScopeResolver(refdata)
	slotter := usecase.NewSlotExtractor(parsers, cfg.AmountCeilingKRW)
	universe := usecase.NewUniverseValidator(proposals, mappings)

	ingestUC := usecase.NewIngestProposalUseCase(proposals, storage, queue)
	processUC := usecase.NewProcessProposalUseCase(
		proposals,
		mappings,
		extractor,
		mappingTable,
		snapshots,
		parsers,
		slotter,
		resolver,
		projector,
		pipelineMetrics,
		cfg.PipelineWorkers,
	)
	compareUC := usecase.NewCompareCoverageUseCase(universe, mappings, snapshots, resolver)
	refAdmin := usecase.NewReferenceAdminUseCase(
		refdata,
		mappingTable,
		diseaseCodes,
		seedSource,
		resolver,
		snapshots,
	)

	return &App{
		Config: cfg,

		Queue:     queue,
		Documents: ingestUC,
		IngestUC:  ingestUC,
		ProcessUC: processUC,
		CompareUC: compareUC,
		Universe:  universe,
		RefAdmin:  refAdmin,
		Lineage:   projector,

		Pipeline: pipelineMetrics,

		closeFn: func() {
			queue.Close()
			if closeProjector != nil {
				closeProjector()
			}
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
