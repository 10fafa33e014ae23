package di

import (
	"context"
	"fmt"

	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/clients/finnhub"
	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/clients/llm"
	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/clients/marketstatus"
	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/config"
	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/domain"
	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/gateway"
	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/jobs"
	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/modules/catalog"
	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/modules/market_hours"
	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/modules/marketdata"
	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/modules/research"
	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/queue"
	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/reliability"
)

// InitializeRepositories builds the repositories over the open databases
func InitializeRepositories(container *Container) {
	log := container.log

	container.CatalogRepo = catalog.NewRepository(container.CoreDB.Conn(), container.Clock, log)
	container.QueueRepo = queue.NewRepository(container.CoreDB.Conn())
	container.TicketRepo = research.NewRepository(container.CoreDB.Conn())
	container.MarketDataRepo = marketdata.NewRepository(container.HistoryDB.Conn(), container.Clock, log)
}

// InitializeServices builds clients and services
func InitializeServices(ctx context.Context, container *Container, cfg *config.Config) error {
	log := container.log

	// External Data Gateway
	container.FinnhubClient = finnhub.NewClient(cfg.Finnhub.BaseURL, cfg.Finnhub.APIKey, log)

	providers := make([]domain.AnalysisProvider, 0, len(cfg.LLM.Providers))
	for _, name := range cfg.LLM.Providers {
		switch name {
		case "openai":
			providers = append(providers, llm.NewOpenAI(cfg.LLM.OpenAIBaseURL, cfg.LLM.OpenAIAPIKey, cfg.LLM.OpenAIModel, log))
		case "gemini":
			providers = append(providers, llm.NewGemini(cfg.LLM.GeminiBaseURL, cfg.LLM.GeminiAPIKey, cfg.LLM.GeminiModel, log))
		default:
			return fmt.Errorf("unknown analysis provider %q", name)
		}
	}
	container.Analyzer = gateway.NewAnalyzerChain(log, providers...)

	// Trading Calendar Gate: stream cache first, then the Finnhub endpoint, then the calendar
	var live []market_hours.LiveSource
	if cfg.Market.StreamURL != "" {
		container.StatusStream = marketstatus.NewClient(cfg.Market.StreamURL, log)
		live = append(live, market_hours.NewStreamSource(container.StatusStream))
	}
	if cfg.Finnhub.APIKey != "" {
		live = append(live, market_hours.NewFinnhubSource(container.FinnhubClient))
	}
	var liveSource market_hours.LiveSource
	if len(live) > 0 {
		liveSource = market_hours.NewChainSource(live...)
	}
	container.MarketGate = market_hours.NewGate(
		liveSource,
		market_hours.NewStatusCache(cfg.Market.CacheTTL, container.Clock),
		container.Clock,
		cfg.Market.LiveTimeout,
		log,
	)

	// Durable Request Queue
	container.QueueRegistry = queue.NewRegistry()
	jobs.RegisterQueueHandlers(container.QueueRegistry, &jobs.HandlerDeps{
		MarketData:  container.FinnhubClient,
		Store:       container.MarketDataRepo,
		Catalog:     container.CatalogRepo,
		HistoryDays: cfg.Sync.HistoryDays,
	})
	container.QueueManager = queue.NewManager(
		container.QueueRepo,
		container.QueueRegistry,
		queue.Policy{
			MaxAttempts:        cfg.Queue.MaxAttempts,
			BaseBackoffSeconds: cfg.Queue.BaseBackoffSeconds,
			BatchSize:          cfg.Queue.BatchSize,
		},
		container.Clock,
		log,
	)

	// Ticket Lifecycle Manager
	container.TicketManager = research.NewManager(container.TicketRepo, container.Clock, log)
	container.TicketProcessor = research.NewProcessor(
		container.TicketManager,
		container.MarketDataRepo,
		container.Analyzer,
		container.Clock,
		log,
	)

	// Periodic sync
	container.SyncService = jobs.NewSyncService(jobs.SyncDeps{
		Catalog:    container.CatalogRepo,
		MarketData: container.FinnhubClient,
		Store:      container.MarketDataRepo,
		Gate:       container.MarketGate,
		Queue:      container.QueueManager,
		Tickets:    container.TicketManager,
		Processor:  container.TicketProcessor,
		Clock:      container.Clock,
	}, jobs.Config{
		FullSyncDelay:     cfg.Sync.FullDelay,
		SnapshotSyncDelay: cfg.Sync.SnapshotDelay,
		RiskScanDelay:     cfg.Sync.RiskScanDelay,
		HistoryDays:       cfg.Sync.HistoryDays,
		StalenessWindow:   cfg.Sync.StalenessWindow,
	}, log)

	// Audit export
	var uploader reliability.Uploader
	s3cfg := reliability.S3Config{
		Bucket:          cfg.Archive.Bucket,
		Endpoint:        cfg.Archive.Endpoint,
		Region:          cfg.Archive.Region,
		AccessKeyID:     cfg.Archive.AccessKeyID,
		SecretAccessKey: cfg.Archive.SecretAccessKey,
	}
	if s3cfg.Enabled() {
		client, err := reliability.NewS3Client(ctx, s3cfg, log)
		if err != nil {
			return fmt.Errorf("failed to create archive client: %w", err)
		}
		uploader = client
	}
	container.ArchiveService = reliability.NewArchiveService(
		uploader,
		container.QueueRepo,
		container.TicketManager,
		cfg.Archive.Prefix,
		container.Clock,
		log,
	)

	return nil
}
