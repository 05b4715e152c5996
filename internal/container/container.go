package container

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/anime-shed/vision-analysis-go/internal/analyzer"
	"github.com/anime-shed/vision-analysis-go/internal/config"
	"github.com/anime-shed/vision-analysis-go/internal/observer"
	"github.com/anime-shed/vision-analysis-go/internal/service"
	"github.com/anime-shed/vision-analysis-go/internal/storage"
	"github.com/anime-shed/vision-analysis-go/internal/transport"
)

// Container holds all application dependencies
type Container struct {
	config               *config.Config
	registry             *prometheus.Registry
	publisher            *observer.EventPublisher
	analyzer             analyzer.Analyzer
	blobStore            storage.BlobStore
	janitor              *storage.Janitor
	uploader             storage.TemporaryUploader
	imageAnalysisService service.ImageAnalysisService
	handler              http.Handler
}

// NewContainer validates cfg and builds the dependency graph. The vision
// client and the blob client are created once here and shared by every
// request.
func NewContainer(cfg *config.Config) (*Container, error) {
	if err := cfg.ValidateVision(); err != nil {
		return nil, err
	}
	if err := cfg.ValidateStorage(); err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	publisher := observer.NewEventPublisher()
	metricsObserver, err := observer.NewMetricsObserver(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}
	publisher.Subscribe(metricsObserver)

	visionAnalyzer, err := analyzer.NewAzureAnalyzer(cfg.VisionEndpoint, cfg.VisionKey, nil)
	if err != nil {
		return nil, err
	}

	blobStore, err := storage.NewAzureBlobStore(cfg.BlobConnectionString, cfg.BlobTempContainer)
	if err != nil {
		return nil, err
	}

	var (
		janitor *storage.Janitor
		tracker storage.ExpiryTracker
	)
	if cfg.BlobCleanupEnabled {
		janitor = storage.NewJanitor(blobStore, storage.ExpiryWindow)
		tracker = janitor
	}

	fetcher := storage.NewHTTPSourceFetcher(cfg.SourceFetchTimeout)
	uploader := storage.NewTemporaryUploader(blobStore, fetcher, publisher, tracker)
	imageAnalysisService := service.NewImageAnalysisService(visionAnalyzer, publisher)
	metricsHandler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	handler := transport.NewHandler(imageAnalysisService, uploader, metricsHandler, cfg)

	return &Container{
		config:               cfg,
		registry:             registry,
		publisher:            publisher,
		analyzer:             visionAnalyzer,
		blobStore:            blobStore,
		janitor:              janitor,
		uploader:             uploader,
		imageAnalysisService: imageAnalysisService,
		handler:              handler,
	}, nil
}

// Start launches background work. It is a no-op unless blob cleanup is
// enabled.
func (c *Container) Start() {
	if c.janitor != nil {
		c.janitor.Start()
	}
}

// Close stops background work. Staged blobs still pending are left in
// storage.
func (c *Container) Close() {
	if c.janitor != nil {
		c.janitor.Stop()
	}
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// Janitor returns the staged upload janitor, or nil when cleanup is disabled
func (c *Container) Janitor() *storage.Janitor {
	return c.janitor
}
