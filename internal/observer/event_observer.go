package observer

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/anime-shed/vision-analysis-go/internal/logger"
)

// Event is something that happened while serving an analysis or upload
type Event struct {
	Type      EventType
	Timestamp time.Time
	ImageURL  string
	BlobName  string
	Duration  time.Duration
	Err       error
}

// EventType represents the type of event
type EventType string

const (
	AnalysisStarted   EventType = "analysis_started"
	AnalysisCompleted EventType = "analysis_completed"
	AnalysisFailed    EventType = "analysis_failed"
	UploadStaged      EventType = "upload_staged"
	UploadFailed      EventType = "upload_failed"
)

// Observer defines the interface for event observers
type Observer interface {
	OnEvent(ctx context.Context, event Event)
	Name() string
}

// Publisher fans events out to subscribed observers
type Publisher interface {
	Subscribe(observer Observer)
	Unsubscribe(observer Observer)
	Publish(ctx context.Context, event Event)
}

// EventPublisher implements Publisher. Observers run synchronously on the
// publishing goroutine in subscription order.
type EventPublisher struct {
	mu        sync.RWMutex
	observers []Observer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher() *EventPublisher {
	return &EventPublisher{}
}

// Subscribe adds an observer
func (p *EventPublisher) Subscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, observer)
}

// Unsubscribe removes an observer by name
func (p *EventPublisher) Unsubscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, obs := range p.observers {
		if obs.Name() == observer.Name() {
			p.observers = append(p.observers[:i], p.observers[i+1:]...)
			break
		}
	}
}

// Publish notifies all observers of an event. A panicking observer is
// logged and skipped.
func (p *EventPublisher) Publish(ctx context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	p.mu.RLock()
	observers := make([]Observer, len(p.observers))
	copy(observers, p.observers)
	p.mu.RUnlock()

	for _, obs := range observers {
		notify(ctx, obs, event)
	}
}

func notify(ctx context.Context, obs Observer, event Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.WithFields(logrus.Fields{
				"observer":   obs.Name(),
				"event_type": event.Type,
				"panic":      r,
			}).Error("Observer panicked while handling event")
		}
	}()
	obs.OnEvent(ctx, event)
}

// NopPublisher drops every event
type NopPublisher struct{}

func (NopPublisher) Subscribe(Observer)             {}
func (NopPublisher) Unsubscribe(Observer)           {}
func (NopPublisher) Publish(context.Context, Event) {}

// MetricsObserver turns events into Prometheus metrics
type MetricsObserver struct {
	analyses *prometheus.CounterVec
	uploads  *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetricsObserver creates the collectors and registers them with reg
func NewMetricsObserver(reg prometheus.Registerer) (*MetricsObserver, error) {
	o := &MetricsObserver{
		analyses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vision_gateway",
			Name:      "analyses_total",
			Help:      "Image analyses by outcome.",
		}, []string{"outcome"}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vision_gateway",
			Name:      "uploads_total",
			Help:      "Staged uploads by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "vision_gateway",
			Name:      "operation_duration_seconds",
			Help:      "Duration of vision calls and staged uploads.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}

	for _, c := range []prometheus.Collector{o.analyses, o.uploads, o.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// OnEvent handles events by updating counters and histograms
func (o *MetricsObserver) OnEvent(ctx context.Context, event Event) {
	switch event.Type {
	case AnalysisStarted:
		o.analyses.WithLabelValues("started").Inc()
	case AnalysisCompleted:
		o.analyses.WithLabelValues("completed").Inc()
		o.duration.WithLabelValues("analyze").Observe(event.Duration.Seconds())
	case AnalysisFailed:
		o.analyses.WithLabelValues("failed").Inc()
		o.duration.WithLabelValues("analyze").Observe(event.Duration.Seconds())
	case UploadStaged:
		o.uploads.WithLabelValues("staged").Inc()
		o.duration.WithLabelValues("upload").Observe(event.Duration.Seconds())
	case UploadFailed:
		o.uploads.WithLabelValues("failed").Inc()
	}
}

// Name returns the observer name
func (o *MetricsObserver) Name() string {
	return "metrics_observer"
}
