package events

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// WebhookConfig tunes the delivery workers.
type WebhookConfig struct {
	Timeout     time.Duration
	RetryCount  int
	RetryDelay  time.Duration
	WorkerCount int
	QueueSize   int
}

type task struct {
	url      string
	envelope Envelope
	attempt  int
}

// WebhookEmitter posts event envelopes as JSON to a fixed set of URLs.
// Deliveries run on a small worker pool behind a bounded queue; when
// the queue is full the event is dropped and logged, never blocked on.
type WebhookEmitter struct {
	urls       []string
	httpClient *http.Client
	logger     *slog.Logger
	retryCount int
	retryDelay time.Duration
	queue      chan task
	stopCh     chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
}

func NewWebhookEmitter(urls []string, cfg WebhookConfig, logger *slog.Logger) *WebhookEmitter {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RetryCount <= 0 {
		cfg.RetryCount = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 5 * time.Second
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 3
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 100
	}

	e := &WebhookEmitter{
		urls:       urls,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
		retryCount: cfg.RetryCount,
		retryDelay: cfg.RetryDelay,
		queue:      make(chan task, cfg.QueueSize),
		stopCh:     make(chan struct{}),
	}

	for i := 0; i < cfg.WorkerCount; i++ {
		e.wg.Add(1)
		go e.worker()
	}

	return e
}

// Stop drains the workers. Queued deliveries are abandoned.
func (e *WebhookEmitter) Stop() {
	e.stopOnce.Do(func() { close(e.stopCh) })
	e.wg.Wait()
}

func (e *WebhookEmitter) JobStatusChanged(ev JobStatusChange) {
	e.enqueue(EventJobStatusChanged, ev)
}

func (e *WebhookEmitter) DeviceStatusChanged(ev DeviceStatusChange) {
	e.enqueue(EventDeviceStatusChanged, ev)
}

func (e *WebhookEmitter) RefundIssued(ev RefundIssued) {
	e.enqueue(EventRefundIssued, ev)
}

func (e *WebhookEmitter) enqueue(typ EventType, data interface{}) {
	envelope := Envelope{
		Event:     typ,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
	for _, url := range e.urls {
		select {
		case e.queue <- task{url: url, envelope: envelope}:
		default:
			e.logger.Warn("webhook queue full, dropping event", "event", typ, "url", url)
		}
	}
}

func (e *WebhookEmitter) worker() {
	defer e.wg.Done()
	for {
		select {
		case <-e.stopCh:
			return
		case t := <-e.queue:
			e.deliver(t)
		}
	}
}

func (e *WebhookEmitter) deliver(t task) {
	body, err := json.Marshal(t.envelope)
	if err != nil {
		e.logger.Error("failed to marshal event", "event", t.envelope.Event, "error", err)
		return
	}

	for attempt := 0; attempt <= e.retryCount; attempt++ {
		if attempt > 0 {
			select {
			case <-e.stopCh:
				return
			case <-time.After(e.retryDelay):
			}
		}

		resp, err := e.httpClient.Post(t.url, "application/json", bytes.NewReader(body))
		if err != nil {
			e.logger.Warn("webhook delivery failed", "url", t.url, "attempt", attempt, "error", err)
			continue
		}
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return
		}
		e.logger.Warn("webhook rejected", "url", t.url, "attempt", attempt, "status", resp.StatusCode)
	}

	e.logger.Error("webhook delivery abandoned", "url", t.url, "event", t.envelope.Event)
}
