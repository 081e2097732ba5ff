package jobqueue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/SchoolPay/app/repository"
	"github.com/ManuelReschke/SchoolPay/internal/pkg/cache"
	"github.com/ManuelReschke/SchoolPay/internal/pkg/config"
	"github.com/ManuelReschke/SchoolPay/internal/pkg/poller"
)

const (
	// PollMarkerPrefix marks orders that already have a poll job in flight
	PollMarkerPrefix = "poll_marker:"

	staleBatchSize = 100
)

// Manager manages the global job queue and background tasks
type Manager struct {
	queue     *Queue
	cfg       config.PollerConfig
	markStale func(key string, ttl time.Duration) (bool, error)
	enqueue   func(payload PollPaymentJobPayload) error
	staleTick *time.Ticker
	stopCh    chan struct{}
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	running   bool

	// ordersMu guards orders; sweeps never take mu
	ordersMu sync.RWMutex
	orders   repository.OrderRepository
}

var (
	globalManager *Manager
	managerOnce   sync.Once
)

// GetManager returns the global job queue manager (singleton)
func GetManager() *Manager {
	managerOnce.Do(func() {
		cfg := config.Load().Poller
		globalManager = NewManager(NewQueue(cfg.Workers), cfg)
	})
	return globalManager
}

// NewManager creates a manager around an existing queue
func NewManager(queue *Queue, cfg config.PollerConfig) *Manager {
	return &Manager{
		queue:  queue,
		cfg:    cfg,
		stopCh: make(chan struct{}),
		markStale: func(key string, ttl time.Duration) (bool, error) {
			return cache.SetNX(key, "1", ttl)
		},
		enqueue: func(payload PollPaymentJobPayload) error {
			_, err := queue.EnqueuePollPayment(payload)
			return err
		},
	}
}

// Configure wires the order lookup for the stale sweeper and the poller for poll jobs
func (m *Manager) Configure(orders repository.OrderRepository, p StatusPoller) {
	m.ordersMu.Lock()
	m.orders = orders
	m.ordersMu.Unlock()

	m.queue.SetMaxRetries(m.cfg.JobMaxRetries)
	m.queue.SetPoller(p, poller.Options{
		MaxRetries: m.cfg.MaxRetries,
		RetryDelay: m.cfg.RetryDelay,
	})
}

// GetQueue returns the managed job queue
func (m *Manager) GetQueue() *Queue {
	return m.queue
}

// Start starts the job queue and background tasks
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	// Recreate stop channel for each start cycle so manager can be restarted safely.
	m.stopCh = make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.running = true
	log.Info("[JobQueue Manager] Starting job queue and background tasks")

	m.queue.Start()

	interval := m.cfg.SweepInterval
	if interval <= 0 {
		interval = time.Minute
	}
	m.staleTick = time.NewTicker(interval)
	m.wg.Add(1)
	go m.staleWorker(ctx, m.stopCh, m.staleTick)

	log.Info("[JobQueue Manager] Started successfully")
}

// Stop stops the job queue and background tasks
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[JobQueue Manager] Stopping job queue and background tasks...")

	if m.staleTick != nil {
		m.staleTick.Stop()
	}

	// Signal workers to stop and abort a sweep in progress
	close(m.stopCh)
	m.stopCh = nil
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.running = false

	// Wait for background workers to finish
	m.wg.Wait()

	// Stop the job queue
	m.queue.Stop()

	log.Info("[JobQueue Manager] Stopped successfully")
}

// staleWorker periodically enqueues polls for payments the webhook never settled
func (m *Manager) staleWorker(ctx context.Context, stopCh <-chan struct{}, ticker *time.Ticker) {
	defer m.wg.Done()
	log.Infof("[JobQueue Manager] Started stale payment worker (window: %s, max age: %s)", m.cfg.WebhookWindow, m.cfg.MaxAge)

	for {
		select {
		case <-stopCh:
			log.Info("[JobQueue Manager] Stale payment worker stopping")
			return
		case <-ticker.C:
			if n, err := m.RunStaleSweepOnce(ctx); err != nil && ctx.Err() == nil {
				log.Errorf("[JobQueue Manager] Stale payment sweep error: %v", err)
			} else if n > 0 {
				log.Infof("[JobQueue Manager] Enqueued %d status polls", n)
			}
		}
	}
}

// RunStaleSweepOnce enqueues one poll job per pending order older than the
// webhook window and younger than the max age. Orders that already have a
// poll marker are skipped. Returns the number of jobs enqueued.
func (m *Manager) RunStaleSweepOnce(ctx context.Context) (int, error) {
	m.ordersMu.RLock()
	orders := m.orders
	m.ordersMu.RUnlock()
	if orders == nil {
		return 0, fmt.Errorf("stale sweeper has no order repository")
	}

	window := m.cfg.WebhookWindow
	if window <= 0 {
		window = 5 * time.Minute
	}
	maxAge := m.cfg.MaxAge
	if maxAge <= window {
		maxAge = 24 * time.Hour
	}

	now := time.Now()
	stale, err := orders.FindStalePending(now.Add(-window), now.Add(-maxAge), staleBatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to load stale orders: %w", err)
	}

	enqueued := 0
	for _, order := range stale {
		if ctx.Err() != nil {
			return enqueued, ctx.Err()
		}
		collectID := order.CollectRequestIDValue()
		if collectID == "" {
			continue
		}

		fresh, err := m.markStale(PollMarkerPrefix+order.ID, window)
		if err != nil {
			log.Warnf("[JobQueue Manager] Could not set poll marker for order %s: %v", order.ID, err)
			continue
		}
		if !fresh {
			continue
		}

		if err := m.enqueue(PollPaymentJobPayload{
			OrderID:          order.ID,
			CollectRequestID: collectID,
			SchoolID:         order.SchoolID,
		}); err != nil {
			log.Errorf("[JobQueue Manager] Failed to enqueue poll for order %s: %v", order.ID, err)
			continue
		}
		enqueued++
	}
	return enqueued, nil
}

// IsRunning returns whether the manager is currently running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// QueueStats returns a snapshot of the managed queue
func (m *Manager) QueueStats(ctx context.Context) (*QueueStats, error) {
	return m.queue.Stats(ctx)
}
