package main

import (
	"context"
	"sync"

	"github.com/ManuelReschke/SchoolPay/app/repository"
	"github.com/ManuelReschke/SchoolPay/internal/pkg/cache"
	"github.com/ManuelReschke/SchoolPay/internal/pkg/config"
	"github.com/ManuelReschke/SchoolPay/internal/pkg/database"
	"github.com/ManuelReschke/SchoolPay/internal/pkg/env"
	"github.com/ManuelReschke/SchoolPay/internal/pkg/events"
	"github.com/ManuelReschke/SchoolPay/internal/pkg/gateway"
	"github.com/ManuelReschke/SchoolPay/internal/pkg/jobqueue"
	"github.com/ManuelReschke/SchoolPay/internal/pkg/orderid"
	"github.com/ManuelReschke/SchoolPay/internal/pkg/payment"
	"github.com/ManuelReschke/SchoolPay/internal/pkg/poller"
	"github.com/ManuelReschke/SchoolPay/internal/pkg/reconcile"
)

// Backend is what the commands need from the running system
type Backend interface {
	CheckPaymentStatus(ctx context.Context, collectRequestID, schoolID string) (*payment.StatusResult, error)
	Poll(ctx context.Context, collectRequestID, schoolID string, cb poller.Callbacks, opts poller.Options) (*payment.StatusResult, error)
	SweepStale(ctx context.Context) (int, error)
	PollOptions() poller.Options
}

// liveBackend connects to the database and gateway on first use
type liveBackend struct {
	once    sync.Once
	err     error
	cfg     *config.Config
	service *payment.Service
	poller  *poller.Poller
	manager *jobqueue.Manager
}

func newBackend() *liveBackend {
	return &liveBackend{}
}

func (b *liveBackend) init() error {
	b.once.Do(func() {
		env.SetupEnvFile()
		b.cfg = config.Load()
		if b.err = b.cfg.Validate(); b.err != nil {
			return
		}
		database.SetupDatabase(b.cfg.Database, b.cfg.IsDev())
		ids, err := orderid.NewGenerator(b.cfg.OrderID.MachineID)
		if err != nil {
			b.err = err
			return
		}
		orders := repository.NewOrderRepository(database.GetDB())
		engine := reconcile.NewEngineFromDB(database.GetDB(), events.NewPublisher(b.cfg.Kafka))
		b.service = payment.NewService(gateway.NewClient(b.cfg.Gateway), engine, orders, ids, payment.Options{
			DefaultSchoolID:    b.cfg.Gateway.DefaultSchoolID,
			DefaultCallbackURL: b.cfg.Gateway.CallbackURL,
			GatewayName:        b.cfg.Gateway.Name,
		})
		b.poller = poller.NewFromService(b.service)
	})
	return b.err
}

func (b *liveBackend) CheckPaymentStatus(ctx context.Context, collectRequestID, schoolID string) (*payment.StatusResult, error) {
	if err := b.init(); err != nil {
		return nil, err
	}
	return b.service.CheckPaymentStatus(ctx, collectRequestID, schoolID)
}

func (b *liveBackend) Poll(ctx context.Context, collectRequestID, schoolID string, cb poller.Callbacks, opts poller.Options) (*payment.StatusResult, error) {
	if err := b.init(); err != nil {
		return nil, err
	}
	return b.poller.Poll(ctx, collectRequestID, schoolID, cb, opts)
}

// SweepStale enqueues poll jobs for stale pending orders; the server's workers run them.
func (b *liveBackend) SweepStale(ctx context.Context) (int, error) {
	if err := b.init(); err != nil {
		return 0, err
	}
	cache.SetupCache(b.cfg.Cache)
	if b.manager == nil {
		b.manager = jobqueue.NewManager(jobqueue.NewQueueWithClient(b.cfg.Poller.Workers, cache.GetClient()), b.cfg.Poller)
		b.manager.Configure(repository.NewOrderRepository(database.GetDB()), b.poller)
	}
	return b.manager.RunStaleSweepOnce(ctx)
}

func (b *liveBackend) PollOptions() poller.Options {
	if b.init() != nil {
		return poller.Options{}
	}
	return poller.Options{
		MaxRetries: b.cfg.Poller.MaxRetries,
		RetryDelay: b.cfg.Poller.RetryDelay,
	}
}
