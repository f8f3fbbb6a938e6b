package sync

import (
	"context"

	"go-helpdesk/internal/config"

	"github.com/robfig/cron/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Sweeper periodically drops placeholder entries whose creation write timed
// out and whose authoritative record never arrived.
type Sweeper struct {
	scheduler *cron.Cron
}

func NewSweeper(lc fx.Lifecycle, cfg *config.Config, manager *Manager, logger *zap.Logger) *Sweeper {
	scheduler := cron.New()
	_, err := scheduler.AddFunc("@every 1m", func() {
		manager.SweepPlaceholders(cfg.CreateTimeout)
	})
	if err != nil {
		logger.Error("failed to schedule placeholder sweep", zap.Error(err))
	}

	sw := &Sweeper{scheduler: scheduler}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			scheduler.Start()
			return nil
		},
		OnStop: func(context.Context) error {
			<-scheduler.Stop().Done()
			return nil
		},
	})
	return sw
}
