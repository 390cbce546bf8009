package services

import (
	"context"

	"github.com/robfig/cron/v3"

	"auction-marketplace/internal/domain"
	"auction-marketplace/pkg/logger"
)

// Sweeper periodically drives scheduled lifecycle transitions: activating
// drafts whose start time arrived and completing auctions past their end
// time. With multiple instances deployed, leader election keeps the sweep
// on one node; the transitions themselves are idempotent either way.
type Sweeper struct {
	cron       *cron.Cron
	manager    *AuctionManager
	leader     domain.LeaderElection
	instanceID string
	schedule   string
	log        logger.Logger
}

func NewSweeper(manager *AuctionManager, leader domain.LeaderElection,
	instanceID, schedule string, log logger.Logger) *Sweeper {
	return &Sweeper{
		cron:       cron.New(cron.WithSeconds()),
		manager:    manager,
		leader:     leader,
		instanceID: instanceID,
		schedule:   schedule,
		log:        log,
	}
}

func (s *Sweeper) Start(ctx context.Context) error {
	s.log.Info("starting auction sweeper", "schedule", s.schedule)

	_, err := s.cron.AddFunc(s.schedule, func() {
		s.Sweep(ctx)
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

func (s *Sweeper) Stop() error {
	s.log.Info("stopping auction sweeper")
	s.cron.Stop()
	return nil
}

// Sweep runs one pass. Exported so deployments without cron can trigger
// it from their own scheduler.
func (s *Sweeper) Sweep(ctx context.Context) {
	if s.leader != nil {
		isLeader, err := s.leader.IsLeader(ctx, s.instanceID)
		if err != nil {
			s.log.Error("leader check failed, skipping sweep", "error", err)
			return
		}
		if !isLeader {
			return
		}
	}

	started, err := s.manager.StartScheduledAuctions(ctx)
	if err != nil {
		s.log.Error("scheduled start sweep failed", "error", err)
	} else if len(started) > 0 {
		s.log.Info("activated scheduled auctions", "count", len(started))
	}

	ended, err := s.manager.EndExpiredAuctions(ctx)
	if err != nil {
		s.log.Error("expiry sweep failed", "error", err)
	} else if len(ended) > 0 {
		s.log.Info("ended expired auctions", "count", len(ended))
	}
}
