package services

import (
	"context"

	"diecast-trading/internal/domain"
	"diecast-trading/pkg/logger"

	"github.com/robfig/cron/v3"
)

// FinalizeSweeper runs the finalizer on a cron schedule. Only the leader
// instance sweeps, so a fleet of replicas produces one sweep per tick; the
// operational endpoint can still trigger a sweep on any instance.
type FinalizeSweeper struct {
	cron       *cron.Cron
	finalizer  *Finalizer
	leader     domain.LeaderElection
	instanceID string
	schedule   string
	log        logger.Logger
}

func NewFinalizeSweeper(
	finalizer *Finalizer,
	leader domain.LeaderElection,
	instanceID string,
	schedule string,
	log logger.Logger,
) *FinalizeSweeper {
	if schedule == "" {
		schedule = "@every 1m"
	}
	return &FinalizeSweeper{
		cron:       cron.New(cron.WithSeconds()),
		finalizer:  finalizer,
		leader:     leader,
		instanceID: instanceID,
		schedule:   schedule,
		log:        log,
	}
}

func (s *FinalizeSweeper) Start(ctx context.Context) error {
	s.log.Info("Starting finalize sweeper", "schedule", s.schedule)

	_, err := s.cron.AddFunc(s.schedule, func() {
		s.sweep(ctx)
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

func (s *FinalizeSweeper) Stop() error {
	s.log.Info("Stopping finalize sweeper")
	s.cron.Stop()
	return nil
}

func (s *FinalizeSweeper) sweep(ctx context.Context) {
	if s.leader != nil {
		isLeader, err := s.leader.IsLeader(ctx, s.instanceID)
		if err != nil {
			s.log.Error("Leader check failed, skipping sweep", "error", err)
			return
		}
		if !isLeader {
			return
		}
	}

	results, err := s.finalizer.FinalizeDue(ctx)
	if err != nil {
		s.log.Error("Finalize sweep failed", "error", err)
		return
	}

	var closed, skipped, failed int
	for _, r := range results {
		switch {
		case r.Err != "":
			failed++
		case r.Skipped:
			skipped++
		default:
			closed++
		}
	}
	if len(results) > 0 {
		s.log.Info("Finalize sweep done",
			"candidates", len(results), "closed", closed, "skipped", skipped, "failed", failed)
	}
}
