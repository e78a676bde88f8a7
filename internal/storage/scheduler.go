package storage

import (
	"log"

	"github.com/robfig/cron/v3"

	"github.com/prismdb/prismdb/internal/errs"
)

// CheckpointScheduler runs checkpoints on a cron schedule. The
// checkpoint callback is supplied by the connection so that scheduled
// runs take the same lock as caller statements.
type CheckpointScheduler struct {
	cron *cron.Cron
}

// NewCheckpointScheduler validates the expression and registers the
// checkpoint function. Standard 5-field cron expressions and
// descriptors such as "@every 5m" are accepted.
func NewCheckpointScheduler(expr string, checkpoint func() error) (*CheckpointScheduler, error) {
	c := cron.New()
	_, err := c.AddFunc(expr, func() {
		if err := checkpoint(); err != nil {
			log.Printf("scheduled checkpoint failed: %v", err)
		}
	})
	if err != nil {
		return nil, errs.Wrap(errs.Value, "invalid checkpoint schedule", err)
	}
	return &CheckpointScheduler{cron: c}, nil
}

// Start begins scheduled execution.
func (s *CheckpointScheduler) Start() { s.cron.Start() }

// Stop halts the schedule and waits for an in-flight checkpoint to
// finish.
func (s *CheckpointScheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
