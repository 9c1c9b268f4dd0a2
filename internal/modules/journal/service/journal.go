package service

import (
	"context"

	"trade_router/internal/models"
	"trade_router/internal/modules/journal/service/pg"
	"trade_router/pkg/logger"
)

// Journal records what the engine did. Persistence is best effort: a dead
// database must never block order flow, so implementations log failures
// and move on.
type Journal interface {
	Signal(ctx context.Context, sig models.Signal, outcome *models.OrderOutcome)
	ShortAttempt(ctx context.Context, att models.ShortAttempt)
}

// PgJournal writes to postgres through the repo layer.
type PgJournal struct {
	repo *pg.Repo
}

func NewPgJournal(repo *pg.Repo) *PgJournal {
	return &PgJournal{repo: repo}
}

func (j *PgJournal) Signal(ctx context.Context, sig models.Signal, outcome *models.OrderOutcome) {
	if err := j.repo.InsertSignal(ctx, sig, outcome); err != nil {
		logger.Error("journal: %v", err)
	}
}

func (j *PgJournal) ShortAttempt(ctx context.Context, att models.ShortAttempt) {
	if err := j.repo.InsertShortAttempt(ctx, att); err != nil {
		logger.Error("journal: %v", err)
	}
}

// Noop is used when no database is configured.
type Noop struct{}

func (Noop) Signal(context.Context, models.Signal, *models.OrderOutcome) {}
func (Noop) ShortAttempt(context.Context, models.ShortAttempt)          {}
