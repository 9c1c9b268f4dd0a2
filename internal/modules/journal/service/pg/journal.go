package pg

import (
	"context"

	"github.com/bytedance/sonic"
	"github.com/jackc/pgx/v5"
	pkgerrors "github.com/pkg/errors"

	"trade_router/internal/models"
	"trade_router/internal/modules/journal/service/pg/sql"
	"trade_router/pkg/db"
)

// Repo persists dispatch decisions and auto-short attempts.
type Repo struct {
	txManager db.TxManager
}

func NewRepo(txManager db.TxManager) *Repo {
	return &Repo{txManager: txManager}
}

func (r *Repo) InsertSignal(ctx context.Context, sig models.Signal, outcome *models.OrderOutcome) (err error) {
	defer func() {
		err = pkgerrors.Wrap(err, "insert signal")
	}()

	payload, err := sonic.Marshal(sig)
	if err != nil {
		return err
	}

	return r.txManager.Run(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		return sql.New(tx).InsertSignal(ctxTx, sql.InsertSignalParams{
			ReceivedAt: sig.Received,
			Account:    outcome.Account,
			Timeframe:  sig.Timeframe,
			Pair:       outcome.Pair,
			Side:       string(outcome.Side),
			Price:      outcome.Price,
			Quantity:   outcome.Quantity,
			ClOrdID:    outcome.ClOrdID,
			OrderID:    outcome.OrderID,
			Accepted:   outcome.Accepted,
			Reason:     outcome.Reason,
			Payload:    payload,
		})
	})
}

func (r *Repo) InsertShortAttempt(ctx context.Context, att models.ShortAttempt) (err error) {
	defer func() {
		err = pkgerrors.Wrap(err, "insert short attempt")
	}()

	return r.txManager.Run(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		return sql.New(tx).InsertShortAttempt(ctxTx, sql.InsertShortAttemptParams{
			AttemptedAt: att.LastAt,
			Account:     att.Account,
			Currency:    att.Currency,
			Quantity:    att.Quantity,
			Price:       att.Price,
			Attempts:    int32(att.Attempts),
			Outcome:     string(att.Outcome),
		})
	})
}
