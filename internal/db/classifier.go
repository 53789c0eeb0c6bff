package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/vvka-141/pgload/pkg/pgload"
)

// SQLSTATE codes reported when the rows do not fit the table.
const (
	sqlStateUndefinedColumn  = "42703"
	sqlStateDatatypeMismatch = "42804"
)

// ClassifyWriteError maps a destination error to ErrSchemaMismatch when the
// server rejected the data itself, and to ErrConnectionFailed otherwise.
// Context cancellation is returned unchanged.
func ClassifyWriteError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, pgload.ErrSchemaMismatch) || errors.Is(err, pgload.ErrConnectionFailed) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		// Class 22: data exception (bad value, overflow, bad timestamp)
		case len(pgErr.Code) == 5 && pgErr.Code[:2] == "22":
			return fmt.Errorf("%w: %s (SQLSTATE %s)", pgload.ErrSchemaMismatch, pgErr.Message, pgErr.Code)
		case pgErr.Code == sqlStateUndefinedColumn, pgErr.Code == sqlStateDatatypeMismatch:
			return fmt.Errorf("%w: %s (SQLSTATE %s)", pgload.ErrSchemaMismatch, pgErr.Message, pgErr.Code)
		}
	}

	// pgx refuses client-side to encode a value for the column's type.
	if strings.Contains(err.Error(), "unable to encode") {
		return fmt.Errorf("%w: %w", pgload.ErrSchemaMismatch, err)
	}

	return fmt.Errorf("%w: %w", pgload.ErrConnectionFailed, err)
}
