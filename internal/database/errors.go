package database

import (
	"context"
	"database/sql"
	"errors"
	"net"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/protomem/gatekeeper/internal/model"
)

func IsNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

func IsCheckViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.CheckViolation
}

// mapTransient folds timeouts and connection failures into
// model.ErrStoreUnavailable so callers can tell a retryable outage from
// a terminal error. Other errors pass through unchanged.
func mapTransient(err error) error {
	if err == nil {
		return nil
	}

	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr),
		pgconn.Timeout(err):
		return model.NewError("store", model.ErrStoreUnavailable)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgerrcode.IsConnectionException(pgErr.Code) {
		return model.NewError("store", model.ErrStoreUnavailable)
	}

	return err
}
