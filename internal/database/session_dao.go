package database

import (
	"context"
	"log/slog"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/protomem/gatekeeper/internal/engine"
	"github.com/protomem/gatekeeper/internal/model"
)

type SessionDAO struct {
	Logger *slog.Logger
	*DB
}

var _ engine.SessionStore = (*SessionDAO)(nil)

func NewSessionDAO(logger *slog.Logger, db *DB) *SessionDAO {
	return &SessionDAO{
		Logger: logger.With("dao", "session"),
		DB:     db,
	}
}

func (dao *SessionDAO) FindOpenSession(ctx context.Context, subjectID string, day model.Day) (model.SessionRecord, error) {
	query, args, err := dao.Builder.
		Select("*").
		From("gate_logs").
		Where(squirrel.Eq{"subject_id": subjectID}).
		Where(squirrel.Eq{"log_day": day}).
		Where("exit_time IS NULL").
		Limit(1).
		ToSql()
	if err != nil {
		return model.SessionRecord{}, err
	}

	dao.Logger.Debug("query", "sql", query, "args", args)

	ctx, cancel := opCtx(ctx)
	defer cancel()

	var record model.SessionRecord
	row := dao.QueryRowxContext(ctx, query, args...)
	if err := row.StructScan(&record); err != nil {
		if IsNoRows(err) {
			return model.SessionRecord{}, model.NewError("session", model.ErrNotFound)
		}

		return model.SessionRecord{}, mapTransient(err)
	}

	return record, nil
}

func (dao *SessionDAO) GetSession(ctx context.Context, id model.ID) (model.SessionRecord, error) {
	query, args, err := dao.Builder.
		Select("*").
		From("gate_logs").
		Where(squirrel.Eq{"id": id}).
		Limit(1).
		ToSql()
	if err != nil {
		return model.SessionRecord{}, err
	}

	dao.Logger.Debug("query", "sql", query, "args", args)

	ctx, cancel := opCtx(ctx)
	defer cancel()

	var record model.SessionRecord
	row := dao.QueryRowxContext(ctx, query, args...)
	if err := row.StructScan(&record); err != nil {
		if IsNoRows(err) {
			return model.SessionRecord{}, model.NewError("session", model.ErrNotFound)
		}

		return model.SessionRecord{}, mapTransient(err)
	}

	return record, nil
}

func (dao *SessionDAO) InsertSession(ctx context.Context, dto engine.InsertSessionDTO) (model.ID, error) {
	query, args, err := dao.Builder.
		Insert("gate_logs").
		Columns("subject_id", "log_day", "entry_time", "method", "notes").
		Values(dto.SubjectID, dto.Day, dto.EntryTime, dto.Method, dto.Notes).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, err
	}

	dao.Logger.Debug("query", "sql", query, "args", args)

	ctx, cancel := opCtx(ctx)
	defer cancel()

	var id model.ID
	row := dao.QueryRowxContext(ctx, query, args...)
	if err := row.Scan(&id); err != nil {
		// The partial unique index guards the one-open-session invariant
		// against writers outside this process.
		if IsUniqueViolation(err) {
			return 0, model.NewError("session", model.ErrConstraint)
		}

		return 0, mapTransient(err)
	}

	return id, nil
}

func (dao *SessionDAO) CloseSession(ctx context.Context, id model.ID, exitTime time.Time, method model.ScanMethod) error {
	query, args, err := dao.Builder.
		Update("gate_logs").
		SetMap(map[string]any{
			"exit_time": exitTime,
			"method":    method,
		}).
		Where(squirrel.Eq{"id": id}).
		Where("exit_time IS NULL").
		ToSql()
	if err != nil {
		return err
	}

	dao.Logger.Debug("query", "sql", query, "args", args)

	ctx, cancel := opCtx(ctx)
	defer cancel()

	res, err := dao.ExecContext(ctx, query, args...)
	if err != nil {
		if IsCheckViolation(err) {
			return model.NewError("session", model.ErrConstraint)
		}

		return mapTransient(err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return mapTransient(err)
	}
	if affected != 0 {
		return nil
	}

	// No row updated: distinguish a missing record from a double exit.
	if _, err := dao.GetSession(ctx, id); err != nil {
		return err
	}

	return model.NewError("session", model.ErrAlreadyClosed)
}

func (dao *SessionDAO) ListByDay(ctx context.Context, day model.Day) ([]model.SessionRecord, error) {
	query, args, err := dao.Builder.
		Select("*").
		From("gate_logs").
		Where(squirrel.Eq{"log_day": day}).
		OrderBy("entry_time DESC", "id DESC").
		ToSql()
	if err != nil {
		return []model.SessionRecord{}, err
	}

	dao.Logger.Debug("query", "sql", query, "args", args)

	ctx, cancel := opCtx(ctx)
	defer cancel()

	records := make([]model.SessionRecord, 0)
	if err := dao.SelectContext(ctx, &records, query, args...); err != nil {
		if IsNoRows(err) {
			return []model.SessionRecord{}, nil
		}

		return []model.SessionRecord{}, mapTransient(err)
	}

	return records, nil
}

func (dao *SessionDAO) DayCounts(ctx context.Context, day model.Day) (entries, exits int, err error) {
	query, args, err := dao.Builder.
		Select("COUNT(*) AS entries", "COUNT(exit_time) AS exits").
		From("gate_logs").
		Where(squirrel.Eq{"log_day": day}).
		ToSql()
	if err != nil {
		return 0, 0, err
	}

	dao.Logger.Debug("query", "sql", query, "args", args)

	ctx, cancel := opCtx(ctx)
	defer cancel()

	row := dao.QueryRowxContext(ctx, query, args...)
	if err := row.Scan(&entries, &exits); err != nil {
		return 0, 0, mapTransient(err)
	}

	return entries, exits, nil
}

func (dao *SessionDAO) OpenSessionCount(ctx context.Context, subjectID string) (int, error) {
	query, args, err := dao.Builder.
		Select("COUNT(*)").
		From("gate_logs").
		Where(squirrel.Eq{"subject_id": subjectID}).
		Where("exit_time IS NULL").
		ToSql()
	if err != nil {
		return 0, err
	}

	dao.Logger.Debug("query", "sql", query, "args", args)

	ctx, cancel := opCtx(ctx)
	defer cancel()

	var count int
	row := dao.QueryRowxContext(ctx, query, args...)
	if err := row.Scan(&count); err != nil {
		return 0, mapTransient(err)
	}

	return count, nil
}

func (dao *SessionDAO) IterSessions(ctx context.Context, from, to model.Day, fn func(model.SessionRecord) error) error {
	query, args, err := dao.Builder.
		Select("*").
		From("gate_logs").
		Where(squirrel.GtOrEq{"log_day": from}).
		Where(squirrel.LtOrEq{"log_day": to}).
		OrderBy("log_day ASC", "entry_time ASC", "id ASC").
		ToSql()
	if err != nil {
		return err
	}

	dao.Logger.Debug("query", "sql", query, "args", args)

	rows, err := dao.QueryxContext(ctx, query, args...)
	if err != nil {
		return mapTransient(err)
	}
	defer rows.Close()

	for rows.Next() {
		var record model.SessionRecord
		if err := rows.StructScan(&record); err != nil {
			return err
		}
		if err := fn(record); err != nil {
			return err
		}
	}

	return mapTransient(rows.Err())
}

func (dao *SessionDAO) DeleteSessions(ctx context.Context, day *model.Day) (int64, error) {
	builder := dao.Builder.Delete("gate_logs")
	if day != nil {
		builder = builder.Where(squirrel.Eq{"log_day": *day})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return 0, err
	}

	dao.Logger.Debug("query", "sql", query, "args", args)

	ctx, cancel := opCtx(ctx)
	defer cancel()

	res, err := dao.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, mapTransient(err)
	}

	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, mapTransient(err)
	}

	return deleted, nil
}
