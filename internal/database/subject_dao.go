package database

import (
	"context"
	"log/slog"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/protomem/gatekeeper/internal/engine"
	"github.com/protomem/gatekeeper/internal/model"
)

type SubjectDAO struct {
	Logger *slog.Logger
	*DB
}

var _ engine.SubjectStore = (*SubjectDAO)(nil)

func NewSubjectDAO(logger *slog.Logger, db *DB) *SubjectDAO {
	return &SubjectDAO{
		Logger: logger.With("dao", "subject"),
		DB:     db,
	}
}

func (dao *SubjectDAO) GetSubject(ctx context.Context, id string) (model.Subject, error) {
	logger := dao.Logger.With("query", "get")

	query, args, err := dao.Builder.
		Select("*").
		From("subjects").
		Where(squirrel.Eq{"id": id}).
		Limit(1).
		ToSql()
	if err != nil {
		return model.Subject{}, err
	}

	logger.Debug("build query", "sql", query, "args", args)

	ctx, cancel := opCtx(ctx)
	defer cancel()

	var subject model.Subject
	row := dao.QueryRowxContext(ctx, query, args...)
	if err := row.StructScan(&subject); err != nil {
		if IsNoRows(err) {
			return model.Subject{}, model.NewError("subject", model.ErrNotFound)
		}

		logger.Warn("failed query execute", "error", err)

		return model.Subject{}, mapTransient(err)
	}

	return subject, nil
}

func (dao *SubjectDAO) ListSubjects(ctx context.Context) ([]model.Subject, error) {
	logger := dao.Logger.With("query", "list")

	query, args, err := dao.Builder.
		Select("*").
		From("subjects").
		OrderBy("id ASC").
		ToSql()
	if err != nil {
		return []model.Subject{}, err
	}

	logger.Debug("build query", "sql", query, "args", args)

	ctx, cancel := opCtx(ctx)
	defer cancel()

	subjects := make([]model.Subject, 0)
	if err := dao.SelectContext(ctx, &subjects, query, args...); err != nil {
		if IsNoRows(err) {
			return []model.Subject{}, nil
		}

		logger.Warn("failed query execute", "error", err)

		return []model.Subject{}, mapTransient(err)
	}

	logger.Debug("success query execute", "countSubjects", len(subjects))

	return subjects, nil
}

func (dao *SubjectDAO) InsertSubject(ctx context.Context, subject model.Subject) error {
	logger := dao.Logger.With("query", "insert")

	query, args, err := dao.Builder.
		Insert("subjects").
		Columns("id", "display_name", "attributes", "status", "registered_at", "updated_at").
		Values(subject.ID, subject.DisplayName, subject.Attributes,
			subject.Status, subject.RegisteredAt, subject.UpdatedAt).
		ToSql()
	if err != nil {
		return err
	}

	logger.Debug("build query", "sql", query, "args", args)

	ctx, cancel := opCtx(ctx)
	defer cancel()

	if _, err := dao.ExecContext(ctx, query, args...); err != nil {
		if IsUniqueViolation(err) {
			return model.NewError("subject", model.ErrExists)
		}

		logger.Warn("failed query execute", "error", err)

		return mapTransient(err)
	}

	logger.Debug("success query execute", "insertId", subject.ID)

	return nil
}

func (dao *SubjectDAO) UpdateSubject(ctx context.Context, id string, dto engine.UpdateSubjectDTO) error {
	logger := dao.Logger.With("query", "update")

	data := make(map[string]any, 4)
	data["updated_at"] = time.Now()
	if dto.DisplayName != nil {
		data["display_name"] = *dto.DisplayName
	}
	if dto.Attributes != nil {
		data["attributes"] = dto.Attributes
	}
	if dto.Status != nil {
		data["status"] = *dto.Status
	}

	query, args, err := dao.Builder.
		Update("subjects").
		SetMap(data).
		Where(squirrel.Eq{"id": id}).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return err
	}

	logger.Debug("build query", "sql", query, "args", args)

	ctx, cancel := opCtx(ctx)
	defer cancel()

	var updatedID string
	row := dao.QueryRowxContext(ctx, query, args...)
	if err := row.Scan(&updatedID); err != nil {
		if IsNoRows(err) {
			return model.NewError("subject", model.ErrNotFound)
		}

		logger.Warn("failed query execute", "error", err)

		return mapTransient(err)
	}

	logger.Debug("success query execute", "updateId", id, "countUpdatedFields", len(data))

	return nil
}

func (dao *SubjectDAO) DeleteSubject(ctx context.Context, id string) error {
	logger := dao.Logger.With("query", "delete")

	query, args, err := dao.Builder.
		Delete("subjects").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return err
	}

	logger.Debug("build query", "sql", query, "args", args)

	ctx, cancel := opCtx(ctx)
	defer cancel()

	res, err := dao.ExecContext(ctx, query, args...)
	if err != nil {
		logger.Warn("failed query execute", "error", err)

		return mapTransient(err)
	}

	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return model.NewError("subject", model.ErrNotFound)
	}

	logger.Debug("success query execute", "deleteId", id)

	return nil
}
