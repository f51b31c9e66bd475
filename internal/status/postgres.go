package status

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/washu-tag/scout-kate/internal/observability"
)

const (
	tableFileStatuses  = "file_statuses"
	tableHL7Files      = "hl7_files"
	viewRecentHL7Files = "recent_hl7_files"
)

var fileStatusColumns = []string{
	"fs.file_path", "fs.status", "fs.type", "fs.error_message", "fs.workflow_id", "fs.processed_at",
}

// PostgresStore implements Store on top of the status database.
type PostgresStore struct {
	db     *sqlx.DB
	qb     squirrel.StatementBuilderType
	logger observability.Logger
}

// NewPostgresStore wraps an open database handle. Run Migrate before first use.
func NewPostgresStore(db *sqlx.DB, logger observability.Logger) *PostgresStore {
	return &PostgresStore{
		db:     db,
		qb:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		logger: logger,
	}
}

func (s *PostgresStore) AppendFileStatus(ctx context.Context, fs FileStatus) error {
	query := s.qb.Insert(tableFileStatuses).
		Columns("file_path", "status", "type", "error_message", "workflow_id").
		Values(fs.FilePath, fs.Status, fs.Type, fs.ErrorMessage, fs.WorkflowID)

	sql, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, sql, args...); err != nil {
		s.logger.Error("Failed to append file status",
			"error", err, "status", fs.Status, "type", fs.Type, "workflowId", fs.WorkflowID)
		return fmt.Errorf("append file status: %w", err)
	}
	return nil
}

func (s *PostgresStore) RecordHL7File(ctx context.Context, f HL7File) error {
	query := s.qb.Insert(tableHL7Files).
		Columns("log_file_path", "message_number", "hl7_file_path", "date").
		Values(f.LogFilePath, f.MessageNumber, f.HL7FilePath, f.Date).
		Suffix("ON CONFLICT (log_file_path, message_number) DO NOTHING")

	sql, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, sql, args...); err != nil {
		s.logger.Error("Failed to record hl7 file",
			"error", err, "logFilePath", f.LogFilePath, "messageNumber", f.MessageNumber)
		return fmt.Errorf("record hl7 file: %w", err)
	}
	return nil
}

func (s *PostgresStore) LogStatuses(ctx context.Context, q Query) ([]FileStatus, error) {
	query := s.qb.
		Select("file_path", "status", "type", "error_message", "workflow_id", "processed_at").
		From(tableFileStatuses).
		Where(squirrel.Eq{"workflow_id": q.WorkflowIDs}).
		Where(squirrel.Eq{"type": TypeLog}).
		Where(squirrel.Like{"file_path": "%" + q.LogPathSuffix}).
		OrderBy("processed_at ASC")

	return s.selectFileStatuses(ctx, query)
}

func (s *PostgresStore) HL7Statuses(ctx context.Context, q Query) ([]FileStatus, error) {
	query := s.qb.
		Select(fileStatusColumns...).
		From(tableFileStatuses+" fs").
		Join(tableHL7Files+" h ON h.hl7_file_path = fs.file_path").
		Where(squirrel.Eq{"fs.workflow_id": q.WorkflowIDs}).
		Where(squirrel.Like{"h.log_file_path": "%" + q.LogPathSuffix}).
		OrderBy("fs.processed_at ASC", "fs.file_path ASC")

	return s.selectFileStatuses(ctx, query)
}

func (s *PostgresStore) HL7Files(ctx context.Context, logPathSuffix string) ([]HL7File, error) {
	query := s.qb.
		Select("log_file_path", "message_number", "hl7_file_path", "date").
		From(tableHL7Files).
		Where(squirrel.Like{"log_file_path": "%" + logPathSuffix}).
		OrderBy("message_number ASC")

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []HL7File
	if err := s.db.SelectContext(ctx, &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("select hl7 files: %w", err)
	}
	return rows, nil
}

func (s *PostgresStore) RecentHL7Files(ctx context.Context, q Query) ([]RecentHL7File, error) {
	query := s.qb.
		Select("log_file_path", "message_number", "date",
			"file_path", "status", "type", "error_message", "workflow_id", "processed_at").
		From(viewRecentHL7Files).
		Where(squirrel.Eq{"workflow_id": q.WorkflowIDs}).
		Where(squirrel.Like{"log_file_path": "%" + q.LogPathSuffix}).
		OrderBy("processed_at ASC")

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []RecentHL7File
	if err := s.db.SelectContext(ctx, &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("select recent hl7 files: %w", err)
	}
	return rows, nil
}

func (s *PostgresStore) selectFileStatuses(ctx context.Context, query squirrel.SelectBuilder) ([]FileStatus, error) {
	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []FileStatus
	if err := s.db.SelectContext(ctx, &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("select file statuses: %w", err)
	}
	return rows, nil
}
