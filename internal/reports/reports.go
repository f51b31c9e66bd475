// Package reports commits parsed HL7 messages to the job's analytical table.
// The table is keyed by the staged object path, so re-ingesting the same
// extraction is a no-op and repeat runs cannot duplicate rows.
package reports

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/washu-tag/scout-kate/internal/hl7"
)

// tableName restricts report table names to plain identifiers. The name comes
// from job input and is interpolated into DDL, so it cannot be parameterized.
var tableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Row is one analytical table row.
type Row struct {
	HL7FilePath        string     `db:"hl7_file_path"`
	LogFilePath        string     `db:"log_file_path"`
	MessageNumber      int        `db:"message_number"`
	MessageDT          *time.Time `db:"message_dt"`
	MessageType        string     `db:"message_type"`
	MessageControlID   string     `db:"message_control_id"`
	SendingApplication string     `db:"sending_application"`
	SendingFacility    string     `db:"sending_facility"`
	RawMessage         string     `db:"raw_message"`
}

// NewRow combines a parsed report with its staging identity.
func NewRow(hl7FilePath, logFilePath string, messageNumber int, report *hl7.Report) Row {
	return Row{
		HL7FilePath:        hl7FilePath,
		LogFilePath:        logFilePath,
		MessageNumber:      messageNumber,
		MessageDT:          report.MessageDT,
		MessageType:        report.MessageType,
		MessageControlID:   report.MessageControlID,
		SendingApplication: report.SendingApplication,
		SendingFacility:    report.SendingFacility,
		RawMessage:         report.RawMessage,
	}
}

// Writer writes report rows to a named analytical table.
type Writer struct {
	db *sqlx.DB
	qb squirrel.StatementBuilderType
}

// NewWriter wraps an open database handle.
func NewWriter(db *sqlx.DB) *Writer {
	return &Writer{
		db: db,
		qb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// EnsureTable creates the analytical table when it does not exist yet.
func (w *Writer) EnsureTable(ctx context.Context, table string) error {
	if err := validateTable(table); err != nil {
		return err
	}

	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		hl7_file_path TEXT PRIMARY KEY,
		log_file_path TEXT NOT NULL,
		message_number INT NOT NULL,
		message_dt TIMESTAMPTZ,
		message_type TEXT,
		message_control_id TEXT,
		sending_application TEXT,
		sending_facility TEXT,
		raw_message TEXT NOT NULL,
		ingested_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`, pq.QuoteIdentifier(table))

	if _, err := w.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure report table %s: %w", table, err)
	}
	return nil
}

// Insert commits one row. It reports whether the row was actually written;
// false means the message was already ingested for the same source identity.
func (w *Writer) Insert(ctx context.Context, table string, row Row) (bool, error) {
	if err := validateTable(table); err != nil {
		return false, err
	}

	query := w.qb.Insert(pq.QuoteIdentifier(table)).
		Columns("hl7_file_path", "log_file_path", "message_number", "message_dt",
			"message_type", "message_control_id", "sending_application", "sending_facility", "raw_message").
		Values(row.HL7FilePath, row.LogFilePath, row.MessageNumber, row.MessageDT,
			row.MessageType, row.MessageControlID, row.SendingApplication, row.SendingFacility, row.RawMessage).
		Suffix("ON CONFLICT (hl7_file_path) DO NOTHING")

	sql, args, err := query.ToSql()
	if err != nil {
		return false, fmt.Errorf("build insert: %w", err)
	}

	res, err := w.db.ExecContext(ctx, sql, args...)
	if err != nil {
		return false, fmt.Errorf("insert report row: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// Count returns the number of rows in the analytical table.
func (w *Writer) Count(ctx context.Context, table string) (int64, error) {
	if err := validateTable(table); err != nil {
		return 0, err
	}

	var count int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", pq.QuoteIdentifier(table))
	if err := w.db.GetContext(ctx, &count, query); err != nil {
		return 0, fmt.Errorf("count report rows: %w", err)
	}
	return count, nil
}

func validateTable(table string) error {
	if !tableName.MatchString(table) {
		return fmt.Errorf("invalid report table name %q", table)
	}
	return nil
}
