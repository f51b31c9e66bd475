package reports

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/washu-tag/scout-kate/internal/hl7"
)

func newMockWriter(t *testing.T) (*Writer, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewWriter(sqlx.NewDb(db, "sqlmock")), mock
}

func sampleRow() Row {
	dt := time.Date(1995, 4, 2, 7, 7, 50, 0, time.UTC)
	return NewRow(
		"s3://hl7/1995/04/02/07/199504020707509258_0.hl7",
		"/data/hl7/19950402.log",
		0,
		&hl7.Report{
			MessageDT:          &dt,
			MessageType:        "ORU R01",
			MessageControlID:   "2837",
			SendingApplication: "EPIC",
			SendingFacility:    "WUSM",
			RawMessage:         "MSH|...",
		},
	)
}

func TestEnsureTableCreatesSchema(t *testing.T) {
	writer, mock := newMockWriter(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS "reports"`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, writer.EnsureTable(t.Context(), "reports"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertReportsWhetherRowWasWritten(t *testing.T) {
	writer, mock := newMockWriter(t)
	row := sampleRow()

	mock.ExpectExec(`INSERT INTO "reports" .+ ON CONFLICT \(hl7_file_path\) DO NOTHING`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO "reports" .+ ON CONFLICT \(hl7_file_path\) DO NOTHING`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	inserted, err := writer.Insert(t.Context(), "reports", row)
	require.NoError(t, err)
	assert.True(t, inserted)

	// Second ingest of the same source identity is a no-op.
	inserted, err = writer.Insert(t.Context(), "reports", row)
	require.NoError(t, err)
	assert.False(t, inserted)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCount(t *testing.T) {
	writer, mock := newMockWriter(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM "postgres1718"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))

	n, err := writer.Count(t.Context(), "postgres1718")
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)
}

func TestRejectsUnsafeTableName(t *testing.T) {
	writer, _ := newMockWriter(t)

	err := writer.EnsureTable(t.Context(), "reports; DROP TABLE file_statuses")
	assert.Error(t, err)

	_, err = writer.Insert(t.Context(), `"quoted"`, sampleRow())
	assert.Error(t, err)
}
