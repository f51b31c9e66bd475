package status

import "context"

// Store is the status database contract. There are no update or delete
// operations: corrections are modeled as new rows, and every write is visible
// to subsequent reads within the same store.
type Store interface {
	// AppendFileStatus records one status transition.
	AppendFileStatus(ctx context.Context, fs FileStatus) error

	// RecordHL7File records one extracted message. Re-recording the same
	// (log_file_path, message_number) pair is a no-op so retried split
	// attempts keep the one-row-per-message invariant.
	RecordHL7File(ctx context.Context, f HL7File) error

	// LogStatuses returns the Log-type rows whose file_path matches the query
	// suffix, ordered by processing time.
	LogStatuses(ctx context.Context, q Query) ([]FileStatus, error)

	// HL7Statuses returns the HL7-type rows for messages extracted from
	// matching log files, ordered by processing time then path.
	HL7Statuses(ctx context.Context, q Query) ([]FileStatus, error)

	// HL7Files returns the extraction records for matching log files.
	HL7Files(ctx context.Context, logPathSuffix string) ([]HL7File, error)

	// RecentHL7Files returns one row per extracted message reflecting only its
	// latest terminal outcome.
	RecentHL7Files(ctx context.Context, q Query) ([]RecentHL7File, error)
}
