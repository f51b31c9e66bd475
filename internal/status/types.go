// Package status records the processing history of every log file and every
// HL7 message extracted from one. The store is append-only: retries and
// corrections are new rows, never updates, so concurrent writers cannot race
// and external observers can always distinguish attempts.
package status

import "time"

// Status is the processing state recorded by a file_statuses row.
type Status string

const (
	// StatusParsed means a log file was fully split but its messages have not
	// yet been evaluated further.
	StatusParsed Status = "parsed"
	// StatusStaged means an individual HL7 message object was written to the
	// object store and is pending ingest.
	StatusStaged Status = "staged"
	// StatusSuccess means a message was committed to the analytical table.
	StatusSuccess Status = "success"
	// StatusFailed is the terminal negative outcome for one attempt.
	StatusFailed Status = "failed"
)

// FileType disambiguates which artifact class a status row describes.
type FileType string

const (
	TypeLog FileType = "Log"
	TypeHL7 FileType = "HL7"
)

// FileStatus is one status transition. Rows are written once by the unit that
// performed the transition and never mutated afterward.
type FileStatus struct {
	FilePath     *string   `db:"file_path"`
	Status       Status    `db:"status"`
	Type         FileType  `db:"type"`
	ErrorMessage *string   `db:"error_message"`
	WorkflowID   string    `db:"workflow_id"`
	ProcessedAt  time.Time `db:"processed_at"`
}

// HL7File records one message extracted from a log file, independent of the
// later success or failure of that message's ingest. HL7FilePath is the staged
// object URL, or the {log_path}_{message_number} fallback when the message had
// no timestamp header and was never uploaded.
type HL7File struct {
	LogFilePath   string    `db:"log_file_path"`
	MessageNumber int       `db:"message_number"`
	HL7FilePath   *string   `db:"hl7_file_path"`
	Date          time.Time `db:"date"`
}

// RecentHL7File is one row of the recent_hl7_files view: an extraction record
// joined to its most recent terminal status. Intermediate staged rows never
// appear here.
type RecentHL7File struct {
	LogFilePath   string    `db:"log_file_path"`
	MessageNumber int       `db:"message_number"`
	Date          time.Time `db:"date"`
	FilePath      *string   `db:"file_path"`
	Status        Status    `db:"status"`
	Type          FileType  `db:"type"`
	ErrorMessage  *string   `db:"error_message"`
	WorkflowID    string    `db:"workflow_id"`
	ProcessedAt   time.Time `db:"processed_at"`
}

// Query filters status reads by the workflow executions that produced the rows
// and by a path suffix, typically "/<yyyymmdd>.log" to select one log file.
type Query struct {
	WorkflowIDs   []string
	LogPathSuffix string
}
