// Package ingest holds the Temporal workflows and activities that drive HL7
// log ingestion: discovering log files, splitting them into staged message
// objects with bounded parallelism, and ingesting each file's messages in an
// isolated child workflow. A run that discovers more files than one execution
// should process continues itself as a new execution to keep history bounded.
package ingest

import "time"

const (
	// TaskQueue is the Temporal task queue both workflows and all activities
	// run on.
	TaskQueue = "ingest-hl7-log"

	// IngestLogWorkflowName is the registered name of the top-level workflow.
	IngestLogWorkflowName = "IngestHl7LogWorkflow"

	// IngestHL7WorkflowName is the registered name of the per-file child
	// workflow.
	IngestHL7WorkflowName = "IngestHl7FileWorkflow"

	// SplitAndUploadRetries is the attempt budget for the split and transform
	// activities. Every attempt appends fresh status rows, so observers can
	// count attempts from the status database alone.
	SplitAndUploadRetries = 5
)

// Defaults applied by withDefaults when the corresponding input field is zero.
const (
	defaultLogsRootPath     = "/data/hl7"
	defaultReportTableName  = "reports"
	defaultSplitTimeout     = 10 * time.Minute
	defaultSplitHeartbeat   = 30 * time.Second
	defaultSplitConcurrency = 8
	defaultMaxLogsPerRun    = 500
)

// IngestJobInput is the orchestrator's start parameter set. It is created once
// at workflow start and never mutated; a continuation receives a fresh copy
// carrying the remaining log paths. JSON names match the wire contract used by
// external launchers.
type IngestJobInput struct {
	// HL7OutputPath optionally overrides where staged messages are written,
	// as an s3://bucket[/prefix] location.
	HL7OutputPath string `json:"hl7OutputPath,omitempty"`
	// ScratchSpaceRootPath optionally points split activities at a local
	// scratch directory for message payloads before upload.
	ScratchSpaceRootPath string `json:"scratchSpaceRootPath,omitempty"`
	// LogsRootPath is the directory scanned for *.log files.
	LogsRootPath string `json:"logsRootPath,omitempty"`
	// ReportTableName is the destination analytical table.
	ReportTableName string `json:"reportTableName,omitempty"`
	// LogPaths, when set, is a comma-separated explicit file list that
	// overrides the directory scan.
	LogPaths string `json:"logPaths,omitempty"`

	// Per-activity execution bounds.
	SplitTimeout       time.Duration `json:"splitTimeout,omitempty"`
	SplitHeartbeat     time.Duration `json:"splitHeartbeat,omitempty"`
	TransformTimeout   time.Duration `json:"transformTimeout,omitempty"`
	TransformHeartbeat time.Duration `json:"transformHeartbeat,omitempty"`

	// SplitConcurrency bounds how many log files are split in parallel within
	// one workflow execution.
	SplitConcurrency int `json:"splitConcurrency,omitempty"`

	// MaxLogsPerRun bounds how many log files one execution processes before
	// continuing as new.
	MaxLogsPerRun int `json:"maxLogsPerRun,omitempty"`

	// FailSplitOnEmptyMessage decides whether an empty message payload fails
	// the whole split attempt (consuming file-level retries) or is recorded
	// as an isolated message failure. Nil means true, matching observed
	// production behavior.
	FailSplitOnEmptyMessage *bool `json:"failSplitOnEmptyMessage,omitempty"`
}

func (in IngestJobInput) withDefaults() IngestJobInput {
	if in.LogsRootPath == "" {
		in.LogsRootPath = defaultLogsRootPath
	}
	if in.ReportTableName == "" {
		in.ReportTableName = defaultReportTableName
	}
	if in.SplitTimeout <= 0 {
		in.SplitTimeout = defaultSplitTimeout
	}
	if in.SplitHeartbeat <= 0 {
		in.SplitHeartbeat = defaultSplitHeartbeat
	}
	if in.TransformTimeout <= 0 {
		in.TransformTimeout = defaultSplitTimeout
	}
	if in.TransformHeartbeat <= 0 {
		in.TransformHeartbeat = defaultSplitHeartbeat
	}
	if in.SplitConcurrency <= 0 {
		in.SplitConcurrency = defaultSplitConcurrency
	}
	if in.MaxLogsPerRun <= 0 {
		in.MaxLogsPerRun = defaultMaxLogsPerRun
	}
	if in.FailSplitOnEmptyMessage == nil {
		t := true
		in.FailSplitOnEmptyMessage = &t
	}
	return in
}

// SplitInput is the per-file input of the SplitAndUpload activity.
type SplitInput struct {
	LogPath              string `json:"logPath"`
	HL7OutputPath        string `json:"hl7OutputPath,omitempty"`
	ScratchSpaceRootPath string `json:"scratchSpaceRootPath,omitempty"`
	FailOnEmptyMessage   bool   `json:"failOnEmptyMessage"`
}

// StagedMessage identifies one successfully staged message object.
type StagedMessage struct {
	HL7FilePath   string `json:"hl7FilePath"`
	MessageNumber int    `json:"messageNumber"`
}

// SplitResult reports the outcome of one SplitAndUpload execution. Staged
// holds only the messages that were actually uploaded; messages that failed
// in isolation (headerless, empty) appear solely in the status database.
type SplitResult struct {
	LogPath string          `json:"logPath"`
	Date    string          `json:"date"`
	Staged  []StagedMessage `json:"staged,omitempty"`
}

// TransformInput is the child workflow's input: every staged message of one
// log file.
type TransformInput struct {
	LogPath            string          `json:"logPath"`
	Date               string          `json:"date"`
	ReportTableName    string          `json:"reportTableName"`
	Messages           []StagedMessage `json:"messages"`
	TransformTimeout   time.Duration   `json:"transformTimeout,omitempty"`
	TransformHeartbeat time.Duration   `json:"transformHeartbeat,omitempty"`
}

// TransformMessageInput is the per-message input of the TransformAndLoad
// activity.
type TransformMessageInput struct {
	HL7FilePath     string `json:"hl7FilePath"`
	LogPath         string `json:"logPath"`
	MessageNumber   int    `json:"messageNumber"`
	ReportTableName string `json:"reportTableName"`
}

// TransformOutcome is the recorded result of one message's transform. Content
// failures are outcomes, not activity errors, so one bad message can never
// abort its siblings.
type TransformOutcome struct {
	HL7FilePath string `json:"hl7FilePath"`
	Success     bool   `json:"success"`
	Error       string `json:"error,omitempty"`
}

// TransformResult summarizes one child workflow execution.
type TransformResult struct {
	LogPath   string `json:"logPath"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
}

// IngestLogResult is returned by the final execution of a continuation chain.
type IngestLogResult struct {
	HL7IngestWorkflowIDs []string `json:"hl7IngestWorkflowIds,omitempty"`
	SplitSucceeded       int      `json:"splitSucceeded"`
	SplitFailed          int      `json:"splitFailed"`
}
