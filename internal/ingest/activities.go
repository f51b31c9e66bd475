package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/washu-tag/scout-kate/internal/hl7"
	"github.com/washu-tag/scout-kate/internal/observability"
	"github.com/washu-tag/scout-kate/internal/reports"
	"github.com/washu-tag/scout-kate/internal/status"
	"github.com/washu-tag/scout-kate/internal/storage"
)

// logDate extracts the yyyyMMdd date every interface-engine log file carries
// in its name.
var logDate = regexp.MustCompile(`\d{8}`)

// Activities bundles the pipeline's side-effecting dependencies. All methods
// record their own status rows: the workflow only sequences them and never
// writes status itself, so the database reflects what actually ran rather
// than what was scheduled.
type Activities struct {
	Status  status.Store
	Objects storage.ObjectStore
	Reports *reports.Writer
	Metrics *observability.Metrics
}

// FindLogFiles lists the *.log files under root, sorted for deterministic
// batching. A missing or unreadable root is an error: the caller distinguishes
// an empty directory (zero results) from a misconfigured one.
func (a *Activities) FindLogFiles(ctx context.Context, root string) ([]string, error) {
	if _, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("logs root %s: %w", root, err)
	}

	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".log") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan logs root %s: %w", root, err)
	}
	sort.Strings(paths)
	return paths, nil
}

// SplitAndUpload splits one log file into its HL7 messages and stages each
// message as an object. Every attempt appends its own status rows. Message
// level defects (headerless repeats, empty payloads when tolerated) are
// recorded and skipped; file-level defects fail the attempt so the retry
// policy can run it again.
func (a *Activities) SplitAndUpload(ctx context.Context, in SplitInput) (SplitResult, error) {
	logger := activity.GetLogger(ctx)
	workflowID := activity.GetInfo(ctx).WorkflowExecution.ID
	start := time.Now()
	result := SplitResult{LogPath: in.LogPath}

	date, err := dateFromLogName(in.LogPath)
	if err != nil {
		a.recordFailure(ctx, &in.LogPath, status.TypeLog, err.Error(), workflowID)
		// A log file whose name carries no date can never succeed, so retrying
		// would only duplicate failure rows.
		return result, temporal.NewNonRetryableApplicationError(err.Error(), "UndatedLogFile", err)
	}
	result.Date = date.Format("2006-01-02")

	f, err := os.Open(in.LogPath)
	if err != nil {
		a.recordFailure(ctx, &in.LogPath, status.TypeLog, err.Error(), workflowID)
		return result, fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	messages, err := hl7.Split(f)
	if err != nil {
		a.recordFailure(ctx, &in.LogPath, status.TypeLog, err.Error(), workflowID)
		return result, fmt.Errorf("split log file %s: %w", in.LogPath, err)
	}
	if err := a.appendStatus(ctx, &in.LogPath, status.StatusParsed, status.TypeLog, nil, workflowID); err != nil {
		return result, err
	}
	if len(messages) == 0 {
		a.recordFailure(ctx, &in.LogPath, status.TypeLog, hl7.ErrNoMessages.Error(), workflowID)
		return result, fmt.Errorf("%s: %w", in.LogPath, hl7.ErrNoMessages)
	}
	logger.Info("Split log file", "logPath", in.LogPath, "messages", len(messages))

	bucket, keyPrefix := "", ""
	if in.HL7OutputPath != "" {
		bucket, keyPrefix, err = storage.ParseLocation(in.HL7OutputPath)
		if err != nil {
			return result, temporal.NewNonRetryableApplicationError(err.Error(), "BadOutputPath", err)
		}
	}

	for _, msg := range messages {
		activity.RecordHeartbeat(ctx, msg.Index)

		switch {
		case msg.Empty():
			if err := a.recordMessageFailure(ctx, in.LogPath, msg.Index, date, hl7.ErrEmptyContent, workflowID); err != nil {
				return result, err
			}
			if in.FailOnEmptyMessage {
				return result, fmt.Errorf("message %d of %s: %w", msg.Index, in.LogPath, hl7.ErrEmptyContent)
			}

		case msg.Headerless():
			if err := a.recordMessageFailure(ctx, in.LogPath, msg.Index, date, hl7.ErrMissingTimestampHeader, workflowID); err != nil {
				return result, err
			}

		default:
			url, err := a.stageMessage(ctx, in, bucket, keyPrefix, msg)
			if err != nil {
				a.recordFailure(ctx, &in.LogPath, status.TypeLog, err.Error(), workflowID)
				return result, err
			}
			if err := a.Status.RecordHL7File(ctx, status.HL7File{
				LogFilePath:   in.LogPath,
				MessageNumber: msg.Index,
				HL7FilePath:   &url,
				Date:          date,
			}); err != nil {
				return result, fmt.Errorf("record extraction: %w", err)
			}
			if err := a.appendStatus(ctx, &url, status.StatusStaged, status.TypeHL7, nil, workflowID); err != nil {
				return result, err
			}
			result.Staged = append(result.Staged, StagedMessage{HL7FilePath: url, MessageNumber: msg.Index})
		}
	}

	if a.Metrics != nil {
		a.Metrics.RecordProcessed(string(status.StatusParsed), string(status.TypeLog))
		a.Metrics.ObserveDuration("split_and_upload", time.Since(start).Seconds())
	}
	return result, nil
}

// stageMessage writes one message payload to the object store, optionally
// spooling it through the scratch directory first so very large messages do
// not have to be re-split on upload retry.
func (a *Activities) stageMessage(ctx context.Context, in SplitInput, bucket, keyPrefix string, msg hl7.Message) (string, error) {
	key, err := storage.StagedKey(msg.TimestampHeader, msg.Index)
	if err != nil {
		return "", fmt.Errorf("message %d of %s: %w", msg.Index, in.LogPath, err)
	}
	if keyPrefix != "" {
		key = strings.TrimSuffix(keyPrefix, "/") + "/" + key
	}

	var body io.Reader = strings.NewReader(string(msg.Payload))
	if in.ScratchSpaceRootPath != "" {
		scratch, err := spoolToScratch(in.ScratchSpaceRootPath, msg.Payload)
		if err != nil {
			return "", err
		}
		defer scratch.Close()
		defer os.Remove(scratch.Name())
		body = scratch
	}

	url, err := a.Objects.Put(ctx, bucket, key, body)
	if err != nil {
		return "", fmt.Errorf("stage message %d of %s: %w", msg.Index, in.LogPath, err)
	}
	if a.Metrics != nil {
		a.Metrics.ObserveStagedBytes(len(msg.Payload))
	}
	return url, nil
}

func spoolToScratch(root string, payload []byte) (*os.File, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	f, err := os.CreateTemp(root, "*.hl7")
	if err != nil {
		return nil, fmt.Errorf("create scratch file: %w", err)
	}
	if _, err := f.Write(payload); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, fmt.Errorf("write scratch file: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, fmt.Errorf("rewind scratch file: %w", err)
	}
	return f, nil
}

// EnsureReportTable creates the job's analytical table when missing. The child
// workflow runs it once before any transform so concurrent inserts never race
// on DDL.
func (a *Activities) EnsureReportTable(ctx context.Context, table string) error {
	return a.Reports.EnsureTable(ctx, table)
}

// TransformAndLoad parses one staged message and commits it to the analytical
// table. Content defects (empty object, unparsable HL7) are terminal outcomes
// recorded in the status database, not activity errors; only infrastructure
// failures are returned for retry.
func (a *Activities) TransformAndLoad(ctx context.Context, in TransformMessageInput) (TransformOutcome, error) {
	logger := activity.GetLogger(ctx)
	workflowID := activity.GetInfo(ctx).WorkflowExecution.ID
	outcome := TransformOutcome{HL7FilePath: in.HL7FilePath}

	obj, err := a.Objects.Get(ctx, in.HL7FilePath)
	if err != nil {
		a.recordFailure(ctx, &in.HL7FilePath, status.TypeHL7, err.Error(), workflowID)
		return outcome, fmt.Errorf("fetch staged message: %w", err)
	}
	defer obj.Close()

	content, err := io.ReadAll(obj)
	if err != nil {
		a.recordFailure(ctx, &in.HL7FilePath, status.TypeHL7, err.Error(), workflowID)
		return outcome, fmt.Errorf("read staged message: %w", err)
	}

	report, err := hl7.Parse(content)
	switch {
	case errors.Is(err, hl7.ErrEmptyContent), errors.Is(err, hl7.ErrNotParsable):
		if recErr := a.appendStatus(ctx, &in.HL7FilePath, status.StatusFailed, status.TypeHL7, strPtr(err.Error()), workflowID); recErr != nil {
			return outcome, recErr
		}
		outcome.Error = err.Error()
		logger.Warn("Staged message rejected", "hl7FilePath", in.HL7FilePath, "reason", err.Error())
		return outcome, nil
	case err != nil:
		a.recordFailure(ctx, &in.HL7FilePath, status.TypeHL7, err.Error(), workflowID)
		return outcome, fmt.Errorf("parse staged message: %w", err)
	}

	row := reports.NewRow(in.HL7FilePath, in.LogPath, in.MessageNumber, report)
	inserted, err := a.Reports.Insert(ctx, in.ReportTableName, row)
	if err != nil {
		a.recordFailure(ctx, &in.HL7FilePath, status.TypeHL7, err.Error(), workflowID)
		return outcome, fmt.Errorf("insert report row: %w", err)
	}
	if !inserted {
		logger.Info("Message already ingested", "hl7FilePath", in.HL7FilePath)
	}

	if err := a.appendStatus(ctx, &in.HL7FilePath, status.StatusSuccess, status.TypeHL7, nil, workflowID); err != nil {
		return outcome, err
	}
	outcome.Success = true
	if a.Metrics != nil {
		a.Metrics.RecordProcessed(string(status.StatusSuccess), string(status.TypeHL7))
	}
	return outcome, nil
}

// recordMessageFailure registers a message that was located but can never be
// staged, under its {log_path}_{message_number} fallback identity so status
// queries can still join the extraction record to its outcome.
func (a *Activities) recordMessageFailure(ctx context.Context, logPath string, messageNumber int, date time.Time, cause error, workflowID string) error {
	fallback := storage.FallbackPath(logPath, messageNumber)
	if err := a.Status.RecordHL7File(ctx, status.HL7File{
		LogFilePath:   logPath,
		MessageNumber: messageNumber,
		HL7FilePath:   &fallback,
		Date:          date,
	}); err != nil {
		return fmt.Errorf("record extraction: %w", err)
	}
	return a.appendStatus(ctx, &fallback, status.StatusFailed, status.TypeHL7, strPtr(cause.Error()), workflowID)
}

func (a *Activities) appendStatus(ctx context.Context, path *string, st status.Status, ft status.FileType, errMsg *string, workflowID string) error {
	fs := status.FileStatus{
		FilePath:     path,
		Status:       st,
		Type:         ft,
		ErrorMessage: errMsg,
		WorkflowID:   workflowID,
		ProcessedAt:  time.Now().UTC(),
	}
	if err := a.Status.AppendFileStatus(ctx, fs); err != nil {
		return fmt.Errorf("append %s status: %w", st, err)
	}
	return nil
}

// recordFailure appends a failed row on a best-effort basis: the activity is
// already failing, and the retry will write its own rows.
func (a *Activities) recordFailure(ctx context.Context, path *string, ft status.FileType, msg, workflowID string) {
	if err := a.appendStatus(ctx, path, status.StatusFailed, ft, &msg, workflowID); err != nil {
		activity.GetLogger(ctx).Error("Failed to record failure status", "error", err)
	}
	if a.Metrics != nil {
		a.Metrics.RecordError(string(ft))
	}
}

func dateFromLogName(logPath string) (time.Time, error) {
	digits := logDate.FindString(filepath.Base(logPath))
	if digits == "" {
		return time.Time{}, fmt.Errorf("log file name %s carries no yyyyMMdd date", filepath.Base(logPath))
	}
	date, err := time.Parse("20060102", digits)
	if err != nil {
		return time.Time{}, fmt.Errorf("log file name %s carries no yyyyMMdd date", filepath.Base(logPath))
	}
	return date, nil
}

func strPtr(s string) *string { return &s }
