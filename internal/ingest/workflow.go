package ingest

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
)

// Register attaches both workflows and the activity set to a worker.
func Register(r worker.Registry, a *Activities) {
	r.RegisterWorkflowWithOptions(IngestLogWorkflow, workflow.RegisterOptions{Name: IngestLogWorkflowName})
	r.RegisterWorkflowWithOptions(IngestHL7FileWorkflow, workflow.RegisterOptions{Name: IngestHL7WorkflowName})
	r.RegisterActivity(a.FindLogFiles)
	r.RegisterActivity(a.SplitAndUpload)
	r.RegisterActivity(a.EnsureReportTable)
	r.RegisterActivity(a.TransformAndLoad)
}

// IngestLogWorkflow discovers log files, splits a bounded batch of them in
// parallel, and hands each file's staged messages to an abandoned child
// workflow. When more files remain than one execution should process, it
// continues as a new execution carrying the remainder, so history size stays
// bounded no matter how large the backlog is.
//
// Individual file failures never fail the run: the split activity records
// them and the run moves on. The run itself fails only when discovery fails,
// nothing was found to process, or every split failed.
func IngestLogWorkflow(ctx workflow.Context, input IngestJobInput) (IngestLogResult, error) {
	input = input.withDefaults()
	logger := workflow.GetLogger(ctx)
	info := workflow.GetInfo(ctx)
	var result IngestLogResult

	logPaths, err := resolveLogPaths(ctx, input)
	if err != nil {
		return result, err
	}
	if len(logPaths) == 0 {
		return result, temporal.NewApplicationError(
			fmt.Sprintf("no log files found under %s", input.LogsRootPath), "NoLogFiles")
	}

	batch := logPaths
	var remainder []string
	if len(batch) > input.MaxLogsPerRun {
		batch, remainder = batch[:input.MaxLogsPerRun], batch[input.MaxLogsPerRun:]
	}
	logger.Info("Ingesting log batch",
		"batch", len(batch), "remainder", len(remainder), "maxLogsPerRun", input.MaxLogsPerRun)

	splits := splitLogFiles(ctx, input, batch)

	for _, split := range splits {
		if split.err != nil {
			result.SplitFailed++
			logger.Error("Log file failed to split", "logPath", split.logPath, "error", split.err)
			continue
		}
		result.SplitSucceeded++
		if len(split.result.Staged) == 0 {
			continue
		}
		childID, err := startChildIngest(ctx, input, split.result)
		if err != nil {
			return result, err
		}
		result.HL7IngestWorkflowIDs = append(result.HL7IngestWorkflowIDs, childID)
	}

	if result.SplitSucceeded == 0 {
		return result, temporal.NewApplicationError(
			fmt.Sprintf("all %d log files failed to split", result.SplitFailed), "AllSplitsFailed")
	}

	if len(remainder) > 0 {
		next := input
		next.LogPaths = strings.Join(remainder, ",")
		logger.Info("Continuing as new execution", "remaining", len(remainder), "workflowId", info.WorkflowExecution.ID)
		return result, workflow.NewContinueAsNewError(ctx, IngestLogWorkflowName, next)
	}
	return result, nil
}

// resolveLogPaths returns the explicit file list when the input carries one,
// otherwise scans the logs root. Discovery retries on infrastructure errors
// and fails the run if they persist.
func resolveLogPaths(ctx workflow.Context, input IngestJobInput) ([]string, error) {
	if input.LogPaths != "" {
		var paths []string
		for _, p := range strings.Split(input.LogPaths, ",") {
			if p = strings.TrimSpace(p); p != "" {
				paths = append(paths, p)
			}
		}
		return paths, nil
	}

	actCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: time.Minute,
		RetryPolicy:         retryPolicy(),
	})
	var a *Activities
	var paths []string
	if err := workflow.ExecuteActivity(actCtx, a.FindLogFiles, input.LogsRootPath).Get(ctx, &paths); err != nil {
		return nil, fmt.Errorf("find log files: %w", err)
	}
	return paths, nil
}

type splitOutcome struct {
	logPath string
	result  SplitResult
	err     error
}

// splitLogFiles fans SplitAndUpload out over the batch with a channel
// semaphore bounding in-flight activities. Results come back in batch order
// regardless of completion order.
func splitLogFiles(ctx workflow.Context, input IngestJobInput, batch []string) []splitOutcome {
	actCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: input.SplitTimeout,
		HeartbeatTimeout:    input.SplitHeartbeat,
		RetryPolicy:         retryPolicy(),
	})

	outcomes := make([]splitOutcome, len(batch))
	semaphore := workflow.NewBufferedChannel(ctx, input.SplitConcurrency)
	wg := workflow.NewWaitGroup(ctx)

	for i, logPath := range batch {
		i, logPath := i, logPath
		outcomes[i].logPath = logPath

		wg.Add(1)
		semaphore.Send(ctx, nil)
		workflow.Go(ctx, func(gctx workflow.Context) {
			defer wg.Done()
			defer semaphore.Receive(gctx, nil)

			var a *Activities
			in := SplitInput{
				LogPath:              logPath,
				HL7OutputPath:        input.HL7OutputPath,
				ScratchSpaceRootPath: input.ScratchSpaceRootPath,
				FailOnEmptyMessage:   *input.FailSplitOnEmptyMessage,
			}
			outcomes[i].err = workflow.ExecuteActivity(actCtx, a.SplitAndUpload, in).Get(gctx, &outcomes[i].result)
		})
	}
	wg.Wait(ctx)

	return outcomes
}

// startChildIngest launches the per-file child workflow and waits only for it
// to be started, not to finish. The parent abandons its children so it can
// continue as new while transforms are still running; a verification client
// follows the child IDs returned in the result.
func startChildIngest(ctx workflow.Context, input IngestJobInput, split SplitResult) (string, error) {
	parentID := workflow.GetInfo(ctx).WorkflowExecution.ID
	childID := fmt.Sprintf("%s-hl7-%s", parentID, logBaseName(split.LogPath))

	childCtx := workflow.WithChildOptions(ctx, workflow.ChildWorkflowOptions{
		WorkflowID:        childID,
		ParentClosePolicy: enumspb.PARENT_CLOSE_POLICY_ABANDON,
	})
	in := TransformInput{
		LogPath:            split.LogPath,
		Date:               split.Date,
		ReportTableName:    input.ReportTableName,
		Messages:           split.Staged,
		TransformTimeout:   input.TransformTimeout,
		TransformHeartbeat: input.TransformHeartbeat,
	}

	var exec workflow.Execution
	if err := workflow.ExecuteChildWorkflow(childCtx, IngestHL7WorkflowName, in).
		GetChildWorkflowExecution().Get(ctx, &exec); err != nil {
		return "", fmt.Errorf("start child ingest for %s: %w", split.LogPath, err)
	}
	return exec.ID, nil
}

// IngestHL7FileWorkflow ingests every staged message of one log file. Messages
// are transformed sequentially; content failures are folded into the result
// and never fail the workflow, so one bad message cannot block its siblings.
func IngestHL7FileWorkflow(ctx workflow.Context, input TransformInput) (TransformResult, error) {
	logger := workflow.GetLogger(ctx)
	result := TransformResult{LogPath: input.LogPath}

	if input.TransformTimeout <= 0 {
		input.TransformTimeout = defaultSplitTimeout
	}
	if input.TransformHeartbeat <= 0 {
		input.TransformHeartbeat = defaultSplitHeartbeat
	}
	actCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: input.TransformTimeout,
		HeartbeatTimeout:    input.TransformHeartbeat,
		RetryPolicy:         retryPolicy(),
	})

	var a *Activities
	if err := workflow.ExecuteActivity(actCtx, a.EnsureReportTable, input.ReportTableName).Get(ctx, nil); err != nil {
		return result, fmt.Errorf("ensure report table: %w", err)
	}

	for _, msg := range input.Messages {
		in := TransformMessageInput{
			HL7FilePath:     msg.HL7FilePath,
			LogPath:         input.LogPath,
			MessageNumber:   msg.MessageNumber,
			ReportTableName: input.ReportTableName,
		}
		var outcome TransformOutcome
		if err := workflow.ExecuteActivity(actCtx, a.TransformAndLoad, in).Get(ctx, &outcome); err != nil {
			result.Failed++
			logger.Error("Message transform exhausted retries", "hl7FilePath", msg.HL7FilePath, "error", err)
			continue
		}
		if outcome.Success {
			result.Succeeded++
		} else {
			result.Failed++
		}
	}

	logger.Info("Ingested log file messages",
		"logPath", input.LogPath, "succeeded", result.Succeeded, "failed", result.Failed)
	return result, nil
}

func retryPolicy() *temporal.RetryPolicy {
	return &temporal.RetryPolicy{
		InitialInterval:    time.Second,
		BackoffCoefficient: 2.0,
		MaximumAttempts:    SplitAndUploadRetries,
	}
}

// logBaseName strips directory and extension from a log path for use in a
// child workflow ID.
func logBaseName(logPath string) string {
	base := filepath.Base(logPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
