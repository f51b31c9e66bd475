package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/converter"
	"go.temporal.io/sdk/testsuite"
	"go.temporal.io/sdk/workflow"
)

func newWorkflowEnv(t *testing.T) (*testsuite.TestWorkflowEnvironment, *Activities) {
	t.Helper()
	ts := &testsuite.WorkflowTestSuite{}
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflowWithOptions(IngestLogWorkflow, workflow.RegisterOptions{Name: IngestLogWorkflowName})
	env.RegisterWorkflowWithOptions(IngestHL7FileWorkflow, workflow.RegisterOptions{Name: IngestHL7WorkflowName})
	return env, &Activities{}
}

// splitStagingOne answers every split with a single staged message derived
// from the log path.
func splitStagingOne(ctx context.Context, in SplitInput) (SplitResult, error) {
	return SplitResult{
		LogPath: in.LogPath,
		Date:    "2024-01-02",
		Staged:  []StagedMessage{{HL7FilePath: "s3://hl7/" + strings.TrimPrefix(in.LogPath, "/"), MessageNumber: 0}},
	}, nil
}

func TestIngestLogWorkflowScansAndFansOut(t *testing.T) {
	env, a := newWorkflowEnv(t)

	env.OnActivity(a.FindLogFiles, mock.Anything, "/data/hl7").
		Return([]string{"/data/hl7/20240101.log", "/data/hl7/20240102.log"}, nil).Once()
	env.OnActivity(a.SplitAndUpload, mock.Anything, mock.Anything).Return(splitStagingOne).Twice()
	env.OnWorkflow(IngestHL7WorkflowName, mock.Anything, mock.Anything).
		Return(TransformResult{Succeeded: 1}, nil).Twice()

	env.ExecuteWorkflow(IngestLogWorkflowName, IngestJobInput{})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result IngestLogResult
	require.NoError(t, env.GetWorkflowResult(&result))
	require.Equal(t, 2, result.SplitSucceeded)
	require.Zero(t, result.SplitFailed)
	require.Len(t, result.HL7IngestWorkflowIDs, 2)
	for _, id := range result.HL7IngestWorkflowIDs {
		require.Contains(t, id, "-hl7-2024010")
	}
	env.AssertExpectations(t)
}

func TestIngestLogWorkflowExplicitPathsSkipScan(t *testing.T) {
	env, a := newWorkflowEnv(t)

	// FindLogFiles is deliberately not mocked: an explicit file list must
	// bypass discovery entirely.
	env.OnActivity(a.SplitAndUpload, mock.Anything, mock.Anything).Return(splitStagingOne).Once()
	env.OnWorkflow(IngestHL7WorkflowName, mock.Anything, mock.Anything).
		Return(TransformResult{Succeeded: 1}, nil).Once()

	env.ExecuteWorkflow(IngestLogWorkflowName, IngestJobInput{LogPaths: " /data/hl7/20240101.log ,"})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
	env.AssertExpectations(t)
}

func TestIngestLogWorkflowContinuesAsNew(t *testing.T) {
	env, a := newWorkflowEnv(t)

	env.OnActivity(a.SplitAndUpload, mock.Anything, mock.Anything).Return(splitStagingOne).Twice()
	env.OnWorkflow(IngestHL7WorkflowName, mock.Anything, mock.Anything).
		Return(TransformResult{Succeeded: 1}, nil).Twice()

	env.ExecuteWorkflow(IngestLogWorkflowName, IngestJobInput{
		LogPaths:      "/a/20240101.log,/a/20240102.log,/a/20240103.log",
		MaxLogsPerRun: 2,
	})

	require.True(t, env.IsWorkflowCompleted())

	var canErr *workflow.ContinueAsNewError
	require.ErrorAs(t, env.GetWorkflowError(), &canErr)
	require.Equal(t, IngestLogWorkflowName, canErr.WorkflowType.Name)

	var next IngestJobInput
	require.NoError(t, converter.GetDefaultDataConverter().FromPayloads(canErr.Input, &next))
	require.Equal(t, "/a/20240103.log", next.LogPaths)
	require.Equal(t, 2, next.MaxLogsPerRun)
	env.AssertExpectations(t)
}

func TestIngestLogWorkflowFailsWhenNothingFound(t *testing.T) {
	env, a := newWorkflowEnv(t)

	env.OnActivity(a.FindLogFiles, mock.Anything, mock.Anything).Return([]string{}, nil).Once()

	env.ExecuteWorkflow(IngestLogWorkflowName, IngestJobInput{LogsRootPath: "/var/empty"})

	require.True(t, env.IsWorkflowCompleted())
	require.ErrorContains(t, env.GetWorkflowError(), "no log files found under /var/empty")
}

func TestIngestLogWorkflowFailsWhenEverySplitFails(t *testing.T) {
	env, a := newWorkflowEnv(t)

	env.OnActivity(a.SplitAndUpload, mock.Anything, mock.Anything).
		Return(SplitResult{}, errors.New("disk gone"))

	env.ExecuteWorkflow(IngestLogWorkflowName, IngestJobInput{LogPaths: "/a/20240101.log,/a/20240102.log"})

	require.True(t, env.IsWorkflowCompleted())
	require.ErrorContains(t, env.GetWorkflowError(), "all 2 log files failed to split")
}

func TestIngestLogWorkflowToleratesPartialSplitFailure(t *testing.T) {
	env, a := newWorkflowEnv(t)

	env.OnActivity(a.SplitAndUpload, mock.Anything, SplitInput{
		LogPath:            "/a/20240101.log",
		FailOnEmptyMessage: true,
	}).Return(SplitResult{}, errors.New("disk gone"))
	env.OnActivity(a.SplitAndUpload, mock.Anything, SplitInput{
		LogPath:            "/a/20240102.log",
		FailOnEmptyMessage: true,
	}).Return(splitStagingOne).Once()
	env.OnWorkflow(IngestHL7WorkflowName, mock.Anything, mock.Anything).
		Return(TransformResult{Succeeded: 1}, nil).Once()

	env.ExecuteWorkflow(IngestLogWorkflowName, IngestJobInput{LogPaths: "/a/20240101.log,/a/20240102.log"})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result IngestLogResult
	require.NoError(t, env.GetWorkflowResult(&result))
	require.Equal(t, 1, result.SplitSucceeded)
	require.Equal(t, 1, result.SplitFailed)
	require.Len(t, result.HL7IngestWorkflowIDs, 1)
}

func TestIngestLogWorkflowSkipsChildWhenNothingStaged(t *testing.T) {
	env, a := newWorkflowEnv(t)

	// A file whose only messages were recorded as isolated failures splits
	// successfully but stages nothing, so no child ingest is started.
	env.OnActivity(a.SplitAndUpload, mock.Anything, mock.Anything).
		Return(SplitResult{LogPath: "/a/20240101.log", Date: "2024-01-01"}, nil).Once()

	env.ExecuteWorkflow(IngestLogWorkflowName, IngestJobInput{LogPaths: "/a/20240101.log"})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result IngestLogResult
	require.NoError(t, env.GetWorkflowResult(&result))
	require.Equal(t, 1, result.SplitSucceeded)
	require.Empty(t, result.HL7IngestWorkflowIDs)
}

func TestIngestHL7FileWorkflowFoldsOutcomes(t *testing.T) {
	env, a := newWorkflowEnv(t)

	env.OnActivity(a.EnsureReportTable, mock.Anything, "reports").Return(nil).Once()
	env.OnActivity(a.TransformAndLoad, mock.Anything, mock.Anything).Return(
		func(ctx context.Context, in TransformMessageInput) (TransformOutcome, error) {
			switch in.HL7FilePath {
			case "s3://hl7/good.hl7":
				return TransformOutcome{HL7FilePath: in.HL7FilePath, Success: true}, nil
			case "s3://hl7/rejected.hl7":
				return TransformOutcome{HL7FilePath: in.HL7FilePath, Error: "File is not parsable as HL7"}, nil
			default:
				return TransformOutcome{}, errors.New("connection refused")
			}
		})

	env.ExecuteWorkflow(IngestHL7WorkflowName, TransformInput{
		LogPath:         "/a/20240101.log",
		Date:            "2024-01-01",
		ReportTableName: "reports",
		Messages: []StagedMessage{
			{HL7FilePath: "s3://hl7/good.hl7", MessageNumber: 0},
			{HL7FilePath: "s3://hl7/rejected.hl7", MessageNumber: 1},
			{HL7FilePath: "s3://hl7/broken.hl7", MessageNumber: 2},
		},
	})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result TransformResult
	require.NoError(t, env.GetWorkflowResult(&result))
	require.Equal(t, 1, result.Succeeded)
	require.Equal(t, 2, result.Failed)
}
