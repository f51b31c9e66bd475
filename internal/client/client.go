// Package client launches ingest jobs and verifies their outcome. An ingest
// run continues as new when its backlog exceeds one execution and abandons a
// child workflow per log file, so "is the job done" cannot be answered by
// waiting on a single workflow handle: the client follows the continuation
// chain run by run, collects the children each run spawned, and waits for
// every one of them.
package client

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	commonpb "go.temporal.io/api/common/v1"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/workflowservice/v1"
	sdkclient "go.temporal.io/sdk/client"
	"google.golang.org/grpc"

	"github.com/washu-tag/scout-kate/internal/ingest"
	"github.com/washu-tag/scout-kate/internal/observability"
)

const (
	defaultPollInterval = 500 * time.Millisecond
	defaultWaitTimeout  = 5 * time.Minute
)

// workflowService is the slice of the Temporal frontend API the client needs
// beyond the SDK handle: raw describe calls expose pending children and
// continuation run IDs that the SDK's workflow handles do not.
type workflowService interface {
	DescribeWorkflowExecution(ctx context.Context, in *workflowservice.DescribeWorkflowExecutionRequest, opts ...grpc.CallOption) (*workflowservice.DescribeWorkflowExecutionResponse, error)
	GetWorkflowExecutionHistory(ctx context.Context, in *workflowservice.GetWorkflowExecutionHistoryRequest, opts ...grpc.CallOption) (*workflowservice.GetWorkflowExecutionHistoryResponse, error)
}

// IngestJobDetails describes one launched ingest job as the client last
// observed it.
type IngestJobDetails struct {
	IngestWorkflowID     string
	RunID                string
	HL7IngestWorkflowIDs []string
	Status               enumspb.WorkflowExecutionStatus
}

// Client drives ingest jobs against a Temporal namespace.
type Client struct {
	temporal  sdkclient.Client
	service   workflowService
	namespace string
	taskQueue string

	pollInterval time.Duration
	waitTimeout  time.Duration
	logger       observability.Logger
}

// New wraps an established Temporal connection.
func New(c sdkclient.Client, namespace, taskQueue string, logger observability.Logger) *Client {
	return &Client{
		temporal:     c,
		service:      c.WorkflowService(),
		namespace:    namespace,
		taskQueue:    taskQueue,
		pollInterval: defaultPollInterval,
		waitTimeout:  defaultWaitTimeout,
		logger:       logger,
	}
}

// LaunchIngest starts a new ingest job and returns immediately with its
// identity; WaitForStatus verifies the outcome.
func (c *Client) LaunchIngest(ctx context.Context, input ingest.IngestJobInput) (*IngestJobDetails, error) {
	workflowID := ingest.TaskQueue + "-" + uuid.NewString()

	run, err := c.temporal.ExecuteWorkflow(ctx, sdkclient.StartWorkflowOptions{
		ID:        workflowID,
		TaskQueue: c.taskQueue,
	}, ingest.IngestLogWorkflowName, input)
	if err != nil {
		return nil, fmt.Errorf("start ingest workflow: %w", err)
	}

	c.logger.Info("Launched ingest job", "workflowId", workflowID, "runId", run.GetRunID())
	return &IngestJobDetails{
		IngestWorkflowID: workflowID,
		RunID:            run.GetRunID(),
		Status:           enumspb.WORKFLOW_EXECUTION_STATUS_RUNNING,
	}, nil
}

// WaitForStatus follows the job's continuation chain until its final run
// closes, then verifies it closed with the wanted status. Any other terminal
// status is an immediate error rather than a timeout: a job that failed will
// not become completed by waiting longer. When the wanted status is COMPLETED
// it additionally waits for every abandoned per-file child workflow, so a
// successful return means all transforms finished too.
func (c *Client) WaitForStatus(ctx context.Context, details *IngestJobDetails, want enumspb.WorkflowExecutionStatus) error {
	children, err := c.followChain(ctx, details, want)
	if err != nil {
		return err
	}
	details.HL7IngestWorkflowIDs = children
	details.Status = want

	if want != enumspb.WORKFLOW_EXECUTION_STATUS_COMPLETED {
		return nil
	}
	for _, childID := range children {
		if _, _, err := c.waitForClose(ctx, childID, ""); err != nil {
			return fmt.Errorf("child ingest %s: %w", childID, err)
		}
	}
	return nil
}

// followChain waits out each run of the continuation chain, accumulating the
// child workflow IDs observed along the way, and checks the final run's
// terminal status.
func (c *Client) followChain(ctx context.Context, details *IngestJobDetails, want enumspb.WorkflowExecutionStatus) ([]string, error) {
	runID := details.RunID
	seen := map[string]bool{}
	var children []string

	for {
		status, pending, err := c.waitForClose(ctx, details.IngestWorkflowID, runID)
		if err != nil {
			return nil, err
		}
		for _, childID := range pending {
			if !seen[childID] {
				seen[childID] = true
				children = append(children, childID)
			}
		}

		if status == enumspb.WORKFLOW_EXECUTION_STATUS_CONTINUED_AS_NEW {
			runID, err = c.continuedRunID(ctx, details.IngestWorkflowID, runID)
			if err != nil {
				return nil, err
			}
			c.logger.Info("Following continued execution",
				"workflowId", details.IngestWorkflowID, "runId", runID)
			continue
		}

		if status != want {
			return nil, fmt.Errorf("ingest workflow %s closed with status %s, wanted %s",
				details.IngestWorkflowID, status, want)
		}
		return children, nil
	}
}

// waitForClose polls one execution until it leaves RUNNING, returning its
// terminal status and every pending child observed while polling. An empty
// runID addresses the latest run of the workflow ID.
func (c *Client) waitForClose(ctx context.Context, workflowID, runID string) (enumspb.WorkflowExecutionStatus, []string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.waitTimeout)
	defer cancel()

	seen := map[string]bool{}
	var pending []string

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		resp, err := c.service.DescribeWorkflowExecution(ctx, &workflowservice.DescribeWorkflowExecutionRequest{
			Namespace: c.namespace,
			Execution: &commonpb.WorkflowExecution{WorkflowId: workflowID, RunId: runID},
		})
		if err != nil {
			return enumspb.WORKFLOW_EXECUTION_STATUS_UNSPECIFIED, nil, fmt.Errorf("describe workflow %s: %w", workflowID, err)
		}

		for _, child := range resp.GetPendingChildren() {
			if id := child.GetWorkflowId(); id != "" && !seen[id] {
				seen[id] = true
				pending = append(pending, id)
			}
		}

		if status := resp.GetWorkflowExecutionInfo().GetStatus(); status != enumspb.WORKFLOW_EXECUTION_STATUS_RUNNING {
			return status, pending, nil
		}

		select {
		case <-ctx.Done():
			return enumspb.WORKFLOW_EXECUTION_STATUS_UNSPECIFIED, nil,
				fmt.Errorf("workflow %s still running after %s: %w", workflowID, c.waitTimeout, ctx.Err())
		case <-ticker.C:
		}
	}
}

// continuedRunID extracts the successor run ID from a run that continued as
// new. The close event is the only place Temporal records it.
func (c *Client) continuedRunID(ctx context.Context, workflowID, runID string) (string, error) {
	resp, err := c.service.GetWorkflowExecutionHistory(ctx, &workflowservice.GetWorkflowExecutionHistoryRequest{
		Namespace:              c.namespace,
		Execution:              &commonpb.WorkflowExecution{WorkflowId: workflowID, RunId: runID},
		HistoryEventFilterType: enumspb.HISTORY_EVENT_FILTER_TYPE_CLOSE_EVENT,
	})
	if err != nil {
		return "", fmt.Errorf("fetch close event for %s: %w", workflowID, err)
	}

	events := resp.GetHistory().GetEvents()
	if len(events) == 0 {
		return "", fmt.Errorf("no close event for workflow %s run %s", workflowID, runID)
	}
	attrs := events[len(events)-1].GetWorkflowExecutionContinuedAsNewEventAttributes()
	if attrs.GetNewExecutionRunId() == "" {
		return "", fmt.Errorf("close event of workflow %s run %s carries no continuation run id", workflowID, runID)
	}
	return attrs.GetNewExecutionRunId(), nil
}

// FinalResult decodes the last run's result. It is only meaningful after
// WaitForStatus confirmed the chain completed.
func (c *Client) FinalResult(ctx context.Context, details *IngestJobDetails) (*ingest.IngestLogResult, error) {
	var result ingest.IngestLogResult
	if err := c.temporal.GetWorkflow(ctx, details.IngestWorkflowID, "").Get(ctx, &result); err != nil {
		return nil, fmt.Errorf("fetch ingest result: %w", err)
	}
	return &result, nil
}
