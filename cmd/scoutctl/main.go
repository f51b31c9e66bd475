// scoutctl launches an HL7 log ingest job and optionally waits for the whole
// continuation chain, including every per-file child workflow, to finish.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	enumspb "go.temporal.io/api/enums/v1"
	sdkclient "go.temporal.io/sdk/client"

	"github.com/washu-tag/scout-kate/internal/client"
	"github.com/washu-tag/scout-kate/internal/ingest"
	"github.com/washu-tag/scout-kate/internal/observability"
)

func main() {
	var (
		hostPort      = flag.String("temporal-address", envOr("TEMPORAL_HOST_PORT", "localhost:7233"), "Temporal frontend address")
		namespace     = flag.String("namespace", envOr("TEMPORAL_NAMESPACE", "default"), "Temporal namespace")
		taskQueue     = flag.String("task-queue", envOr("TEMPORAL_TASK_QUEUE", ingest.TaskQueue), "worker task queue")
		logsRoot      = flag.String("logs-root", "", "directory scanned for *.log files")
		logPaths      = flag.String("log-paths", "", "comma-separated explicit log files, overrides the scan")
		reportTable   = flag.String("report-table", "", "analytical table name")
		hl7Output     = flag.String("hl7-output", "", "s3://bucket[/prefix] override for staged messages")
		scratch       = flag.String("scratch", "", "local scratch directory for split payloads")
		maxLogs       = flag.Int("max-logs-per-run", 0, "log files per execution before continuing as new")
		expectFailure = flag.Bool("expect-failure", false, "treat a failed workflow as the wanted outcome")
		wait          = flag.Bool("wait", true, "wait for the job, its continuations, and all children")
		timeout       = flag.Duration("timeout", 30*time.Minute, "overall deadline when waiting")
		logLevel      = flag.String("log-level", "info", "log level")
	)
	flag.Parse()

	logger := observability.NewLogger(observability.ParseLevel(*logLevel))

	c, err := sdkclient.Dial(sdkclient.Options{
		HostPort:  *hostPort,
		Namespace: *namespace,
		Logger:    logger,
	})
	if err != nil {
		log.Fatalf("Failed to connect to Temporal: %v", err)
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	jobs := client.New(c, *namespace, *taskQueue, logger)
	details, err := jobs.LaunchIngest(ctx, ingest.IngestJobInput{
		LogsRootPath:         *logsRoot,
		LogPaths:             *logPaths,
		ReportTableName:      *reportTable,
		HL7OutputPath:        *hl7Output,
		ScratchSpaceRootPath: *scratch,
		MaxLogsPerRun:        *maxLogs,
	})
	if err != nil {
		log.Fatalf("Failed to launch ingest: %v", err)
	}
	fmt.Printf("launched %s (run %s)\n", details.IngestWorkflowID, details.RunID)

	if !*wait {
		return
	}

	want := enumspb.WORKFLOW_EXECUTION_STATUS_COMPLETED
	if *expectFailure {
		want = enumspb.WORKFLOW_EXECUTION_STATUS_FAILED
	}
	if err := jobs.WaitForStatus(ctx, details, want); err != nil {
		log.Fatalf("Ingest did not reach %s: %v", want, err)
	}

	fmt.Printf("ingest closed with status %s\n", details.Status)
	for _, id := range details.HL7IngestWorkflowIDs {
		fmt.Printf("  child %s\n", id)
	}
	if want == enumspb.WORKFLOW_EXECUTION_STATUS_COMPLETED {
		result, err := jobs.FinalResult(ctx, details)
		if err != nil {
			log.Fatalf("Failed to fetch result: %v", err)
		}
		fmt.Printf("final run: %d split, %d failed\n", result.SplitSucceeded, result.SplitFailed)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
