package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"

	"github.com/touchthesun/marvin-sub002/pkg/jobengine"
	"github.com/touchthesun/marvin-sub002/pkg/jobstatus"
	"github.com/touchthesun/marvin-sub002/pkg/manifest"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect and control page-processing jobs",
	Long: `Inspect and control jobs tracked by the orchestrator.

This command group is designed to be agent-friendly:

- stable job ids
- optional JSON output for machine parsing
- glob matching on page URLs via --match`,
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active and completed jobs",
	RunE:  runJobsList,
}

var jobsStatusCmd = &cobra.Command{
	Use:   "status <job_id>",
	Short: "Show status for a job",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsStatus,
}

var jobsSubmitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a new job from a spec file",
	RunE:  runJobsSubmit,
}

var jobsWatchCmd = &cobra.Command{
	Use:   "watch <job_id>",
	Short: "Monitor a job until it reaches a terminal state",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsWatch,
}

var jobsCancelCmd = &cobra.Command{
	Use:   "cancel <job_id>",
	Short: "Cancel an active job",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsCancel,
}

var jobsRetryCmd = &cobra.Command{
	Use:   "retry <job_id>",
	Short: "Retry a failed job",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsRetry,
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.AddCommand(jobsListCmd)
	jobsCmd.AddCommand(jobsStatusCmd)
	jobsCmd.AddCommand(jobsSubmitCmd)
	jobsCmd.AddCommand(jobsWatchCmd)
	jobsCmd.AddCommand(jobsCancelCmd)
	jobsCmd.AddCommand(jobsRetryCmd)

	jobsListCmd.Flags().Bool("json", false, "Output as JSON")
	jobsListCmd.Flags().String("match", "", "Only show jobs whose page URL matches this glob")
	jobsListCmd.Flags().String("state", "", "Filter by status: enqueued, pending, processing, analyzing, complete, error, cancelled")
	jobsStatusCmd.Flags().Bool("json", false, "Output as JSON")
	jobsSubmitCmd.Flags().String("job", "", "Path to a job spec file (YAML or JSON)")
	jobsSubmitCmd.Flags().Bool("watch", false, "Block until the job reaches a terminal state")
	jobsSubmitCmd.Flags().Bool("json", false, "Output as JSON")
	jobsWatchCmd.Flags().Bool("json", false, "Output the final job record as JSON")
	_ = jobsSubmitCmd.MarkFlagRequired("job")
}

func runJobsList(cmd *cobra.Command, _ []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	matchGlob, _ := cmd.Flags().GetString("match")
	stateFilter, _ := cmd.Flags().GetString("state")

	if stateFilter != "" && !jobstatus.Status(stateFilter).Known() {
		return exitError(foundry.ExitInvalidArgument, "Invalid --state value",
			fmt.Errorf("unknown status: %s", stateFilter))
	}

	engine, err := newEngine()
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Failed to initialize engine", err)
	}
	defer engine.Close()

	if err := engine.Refresh(cmd.Context()); err != nil {
		return exitError(foundry.ExitExternalServiceUnavailable, "Failed to fetch jobs", err)
	}

	jobs := append(engine.ActiveJobs(), engine.CompletedJobs()...)
	jobs, err = filterJobs(jobs, matchGlob, jobstatus.Status(stateFilter))
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid --match pattern", err)
	}

	if len(jobs) == 0 {
		_, _ = fmt.Fprintln(os.Stdout, "No jobs found")
		return nil
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(jobs)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer func() { _ = w.Flush() }()

	_, _ = fmt.Fprintln(w, "JOB ID\tKIND\tSTATUS\tPROGRESS\tSTAGE\tPAGE URL\tUPDATED")
	for _, j := range jobs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%.0f%%\t%s\t%s\t%s\n",
			shortJobID(j.ID),
			orDash(j.Kind),
			j.Status,
			j.Progress,
			orDash(j.Stage),
			orDash(j.PageURL),
			formatJobTime(j.UpdatedAt),
		)
	}

	return nil
}

func filterJobs(jobs []jobengine.Job, matchGlob string, state jobstatus.Status) ([]jobengine.Job, error) {
	if matchGlob != "" {
		if !doublestar.ValidatePattern(matchGlob) {
			return nil, fmt.Errorf("bad glob pattern: %s", matchGlob)
		}
	}

	out := jobs[:0]
	for _, j := range jobs {
		if state != "" && j.Status != state {
			continue
		}
		if matchGlob != "" {
			ok, err := doublestar.Match(matchGlob, j.PageURL)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		out = append(out, j)
	}
	return out, nil
}

func runJobsStatus(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	jobID := strings.TrimSpace(args[0])
	if jobID == "" {
		return exitError(foundry.ExitInvalidArgument, "Invalid job id", fmt.Errorf("job_id is required"))
	}

	engine, err := newEngine()
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Failed to initialize engine", err)
	}
	defer engine.Close()

	if err := engine.Refresh(cmd.Context()); err != nil {
		return exitError(foundry.ExitExternalServiceUnavailable, "Failed to fetch jobs", err)
	}

	job, ok := engine.JobByID(jobID)
	if !ok {
		return exitError(foundry.ExitFileNotFound, "Job not found", fmt.Errorf("no such job: %s", jobID))
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(job)
	}

	printJobDetails(job)
	return nil
}

func printJobDetails(job jobengine.Job) {
	_, _ = fmt.Fprintf(os.Stdout, "job_id=%s\n", job.ID)
	if job.Kind != "" {
		_, _ = fmt.Fprintf(os.Stdout, "kind=%s\n", job.Kind)
	}
	_, _ = fmt.Fprintf(os.Stdout, "status=%s\n", job.Status)
	_, _ = fmt.Fprintf(os.Stdout, "progress=%.0f\n", job.Progress)
	if job.Stage != "" {
		_, _ = fmt.Fprintf(os.Stdout, "stage=%s\n", job.Stage)
	}
	if job.PageURL != "" {
		_, _ = fmt.Fprintf(os.Stdout, "page_url=%s\n", job.PageURL)
	}
	if !job.CreatedAt.IsZero() {
		_, _ = fmt.Fprintf(os.Stdout, "created_at=%s\n", job.CreatedAt.UTC().Format(time.RFC3339))
	}
	if !job.UpdatedAt.IsZero() {
		_, _ = fmt.Fprintf(os.Stdout, "updated_at=%s\n", job.UpdatedAt.UTC().Format(time.RFC3339))
	}
	for _, entry := range job.Errors {
		_, _ = fmt.Fprintf(os.Stdout, "error=%s\n", entry.Message)
	}
}

func runJobsSubmit(cmd *cobra.Command, _ []string) error {
	specPath, _ := cmd.Flags().GetString("job")
	watch, _ := cmd.Flags().GetBool("watch")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	m, err := manifest.Load(specPath)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid job spec", err)
	}

	engine, err := newEngine()
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Failed to initialize engine", err)
	}
	defer engine.Close()

	job, err := engine.Create(cmd.Context(), m.ToSpec())
	if err != nil {
		return exitError(foundry.ExitExternalServiceUnavailable, "Failed to submit job", err)
	}

	if !watch && !m.Watch {
		if jsonOutput {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(job)
		}
		_, _ = fmt.Fprintf(os.Stdout, "submitted job %s\n", job.ID)
		return nil
	}

	return watchJob(cmd.Context(), engine, job.ID, jsonOutput)
}

func runJobsWatch(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	jobID := strings.TrimSpace(args[0])

	engine, err := newEngine()
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Failed to initialize engine", err)
	}
	defer engine.Close()

	if err := engine.Refresh(cmd.Context()); err != nil {
		return exitError(foundry.ExitExternalServiceUnavailable, "Failed to fetch jobs", err)
	}
	if _, ok := engine.JobByID(jobID); !ok {
		return exitError(foundry.ExitFileNotFound, "Job not found", fmt.Errorf("no such job: %s", jobID))
	}

	return watchJob(cmd.Context(), engine, jobID, jsonOutput)
}

func watchJob(ctx context.Context, engine *jobengine.Engine, jobID string, jsonOutput bool) error {
	unsubscribe := engine.Subscribe(func(ev jobengine.Event) {
		if jsonOutput {
			return
		}
		for _, j := range ev.Updated {
			if j.ID == jobID {
				_, _ = fmt.Fprintf(os.Stderr, "%s: %s %.0f%%\n", jobID, j.Status, j.Progress)
			}
		}
	})
	defer unsubscribe()

	watch := engine.Watch(jobID)
	job, err := watch.Result(ctx)
	if err != nil {
		switch {
		case errors.Is(err, context.Canceled):
			return exitError(foundry.ExitSignalInt, "Watch cancelled", err)
		case errors.Is(err, jobengine.ErrWatchTimeout):
			return exitError(foundry.ExitExternalServiceUnavailable, "Watch deadline exceeded", err)
		case errors.Is(err, jobengine.ErrWatchAbandoned):
			return exitError(foundry.ExitExternalServiceUnavailable, "Gave up monitoring job", err)
		default:
			return exitError(foundry.ExitExternalServiceUnavailable, "Watch failed", err)
		}
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(job)
	}

	printJobDetails(job)
	if job.Status == jobstatus.StatusError {
		return exitError(foundry.ExitExternalServiceUnavailable, "Job failed", fmt.Errorf("job %s ended in error", jobID))
	}
	return nil
}

func runJobsCancel(cmd *cobra.Command, args []string) error {
	jobID := strings.TrimSpace(args[0])

	engine, err := newEngine()
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Failed to initialize engine", err)
	}
	defer engine.Close()

	ok, err := engine.Cancel(cmd.Context(), jobID)
	if err != nil {
		return exitError(foundry.ExitExternalServiceUnavailable, "Failed to cancel job", err)
	}
	if !ok {
		return exitError(foundry.ExitInvalidArgument, "Cancel declined",
			fmt.Errorf("job %s could not be cancelled", jobID))
	}
	_, _ = fmt.Fprintf(os.Stdout, "cancelled job %s\n", jobID)
	return nil
}

func runJobsRetry(cmd *cobra.Command, args []string) error {
	jobID := strings.TrimSpace(args[0])

	engine, err := newEngine()
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Failed to initialize engine", err)
	}
	defer engine.Close()

	ok, err := engine.Retry(cmd.Context(), jobID)
	if err != nil {
		return exitError(foundry.ExitExternalServiceUnavailable, "Failed to retry job", err)
	}
	if !ok {
		return exitError(foundry.ExitInvalidArgument, "Retry declined",
			fmt.Errorf("job %s could not be retried", jobID))
	}
	_, _ = fmt.Fprintf(os.Stdout, "retrying job %s\n", jobID)
	return nil
}

func shortJobID(jobID string) string {
	jobID = strings.TrimSpace(jobID)
	if len(jobID) <= 12 {
		return jobID
	}
	return jobID[:12]
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func formatJobTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
