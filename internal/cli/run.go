package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewRunCmd создаёт группу команд для управления runs.
func NewRunCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Manage pipeline runs",
	}

	cmd.AddCommand(
		newRunListCmd(clientFn, outputFn),
		newRunStartCmd(clientFn, outputFn),
		newRunShowCmd(clientFn, outputFn),
		newRunStepsCmd(clientFn, outputFn),
	)

	return cmd
}

func newRunListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var deploymentID string
	var status string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			runs, err := client.ListRuns(ListRunsOpts{
				DeploymentID: deploymentID,
				Status:       status,
				Limit:        limit,
			})
			if err != nil {
				return err
			}

			headers := []string{"ID", "NAME", "STATUS", "CREATED"}
			rows := make([][]string, len(runs))
			for i, r := range runs {
				rows[i] = []string{r.ID, r.Name, r.Status, r.CreatedAt}
			}

			out.Print(headers, rows, runs)
			return nil
		},
	}

	cmd.Flags().StringVar(&deploymentID, "deployment-id", "", "Filter by deployment ID")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (PENDING, RUNNING, SUCCEEDED, FAILED)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results")

	return cmd
}

func newRunStartCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "start DEPLOYMENT_ID",
		Short: "Start a new run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			run, err := client.CreateRun(args[0], CreateRunRequest{Name: name})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Run started: %s", run.ID))
			out.Print(
				[]string{"ID", "NAME", "STATUS", "CREATED"},
				[][]string{{run.ID, run.Name, run.Status, run.CreatedAt}},
				run,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Run name (generated if not specified)")

	return cmd
}

func newRunShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var byName bool

	cmd := &cobra.Command{
		Use:   "show ID",
		Short: "Show run details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			var run *RunResponse
			var err error
			if byName {
				run, err = client.GetRunByName(args[0])
			} else {
				run, err = client.GetRun(args[0])
			}
			if err != nil {
				return err
			}

			out.Detail([][2]string{
				{"ID", run.ID},
				{"Name", run.Name},
				{"Status", run.Status},
				{"Execution ARN", run.OrchestratorRunID},
				{"Started", run.StartedAt},
				{"Finished", run.FinishedAt},
				{"Error", run.Error},
				{"Created", run.CreatedAt},
				// Ссылки на консоль AWS, если launcher их записал
				{"Console", run.Metadata["orchestrator_url"]},
				{"Logs", run.Metadata["orchestrator_logs_url"]},
			}, run)
			return nil
		},
	}

	cmd.Flags().BoolVar(&byName, "by-name", false, "Look up the run by name instead of ID")

	return cmd
}

func newRunStepsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "steps RUN_ID",
		Short: "List step runs of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			stepRuns, err := client.ListStepRuns(ListStepRunsOpts{PipelineRunID: args[0]})
			if err != nil {
				return err
			}

			headers := []string{"ID", "NAME", "STATUS", "STARTED", "FINISHED"}
			rows := make([][]string, len(stepRuns))
			for i, s := range stepRuns {
				rows[i] = []string{s.ID, s.Name, s.Status, s.StartedAt, s.FinishedAt}
			}

			out.Print(headers, rows, stepRuns)
			return nil
		},
	}
}
