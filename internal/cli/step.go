package cli

import (
	"github.com/spf13/cobra"
)

// NewStepCmd создаёт группу команд для работы со step runs.
func NewStepCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "step",
		Short: "Inspect step runs",
	}

	cmd.AddCommand(
		newStepListCmd(clientFn, outputFn),
		newStepShowCmd(clientFn, outputFn),
	)

	return cmd
}

func newStepListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var runID string
	var name string
	var status string
	var model string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List step runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			stepRuns, err := client.ListStepRuns(ListStepRunsOpts{
				PipelineRunID: runID,
				Name:          name,
				Status:        status,
				Model:         model,
				Limit:         limit,
			})
			if err != nil {
				return err
			}

			headers := []string{"ID", "RUN_ID", "NAME", "STATUS", "CREATED"}
			rows := make([][]string, len(stepRuns))
			for i, s := range stepRuns {
				rows[i] = []string{s.ID, s.PipelineRunID, s.Name, s.Status, s.CreatedAt}
			}

			out.Print(headers, rows, stepRuns)
			return nil
		},
	}

	cmd.Flags().StringVar(&runID, "run-id", "", "Filter by pipeline run ID")
	cmd.Flags().StringVar(&name, "name", "", "Filter by step name")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (PENDING, RUNNING, SUCCEEDED, FAILED, CACHED)")
	cmd.Flags().StringVar(&model, "model", "", "Filter by model name or ID")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results")

	return cmd
}

func newStepShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var hydrate bool

	cmd := &cobra.Command{
		Use:   "show ID",
		Short: "Show step run details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			stepRun, err := client.GetStepRun(args[0], hydrate)
			if err != nil {
				return err
			}

			out.Detail([][2]string{
				{"ID", stepRun.ID},
				{"Run", stepRun.PipelineRunID},
				{"Name", stepRun.Name},
				{"Status", stepRun.Status},
				{"Cache key", stepRun.CacheKey},
				{"Code hash", stepRun.CodeHash},
				{"Logs", stepRun.LogsURI},
				{"Started", stepRun.StartedAt},
				{"Finished", stepRun.FinishedAt},
				{"Created", stepRun.CreatedAt},
			}, stepRun)
			return nil
		},
	}

	cmd.Flags().BoolVar(&hydrate, "hydrate", false, "Include input and output artifact versions")

	return cmd
}
