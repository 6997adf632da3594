package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

// NewPipelineCmd создаёт группу команд для управления pipelines.
func NewPipelineCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Manage pipelines",
	}

	cmd.AddCommand(
		newPipelineListCmd(clientFn, outputFn),
		newPipelineCreateCmd(clientFn, outputFn),
		newPipelineShowCmd(clientFn, outputFn),
		newPipelineUpdateCmd(clientFn, outputFn),
		newPipelineDeleteCmd(clientFn, outputFn),
		newPipelineDeployCmd(clientFn, outputFn),
		newPipelineDeploymentsCmd(clientFn, outputFn),
	)

	return cmd
}

func newPipelineListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all pipelines",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			pipelines, err := client.ListPipelines()
			if err != nil {
				return err
			}

			headers := []string{"ID", "NAME", "ACTIVE", "CREATED"}
			rows := make([][]string, len(pipelines))
			for i, p := range pipelines {
				rows[i] = []string{p.ID, p.Name, strconv.FormatBool(p.IsActive), p.CreatedAt}
			}

			out.Print(headers, rows, pipelines)
			return nil
		},
	}
}

func newPipelineCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register a new pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			pipeline, err := client.CreatePipeline(name)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Pipeline created: %s", pipeline.ID))
			out.Print(
				[]string{"ID", "NAME", "ACTIVE", "CREATED"},
				[][]string{{pipeline.ID, pipeline.Name, strconv.FormatBool(pipeline.IsActive), pipeline.CreatedAt}},
				pipeline,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Pipeline name (required)")
	cmd.MarkFlagRequired("name")

	return cmd
}

func newPipelineShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID_OR_NAME",
		Short: "Show pipeline details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			pipeline, err := client.GetPipeline(args[0])
			if err != nil {
				return err
			}

			out.Print(
				[]string{"ID", "NAME", "ACTIVE", "CREATED"},
				[][]string{{pipeline.ID, pipeline.Name, strconv.FormatBool(pipeline.IsActive), pipeline.CreatedAt}},
				pipeline,
			)
			return nil
		},
	}
}

func newPipelineUpdateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var name string
	var active string

	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Update a pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			req := UpdatePipelineRequest{}
			if cmd.Flags().Changed("name") {
				req.Name = &name
			}
			if cmd.Flags().Changed("active") {
				isActive, err := strconv.ParseBool(active)
				if err != nil {
					return fmt.Errorf("invalid --active value %q, expected true or false", active)
				}
				req.IsActive = &isActive
			}

			pipeline, err := client.UpdatePipeline(args[0], req)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Pipeline updated: %s", pipeline.ID))
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "New pipeline name")
	cmd.Flags().StringVar(&active, "active", "", "Set active flag (true/false)")

	return cmd
}

func newPipelineDeleteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.DeletePipeline(args[0]); err != nil {
				return err
			}

			out.Success("Pipeline deleted")
			return nil
		},
	}
}

// newPipelineDeployCmd создаёт deployment из JSON-файла со spec.
func newPipelineDeployCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var specFile string
	var scheduleFile string
	var run bool

	cmd := &cobra.Command{
		Use:   "deploy ID_OR_NAME",
		Short: "Create a deployment from a spec file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			spec, err := readJSONFile(specFile)
			if err != nil {
				return err
			}

			req := CreateDeploymentRequest{Spec: spec}
			if scheduleFile != "" {
				schedule, err := readJSONFile(scheduleFile)
				if err != nil {
					return err
				}
				req.Schedule = schedule
			}

			deployment, err := client.CreateDeployment(args[0], req)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Deployment created: %s (version %d)", deployment.ID, deployment.Version))

			if run {
				created, err := client.CreateRun(deployment.ID, CreateRunRequest{})
				if err != nil {
					return err
				}
				out.Success(fmt.Sprintf("Run started: %s", created.ID))
			}

			out.Print(
				[]string{"ID", "PIPELINE_ID", "VERSION", "CREATED"},
				[][]string{{deployment.ID, deployment.PipelineID, strconv.Itoa(deployment.Version), deployment.CreatedAt}},
				deployment,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&specFile, "spec", "", "Path to deployment spec JSON file (required)")
	cmd.Flags().StringVar(&scheduleFile, "schedule", "", "Path to schedule spec JSON file")
	cmd.Flags().BoolVar(&run, "run", false, "Start a run immediately after deploying")
	cmd.MarkFlagRequired("spec")

	return cmd
}

func newPipelineDeploymentsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "deployments ID_OR_NAME",
		Short: "List deployments of a pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			deployments, err := client.ListDeployments(args[0])
			if err != nil {
				return err
			}

			headers := []string{"ID", "VERSION", "SCHEDULED", "CREATED"}
			rows := make([][]string, len(deployments))
			for i, d := range deployments {
				rows[i] = []string{d.ID, strconv.Itoa(d.Version), strconv.FormatBool(d.Schedule != nil), d.CreatedAt}
			}

			out.Print(headers, rows, deployments)
			return nil
		},
	}
}

// readJSONFile читает файл и проверяет, что содержимое — корректный JSON.
func readJSONFile(path string) (json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("%s is not valid JSON", path)
	}
	return json.RawMessage(data), nil
}
