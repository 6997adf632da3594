// Conveyor CLI — инструмент командной строки для управления
// pipelines, runs, step runs и schedules через HTTP API.
//
// Использование:
//
//	conveyor [--api-url URL] [--json] <command> <subcommand> [flags]
//
// Команды:
//
//	pipeline  Управление pipelines и deployments
//	run       Управление runs
//	step      Просмотр step runs
//	schedule  Управление schedules
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaiso/Conveyor/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "conveyor",
		Short:         "Conveyor CLI — ML pipeline control plane",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "http://localhost:8080", "API server URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewPipelineCmd(clientFn, outputFn),
		cli.NewRunCmd(clientFn, outputFn),
		cli.NewStepCmd(clientFn, outputFn),
		cli.NewScheduleCmd(clientFn, outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
