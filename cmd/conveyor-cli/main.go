// Conveyor CLI — инструмент командной строки для управления
// tasks, chains и executions через HTTP API.
//
// Использование:
//
//	conveyor [--api-url URL] [--json] <command> <subcommand> [flags]
//
// Команды:
//
//	task       Управление tasks и chain-определениями
//	execution  Просмотр истории runs
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaiso/conveyor/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL string
	var jsonOutput bool

	defaultURL := os.Getenv("CONVEYOR_API_URL")
	if defaultURL == "" {
		defaultURL = "http://localhost:8080"
	}

	rootCmd := &cobra.Command{
		Use:           "conveyor",
		Short:         "Conveyor CLI — scheduled HTTP automation tool",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", defaultURL, "API server URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewTaskCmd(clientFn, outputFn),
		cli.NewExecutionCmd(clientFn, outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
