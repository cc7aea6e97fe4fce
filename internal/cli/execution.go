package cli

import (
	"strconv"

	"github.com/spf13/cobra"
)

// NewExecutionCmd создаёт группу команд для просмотра executions.
func NewExecutionCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "execution",
		Aliases: []string{"exec"},
		Short:   "Inspect run history",
	}

	cmd.AddCommand(
		newExecutionListCmd(clientFn, outputFn),
		newExecutionShowCmd(clientFn, outputFn),
		newExecutionStepsCmd(clientFn, outputFn),
	)

	return cmd
}

func newExecutionListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var taskID string
	var status string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List executions",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			execs, err := client.ListExecutions(ListExecutionsOpts{
				TaskID: taskID,
				Status: status,
				Limit:  limit,
			})
			if err != nil {
				return err
			}

			headers := []string{"ID", "TASK_ID", "STATUS", "REASON", "STARTED", "FINISHED"}
			rows := make([][]string, len(execs))
			for i, e := range execs {
				rows[i] = []string{e.ID, e.TaskID, e.Status, e.Reason, e.StartedAt, e.FinishedAt}
			}

			out.Print(headers, rows, execs)
			return nil
		},
	}

	cmd.Flags().StringVar(&taskID, "task-id", "", "Filter by task ID")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (PENDING, RUNNING, SUCCESS, PARTIAL, FAILED, CANCELLED)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results")

	return cmd
}

func newExecutionShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show EXECUTION_ID",
		Short: "Show execution details with step records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			exec, err := client.GetExecution(args[0])
			if err != nil {
				return err
			}

			headers := []string{"FIELD", "VALUE"}
			rows := [][]string{
				{"ID", exec.ID},
				{"Task", exec.TaskID},
				{"Status", exec.Status},
				{"Reason", exec.Reason},
				{"Error", exec.Error},
				{"Started", exec.StartedAt},
				{"Finished", exec.FinishedAt},
				{"Steps", strconv.Itoa(len(exec.Steps))},
			}

			out.Print(headers, rows, exec)
			return nil
		},
	}
}

func newExecutionStepsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "steps EXECUTION_ID",
		Short: "List step records of an execution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			steps, err := client.ListExecutionSteps(args[0])
			if err != nil {
				return err
			}

			headers := []string{"ORDER", "NAME", "STATUS", "HTTP", "ATTEMPTS", "ERROR"}
			rows := make([][]string, len(steps))
			for i, s := range steps {
				httpCode := ""
				if s.StatusCode > 0 {
					httpCode = strconv.Itoa(s.StatusCode)
				}
				rows[i] = []string{
					strconv.Itoa(s.StepOrder), s.Name, s.Status,
					httpCode, strconv.Itoa(s.Attempts), s.Error,
				}
			}

			out.Print(headers, rows, steps)
			return nil
		},
	}
}
