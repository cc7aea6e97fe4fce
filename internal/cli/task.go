package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// NewTaskCmd создаёт группу команд для управления tasks.
func NewTaskCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage tasks",
	}

	cmd.AddCommand(
		newTaskListCmd(clientFn, outputFn),
		newTaskCreateCmd(clientFn, outputFn),
		newTaskShowCmd(clientFn, outputFn),
		newTaskDeleteCmd(clientFn, outputFn),
		newTaskEnableCmd(clientFn, outputFn, true),
		newTaskEnableCmd(clientFn, outputFn, false),
		newTaskRunCmd(clientFn, outputFn),
		newTaskChainCmd(clientFn, outputFn),
	)

	return cmd
}

func newTaskListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var workspaceID string
	var enabled string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			tasks, err := client.ListTasks(ListTasksOpts{
				WorkspaceID: workspaceID,
				Enabled:     enabled,
				Limit:       limit,
			})
			if err != nil {
				return err
			}

			headers := []string{"ID", "NAME", "SCHEDULE", "POLICY", "ENABLED", "NEXT_DUE"}
			rows := make([][]string, len(tasks))
			for i, t := range tasks {
				rows[i] = []string{
					t.ID, t.Name, taskSchedule(t), t.OverlapPolicy,
					strconv.FormatBool(t.Enabled), t.NextDueAt,
				}
			}

			out.Print(headers, rows, tasks)
			return nil
		},
	}

	cmd.Flags().StringVar(&workspaceID, "workspace-id", "", "Filter by workspace ID")
	cmd.Flags().StringVar(&enabled, "enabled", "", "Filter by enabled state (true/false)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results")

	return cmd
}

func newTaskCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var req CreateTaskRequest
	var headers []string
	var variables []string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new task",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			var err error
			if req.Headers, err = parseKV(headers); err != nil {
				return err
			}
			if req.InitialVariables, err = parseKV(variables); err != nil {
				return err
			}

			task, err := client.CreateTask(req)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Task created: %s", task.ID))
			out.Print(
				[]string{"ID", "NAME", "SCHEDULE", "POLICY", "ENABLED"},
				[][]string{{task.ID, task.Name, taskSchedule(*task), task.OverlapPolicy, strconv.FormatBool(task.Enabled)}},
				task,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Name, "name", "", "Task name (required)")
	cmd.Flags().StringVar(&req.URL, "url", "", "Target URL (required)")
	cmd.Flags().StringVar(&req.Method, "method", "", "HTTP method (GET if not specified)")
	cmd.Flags().StringSliceVar(&headers, "header", nil, "Request header as KEY=VALUE (repeatable)")
	cmd.Flags().StringVar(&req.Body, "body", "", "Request body")
	cmd.Flags().IntVar(&req.TimeoutSec, "timeout", 0, "Call timeout in seconds")
	cmd.Flags().IntVar(&req.RetryCount, "retries", 0, "Retry count on failure")
	cmd.Flags().StringVar(&req.OverlapPolicy, "overlap-policy", "", "Overlap policy (ALLOW, SKIP, QUEUE)")
	cmd.Flags().IntVar(&req.MaxInstances, "max-instances", 0, "Concurrent instance limit for SKIP/QUEUE")
	cmd.Flags().IntVar(&req.MaxQueueSize, "max-queue-size", 0, "Queue capacity for QUEUE (0 = unbounded)")
	cmd.Flags().StringVar(&req.CronExpr, "cron", "", "Cron schedule expression")
	cmd.Flags().StringVar(&req.Timezone, "timezone", "", "Schedule timezone (UTC if not specified)")
	cmd.Flags().BoolVar(&req.Enabled, "enabled", true, "Create enabled")
	cmd.Flags().StringSliceVar(&variables, "variable", nil, "Initial variable as KEY=VALUE (repeatable)")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("url")

	return cmd
}

func newTaskShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show TASK_ID",
		Short: "Show task details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			task, err := client.GetTask(args[0])
			if err != nil {
				return err
			}

			headers := []string{"FIELD", "VALUE"}
			rows := [][]string{
				{"ID", task.ID},
				{"Name", task.Name},
				{"URL", task.URL},
				{"Method", task.Method},
				{"Schedule", taskSchedule(*task)},
				{"Timezone", task.Timezone},
				{"Overlap policy", task.OverlapPolicy},
				{"Enabled", strconv.FormatBool(task.Enabled)},
				{"Next due", task.NextDueAt},
				{"Last run", task.LastRunAt},
				{"Created", task.CreatedAt},
			}

			out.Print(headers, rows, task)
			return nil
		},
	}
}

func newTaskDeleteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "delete TASK_ID",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.DeleteTask(args[0]); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Task deleted: %s", args[0]))
			return nil
		},
	}
}

func newTaskEnableCmd(clientFn func() *Client, outputFn func() *Output, enable bool) *cobra.Command {
	use, short := "enable TASK_ID", "Enable a task"
	if !enable {
		use, short = "disable TASK_ID", "Disable a task"
	}

	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			var task *TaskResponse
			var err error
			if enable {
				task, err = client.EnableTask(args[0])
			} else {
				task, err = client.DisableTask(args[0])
			}
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Task %s: enabled=%t", task.ID, task.Enabled))
			out.Print(
				[]string{"ID", "NAME", "ENABLED", "NEXT_DUE"},
				[][]string{{task.ID, task.Name, strconv.FormatBool(task.Enabled), task.NextDueAt}},
				task,
			)
			return nil
		},
	}
}

func newTaskRunCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var variables []string

	cmd := &cobra.Command{
		Use:   "run TASK_ID",
		Short: "Trigger a manual run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			vars, err := parseKV(variables)
			if err != nil {
				return err
			}

			exec, err := client.RunTask(args[0], RunTaskRequest{Variables: vars})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Run requested: %s", exec.ID))
			out.Print(
				[]string{"ID", "TASK_ID", "STATUS", "CREATED"},
				[][]string{{exec.ID, exec.TaskID, exec.Status, exec.CreatedAt}},
				exec,
			)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&variables, "variable", nil, "Variable override as KEY=VALUE (repeatable)")

	return cmd
}

// newTaskChainCmd — подгруппа для chain-определения task'а.
func newTaskChainCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chain",
		Short: "Manage the task chain definition",
	}

	cmd.AddCommand(
		newChainShowCmd(clientFn, outputFn),
		newChainSaveCmd(clientFn, outputFn),
		newChainDeleteCmd(clientFn, outputFn),
	)

	return cmd
}

func newChainShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show TASK_ID",
		Short: "Show the chain definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			chain, err := client.GetChain(args[0])
			if err != nil {
				return err
			}

			headers := []string{"ORDER", "NAME", "URL", "METHOD", "CONDITION"}
			rows := make([][]string, len(chain.Steps))
			for i, step := range chain.Steps {
				rows[i] = []string{
					stepField(step, "step_order"),
					stepField(step, "name"),
					stepField(step, "url"),
					stepField(step, "method"),
					stepCondition(step),
				}
			}

			out.Print(headers, rows, chain)
			return nil
		},
	}
}

func newChainSaveCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var chainFile string

	cmd := &cobra.Command{
		Use:   "save TASK_ID",
		Short: "Save the chain definition from a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			data, err := os.ReadFile(chainFile)
			if err != nil {
				return fmt.Errorf("failed to read chain file: %w", err)
			}

			// Валидируем что это валидный JSON
			if !json.Valid(data) {
				return fmt.Errorf("chain file is not valid JSON")
			}

			chain, err := client.SaveChain(args[0], json.RawMessage(data))
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Chain saved for task %s: %d steps", chain.TaskID, len(chain.Steps)))
			out.JSON(chain)
			return nil
		},
	}

	cmd.Flags().StringVar(&chainFile, "file", "", "Path to chain JSON file (required)")
	cmd.MarkFlagRequired("file")

	return cmd
}

func newChainDeleteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "delete TASK_ID",
		Short: "Delete the chain definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.DeleteChain(args[0]); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Chain deleted for task %s", args[0]))
			return nil
		},
	}
}

// --- Helpers ---

// taskSchedule форматирует расписание task'а для таблиц.
func taskSchedule(t TaskResponse) string {
	switch {
	case t.CronExpr != "":
		return t.CronExpr
	case t.RunAt != "":
		return "at " + t.RunAt
	default:
		return "manual"
	}
}

// parseKV разбирает флаги вида KEY=VALUE в map.
func parseKV(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	m := make(map[string]string, len(pairs))
	for _, kv := range pairs {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid format %q, expected KEY=VALUE", kv)
		}
		m[parts[0]] = parts[1]
	}
	return m, nil
}

// stepField достаёт строковое представление поля шага из raw JSON.
func stepField(step map[string]any, name string) string {
	switch v := step[name].(type) {
	case string:
		return v
	case float64:
		return strconv.Itoa(int(v))
	default:
		return ""
	}
}

// stepCondition форматирует condition шага для таблицы.
func stepCondition(step map[string]any) string {
	cond, ok := step["condition"].(map[string]any)
	if !ok {
		return "-"
	}
	op, _ := cond["operator"].(string)
	if field, ok := cond["field"].(string); ok && field != "" {
		return fmt.Sprintf("%s(%s)", op, field)
	}
	return op
}
