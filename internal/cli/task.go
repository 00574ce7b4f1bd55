package cli

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewTaskCmd создаёт группу команд для задач очереди.
func NewTaskCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Inspect and cancel queue tasks",
	}

	cmd.AddCommand(
		newTaskListCmd(clientFn, outputFn),
		newTaskCreateCmd(clientFn, outputFn),
		newTaskCancelCmd(clientFn, outputFn),
	)

	return cmd
}

func newTaskListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var kind, status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queue tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			tasks, err := client.ListTasks(kind, status)
			if err != nil {
				return err
			}

			headers := []string{"ID", "KIND", "STATUS", "ATTEMPTS", "STAGE", "ERROR"}
			rows := make([][]string, len(tasks))
			for i, t := range tasks {
				attempts := strconv.Itoa(t.RetryCount) + "/" + strconv.Itoa(t.MaxRetries+1)
				rows[i] = []string{t.ID, t.Kind, t.Status, attempts, t.Stage, truncateCell(t.Error, 60)}
			}

			out.Print(headers, rows, tasks)
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "Filter by task kind")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status")

	return cmd
}

func newTaskCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var (
		kind       string
		payload    string
		maxRetries int
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Enqueue a task (image-crawl or http-call)",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			req := EnqueueTaskRequest{Kind: kind}
			if payload != "" {
				if err := json.Unmarshal([]byte(payload), &req.Payload); err != nil {
					return fmt.Errorf("invalid --payload JSON: %w", err)
				}
			}
			if cmd.Flags().Changed("max-retries") {
				req.MaxRetries = &maxRetries
			}

			task, err := client.EnqueueTask(req)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Task enqueued: %s (%s)", task.ID, task.Kind))
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "Task kind (image-crawl, http-call)")
	cmd.Flags().StringVar(&payload, "payload", "", "Task payload as JSON object")
	cmd.Flags().IntVar(&maxRetries, "max-retries", 0, "Retry budget (default: server-side)")
	cmd.MarkFlagRequired("kind")

	return cmd
}

func newTaskCancelCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel ID",
		Short: "Request cancellation of a running task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			task, err := client.CancelTask(args[0])
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Cancellation requested: %s", task.ID))
			return nil
		},
	}
}

func truncateCell(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
