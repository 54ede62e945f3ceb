package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"dealradar/internal/api"
	"dealradar/internal/services"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var (
		req     api.SubmitRequest
		csvPath string
	)

	cmd := &cobra.Command{
		Use:   "submit <company name> | --csv <file>",
		Short: "Queue a company, or a CSV list of companies, for analysis",
		Args: func(cmd *cobra.Command, args []string) error {
			if csvPath != "" {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.MinimumNArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			if csvPath != "" {
				return submitCSV(cmd, ctx, client, csvPath)
			}
			req.CompanyName = strings.Join(args, " ")
			task, err := client.Submit(cmd.Context(), req)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, task)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Queued %s as task %s\n", task.CompanyName, task.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Website, "website", "", "Company website (skips website discovery)")
	cmd.Flags().StringVar(&req.IRURL, "ir-url", "", "Investor relations page (skips IR discovery)")
	cmd.Flags().StringVar(&req.Country, "country", "", "Country of the company")
	cmd.Flags().StringVar(&csvPath, "csv", "", "Semicolon separated company list to queue (- reads stdin)")
	cmd.MarkFlagsMutuallyExclusive("csv", "website")
	cmd.MarkFlagsMutuallyExclusive("csv", "ir-url")
	cmd.MarkFlagsMutuallyExclusive("csv", "country")
	return cmd
}

func submitCSV(cmd *cobra.Command, ctx *commandContext, client *api.Client, path string) error {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return services.Wrap(services.ErrInvalidInput, "cli", "submit", "read "+path, err)
	}
	batch, err := client.SubmitCSV(cmd.Context(), string(data))
	if err != nil {
		return err
	}
	if ctx.jsonOutput() {
		return writeJSON(cmd, batch)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Queued %d companies\n", batch.Count)
	fmt.Fprintln(out, renderTable(out, taskHeaders, taskRows(batch.Tasks), taskAligns))
	return nil
}

func newTasksCommand(ctx *commandContext) *cobra.Command {
	tasksCmd := &cobra.Command{
		Use:   "tasks",
		Short: "Inspect and cancel analysis tasks",
	}
	listCmd := newTasksListCommand(ctx)
	tasksCmd.RunE = listCmd.RunE
	tasksCmd.Flags().AddFlagSet(listCmd.Flags())

	tasksCmd.AddCommand(listCmd)
	tasksCmd.AddCommand(newTasksShowCommand(ctx))
	tasksCmd.AddCommand(newTasksCancelCommand(ctx))
	return tasksCmd
}

func newTasksListCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks, most recent first",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			tasks, err := client.Tasks(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, api.TaskListResponse{Tasks: tasks})
			}
			out := cmd.OutOrStdout()
			if len(tasks) == 0 {
				fmt.Fprintln(out, "No tasks")
				return nil
			}
			fmt.Fprintln(out, renderTable(out, taskHeaders, taskRows(tasks), taskAligns))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of tasks (0 for all)")
	return cmd
}

var (
	taskHeaders = []string{"ID", "Company", "Status", "Progress", "Step", "Created"}
	taskAligns  = []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft}
)

func taskRows(tasks []api.TaskView) [][]string {
	rows := make([][]string, 0, len(tasks))
	for _, task := range tasks {
		step := task.CurrentStep
		if task.Error != "" {
			step = task.Error
		}
		rows = append(rows, []string{
			task.ID,
			truncate(task.CompanyName, 32),
			task.Status,
			percent(task.Progress),
			truncate(valueOrDash(step), 40),
			relativeTime(task.CreatedAt),
		})
	}
	return rows
}

func newTasksShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <task id>",
		Short: "Show one task with its log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			task, err := client.Task(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, task)
			}
			printTask(cmd, task)
			return nil
		},
	}
}

func printTask(cmd *cobra.Command, task api.TaskView) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Task:      %s\n", task.ID)
	fmt.Fprintf(out, "Company:   %s\n", task.CompanyName)
	if task.Website != "" {
		fmt.Fprintf(out, "Website:   %s\n", task.Website)
	}
	if task.IRURL != "" {
		fmt.Fprintf(out, "IR page:   %s\n", task.IRURL)
	}
	fmt.Fprintf(out, "Status:    %s (%s)\n", task.Status, percent(task.Progress))
	if task.CurrentStep != "" {
		fmt.Fprintf(out, "Step:      %s\n", task.CurrentStep)
	}
	if len(task.StepsCompleted) > 0 {
		fmt.Fprintf(out, "Completed: %s\n", strings.Join(task.StepsCompleted, ", "))
	}
	if len(task.Documents) > 0 {
		fmt.Fprintf(out, "Documents: %d\n", len(task.Documents))
	}
	if task.Error != "" {
		fmt.Fprintf(out, "Error:     %s [%s]\n", task.Error, valueOrDash(task.ErrorKind))
	}
	fmt.Fprintf(out, "Created:   %s\n", relativeTime(task.CreatedAt))
	if task.FinishedAt != "" {
		fmt.Fprintf(out, "Finished:  %s\n", relativeTime(task.FinishedAt))
	}
	if len(task.Log) > 0 {
		fmt.Fprintln(out, "\nLog:")
		for _, line := range task.Log {
			fmt.Fprintf(out, "  %s\n", line)
		}
	}
}

func newTasksCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <task id>",
		Short: "Cancel a pending or running task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			task, err := client.CancelTask(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, task)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Task %s is %s\n", task.ID, task.Status)
			return nil
		},
	}
}
