package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/casa/internal/cli"
	"github.com/Veraticus/casa/internal/model"
	"github.com/Veraticus/casa/internal/playbook"
	"github.com/Veraticus/casa/internal/service"
)

func tasksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Household tasks and their remediation plans",
	}

	cmd.AddCommand(tasksListCmd())
	cmd.AddCommand(tasksPlanCmd())

	return cmd
}

func tasksListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List open tasks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			all, _ := cmd.Flags().GetBool("all")

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.RequireIdentity(); err != nil {
				return err
			}
			store, err := openStorage(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			return listTasks(ctx, cmd.OutOrStdout(), store, cfg.Assistant.HouseholdID, all, time.Now())
		},
	}

	cmd.Flags().Bool("all", false, "Include completed tasks")

	return cmd
}

func tasksPlanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plan <task-id>",
		Short: "Show the remediation plan for a task and the stage it has reached",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := openStorage(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			task, err := store.GetTask(ctx, args[0])
			if err != nil {
				return fmt.Errorf("task %s: %w", args[0], err)
			}
			return printPlan(cmd.OutOrStdout(), *task, time.Now())
		},
	}
}

func listTasks(ctx context.Context, w io.Writer, store service.TaskStore, householdID string, all bool, now time.Time) error {
	filter := service.TaskFilter{}
	if !all {
		open := model.TaskPending
		filter.Status = &open
	}
	tasks, err := store.ListTasks(ctx, householdID, filter)
	if err != nil {
		return fmt.Errorf("failed to list tasks: %w", err)
	}
	if len(tasks) == 0 {
		_, err := fmt.Fprintln(w, cli.FormatSuccess("Nenhuma pendência."))
		return err
	}

	rows := make([][]string, 0, len(tasks))
	for _, t := range tasks {
		due := "-"
		if t.DueDate != nil {
			due = t.DueDate.Format("02/01/2006")
			if t.IsOverdue(now) {
				due = cli.ErrorStyle.Render(due + " (vencida)")
			}
		}
		rows = append(rows, []string{t.ID, t.Title, string(t.Category), due, cli.FormatBRL(t.Amount)})
	}
	_, err = fmt.Fprintf(w, "%s\n%s\n", cli.FormatTitle("Pendências"),
		cli.FormatTable([]string{"ID", "Tarefa", "Categoria", "Vencimento", "Valor"}, rows))
	return err
}

// printPlan renders the plan for task. Stages up to the active one are
// marked reached.
func printPlan(w io.Writer, task model.Task, now time.Time) error {
	plan, ok := playbook.PlanFor(task.Category, task.HealthStatus)
	if !ok {
		_, err := fmt.Fprintln(w, cli.FormatInfo(fmt.Sprintf("Sem plano para %q (%s, %s).", task.Title, task.Category, task.HealthStatus)))
		return err
	}

	var b strings.Builder
	for i, step := range plan.Steps {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, step)
	}

	if len(plan.Timeline) > 0 {
		b.WriteString("\n")
		active := -1
		if task.DueDate != nil {
			active = playbook.ActiveStage(plan.Timeline, *task.DueDate, now)
			if playbook.DaysSince(*task.DueDate, now) < plan.Timeline[0].DaysOffset {
				active = -1
			}
		}
		for i, stage := range plan.Timeline {
			line := fmt.Sprintf("  D+%-3d %s: %s", stage.DaysOffset, stage.Title, stage.Description)
			switch {
			case i == active:
				line = cli.WarningStyle.Render("▶ " + strings.TrimPrefix(line, "  "))
			case i < active:
				line = cli.SubtleStyle.Render(line)
			}
			b.WriteString(line + "\n")
		}
	}

	_, err := fmt.Fprintln(w, cli.RenderBox(plan.Title+" · "+task.Title, strings.TrimRight(b.String(), "\n")))
	return err
}
