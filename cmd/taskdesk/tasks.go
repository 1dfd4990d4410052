package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tgienger/taskdesk/internal/db"
	"github.com/tgienger/taskdesk/internal/models"
	"github.com/tgienger/taskdesk/internal/tracker"
)

const dateLayout = "2006-01-02"

// parseDue accepts a calendar date in local time or a full RFC 3339 timestamp.
func parseDue(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	if t, err := time.ParseInLocation(dateLayout, s, time.Local); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, fmt.Errorf("%w: due date %q: want YYYY-MM-DD or RFC 3339", tracker.ErrInvalidInput, s)
	}
	return &t, nil
}

type taskFlags struct {
	title       string
	description string
	status      string
	priority    string
	customer    string
	executor    string
	due         string
	tags        []string
}

func (f *taskFlags) register(cmd *cobra.Command, withStatus bool) {
	fl := cmd.Flags()
	fl.StringVar(&f.title, "title", "", "task title")
	fl.StringVarP(&f.description, "description", "d", "", "task description")
	fl.StringVarP(&f.priority, "priority", "p", "medium", "priority (low, medium, high, critical)")
	fl.StringVar(&f.customer, "customer", "", "customer user id")
	fl.StringVar(&f.executor, "executor", "", "executor user id")
	fl.StringVar(&f.due, "due", "", "due date (YYYY-MM-DD or RFC 3339)")
	fl.StringSliceVarP(&f.tags, "tag", "t", nil, "tag name (repeatable, created when missing)")
	if withStatus {
		fl.StringVarP(&f.status, "status", "s", "", "status (new, in_progress, completed, cancelled)")
	}
}

func taskCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Create, inspect and change tasks",
	}
	cmd.AddCommand(
		taskAddCmd(s),
		taskListCmd(s),
		taskShowCmd(s),
		taskUpdateCmd(s),
		taskRmCmd(s),
	)
	return cmd
}

func taskAddCmd(s *session) *cobra.Command {
	var f taskFlags
	cmd := &cobra.Command{
		Use:     "add",
		Short:   "Create a task",
		Example: `  taskdesk task add --title "Fix invoice" --customer <id> --executor <id> -p high -t billing -t urgent`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			due, err := parseDue(f.due)
			if err != nil {
				return err
			}
			task, err := s.svc.CreateTask(cmd.Context(), tracker.CreateTaskInput{
				Title:       f.title,
				Description: f.description,
				Priority:    f.priority,
				CustomerID:  f.customer,
				ExecutorID:  f.executor,
				DueDate:     due,
				Tags:        f.tags,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), task.ID)
			return nil
		},
	}
	f.register(cmd, false)
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("customer")
	_ = cmd.MarkFlagRequired("executor")
	return cmd
}

func taskListCmd(s *session) *cobra.Command {
	var (
		filter   db.TaskFilter
		status   string
		priority string
		overdue  bool
		format   string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks, most urgent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if status != "" {
				st, err := models.ParseStatus(status)
				if err != nil {
					return fmt.Errorf("%w: %v", tracker.ErrInvalidInput, err)
				}
				filter.Status = &st
			}
			if priority != "" {
				p, err := models.ParsePriority(priority)
				if err != nil {
					return fmt.Errorf("%w: %v", tracker.ErrInvalidInput, err)
				}
				filter.Priority = &p
			}

			var (
				tasks []models.Task
				err   error
			)
			if overdue {
				tasks, err = s.svc.Overdue(ctx)
			} else {
				tasks, err = s.svc.Tasks(ctx, filter)
			}
			if err != nil {
				return err
			}

			if format == formatJSON {
				views := make([]taskView, len(tasks))
				for i, t := range tasks {
					views[i] = toTaskView(t)
				}
				return writeJSON(cmd.OutOrStdout(), views)
			}
			now := time.Now()
			tw := newTable(cmd.OutOrStdout(), "ID", "TITLE", "STATUS", "PRIORITY", "DUE", "TAGS")
			for _, t := range tasks {
				due := formatDate(t.DueDate)
				if days, late := t.OverdueDays(now); late {
					due = fmt.Sprintf("%s (%dd late)", due, days)
				}
				tw.row(t.ID, t.Title, t.Status.String(), t.Priority.String(), due, strings.Join(t.TagNames(), ","))
			}
			return tw.flush()
		},
	}
	fl := cmd.Flags()
	fl.StringVarP(&status, "status", "s", "", "only tasks with this status")
	fl.StringVarP(&priority, "priority", "p", "", "only tasks with this priority")
	fl.StringVar(&filter.CustomerID, "customer", "", "only tasks for this customer id")
	fl.StringVar(&filter.ExecutorID, "executor", "", "only tasks for this executor id")
	fl.StringVarP(&filter.Tag, "tag", "t", "", "only tasks carrying this tag")
	fl.StringVarP(&filter.Search, "search", "q", "", "match title or description")
	fl.Uint64Var(&filter.Limit, "limit", 0, "maximum number of tasks (0 for all)")
	fl.BoolVar(&overdue, "overdue", false, "only open tasks past their due date")
	addFormatFlag(cmd, &format)
	return cmd
}

func taskShowCmd(s *session) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := s.svc.Task(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if format == formatJSON {
				return writeJSON(cmd.OutOrStdout(), toTaskView(t))
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s\n\n", t.Title)
			if t.Description != "" {
				fmt.Fprintf(out, "%s\n\n", t.Description)
			}
			tw := newTable(out, "FIELD", "VALUE")
			tw.row("id", t.ID)
			tw.row("status", t.Status.Label())
			tw.row("priority", t.Priority.Label())
			tw.row("customer", t.CustomerID)
			tw.row("executor", t.ExecutorID)
			tw.row("created", t.CreatedAt.Local().Format(time.DateTime))
			tw.row("due", formatDate(t.DueDate))
			tw.row("completed", formatDate(t.CompletedAt))
			tw.row("tags", strings.Join(t.TagNames(), ", "))
			return tw.flush()
		},
	}
	addFormatFlag(cmd, &format)
	return cmd
}

func taskUpdateCmd(s *session) *cobra.Command {
	var (
		f        taskFlags
		clearDue bool
	)
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change fields of a task; flags left out keep their current value",
		Example: `  taskdesk task update <id> -s completed
  taskdesk task update <id> -t billing   # replaces the tag set`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cur, err := s.svc.Task(ctx, args[0])
			if err != nil {
				return err
			}
			in := tracker.UpdateTaskInput{
				Title:       cur.Title,
				Description: cur.Description,
				Status:      cur.Status.String(),
				Priority:    cur.Priority.String(),
				CustomerID:  cur.CustomerID,
				ExecutorID:  cur.ExecutorID,
				DueDate:     cur.DueDate,
				Tags:        cur.TagNames(),
			}

			changed := cmd.Flags().Changed
			if changed("title") {
				in.Title = f.title
			}
			if changed("description") {
				in.Description = f.description
			}
			if changed("status") {
				in.Status = f.status
			}
			if changed("priority") {
				in.Priority = f.priority
			}
			if changed("customer") {
				in.CustomerID = f.customer
			}
			if changed("executor") {
				in.ExecutorID = f.executor
			}
			if changed("tag") {
				in.Tags = f.tags
			}
			switch {
			case clearDue:
				in.DueDate = nil
			case changed("due"):
				if in.DueDate, err = parseDue(f.due); err != nil {
					return err
				}
			}

			_, err = s.svc.UpdateTask(ctx, cur.ID, in)
			return err
		},
	}
	f.register(cmd, true)
	cmd.Flags().BoolVar(&clearDue, "clear-due", false, "remove the due date")
	cmd.MarkFlagsMutuallyExclusive("due", "clear-due")
	return cmd
}

func taskRmCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a task and its tag links",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.svc.DeleteTask(cmd.Context(), args[0])
		},
	}
}
