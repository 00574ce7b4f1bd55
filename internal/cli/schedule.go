package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// NewScheduleCmd создаёт группу команд для управления schedules.
func NewScheduleCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Manage schedules",
	}

	cmd.AddCommand(
		newScheduleListCmd(clientFn, outputFn),
		newScheduleCreateCmd(clientFn, outputFn),
		newScheduleShowCmd(clientFn, outputFn),
		newSchedulePipelineCmd(clientFn, outputFn),
		newScheduleRescheduleCmd(clientFn, outputFn),
		newScheduleDeleteCmd(clientFn, outputFn),
	)

	return cmd
}

func newScheduleListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var opts ListSchedulesOpts

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List schedules",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			schedules, err := client.ListSchedules(opts)
			if err != nil {
				return err
			}

			headers := []string{"ID", "TITLE", "SCHEDULED_AT", "PRIVACY", "STATUS", "COST"}
			rows := make([][]string, len(schedules))
			for i, s := range schedules {
				rows[i] = []string{
					s.ID, s.TitleText, s.ScheduledAt, s.Privacy, s.Status,
					fmt.Sprintf("%d", s.CostCredits),
				}
			}

			out.Print(headers, rows, schedules)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.TitleID, "title-id", "", "Filter by title ID")
	cmd.Flags().StringVar(&opts.ChannelID, "channel-id", "", "Filter by channel ID")
	cmd.Flags().StringVar(&opts.Status, "status", "", "Filter by status (pending, running, completed, failed)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 50, "Maximum number of schedules")

	return cmd
}

func newScheduleCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var at string
	var publishAt string
	var privacy string
	var force bool

	cmd := &cobra.Command{
		Use:   "create TITLE_ID",
		Short: "Create a schedule for a title",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			scheduledAt, err := time.Parse(time.RFC3339, at)
			if err != nil {
				return fmt.Errorf("invalid --at value %q, expected RFC3339: %w", at, err)
			}

			req := CreateScheduleRequest{
				ScheduledAt:  scheduledAt,
				Privacy:      privacy,
				ForceExecute: force,
			}

			if publishAt != "" {
				t, err := time.Parse(time.RFC3339, publishAt)
				if err != nil {
					return fmt.Errorf("invalid --publish-at value %q, expected RFC3339: %w", publishAt, err)
				}
				req.PublishAt = &t
			}

			schedule, err := client.CreateSchedule(args[0], req)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Schedule created: %s", schedule.ID))
			out.Print(
				[]string{"ID", "TITLE_ID", "SCHEDULED_AT", "PRIVACY", "STATUS"},
				[][]string{{
					schedule.ID, schedule.TitleID, schedule.ScheduledAt,
					schedule.Privacy, schedule.Status,
				}},
				schedule,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&at, "at", "", "Scheduled time, RFC3339 (required)")
	cmd.Flags().StringVar(&publishAt, "publish-at", "", "Platform publish time, RFC3339 (defaults to scheduled time)")
	cmd.Flags().StringVar(&privacy, "privacy", "public", "Visibility (public, unlisted, private)")
	cmd.Flags().BoolVar(&force, "force", false, "Allow a past scheduled time (runs immediately)")
	cmd.MarkFlagRequired("at")

	return cmd
}

func newScheduleShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			schedule, err := client.GetSchedule(args[0])
			if err != nil {
				return err
			}

			out.Print(
				[]string{"ID", "TITLE_ID", "SCHEDULED_AT", "PUBLISH_AT", "PRIVACY", "STATUS", "ERROR"},
				[][]string{{
					schedule.ID, schedule.TitleID, schedule.ScheduledAt,
					schedule.PublishAt, schedule.Privacy, schedule.Status, schedule.Error,
				}},
				schedule,
			)
			return nil
		},
	}
}

func newSchedulePipelineCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "pipeline ID",
		Short: "Show pipeline stages and logs for a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			detail, err := client.GetPipeline(args[0])
			if err != nil {
				return err
			}

			stageRows := make([][]string, len(detail.Stages))
			for i, s := range detail.Stages {
				stageRows[i] = []string{
					s.Name, s.Status, fmt.Sprintf("%d", s.RetryCount),
					s.StartedAt, s.CompletedAt, s.Error,
				}
			}
			out.Print(
				[]string{"STAGE", "STATUS", "RETRIES", "STARTED", "COMPLETED", "ERROR"},
				stageRows,
				detail,
			)

			if !out.jsonMode && len(detail.Logs) > 0 {
				logRows := make([][]string, len(detail.Logs))
				for i, l := range detail.Logs {
					logRows[i] = []string{l.CreatedAt, l.Level, l.Message}
				}
				out.Table([]string{"TIME", "LEVEL", "MESSAGE"}, logRows)
			}
			return nil
		},
	}
}

func newScheduleRescheduleCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var at string
	var force bool

	cmd := &cobra.Command{
		Use:   "reschedule ID",
		Short: "Move a schedule to a new time",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			newTime, err := time.Parse(time.RFC3339, at)
			if err != nil {
				return fmt.Errorf("invalid --at value %q, expected RFC3339: %w", at, err)
			}

			schedule, err := client.RescheduleSchedule(args[0], UpdateScheduleTimeRequest{
				NewTime: newTime,
				Force:   force,
			})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Schedule rescheduled: %s", schedule.ID))
			out.Print(
				[]string{"ID", "SCHEDULED_AT", "STATUS"},
				[][]string{{schedule.ID, schedule.ScheduledAt, schedule.Status}},
				schedule,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&at, "at", "", "New scheduled time, RFC3339 (required)")
	cmd.Flags().BoolVar(&force, "force", false, "Allow a past time")
	cmd.MarkFlagRequired("at")

	return cmd
}

func newScheduleDeleteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.DeleteSchedule(args[0]); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Schedule deleted: %s", args[0]))
			return nil
		},
	}
}
