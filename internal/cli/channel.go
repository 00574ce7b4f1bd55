package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// NewChannelCmd создаёт группу команд для управления каналами.
func NewChannelCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "channel",
		Short: "Manage channel posting settings",
	}

	cmd.AddCommand(
		newChannelListCmd(clientFn, outputFn),
		newChannelCreateCmd(clientFn, outputFn),
		newChannelShowCmd(clientFn, outputFn),
		newChannelUpdateCmd(clientFn, outputFn),
		newChannelDeleteCmd(clientFn, outputFn),
	)

	return cmd
}

// formatCadence — компактное описание cadence для таблиц.
func formatCadence(c ChannelResponse) string {
	switch c.PostingMode {
	case "fixed_interval":
		return fmt.Sprintf("every %d %s", c.IntervalValue, c.IntervalUnit)
	case "weekday_time":
		days := make([]string, len(c.Weekdays))
		for i, d := range c.Weekdays {
			days[i] = strconv.Itoa(d)
		}
		return fmt.Sprintf("days %s at %s", strings.Join(days, ","), c.TimeOfDay)
	case "cron":
		return c.CronExpr
	default:
		return c.PostingMode
	}
}

func newChannelListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List channels",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			channels, err := client.ListChannels()
			if err != nil {
				return err
			}

			headers := []string{"ID", "NAME", "CADENCE", "TIMEZONE", "ACTIVE"}
			rows := make([][]string, len(channels))
			for i, c := range channels {
				rows[i] = []string{
					c.ID, c.Name, formatCadence(c), c.Timezone,
					strconv.FormatBool(c.Active),
				}
			}

			out.Print(headers, rows, channels)
			return nil
		},
	}
}

func newChannelCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var req ChannelRequest

	cmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			req.Name = args[0]

			channel, err := client.CreateChannel(req)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Channel created: %s", channel.ID))
			out.Print(
				[]string{"ID", "NAME", "CADENCE", "ACTIVE"},
				[][]string{{channel.ID, channel.Name, formatCadence(*channel), strconv.FormatBool(channel.Active)}},
				channel,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.PostingMode, "mode", "fixed_interval", "Posting mode (fixed_interval, weekday_time, cron)")
	cmd.Flags().IntVar(&req.IntervalValue, "interval", 0, "Interval value for fixed_interval")
	cmd.Flags().StringVar(&req.IntervalUnit, "unit", "", "Interval unit (hours, days)")
	cmd.Flags().IntSliceVar(&req.Weekdays, "weekday", nil, "Weekdays for weekday_time (0=Sunday, repeatable)")
	cmd.Flags().StringVar(&req.TimeOfDay, "time", "", "Time of day HH:MM for weekday_time")
	cmd.Flags().StringVar(&req.CronExpr, "cron", "", "Cron expression for cron mode")
	cmd.Flags().StringVar(&req.Timezone, "timezone", "", "IANA timezone (default UTC)")
	cmd.Flags().StringSliceVar(&req.Categories, "category", nil, "Category allow-list (repeatable)")

	return cmd
}

func newChannelShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show a channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			channel, err := client.GetChannel(args[0])
			if err != nil {
				return err
			}

			out.Print(
				[]string{"ID", "NAME", "CADENCE", "TIMEZONE", "ACTIVE", "CATEGORIES"},
				[][]string{{
					channel.ID, channel.Name, formatCadence(*channel), channel.Timezone,
					strconv.FormatBool(channel.Active), strings.Join(channel.Categories, ","),
				}},
				channel,
			)
			return nil
		},
	}
}

func newChannelUpdateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var req ChannelRequest

	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Update channel posting settings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			channel, err := client.UpdateChannel(args[0], req)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Channel updated: %s", channel.ID))
			out.Print(
				[]string{"ID", "NAME", "CADENCE", "ACTIVE"},
				[][]string{{channel.ID, channel.Name, formatCadence(*channel), strconv.FormatBool(channel.Active)}},
				channel,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Name, "name", "", "Channel name")
	cmd.Flags().StringVar(&req.PostingMode, "mode", "fixed_interval", "Posting mode (fixed_interval, weekday_time, cron)")
	cmd.Flags().IntVar(&req.IntervalValue, "interval", 0, "Interval value for fixed_interval")
	cmd.Flags().StringVar(&req.IntervalUnit, "unit", "", "Interval unit (hours, days)")
	cmd.Flags().IntSliceVar(&req.Weekdays, "weekday", nil, "Weekdays for weekday_time (0=Sunday, repeatable)")
	cmd.Flags().StringVar(&req.TimeOfDay, "time", "", "Time of day HH:MM for weekday_time")
	cmd.Flags().StringVar(&req.CronExpr, "cron", "", "Cron expression for cron mode")
	cmd.Flags().StringVar(&req.Timezone, "timezone", "", "IANA timezone (default UTC)")
	cmd.Flags().StringSliceVar(&req.Categories, "category", nil, "Category allow-list (repeatable)")

	return cmd
}

func newChannelDeleteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.DeleteChannel(args[0]); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Channel deleted: %s", args[0]))
			return nil
		},
	}
}
