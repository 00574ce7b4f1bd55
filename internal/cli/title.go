package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewTitleCmd создаёт группу команд для управления titles.
func NewTitleCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "title",
		Short: "Manage titles",
	}

	cmd.AddCommand(
		newTitleListCmd(clientFn, outputFn),
		newTitleCreateCmd(clientFn, outputFn),
		newTitleShowCmd(clientFn, outputFn),
		newTitleDeleteCmd(clientFn, outputFn),
	)

	return cmd
}

func newTitleListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var status string
	var channelID string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List titles",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			titles, err := client.ListTitles(status, channelID)
			if err != nil {
				return err
			}

			headers := []string{"ID", "TEXT", "TYPE", "CATEGORY", "PRIORITY", "STATUS"}
			rows := make([][]string, len(titles))
			for i, t := range titles {
				rows[i] = []string{
					t.ID, t.Text, t.ContentType, t.Category,
					strconv.Itoa(t.Priority), t.Status,
				}
			}

			out.Print(headers, rows, titles)
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Filter by status (pending, scheduled, completed, failed)")
	cmd.Flags().StringVar(&channelID, "channel-id", "", "Filter by channel ID")

	return cmd
}

func newTitleCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var contentType string
	var category string
	var tags []string
	var priority int
	var channelID string
	var userID string

	cmd := &cobra.Command{
		Use:   "create TEXT",
		Short: "Create a title",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			title, err := client.CreateTitle(CreateTitleRequest{
				Text:        args[0],
				ContentType: contentType,
				Category:    category,
				Tags:        tags,
				Priority:    priority,
				ChannelID:   channelID,
				UserID:      userID,
			})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Title created: %s", title.ID))
			out.Print(
				[]string{"ID", "TEXT", "TYPE", "STATUS"},
				[][]string{{title.ID, title.Text, title.ContentType, title.Status}},
				title,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&contentType, "type", "short-form", "Content type (short-form, long-form, product)")
	cmd.Flags().StringVar(&category, "category", "", "Category")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "Tags (repeatable)")
	cmd.Flags().IntVar(&priority, "priority", 0, "Planning priority (higher first)")
	cmd.Flags().StringVar(&channelID, "channel-id", "", "Target channel ID (required)")
	cmd.Flags().StringVar(&userID, "user-id", "", "Owner user ID (required)")
	cmd.MarkFlagRequired("channel-id")
	cmd.MarkFlagRequired("user-id")

	return cmd
}

func newTitleShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show a title",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			title, err := client.GetTitle(args[0])
			if err != nil {
				return err
			}

			out.Print(
				[]string{"ID", "TEXT", "TYPE", "CATEGORY", "PRIORITY", "STATUS", "CHANNEL"},
				[][]string{{
					title.ID, title.Text, title.ContentType, title.Category,
					strconv.Itoa(title.Priority), title.Status, title.ChannelID,
				}},
				title,
			)
			return nil
		},
	}
}

func newTitleDeleteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var cascade bool

	cmd := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a title",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.DeleteTitle(args[0], cascade); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Title deleted: %s", args[0]))
			return nil
		},
	}

	cmd.Flags().BoolVar(&cascade, "cascade", false, "Also delete schedules referencing the title")

	return cmd
}
