package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewCreditCmd создаёт группу команд для работы с кредитами.
func NewCreditCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credit",
		Short: "Check balance and deposit credits",
	}

	cmd.AddCommand(
		newCreditBalanceCmd(clientFn, outputFn),
		newCreditDepositCmd(clientFn, outputFn),
	)

	return cmd
}

func newCreditBalanceCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "balance USER_ID",
		Short: "Show user credit balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			balance, err := client.GetBalance(args[0])
			if err != nil {
				return err
			}

			out.Print(
				[]string{"USER_ID", "BALANCE"},
				[][]string{{balance.UserID, strconv.FormatInt(balance.Balance, 10)}},
				balance,
			)
			return nil
		},
	}
}

func newCreditDepositCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "deposit USER_ID AMOUNT",
		Short: "Deposit credits to a user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			amount, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", args[1], err)
			}

			balance, err := client.Deposit(args[0], amount)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Deposited %d credits, new balance: %d", amount, balance.Balance))
			return nil
		},
	}
}
