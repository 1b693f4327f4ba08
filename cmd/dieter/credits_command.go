package main

import (
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newCreditsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credits",
		Short: "Show the credit balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := ctx.openSession()
			if err != nil {
				return err
			}
			defer sess.Close()

			account := sess.ledger.Account()
			fmt.Fprintf(cmd.OutOrStdout(), "Credits: %d / %d (%.0f%%)\n",
				account.Balance(), account.Max(), account.Fraction()*100)
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "recharge <amount>",
		Short: "Add credits to the balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.Atoi(args[0])
			if err != nil || amount <= 0 {
				return fmt.Errorf("amount must be a positive integer, got %q", args[0])
			}

			sess, err := ctx.openSession()
			if err != nil {
				return err
			}
			defer sess.Close()

			if limit := sess.cfg.Credits.RechargeMax; limit > 0 && amount > limit {
				return fmt.Errorf("amount exceeds the recharge limit of %d", limit)
			}

			balance := sess.ledger.Credit(amount)
			sess.logger.WithFields(logrus.Fields{
				"amount":  amount,
				"balance": balance,
			}).Info("Credits recharged")
			fmt.Fprintf(cmd.OutOrStdout(), "Credits: %d\n", balance)
			return nil
		},
	})

	return cmd
}
