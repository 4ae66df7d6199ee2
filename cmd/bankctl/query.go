package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	bankgrpc "github.com/JoeShih716/go-mem-bank/internal/app/core/adapter/in/grpc"
	"github.com/JoeShih716/go-mem-bank/internal/app/core/domain"
)

var maxDepositFlag, maxWithdrawFlag, maxOutstandingFlag string

var showCmd = &cobra.Command{
	Use:   "show OWNER",
	Short: "Show one account",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		return withClient(func(ctx context.Context, client *bankgrpc.Client) error {
			snapshot, err := client.GetAccount(ctx, args[0])
			if err != nil {
				return err
			}
			printSnapshot(os.Stdout, snapshot)
			return nil
		})
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all accounts ordered by owner",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		return withClient(func(ctx context.Context, client *bankgrpc.Client) error {
			accounts, err := client.ListAccounts(ctx)
			if err != nil {
				return err
			}
			return printAccounts(os.Stdout, accounts)
		})
	},
}

var fundsCmd = &cobra.Command{
	Use:   "funds",
	Short: "Show the bank's operating funds",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		return withClient(func(ctx context.Context, client *bankgrpc.Client) error {
			funds, err := client.OperatingFunds(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "%s %s\n", labelColor.Sprint("operating funds:"), formatAmount(positiveColor, funds))
			return nil
		})
	},
}

var limitsCmd = &cobra.Command{
	Use:   "limits",
	Short: "Show the per-transaction limits",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		return withClient(func(ctx context.Context, client *bankgrpc.Client) error {
			limits, err := client.Limits(ctx)
			if err != nil {
				return err
			}
			printLimits(os.Stdout, limits)
			return nil
		})
	},
}

var limitsSetCmd = &cobra.Command{
	Use:     "set",
	Short:   "Change one or more per-transaction limits",
	Example: "  bankctl limits set --max-deposit 20000 --max-withdraw 8000",
	Args:    cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		var (
			update domain.LimitsUpdate
			err    error
		)
		if update.MaxDeposit, err = optionalAmount("max-deposit", maxDepositFlag); err != nil {
			return err
		}
		if update.MaxWithdraw, err = optionalAmount("max-withdraw", maxWithdrawFlag); err != nil {
			return err
		}
		if update.MaxOutstanding, err = optionalAmount("max-outstanding", maxOutstandingFlag); err != nil {
			return err
		}
		if update.MaxDeposit == nil && update.MaxWithdraw == nil && update.MaxOutstanding == nil {
			return fmt.Errorf("nothing to change: pass at least one of --max-deposit, --max-withdraw, --max-outstanding")
		}
		return withClient(func(ctx context.Context, client *bankgrpc.Client) error {
			limits, err := client.SetLimits(ctx, update)
			if err != nil {
				return err
			}
			printLimits(os.Stdout, limits)
			return nil
		})
	},
}

func init() {
	limitsSetCmd.Flags().StringVar(&maxDepositFlag, "max-deposit", "", "New maximum single deposit.")
	limitsSetCmd.Flags().StringVar(&maxWithdrawFlag, "max-withdraw", "", "New maximum single withdrawal.")
	limitsSetCmd.Flags().StringVar(&maxOutstandingFlag, "max-outstanding", "", "New maximum single loan grant.")
	limitsCmd.AddCommand(limitsSetCmd)

	rootCmd.AddCommand(showCmd, listCmd, fundsCmd, limitsCmd)
}
