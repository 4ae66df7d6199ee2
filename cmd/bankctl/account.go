package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	bankgrpc "github.com/JoeShih716/go-mem-bank/internal/app/core/adapter/in/grpc"
	"github.com/JoeShih716/go-mem-bank/internal/app/core/domain"
)

var refID string

// currentRefID 沒有指定 --ref 時產生一個新的 UUID
func currentRefID() string {
	if refID != "" {
		return refID
	}
	return uuid.NewString()
}

func parseAmount(name, value string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s %q: %w", name, value, err)
	}
	return d, nil
}

// optionalAmount 空字串代表不變更
func optionalAmount(name, value string) (*decimal.Decimal, error) {
	if value == "" {
		return nil, nil
	}
	d, err := parseAmount(name, value)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

type amountCall func(c *bankgrpc.Client, ctx context.Context, owner string, amount decimal.Decimal, refID string) (domain.Receipt, error)

// amountCommand 建立 "<cmd> OWNER AMOUNT" 形式的子命令
func amountCommand(use, short, argName string, call amountCall) *cobra.Command {
	return &cobra.Command{
		Use:   use + " OWNER " + argName,
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			amount, err := parseAmount(argName, args[1])
			if err != nil {
				return err
			}
			return withClient(func(ctx context.Context, client *bankgrpc.Client) error {
				receipt, err := call(client, ctx, args[0], amount, currentRefID())
				if err != nil {
					return err
				}
				printReceipt(os.Stdout, receipt)
				return nil
			})
		},
	}
}

var openCmd = amountCommand("open", "Open an account with a starting deposit", "DEPOSIT", (*bankgrpc.Client).OpenAccount)
var depositCmd = amountCommand("deposit", "Deposit cash into an account", "AMOUNT", (*bankgrpc.Client).Deposit)
var withdrawCmd = amountCommand("withdraw", "Withdraw cash from an account", "AMOUNT", (*bankgrpc.Client).Withdraw)
var grantCmd = amountCommand("grant", "Grant a loan to an account holder", "AMOUNT", (*bankgrpc.Client).GrantOutstanding)
var repayCmd = amountCommand("repay", "Repay part of an outstanding loan", "AMOUNT", (*bankgrpc.Client).RepayOutstanding)
var interestCmd = amountCommand("interest", "Apply percentage interest to an outstanding loan", "RATE", (*bankgrpc.Client).ApplyInterest)

var closeCmd = &cobra.Command{
	Use:   "close OWNER",
	Short: "Close an account and pay out its balance",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		return withClient(func(ctx context.Context, client *bankgrpc.Client) error {
			receipt, err := client.CloseAccount(ctx, args[0], currentRefID())
			if err != nil {
				return err
			}
			printReceipt(os.Stdout, receipt)
			return nil
		})
	},
}

func init() {
	for _, cmd := range []*cobra.Command{openCmd, closeCmd, depositCmd, withdrawCmd, grantCmd, repayCmd, interestCmd} {
		cmd.Flags().StringVar(&refID, "ref", "", "Reference id (UUID); retrying with the same id applies the operation once.")
		rootCmd.AddCommand(cmd)
	}
}
