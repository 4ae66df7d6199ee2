package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/shopspring/decimal"

	bankgrpc "github.com/JoeShih716/go-mem-bank/internal/app/core/adapter/in/grpc"
	"github.com/JoeShih716/go-mem-bank/internal/app/core/domain"
)

var (
	labelColor    = color.New(color.FgCyan)
	positiveColor = color.New(color.FgGreen)
	owedColor     = color.New(color.FgYellow)
)

func errorReason(err error) string {
	var remote *bankgrpc.RemoteError
	if errors.As(err, &remote) {
		return remote.Reason
	}
	return ""
}

// formatAmount 原樣輸出金額，不做四捨五入
func formatAmount(c *color.Color, d decimal.Decimal) string {
	if d.IsZero() {
		return d.String()
	}
	return c.Sprint(d.String())
}

func printReceipt(w io.Writer, receipt domain.Receipt) {
	fmt.Fprintf(w, "%s %d  %s %s\n",
		labelColor.Sprint("seq"), receipt.Sequence,
		labelColor.Sprint("tx"), receipt.TransactionID)
	printSnapshot(w, receipt.Account)
	fmt.Fprintf(w, "%s %s\n", labelColor.Sprint("operating funds:"), formatAmount(positiveColor, receipt.OperatingFunds))
}

func printSnapshot(w io.Writer, s domain.AccountSnapshot) {
	fmt.Fprintf(w, "%s %s\n", labelColor.Sprint("owner:      "), s.Owner)
	fmt.Fprintf(w, "%s %s\n", labelColor.Sprint("balance:    "), formatAmount(positiveColor, s.Balance))
	fmt.Fprintf(w, "%s %s\n", labelColor.Sprint("outstanding:"), formatAmount(owedColor, s.Outstanding))
}

func printAccounts(w io.Writer, accounts []domain.AccountSnapshot) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "OWNER\tBALANCE\tOUTSTANDING\t")
	for _, a := range accounts {
		fmt.Fprintf(tw, "%s\t%s\t%s\t\n", a.Owner, a.Balance.String(), a.Outstanding.String())
	}
	return tw.Flush()
}

func printLimits(w io.Writer, l domain.Limits) {
	fmt.Fprintf(w, "%s %s\n", labelColor.Sprint("max deposit:    "), l.MaxDeposit.String())
	fmt.Fprintf(w, "%s %s\n", labelColor.Sprint("max withdraw:   "), l.MaxWithdraw.String())
	fmt.Fprintf(w, "%s %s\n", labelColor.Sprint("max outstanding:"), l.MaxOutstanding.String())
}
