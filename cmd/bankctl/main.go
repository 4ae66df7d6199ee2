package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	cc "github.com/ivanpirog/coloredcobra"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	bankgrpc "github.com/JoeShih716/go-mem-bank/internal/app/core/adapter/in/grpc"
	grpcpool "github.com/JoeShih716/go-mem-bank/pkg/grpc"
)

var serverAddr string
var callTimeout time.Duration
var noColor bool

var rootCmd = &cobra.Command{
	Use:           "bankctl",
	Short:         "Command line client for the in-memory bank ledger",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		fd := os.Stdout.Fd()
		if noColor || !(isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)) {
			color.NoColor = true
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverAddr, "addr", "localhost:50051", "Address of the bank gRPC server.")
	rootCmd.PersistentFlags().DurationVar(&callTimeout, "timeout", 5*time.Second, "Timeout applied to each call.")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output.")
}

// withClient 建立連線並執行 fn，結束後關閉連線池
func withClient(fn func(ctx context.Context, client *bankgrpc.Client) error) error {
	pool := grpcpool.NewPool(grpcpool.WithInterceptor(grpcpool.TimeoutInterceptor(callTimeout)))
	defer pool.Close()

	conn, err := pool.GetConnection(serverAddr)
	if err != nil {
		return err
	}
	return fn(context.Background(), bankgrpc.NewClient(conn))
}

func main() {
	cc.Init(&cc.Config{
		RootCmd:         rootCmd,
		Headings:        cc.HiCyan + cc.Bold + cc.Underline,
		Commands:        cc.HiYellow + cc.Bold,
		Example:         cc.Italic,
		ExecName:        cc.Bold,
		Flags:           cc.Bold,
		NoExtraNewlines: true,
		NoBottomNewline: true,
	})

	if err := rootCmd.Execute(); err != nil {
		printError(err)
		os.Exit(1)
	}
}

// exit code 以外也把錯誤種類印出來，方便腳本判斷
func printError(err error) {
	red := color.New(color.FgRed, color.Bold)
	if reason := errorReason(err); reason != "" {
		fmt.Fprintf(os.Stderr, "%s [%s] %v\n", red.Sprint("error:"), reason, err)
		return
	}
	fmt.Fprintf(os.Stderr, "%s %v\n", red.Sprint("error:"), err)
}
