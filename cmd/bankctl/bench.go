package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	bankgrpc "github.com/JoeShih716/go-mem-bank/internal/app/core/adapter/in/grpc"
	"github.com/JoeShih716/go-mem-bank/internal/app/core/domain"
)

var benchCount, benchConcurrency int
var benchOwner, benchAmount string
var benchDuration time.Duration

// benchCmd 對單一帳戶大量存款，量測 TPS
var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Fire concurrent deposits at one account and report throughput",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		amount, err := parseAmount("amount", benchAmount)
		if err != nil {
			return err
		}
		if benchCount <= 0 || benchConcurrency <= 0 {
			return errors.New("--count and --concurrency must be positive")
		}

		return withClient(func(ctx context.Context, client *bankgrpc.Client) error {
			ctx, cancel := context.WithTimeout(ctx, benchDuration)
			defer cancel()

			// 帳戶已存在也沒關係
			if _, err := client.OpenAccount(ctx, benchOwner, amount, ""); err != nil && !errors.Is(err, domain.ErrAccountAlreadyExists) {
				return err
			}

			var wg sync.WaitGroup
			var failed atomic.Int64
			sem := make(chan struct{}, benchConcurrency)
			startTime := time.Now()

			for i := 0; i < benchCount; i++ {
				sem <- struct{}{}
				wg.Add(1)
				go func(idx int) {
					defer wg.Done()
					defer func() { <-sem }()

					if _, err := client.Deposit(ctx, benchOwner, amount, uuid.NewString()); err != nil {
						if failed.Add(1) == 1 {
							fmt.Fprintf(os.Stderr, "deposit %d failed: %v\n", idx, err)
						}
					}
				}(i)
			}
			wg.Wait()

			elapsed := time.Since(startTime)
			fmt.Fprintf(os.Stdout, "Completed %d requests in %v (%d failed)\n", benchCount, elapsed, failed.Load())
			fmt.Fprintf(os.Stdout, "TPS: %.2f\n", float64(benchCount)/elapsed.Seconds())
			return nil
		})
	},
}

func init() {
	benchCmd.Flags().IntVar(&benchCount, "count", 10000, "Number of deposits to send.")
	benchCmd.Flags().IntVar(&benchConcurrency, "concurrency", 100, "Maximum in-flight requests.")
	benchCmd.Flags().StringVar(&benchOwner, "owner", "bench", "Account to deposit into; opened if missing.")
	benchCmd.Flags().StringVar(&benchAmount, "amount", "1", "Amount of each deposit.")
	benchCmd.Flags().DurationVar(&benchDuration, "duration", 2*time.Minute, "Overall deadline for the run.")
	rootCmd.AddCommand(benchCmd)
}
