package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/ManuelReschke/SchoolPay/internal/pkg/payment"
	"github.com/ManuelReschke/SchoolPay/internal/pkg/poller"
)

func newRootCmd(backend Backend, out io.Writer) *cobra.Command {
	var asJSON bool

	rootCmd := &cobra.Command{
		Use:           "paymentctl",
		Short:         "Operate the SchoolPay payment reconciliation service",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(out)
	rootCmd.PersistentFlags().BoolVar(&asJSON, "json", false, "output as JSON")

	rootCmd.AddCommand(checkStatusCmd(backend, out, &asJSON))
	rootCmd.AddCommand(pollCmd(backend, out, &asJSON))
	rootCmd.AddCommand(sweepCmd(backend, out))

	return rootCmd
}

func checkStatusCmd(backend Backend, out io.Writer, asJSON *bool) *cobra.Command {
	var schoolID string

	cmd := &cobra.Command{
		Use:   "check-status [collect_request_id]",
		Short: "Query the gateway once and reconcile the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := backend.CheckPaymentStatus(cmd.Context(), args[0], schoolID)
			if err != nil {
				return fmt.Errorf("check-status failed: %w", err)
			}
			return printResult(out, res, *asJSON)
		},
	}
	cmd.Flags().StringVarP(&schoolID, "school", "s", "", "school id (defaults to the order's school)")
	return cmd
}

func pollCmd(backend Backend, out io.Writer, asJSON *bool) *cobra.Command {
	var (
		schoolID   string
		maxRetries int
		delay      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "poll [collect_request_id]",
		Short: "Poll the gateway until the payment reaches a final status",
		Long: `Poll repeatedly checks the payment status until it is success, failed
or refunded, or the retry budget is used up. Ctrl+C stops polling.

Examples:
  paymentctl poll CR123
  paymentctl poll CR123 --retries 5 --delay 2s --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			opts := backend.PollOptions()
			if maxRetries > 0 {
				opts.MaxRetries = maxRetries
			}
			if delay > 0 {
				opts.RetryDelay = delay
			}

			cb := poller.Callbacks{
				OnPending: func(res *payment.StatusResult, attempt int) {
					if !*asJSON {
						fmt.Fprintf(out, "attempt %d: %s\n", attempt, res.Status)
					}
				},
			}
			res, err := backend.Poll(ctx, args[0], schoolID, cb, opts)
			if err != nil {
				if res != nil && !*asJSON {
					fmt.Fprintf(out, "last status: %s\n", res.Status)
				}
				return fmt.Errorf("poll failed: %w", err)
			}
			return printResult(out, res, *asJSON)
		},
	}
	cmd.Flags().StringVarP(&schoolID, "school", "s", "", "school id (defaults to the order's school)")
	cmd.Flags().IntVarP(&maxRetries, "retries", "r", 0, "maximum attempts (default from POLL_MAX_RETRIES)")
	cmd.Flags().DurationVarP(&delay, "delay", "d", 0, "delay between attempts (default from POLL_RETRY_DELAY)")
	return cmd
}

func sweepCmd(backend Backend, out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Queue status polls for pending payments that never got a webhook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			n, err := backend.SweepStale(ctx)
			if err != nil {
				return fmt.Errorf("sweep failed: %w", err)
			}
			fmt.Fprintf(out, "enqueued %d poll job(s)\n", n)
			return nil
		},
	}
}

func printResult(out io.Writer, res *payment.StatusResult, asJSON bool) error {
	if asJSON {
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	}

	fmt.Fprintf(out, "Order:      %s\n", res.OrderID)
	fmt.Fprintf(out, "Custom ID:  %s\n", res.CustomOrderID)
	fmt.Fprintf(out, "Collect ID: %s\n", res.CollectRequestID)
	fmt.Fprintf(out, "Status:     %s\n", res.Status)
	fmt.Fprintf(out, "Amount:     %s\n", res.Amount.StringFixed(2))
	if !res.TransactionAmount.IsZero() {
		fmt.Fprintf(out, "Paid:       %s\n", res.TransactionAmount.StringFixed(2))
	}
	return nil
}
