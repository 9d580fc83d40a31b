// ratequeue drives a simulated burst of operations through a scheduler so
// that limits can be tried out from the command line.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	lg "github.com/Andrej220/go-utils/zlog"
	"github.com/azargarov/ratequeue"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"
)

var (
	configPath      string
	ops             int
	concurrency     int
	intervalCeiling int
	interval        time.Duration
	work            time.Duration
	failEvery       int
	retries         int
	highEvery       int
	submitRate      float64
	verbose         bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "ratequeue",
		Short: "Rate limited in-process task scheduler",
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug output")
	rootCmd.AddCommand(simulateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func simulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Schedule a burst of simulated operations and report how they ran",
		Long: `simulate submits --ops operations that each sleep for --work.
Every --fail-every'th operation fails on its first attempt and is retried
with exponential backoff up to --retries tries.

Examples:
  # 100 operations, at most 5 in flight and 20 started per second
  ratequeue simulate --ops 100 --concurrency 5 --interval-ceiling 20

  # Load limits from a file, flags override file values
  ratequeue simulate --config limits.yaml --ops 50
`,
		Args: cobra.NoArgs,
		RunE: runSimulate,
	}

	f := cmd.Flags()
	f.StringVar(&configPath, "config", "", "YAML file with scheduler options")
	f.IntVar(&ops, "ops", 50, "Number of operations to submit")
	f.IntVar(&concurrency, "concurrency", 0, "Concurrency ceiling (default from config or 10)")
	f.IntVar(&intervalCeiling, "interval-ceiling", 0, "Admissions per interval (0: unlimited)")
	f.DurationVar(&interval, "interval", 0, "Interval length (default from config or 1s)")
	f.DurationVar(&work, "work", 50*time.Millisecond, "Duration of each simulated operation")
	f.IntVar(&failEvery, "fail-every", 0, "Fail the first attempt of every n-th operation (0: never)")
	f.IntVar(&retries, "retries", 3, "Maximum tries per operation, the first one included")
	f.IntVar(&highEvery, "high-every", 0, "Submit every n-th operation with high priority (0: never)")
	f.Float64Var(&submitRate, "submit-rate", 0, "Submissions per second (0: submit all at once)")
	return cmd
}

// newLogger honours --verbose; LOG_FORMAT and APP_DEBUG still apply.
func newLogger() lg.ZLogger {
	return lg.New(&lg.Config{
		ServiceName: "ratequeue",
		Debug:       verbose,
		Format:      lg.FormatFromEnv(lg.ZLoggerJsonFormat),
	})
}

// withLogger attaches logger to ctx and makes the scheduler log through the
// same context, so item and scheduler events share the CLI's sink.
func withLogger(ctx context.Context, logger lg.ZLogger, opts *ratequeue.Options) context.Context {
	ctx = lg.Attach(ctx, logger)
	opts.LogContext = ctx
	return ctx
}

func loadOptions(cmd *cobra.Command) (ratequeue.Options, error) {
	var opts ratequeue.Options
	if configPath != "" {
		o, err := ratequeue.LoadOptions(configPath)
		if err != nil {
			return opts, err
		}
		opts = o
	}
	if cmd.Flags().Changed("concurrency") {
		opts.ConcurrencyCeiling = concurrency
	}
	if cmd.Flags().Changed("interval-ceiling") {
		opts.IntervalAdmissionCeiling = intervalCeiling
	}
	if cmd.Flags().Changed("interval") {
		opts.IntervalLength = interval
	}
	return opts, nil
}

func runSimulate(cmd *cobra.Command, _ []string) error {
	logger := newLogger()
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts, err := loadOptions(cmd)
	if err != nil {
		return err
	}
	ctx = withLogger(ctx, logger, &opts)
	metrics := &ratequeue.AtomicMetrics{}
	opts.Metrics = metrics
	opts.OnOperationError = func(id string, err error) {
		logger.Debug("operation error reported", lg.String("item", id), lg.Error("error", err))
	}
	s := ratequeue.New(opts)

	var limiter *rate.Limiter
	if submitRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(submitRate), 1)
	}
	policy := ratequeue.ExponentialBackoff(ratequeue.RetryPolicy{
		Attempts: retries,
		Initial:  10 * time.Millisecond,
		Max:      time.Second,
	})

	start := time.Now()
	var wg sync.WaitGroup
	for i := 1; i <= ops; i++ {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				break
			}
		}
		op, err := ratequeue.WithRetry(simulatedOp(i), policy)
		if err != nil {
			return err
		}
		prio := ratequeue.PriorityNormal
		if highEvery > 0 && i%highEvery == 0 {
			prio = ratequeue.PriorityHigh
		}
		item, err := ratequeue.Schedule(ctx, s, op, prio)
		if err != nil {
			logger.Warn("submission refused", lg.Int("op", i), lg.Error("error", err))
			break
		}
		logger.Debug("submitted",
			lg.Int("op", i),
			lg.String("item", item.ID()),
			lg.String("priority", prio.String()),
			lg.Int("pending", s.Pending()),
			lg.Int("in_progress", s.InProgress()),
		)
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-item.Done()
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		logger.Info("interrupted; terminating scheduler")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		<-done
	}

	logger.Info("simulation finished",
		lg.String("elapsed", time.Since(start).String()),
		lg.Any("scheduled", metrics.Scheduled()),
		lg.Any("admitted", metrics.Admitted()),
		lg.Any("fulfilled", metrics.Fulfilled()),
		lg.Any("rejected", metrics.Rejected()),
		lg.Any("cancelled", metrics.Cancelled()),
	)
	return nil
}

// simulatedOp sleeps for --work and fails its first attempt when n is a
// multiple of --fail-every.
func simulatedOp(n int) ratequeue.Operation[int] {
	var mu sync.Mutex
	attempts := 0
	return func(ctx context.Context) (int, error) {
		mu.Lock()
		attempts++
		first := attempts == 1
		mu.Unlock()

		select {
		case <-time.After(work):
		case <-ctx.Done():
			return 0, ctx.Err()
		}
		if first && failEvery > 0 && n%failEvery == 0 {
			return 0, fmt.Errorf("op %d: simulated failure", n)
		}
		return n, nil
	}
}
