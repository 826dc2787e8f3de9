package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/clinickit/clinic-auth-api/internal/tools/common"
	"github.com/clinickit/clinic-auth-api/internal/tools/loadgen"
	"github.com/clinickit/clinic-auth-api/internal/tools/ui"
)

func main() {
	var (
		cfg loadgen.Config
		ci  bool
	)
	cmd := &cobra.Command{
		Use:          "loadgen",
		Short:        "Generate synthetic traffic against a running auth API",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			fn := func(ctx context.Context) ([]string, error) {
				res, err := loadgen.Run(ctx, cfg)
				if err != nil {
					return nil, err
				}
				details := []string{
					fmt.Sprintf("total=%d failures=%d elapsed=%s", res.TotalRequests, res.Failures, res.Elapsed.Round(time.Millisecond)),
				}
				for class, n := range res.StatusClasses {
					details = append(details, fmt.Sprintf("%s=%d", class, n))
				}
				return details, nil
			}
			if ci {
				details, err := fn(cmd.Context())
				common.PrintCIResult(err == nil, "loadgen", details, err)
				return err
			}
			_, err := ui.Run("loadgen "+cfg.Profile, fn)
			return err
		},
	}
	cmd.Flags().StringVar(&cfg.BaseURL, "base-url", "http://localhost:8080", "API base URL")
	cmd.Flags().StringVar(&cfg.Profile, "profile", "mixed", "traffic profile: mixed, auth, reset, health")
	cmd.Flags().DurationVar(&cfg.Duration, "duration", 30*time.Second, "how long to run")
	cmd.Flags().IntVar(&cfg.RPS, "rps", 20, "target requests per second")
	cmd.Flags().IntVar(&cfg.Concurrency, "concurrency", 6, "worker goroutines")
	cmd.Flags().Int64Var(&cfg.Seed, "seed", time.Now().UnixNano(), "random seed")
	cmd.Flags().BoolVar(&ci, "ci", false, "non-interactive machine-readable output")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
