// Command lms-core runs the gamification ledger and subscription
// reconciler service.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wolfwhale/lms-core/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		log := logger.Get()
		log.Error().Err(err).Msg("lms-core exited with error")
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "lms-core",
		Short:         "School LMS core: XP ledger, streaks and subscription reconciliation",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newMigrateCmd(), newCreateOwnerCmd())
	return root
}
