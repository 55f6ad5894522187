package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/satlas/satlas-sync/internal/agent"
	"github.com/satlas/satlas-sync/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "satlas-sync",
	Short: "Offline upload queue and synchronization agent for Satlas",
}

func main() {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the sync agent (health and metrics on the configured port)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return agent.Run()
		},
	}
	rootCmd.AddCommand(runCmd)

	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "List pending mutations in the durable queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			core, err := buildCore()
			if err != nil {
				return err
			}
			defer func() { _ = core.Close() }()

			recs, err := core.Queue.List(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tKIND\tTIMESTAMP\tUSER")
			for _, r := range recs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.ID, r.Kind, r.Timestamp.Format(time.RFC3339), r.UserID)
			}
			return w.Flush()
		},
	}
	rootCmd.AddCommand(queueCmd)

	drainCmd := &cobra.Command{
		Use:   "drain",
		Short: "Replay all pending mutations against the remote store now",
		RunE: func(cmd *cobra.Command, args []string) error {
			core, err := buildCore()
			if err != nil {
				return err
			}
			defer func() { _ = core.Close() }()

			failed := 0
			err = core.Coordinator.ProcessPendingMutations(context.Background(), func(id string, err error) {
				failed++
				fmt.Fprintf(os.Stderr, "%s: %v\n", id, err)
			})
			if err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%d mutation(s) failed; they remain queued unless dropped", failed)
			}
			return nil
		},
	}
	rootCmd.AddCommand(drainCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildCore() (*agent.Core, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, err
	}
	return agent.Build(cfg)
}
