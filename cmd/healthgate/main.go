package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func main() {
	if err := buildRoot().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// APIFlags holds daemon connection flags shared by client commands.
type APIFlags struct {
	URL     string
	Timeout time.Duration
}

func buildRoot() *cobra.Command {
	api := &APIFlags{}

	root := &cobra.Command{
		Use:   "healthgate",
		Short: "Health-gated local service supervisor",
		Long: `Healthgate starts a stack of dependent local services in order, waits
for each to pass its health probe before starting dependents, and stops
them cleanly in reverse order.

Examples:
  healthgate serve config.toml       # Start daemon
  healthgate up                      # Bring the whole stack up
  healthgate start --name=llm-api    # Start one service (and its deps)
  healthgate status                  # Snapshot of all services
  healthgate report                  # Services plus host resources`,
	}
	root.PersistentFlags().StringVar(&api.URL, "api-url", "", "daemon URL (default http://localhost:8080/api)")
	root.PersistentFlags().DurationVar(&api.Timeout, "api-timeout", 30*time.Second, "request timeout")

	root.AddCommand(
		newServeCommand(),
		newUpCommand(api),
		newDownCommand(api),
		newStartCommand(api),
		newStopCommand(api),
		newStatusCommand(api),
		newReportCommand(api),
	)
	return root
}

func newStartCommand(api *APIFlags) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a service and its dependencies",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := NewAPIClient(api.URL, api.Timeout)
			st, err := c.Start(name)
			if err != nil {
				return err
			}
			printStates(st)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "service name (required)")
	if err := cmd.MarkFlagRequired("name"); err != nil {
		panic(err)
	}
	return cmd
}

func newStopCommand(api *APIFlags) *cobra.Command {
	var name string
	var wait time.Duration
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop a service",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := NewAPIClient(api.URL, api.Timeout)
			st, err := c.Stop(name, wait)
			if err != nil {
				return err
			}
			printStates(st)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "service name (required)")
	cmd.Flags().DurationVar(&wait, "wait", 0, "graceful shutdown window override")
	if err := cmd.MarkFlagRequired("name"); err != nil {
		panic(err)
	}
	return cmd
}

func newStatusCommand(api *APIFlags) *cobra.Command {
	var name string
	var history int
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show service status",
		Long: `Show the status of services managed by the daemon.

Examples:
  healthgate status                      # All services
  healthgate status --name=ollama        # One service
  healthgate status --name=ollama --history=20`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := NewAPIClient(api.URL, api.Timeout)
			if name == "" {
				sts, err := c.StatusAll()
				if err != nil {
					return err
				}
				printStates(sts...)
				return nil
			}
			st, events, err := c.Status(name, history)
			if err != nil {
				return err
			}
			printStates(st)
			for _, ev := range events {
				fmt.Printf("  %s  %s -> %s  pid=%d  %s\n",
					ev.OccurredAt.Local().Format(time.RFC3339), ev.FromStatus, ev.ToStatus, ev.PID, ev.Detail)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "service name (optional)")
	cmd.Flags().IntVar(&history, "history", 0, "also show the last N journal events")
	return cmd
}

func newUpCommand(api *APIFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Start every service in dependency order",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := NewAPIClient(api.URL, api.Timeout)
			sts, err := c.StatusAll()
			if err != nil {
				return err
			}
			var firstErr error
			for _, st := range sts {
				if _, err := c.Start(st.Name); err != nil && firstErr == nil {
					firstErr = fmt.Errorf("start %s: %w", st.Name, err)
				}
			}
			if firstErr != nil {
				return firstErr
			}
			final, err := c.StatusAll()
			if err != nil {
				return err
			}
			printStates(final...)
			return nil
		},
	}
}

func newDownCommand(api *APIFlags) *cobra.Command {
	var wait time.Duration
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Stop every service in reverse dependency order",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := NewAPIClient(api.URL, api.Timeout)
			sts, err := c.StatusAll()
			if err != nil {
				return err
			}
			for i := len(sts) - 1; i >= 0; i-- {
				if _, err := c.Stop(sts[i].Name, wait); err != nil {
					return fmt.Errorf("stop %s: %w", sts[i].Name, err)
				}
			}
			final, err := c.StatusAll()
			if err != nil {
				return err
			}
			printStates(final...)
			return nil
		},
	}
	cmd.Flags().DurationVar(&wait, "wait", 0, "graceful shutdown window override")
	return cmd
}

func newReportCommand(api *APIFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Show services plus host resource usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := NewAPIClient(api.URL, api.Timeout)
			snap, err := c.Report()
			if err != nil {
				return err
			}
			printStates(snap.Services...)
			r := snap.Resources
			fmt.Printf("cpu %.1f%%  mem %.1f%% (%s/%s)  disk %s %.1f%% (%s/%s)\n",
				r.CPUPercent,
				r.MemoryPercent, humanBytes(r.MemoryUsed), humanBytes(r.MemoryTotal),
				r.DiskPath, r.DiskPercent, humanBytes(r.DiskUsed), humanBytes(r.DiskTotal))
			return nil
		},
	}
}
