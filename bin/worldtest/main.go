// Binary worldtest runs the sample world test suite, once from the command
// line or as a long running server with an SSH console.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/rodaine/table"
	"github.com/spf13/cobra"
	"github.com/zond/worldtest/config"
	"github.com/zond/worldtest/gametest"
	"github.com/zond/worldtest/server"
	"github.com/zond/worldtest/worldtests"
)

var errRequiredFailed = errors.New("required tests failed")

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	if err := newRootCmd(os.Stdout).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "worldtest",
		Short:         "In-world test runner",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(out)
	rootCmd.PersistentFlags().String("config", filepath.Join(os.Getenv("HOME"), ".worldtest", "config.yaml"), "Config file, ignored if missing.")
	rootCmd.PersistentFlags().Duration("tick-rate", 0, "Override the configured tick rate.")
	rootCmd.AddCommand(
		newRunCmd(),
		newListCmd(),
		newServeCmd(),
		newConfigCmd(),
	)
	return rootCmd
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path, true)
	if err != nil {
		return nil, err
	}
	if rate, _ := cmd.Flags().GetDuration("tick-rate"); rate > 0 {
		cfg.Engine.TickRate = rate
	}
	return cfg, cfg.Validate()
}

func newServer(cmd *cobra.Command, cfg *config.Config) (*server.Server, error) {
	cfg.Logging.Apply()
	return server.New(cmd.Context(), cfg, server.Suite{
		Templates: worldtests.Templates(),
		Register:  worldtests.Register,
		Out:       cmd.OutOrStdout(),
	})
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [selector]",
		Short: "Run the tests matching selector and exit",
		Long: `Run every test whose name, class or name prefix matches selector,
or all tests if no selector is given.

Exits non-zero if a required test failed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if junit, _ := cmd.Flags().GetString("junit"); junit != "" {
				cfg.Reports.JUnit = junit
			}
			if showTable, _ := cmd.Flags().GetBool("table"); showTable {
				cfg.Reports.Table = true
			}
			timeout, _ := cmd.Flags().GetDuration("timeout")
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			srv, err := newServer(cmd, cfg)
			if err != nil {
				return err
			}
			defer srv.Close()
			selector := ""
			if len(args) > 0 {
				selector = args[0]
			}
			tally, err := srv.RunOnce(ctx, selector)
			if err != nil {
				return err
			}
			if tally.FailedRequired > 0 {
				return errors.Wrap(errRequiredFailed, tally.Summary())
			}
			return nil
		},
	}
	cmd.Flags().String("junit", "", "Write a JUnit XML report here.")
	cmd.Flags().Bool("table", false, "Print a result table when done.")
	cmd.Flags().Duration("timeout", 10*time.Minute, "Give up after this long.")
	return cmd
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list [selector]",
		Short: "List the registered tests",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := gametest.NewRegistry()
			worldtests.Register(reg)
			selector := ""
			if len(args) > 0 {
				selector = args[0]
			}
			descs := reg.Matching(selector)
			if len(descs) == 0 {
				return errors.Errorf("no tests match %q", selector)
			}
			tbl := table.New("Name", "Structure", "Batch", "Required", "Max ticks").WithWriter(cmd.OutOrStdout())
			for _, d := range descs {
				tbl.AddRow(d.Name, d.Structure, d.Batch, d.Required(), d.MaxTicks)
			}
			tbl.Print()
			return nil
		},
	}
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Tick the world and serve the operator console over SSH",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
				cfg.Console.Addr = addr
			}
			if addr, _ := cmd.Flags().GetString("metrics"); addr != "" {
				cfg.Metrics.Addr = addr
			}
			srv, err := newServer(cmd, cfg)
			if err != nil {
				return err
			}
			go func() {
				<-cmd.Context().Done()
				srv.Close()
			}()
			return srv.Start(cmd.Context())
		},
	}
	cmd.Flags().String("addr", "", "Override the console address.")
	cmd.Flags().String("metrics", "", "Serve Prometheus metrics on this address.")
	return cmd
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			b, err := cfg.Marshal()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(b)
			return err
		},
	}
}
