// decoy CLI - standalone programmable HTTP/WebSocket test double.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/getmockd/decoy/pkg/config"
	"github.com/getmockd/decoy/pkg/engine"
	"github.com/getmockd/decoy/pkg/logging"
)

// Build-time variables set via ldflags
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "decoy",
		Short:         "Programmable HTTP/WebSocket test double",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newVersionCmd())
	return root
}

func newServeCmd() *cobra.Command {
	var (
		configPath string
		addr       string
		logLevel   string
		logFormat  string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve expectations from a config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := config.Load(configPath)
			if err != nil {
				return err
			}

			if logLevel == "" {
				logLevel = file.Server.LogLevel
			}
			if logFormat == "" {
				logFormat = file.Server.LogFormat
			}
			log := logging.New(logging.Config{
				Level:  logging.ParseLevel(logLevel),
				Format: logging.ParseFormat(logFormat),
			})

			cfg := config.ServerConfigFor(file)
			if addr != "" {
				cfg.Addr = addr
			}
			cfg.Logger = log

			srv := engine.New(cfg)
			if err := config.Apply(file, srv); err != nil {
				return err
			}
			if !srv.IsConfigured() {
				return fmt.Errorf("%s declares no expectations", configPath)
			}
			if err := srv.Start(); err != nil {
				return err
			}

			fmt.Printf("decoy listening on %s (%d expectation file entries)\n",
				srv.Addr(), len(file.Expectations)+len(file.WebSockets))

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
			<-sig

			return srv.Close()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "decoy.yaml", "expectation file to serve")
	cmd.Flags().StringVarP(&addr, "addr", "a", "", "listen address (overrides config)")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	cmd.Flags().StringVar(&logFormat, "log-format", "", "log format: text, json")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("decoy %s (commit %s, built %s)\n", Version, Commit, BuildDate)
		},
	}
}
