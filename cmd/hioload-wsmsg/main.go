// Command hioload-wsmsg runs the WebSocket message test server.
// Author: momentics <momentics@gmail.com>
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/momentics/hioload-wsmsg/control"
	"github.com/momentics/hioload-wsmsg/server"
	"github.com/momentics/hioload-wsmsg/strategy"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath string
	listenAddr string
)

var rootCmd = &cobra.Command{
	Use:   "hioload-wsmsg",
	Short: "WebSocket message framing and echo test server",
	Long: `WebSocket server answering each request path with a scripted response:
echo, length reports, bulk messages, explicit frame sequences and empty
messages. Intended as a peer for WebSocket client test suites.`,
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the server until SIGINT or SIGTERM",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if listenAddr != "" {
			cfg.ListenAddr = listenAddr
		}
		log, err := control.NewLogger(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		srv, err := server.New(cfg, server.WithLogger(log))
		if err != nil {
			return err
		}
		store := control.NewConfigStore(cfg)
		store.OnReload(func(c *control.Config) {
			if listenAddr != "" {
				c.ListenAddr = listenAddr
			}
			srv.ApplyConfig(c)
			log.Info("config reloaded")
		})

		errc := make(chan error, 1)
		go func() { errc <- srv.ListenAndServe() }()

		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
		defer signal.Stop(sigc)

		for {
			select {
			case err := <-errc:
				if err == server.ErrServerClosed {
					return nil
				}
				return err
			case sig := <-sigc:
				if sig == syscall.SIGHUP {
					if configPath == "" {
						continue
					}
					if err := store.Reload(configPath); err != nil {
						log.Warn("config reload failed", zap.Error(err))
					}
					continue
				}
				log.Info("shutting down", zap.Stringer("signal", sig))
				ctx, cancel := context.WithTimeout(context.Background(), store.Snapshot().ShutdownTimeout)
				err := srv.Shutdown(ctx)
				cancel()
				<-errc
				return err
			}
		}
	},
}

var actionsCmd = &cobra.Command{
	Use:   "actions",
	Short: "List the request paths the server answers",
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, name := range strategy.Names(strategy.NewActions(strategy.DefaultOptions())) {
			fmt.Fprintln(cmd.OutOrStdout(), "/"+name)
		}
		return nil
	},
}

var probesCmd = &cobra.Command{
	Use:   "probes",
	Short: "Print the platform debug probes",
	RunE: func(cmd *cobra.Command, args []string) error {
		state := control.NewDebugProbes().DumpState()
		keys := make([]string, 0, len(state))
		for k := range state {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %v\n", k, state[k])
		}
		return nil
	},
}

func loadConfig() (*control.Config, error) {
	if configPath == "" {
		return control.DefaultConfig(), nil
	}
	return control.LoadConfig(configPath)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file")
	serveCmd.Flags().StringVar(&listenAddr, "addr", "", "listen address, overrides listen_addr")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(actionsCmd)
	rootCmd.AddCommand(probesCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
