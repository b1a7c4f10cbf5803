// Command gatewayctl is a thin HTTP client for operating an agent gateway
// instance: submitting tasks, polling state, tailing logs, and aborting a
// running session.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	cfgFile    string
	serverAddr string
	token      string
	outputFmt  string
)

// clientConfig is the optional on-disk config file shape, loaded from
// --config or ~/.gatewayctl.yaml, overridden by flags and environment.
type clientConfig struct {
	Server string `yaml:"server"`
	Token  string `yaml:"token"`
}

var rootCmd = &cobra.Command{
	Use:   "gatewayctl",
	Short: "Operate an agent gateway instance from the command line",
	Long: `gatewayctl is the operator CLI for the agent gateway.

Core Commands:
  submit   Submit a new task
  state    Poll a session's live state
  logs     Tail a session's stdout/stderr
  abort    Abort a running session`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfigFile()
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a YAML config file (default: ~/.gatewayctl.yaml)")
	rootCmd.PersistentFlags().StringVar(&serverAddr, "server", "", "gateway base URL, e.g. http://127.0.0.1:8787")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "bridge bearer token")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "table", "output format (table, json, yaml)")
}

// loadConfigFile fills in serverAddr/token from a YAML config file for any
// flag the caller left unset. Flags and environment variables always win.
func loadConfigFile() error {
	if serverAddr == "" {
		serverAddr = os.Getenv("GATEWAYCTL_SERVER")
	}
	if token == "" {
		token = os.Getenv("GATEWAYCTL_TOKEN")
	}

	path := cfgFile
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil
		}
		path = home + "/.gatewayctl.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if cfgFile != "" {
			return fmt.Errorf("read config file %s: %w", path, err)
		}
		return nil
	}

	var cfg clientConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	if serverAddr == "" {
		serverAddr = cfg.Server
	}
	if token == "" {
		token = cfg.Token
	}
	return nil
}

func requireServer() error {
	if serverAddr == "" {
		return fmt.Errorf("gateway server address is required: pass --server, set GATEWAYCTL_SERVER, or add \"server:\" to ~/.gatewayctl.yaml")
	}
	return nil
}

func main() {
	Execute()
}
