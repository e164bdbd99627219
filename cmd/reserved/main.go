package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"table-reservation-backend/config"
)

var logger = log.New(os.Stdout, "reservation-backend ", log.LstdFlags)

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "reserved",
		Short:        "Table reservation backend: time-slot availability, holds and bookings",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath(), "path to the YAML configuration file")

	load := func() (*config.Config, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load configuration from %s: %w", configPath, err)
		}
		logger.Printf("configuration loaded from %s", configPath)
		return cfg, nil
	}

	root.AddCommand(newServeCmd(load))
	root.AddCommand(newMigrateCmd(load))
	return root
}

func defaultConfigPath() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return "./config/config.yaml" // Default path for local development
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
