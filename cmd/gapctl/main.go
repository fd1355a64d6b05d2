package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spec-kit/gap-pos/internal/config"
	"github.com/spec-kit/gap-pos/internal/observability"
)

var (
	cfgFile string
	logger  = zap.NewNop()
	rootCmd = &cobra.Command{
		Use:   "gapctl",
		Short: "Operator tooling for the GAP point-of-sale service",
		Long: `gapctl talks to a running gap-pos instance through its admin API
and offers a few local helpers for operators.

Connection settings come from flags, GAPCTL_* environment variables
or a config file with server.url, operator.username and operator.password.`,
		SilenceUsage:      true,
		PersistentPreRunE: initConfig,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.config/gapctl/config.yaml)")
	rootCmd.PersistentFlags().String("server", "http://localhost:8080", "gap-pos base URL")
	rootCmd.PersistentFlags().String("username", "operator", "operator username")
	rootCmd.PersistentFlags().String("password", "", "operator password")
	rootCmd.PersistentFlags().String("log-level", "warn", "log level (debug, info, warn, error)")

	_ = viper.BindPFlag("server.url", rootCmd.PersistentFlags().Lookup("server"))
	_ = viper.BindPFlag("operator.username", rootCmd.PersistentFlags().Lookup("username"))
	_ = viper.BindPFlag("operator.password", rootCmd.PersistentFlags().Lookup("password"))
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.AddCommand(envCmd())
	rootCmd.AddCommand(portfolioCmd())
	rootCmd.AddCommand(policiesCmd())
	rootCmd.AddCommand(loginCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(hashPasswordCmd())
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	cancel()
	_ = logger.Sync()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initConfig(_ *cobra.Command, _ []string) error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		viper.AddConfigPath(home + "/.config/gapctl")
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("GAPCTL")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	l, err := observability.NewLogger(config.LoggerConfig{Level: viper.GetString("logging.level"), Format: "console"})
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	logger = l
	return nil
}

func newAdminClient() *adminClient {
	return &adminClient{
		baseURL:  viper.GetString("server.url"),
		username: viper.GetString("operator.username"),
		password: viper.GetString("operator.password"),
	}
}
