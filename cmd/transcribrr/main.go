package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/franz/transcribrr/internal/config"
	"github.com/franz/transcribrr/internal/metrics"
	"github.com/franz/transcribrr/internal/util"
)

var (
	// Version is set at build time
	Version = "dev"

	cfgFile string
	cfg     *config.Config

	rootCmd = &cobra.Command{
		Use:   "transcribrr",
		Short: "Manage a library of recordings and their transcripts",
		Long: `transcribrr keeps a library of audio and video recordings, their
transcripts and a folder hierarchy in a local SQLite database.

All database access goes through a single worker that owns the only
connection, so concurrent imports and edits never contend for locks.`,
		Version:           Version,
		SilenceUsage:      true,
		PersistentPreRunE: loadConfig,
		PersistentPostRun: printStats,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./configs/transcribrr.yaml)")
	rootCmd.PersistentFlags().String("data-dir", "", "user data directory (default $TRANSCRIBRR_USER_DATA_DIR or the OS config dir)")
	rootCmd.PersistentFlags().String("db", "", "database file (default <data-dir>/database/database.sqlite)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "quiet output (errors only)")
	rootCmd.PersistentFlags().Bool("stats", false, "print worker metrics on exit")

	// Bind flags to viper
	viper.BindPFlag("data_dir", rootCmd.PersistentFlags().Lookup("data-dir"))
	viper.BindPFlag("db", rootCmd.PersistentFlags().Lookup("db"))
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	viper.BindPFlag("stats", rootCmd.PersistentFlags().Lookup("stats"))

	config.SetDefaults(viper.GetViper())
}

func initConfig() {
	// .env is optional
	if err := godotenv.Load(); err == nil {
		util.DebugLog("Loaded environment from .env")
	}

	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		// Search for config in common locations
		viper.AddConfigPath("./configs")
		viper.AddConfigPath(".")
		viper.SetConfigName("transcribrr")
		viper.SetConfigType("yaml")
	}

	// If a config file is found, read it in
	if err := viper.ReadInConfig(); err == nil && !viper.GetBool("quiet") {
		util.InfoLog("Using config file: %s", viper.ConfigFileUsed())
	} else if err != nil && cfgFile != "" {
		util.ErrorLog("Failed to read config file %s: %v", cfgFile, err)
	}
}

func loadConfig(cmd *cobra.Command, args []string) error {
	c, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}
	if err := c.ApplyLogging(); err != nil {
		return err
	}
	metrics.InitializeMetrics()
	cfg = c
	return nil
}

func printStats(cmd *cobra.Command, args []string) {
	if !viper.GetBool("stats") {
		return
	}
	snap, err := metrics.Gather()
	if err != nil {
		util.WarnLog("Failed to gather metrics: %v", err)
		return
	}
	fmt.Fprint(os.Stderr, snap.Format())
}

// signalContext is cancelled on SIGINT/SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func main() {
	err := rootCmd.Execute()
	util.CloseLogFile()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
