package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/threadgoon/threadgoon/board"
	"github.com/threadgoon/threadgoon/config"
)

var (
	cfgFile     string
	cfg         *config.Config
	logger      zerolog.Logger
	logFile     *os.File
	boardClient *board.Client

	version   = "dev"
	buildTime = "unknown"
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "threadgoon",
	Short: "Download video attachments from image board threads",
	Long: `threadgoon lists the threads of an image board catalog and downloads
the video attachments of the selected threads concurrently, one directory
per thread. Files already present are skipped, so interrupted runs can
simply be repeated.`,
	PersistentPreRunE: initializeApp,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

// SetVersion sets the version reported by --version
func SetVersion(v, built string) {
	version = v
	buildTime = built
	rootCmd.Version = fmt.Sprintf("%s (built %s)", version, buildTime)
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	err := rootCmd.Execute()
	if logFile != nil {
		logFile.Close()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().StringP("board", "b", "", "board to use (overrides board.name)")
	rootCmd.PersistentFlags().StringP("output", "o", "", "output directory (overrides download.output_dir)")

	rootCmd.AddCommand(catalogCmd)
	rootCmd.AddCommand(downloadCmd)
}

// initializeApp initializes the configuration, logger and board client
func initializeApp(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := applyOverrides(cmd.Flags(), cfg); err != nil {
		return err
	}

	filterCompiler, err = newFilterCompiler(cfg.Filters)
	if err != nil {
		return err
	}

	var logOut io.Writer
	if cfg.Logging.File != "" {
		logFile, err = os.OpenFile(cfg.Logging.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		logOut = logFile
	}

	logger = setupLogger(cfg.Logging, os.Stderr, logOut).
		With().
		Str("run_id", uuid.NewString()).
		Str("board", cfg.Board.Name).
		Logger()

	boardClient, err = board.NewClient(board.Options{
		Board:          cfg.Board.Name,
		APIURL:         cfg.Board.APIURL,
		MediaURL:       cfg.Board.MediaURL,
		ConnectTimeout: cfg.HTTP.ConnectTimeout,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		UserAgent:      cfg.HTTP.UserAgent,
		SkipSticky:     cfg.Board.SkipSticky,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to create board client: %w", err)
	}

	logger.Debug().Str("version", version).Msg("Initialized")
	return nil
}

// applyOverrides copies explicitly set flags over the loaded configuration
// and validates the result
func applyOverrides(flags *pflag.FlagSet, cfg *config.Config) error {
	if flags.Changed("board") {
		cfg.Board.Name, _ = flags.GetString("board")
	}
	if flags.Changed("output") {
		cfg.Download.OutputDir, _ = flags.GetString("output")
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// setupLogger configures the zerolog logger. Console (or JSON) output goes
// to stderr; when file is non-nil every entry is also appended to it as JSON.
func setupLogger(cfg config.LoggingConfig, stderr, file io.Writer) zerolog.Logger {
	// Set log level
	level := zerolog.InfoLevel
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = zerolog.DebugLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	zerolog.SetGlobalLevel(level)

	// Configure output format
	out := stderr
	if cfg.Format != "json" {
		out = zerolog.ConsoleWriter{
			Out:        stderr,
			TimeFormat: time.RFC3339,
			NoColor:    !cfg.Color,
		}
	}

	if file != nil {
		out = zerolog.MultiLevelWriter(out, file)
	}

	return zerolog.New(out).With().Timestamp().Logger()
}

// signalContext returns a context cancelled on SIGINT or SIGTERM
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
