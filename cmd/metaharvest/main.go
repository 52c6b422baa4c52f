package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tordrt/metaharvest"
	"github.com/tordrt/metaharvest/internal/logging"
)

type flags struct {
	configPath          string
	outputDir           string
	subdomains          []string
	storeURL            string
	logFile             string
	failOnInstanceError bool
	verbose             bool
}

// errRunIncomplete signals a non-zero exit after the summary has been printed
var errRunIncomplete = errors.New("harvest did not complete")

func newRootCmd() *cobra.Command {
	f := &flags{}

	rootCmd := &cobra.Command{
		Use:   "metaharvest",
		Short: "Harvest connection and database metadata from Atlan",
		Long: `metaharvest lists every connection of one or more Atlan tenants, fetches the databases
of each connection with a query chosen by connector type, and writes connections,
databases and a combined left-joined report as CSV files.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cmd.OutOrStdout(), f)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&f.configPath, "config", "c", "config.json", "Configuration file (JSON or YAML)")
	rootCmd.PersistentFlags().StringSliceVarP(&f.subdomains, "subdomain", "s", nil, "Only harvest these subdomains (comma-separated, multi-instance configs)")
	rootCmd.Flags().StringVarP(&f.outputDir, "output-dir", "d", "", "Output directory (default: output_dir from config)")
	rootCmd.Flags().StringVar(&f.storeURL, "store-url", "", "Also write records to sqlite://, postgres:// or mysql://")
	rootCmd.Flags().StringVar(&f.logFile, "log-file", "", "Log file (default: log_file from config)")
	rootCmd.Flags().BoolVar(&f.failOnInstanceError, "fail-on-instance-error", false, "Exit non-zero when any instance fails")
	rootCmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(newConfigCmd(f))

	return rootCmd
}

func run(ctx context.Context, out io.Writer, f *flags) error {
	cfg, err := metaharvest.LoadConfig(f.configPath)
	if err != nil {
		logConfigError(f, out, err)
		return err
	}
	cfg = cfg.WithOverrides(metaharvest.Overrides{OutputDir: f.outputDir, LogFile: f.logFile})

	logger, closeLog, err := logging.New(logging.Options{Verbose: f.verbose, File: cfg.LogFile, Console: out})
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Info("Received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()

	summary, err := metaharvest.Harvest(ctx, cfg, &metaharvest.Options{
		Subdomains: cleanSubdomains(f.subdomains),
		StoreURL:   f.storeURL,
		Logger:     logger,
	})
	if err != nil {
		logger.Error("Harvest aborted", logging.Error(err))
		return err
	}

	summary.Render(out)

	if summary.Interrupted {
		logger.Warn("Harvest interrupted, remaining instances were not processed")
	}
	if code := summary.ExitCode(f.failOnInstanceError); code != 0 {
		logger.Info("Exiting with failure status", zap.Int("failed", summary.Failed()), zap.Bool("interrupted", summary.Interrupted))
		return errRunIncomplete
	}
	return nil
}

// logConfigError records a configuration failure in the log file the run
// would have used: --log-file, then ATLAN_LOG_FILE, then the default.
func logConfigError(f *flags, out io.Writer, err error) {
	file := f.logFile
	if file == "" {
		file = os.Getenv("ATLAN_LOG_FILE")
	}
	if file == "" {
		file = metaharvest.DefaultLogFile
	}

	logger, closeLog, logErr := logging.New(logging.Options{Verbose: f.verbose, File: file, Console: out})
	if logErr != nil {
		return
	}
	defer closeLog()

	logger.Error("Failed to load configuration", zap.String("config", f.configPath), logging.Error(err))
}

func cleanSubdomains(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		if !errors.Is(err, errRunIncomplete) {
			fmt.Fprintf(os.Stderr, "error: %s\n", logging.RedactError(err))
		}
		os.Exit(1)
	}
}
