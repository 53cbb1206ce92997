// Package cli implements the console command tree.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/telhawk-systems/console/common/logging"
	"github.com/telhawk-systems/console/internal/config"
	"github.com/telhawk-systems/console/internal/output"
	"github.com/telhawk-systems/console/internal/views"
)

var (
	cfgFile      string
	outputFormat string
	noColor      bool
	logLevel     string
	cfg          *config.Config
	logger       *logging.Logger
)

var rootCmd = &cobra.Command{
	Use:   "console",
	Short: "Browse identity platform lists from the terminal",
	Long: `console queries the admin API's paginated lists (tenants, clients, API keys,
policies, members, logs and more) with search, filters, sorting and paging.
Every query is printed as a bookmarkable link that can be saved and reopened.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		newPrinter(rootCmd).Error("%v", err)
	}
	return err
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./config.yaml or $HOME/.console/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "output format (table, json)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logging.level (debug, info, warn, error)")
}

func initConfig() {
	loaded, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load config: %v\n", err)
		loaded = config.Default()
	}
	cfg = loaded

	level := cfg.Logging.Level
	if logLevel != "" {
		level = logLevel
	}
	logger = logging.New(logging.ParseLevel(level), cfg.Logging.Format)
	logging.SetDefault(logger)
}

// currentConfig returns the loaded config, falling back to defaults when a
// command runs without initConfig, as in tests.
func currentConfig() *config.Config {
	if cfg == nil {
		cfg = config.Default()
	}
	return cfg
}

func currentLogger() *slog.Logger {
	if logger == nil {
		return logging.Discard()
	}
	return logger.Logger
}

func newPrinter(cmd *cobra.Command) *output.Printer {
	return output.New(cmd.OutOrStdout(), cmd.ErrOrStderr(), colorEnabled(cmd.OutOrStdout()))
}

// colorEnabled honors --no-color, NO_COLOR and JSON output, and only colors
// terminals.
func colorEnabled(w io.Writer) bool {
	if noColor || os.Getenv("NO_COLOR") != "" || outputFormat == string(output.FormatJSON) {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

func currentFormat() (output.Format, error) {
	return output.ParseFormat(outputFormat)
}

// loadCatalog returns the built-in views with the configured page sizes
// applied to views that declare none.
func loadCatalog() (*views.Catalog, error) {
	c := currentConfig()
	return views.Default(views.WithPageSizes(c.ListView.PageSizes, c.ListView.DefaultPageSize))
}

func lookupView(name string) (*views.View, error) {
	catalog, err := loadCatalog()
	if err != nil {
		return nil, err
	}
	return catalog.Get(name)
}

// completeViewNames offers view names for the first positional argument.
func completeViewNames(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	catalog, err := loadCatalog()
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	return catalog.Names(), cobra.ShellCompDirectiveNoFileComp
}
