// Package cmd implements ricochet's CLI surface: a cobra root command and
// one file per subcommand.
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"ricochet.dev/ricochet/internal/config"
	"ricochet.dev/ricochet/internal/observability"
)

var (
	cfgFile string
	dbPath  string
	verbose bool
	noColor bool
	logFmt  string

	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

// rootCmd is ricochet's entrypoint: out-of-band correlation detection for
// second-order web vulnerabilities.
var rootCmd = &cobra.Command{
	Use:   "ricochet",
	Short: "ricochet - second-order (out-of-band) vulnerability correlation engine",
	Long: `ricochet detects second-order web vulnerabilities by embedding a unique
correlation token in every injected payload, listening for out-of-band
HTTP and DNS callbacks, and joining the two on that token to produce
Findings.`,
	Version:           "0.1.0",
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initLogging,
}

// Execute adds all child commands to the root command and runs it. The
// caller maps the returned error to an exit code: a rerrors UsageError
// becomes exit 2, anything else exit 1, nothing exit 0.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML, default ~/.ricochet/config.yaml if present)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "path to the ricochet store (default ~/.ricochet/ricochet.db)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug-level logging")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().StringVar(&logFmt, "log-format", "", "log output format: console (default) or json")

	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("no-color", rootCmd.PersistentFlags().Lookup("no-color"))
	viper.SetEnvPrefix("RICOCHET")
	viper.AutomaticEnv()

	rootCmd.AddCommand(
		newListenCmd(),
		newInjectCmd(),
		newPassiveCmd(),
		newActiveCmd(),
		newSuggestCmd(),
		newFindingsCmd(),
		newReportCmd(),
		newInteractshCmd(),
	)

	if noColor {
		color.NoColor = true
	}
}

func initLogging(cmd *cobra.Command, args []string) error {
	if noColor {
		color.NoColor = true
	}

	level := "info"
	if verbose {
		level = "debug"
	}
	if v := os.Getenv("RICOCHET_LOG_LEVEL"); v != "" {
		level = v
	}
	format := "console"
	if logFmt != "" {
		format = logFmt
	} else if v := os.Getenv("RICOCHET_LOG_FORMAT"); v != "" {
		format = v
	}

	observability.InitLogger(observability.LogConfig{Level: level, Format: format, Output: "stderr"})
	return nil
}

// loadConfig resolves ricochet's configuration from --config (or the
// default path), applying --db as a final CLI-flag override: flags win
// over file and environment values.
func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			candidate := filepath.Join(home, ".ricochet", "config.yaml")
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
			}
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.Store.Path = dbPath
	}
	return cfg, nil
}

func printSuccess(format string, a ...any) {
	fmt.Fprintf(os.Stdout, "%s %s\n", green("[OK]"), fmt.Sprintf(format, a...))
}

func printWarning(format string, a ...any) {
	fmt.Fprintf(os.Stderr, "%s %s\n", yellow("[WARN]"), fmt.Sprintf(format, a...))
}

func printError(format string, a ...any) {
	fmt.Fprintf(os.Stderr, "%s %s\n", red("[ERROR]"), fmt.Sprintf(format, a...))
}

func printInfo(format string, a ...any) {
	fmt.Fprintf(os.Stderr, "%s %s\n", cyan("[INFO]"), fmt.Sprintf(format, a...))
}
