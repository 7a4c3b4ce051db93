package cmd

import (
	"fmt"
	"os"

	"lesson-reconciliation-service/cmd/reconciler/config"
	"lesson-reconciliation-service/internal/reconciler"
	"lesson-reconciliation-service/internal/store"
	"lesson-reconciliation-service/pkg/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile  string
	verbose  bool
	dbPath   string
	dbDriver string
	version  = "dev"
	commit   = "unknown"
	date     = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "reconciler",
	Short: "Lesson payment reconciliation tool",
	Long: `Reconciler keeps tutoring lesson schedules and incoming bank transfers
in agreement. It ingests forwarded bank notifications and calendar
exports, resolves payer names to students, allocates payments to
lessons and reports what is still unpaid.

Examples:
  reconciler ingest messages export.json --whitelist payers.csv
  reconciler ingest lessons calendar.csv
  reconciler suggest
  reconciler allocate 12 34 2000
  reconciler report --from 2024-03-01 --to 2024-03-31 --format json`,
	Version: getVersionString(),
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "reconciler.db", "database path or DSN")
	rootCmd.PersistentFlags().StringVar(&dbDriver, "db-driver", store.DriverSQLite, "database driver: sqlite3, postgres")

	// Bind flags to viper
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("db", rootCmd.PersistentFlags().Lookup("db"))
	viper.BindPFlag("db-driver", rootCmd.PersistentFlags().Lookup("db-driver"))
}

// initConfig reads in config file and ENV variables.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)

		// If a config file is specified, read it in.
		if err := viper.ReadInConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "Error reading config file: %s\n", err)
			os.Exit(1)
		}

		if viper.GetBool("verbose") {
			fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
		}
	}

	// Read environment variables that match
	viper.SetEnvPrefix("RECONCILER")
	viper.AutomaticEnv()

	level := logger.InfoLevel
	if viper.GetBool("verbose") {
		level = logger.DebugLevel
	}
	if log, err := logger.NewLogger(&logger.Config{
		Level:  level,
		Format: logger.TextFormat,
		Output: logger.StderrOutput,
	}); err == nil {
		logger.SetGlobalLogger(log)
	}
}

// openService opens the store named by the global flags and builds the
// reconciliation service over it. The returned closer shuts the store down.
func openService() (*reconciler.Service, func(), error) {
	s, err := store.Open(viper.GetString("db-driver"), viper.GetString("db"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}

	serviceConfig, err := config.BuildServiceConfig()
	if err != nil {
		s.Close()
		return nil, nil, err
	}

	service, err := reconciler.NewService(s, serviceConfig)
	if err != nil {
		s.Close()
		return nil, nil, err
	}

	return service, func() { s.Close() }, nil
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = getVersionString()
}

func getVersionString() string {
	if version == "dev" {
		return fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)
	}
	return version
}
