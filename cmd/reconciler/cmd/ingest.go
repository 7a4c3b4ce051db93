package cmd

import (
	"fmt"
	"os"

	"lesson-reconciliation-service/cmd/reconciler/config"
	"lesson-reconciliation-service/internal/ingest"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	whitelistFile string
	noiseReport   bool
)

// ingestCmd groups the data-loading subcommands.
var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Load payments and lessons from external sources",
}

var ingestMessagesCmd = &cobra.Command{
	Use:   "messages <file>",
	Short: "Import payments from a chat message export",
	Long: `Import payments from a JSON export of forwarded bank notifications.

Each message is matched against the bank's transfer grammar; messages
that do not parse are counted as noise. Reruns are safe: messages
already imported are recognized by their source id and skipped.

Examples:
  reconciler ingest messages export.json
  reconciler ingest messages export.json --whitelist payers.csv --show-noise`,
	Args:    cobra.ExactArgs(1),
	PreRunE: validateInputFile,
	RunE:    runIngestMessages,
}

var ingestLessonsCmd = &cobra.Command{
	Use:   "lessons <file>",
	Short: "Sync lessons from a calendar CSV export",
	Long: `Sync the lesson schedule from a calendar CSV export.

Rows are keyed by event id, so a rerun updates lessons in place instead
of duplicating them. Rows without a cost get the configured default;
rows whose student name carries the trial prefix become free lessons.

Examples:
  reconciler ingest lessons calendar.csv
  reconciler ingest lessons calendar.csv --default-lesson-cost 2500`,
	Args:    cobra.ExactArgs(1),
	PreRunE: validateInputFile,
	RunE:    runIngestLessons,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.AddCommand(ingestMessagesCmd)
	ingestCmd.AddCommand(ingestLessonsCmd)

	ingestMessagesCmd.Flags().StringVarP(&whitelistFile, "whitelist", "w", "", "CSV of payers allowed to create payments")
	ingestMessagesCmd.Flags().BoolVar(&noiseReport, "show-noise", false, "list messages that did not parse")

	ingestLessonsCmd.Flags().String("default-lesson-cost", "", "cost assigned to rows without a price")
	viper.BindPFlag("default-lesson-cost", ingestLessonsCmd.Flags().Lookup("default-lesson-cost"))
}

func validateInputFile(cmd *cobra.Command, args []string) error {
	info, err := os.Stat(args[0])
	if os.IsNotExist(err) {
		return fmt.Errorf("input file does not exist: %s", args[0])
	}
	if err != nil {
		return fmt.Errorf("error accessing input file: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("input path is a directory, expected a file: %s", args[0])
	}
	return nil
}

func runIngestMessages(cmd *cobra.Command, args []string) error {
	service, closer, err := openService()
	if err != nil {
		return err
	}
	defer closer()

	var whitelist *ingest.Whitelist
	if whitelistFile != "" {
		whitelist, err = ingest.LoadWhitelist(whitelistFile, config.BuildCSVConfig())
		if err != nil {
			return fmt.Errorf("failed to load whitelist: %w", err)
		}
		if viper.GetBool("verbose") {
			fmt.Fprintf(os.Stderr, "Whitelist loaded: %d payers\n", whitelist.Size())
		}
	}

	messages, err := ingest.LoadMessages(args[0])
	if err != nil {
		return err
	}

	importer := ingest.NewMessageImporter(service.Store(), whitelist)
	stats, collector, err := importer.Import(messages)
	if err != nil {
		return err
	}

	printStats(cmd, "messages", stats)

	if noiseReport && collector.HasErrors() {
		fmt.Fprintf(os.Stderr, "\nUnparsed messages:\n")
		for _, ingestErr := range collector.GetErrors() {
			fmt.Fprintf(os.Stderr, "  %s\n", ingestErr.Error())
		}
	}
	return nil
}

func runIngestLessons(cmd *cobra.Command, args []string) error {
	service, closer, err := openService()
	if err != nil {
		return err
	}
	defer closer()

	defaultCost, err := config.DefaultLessonCost()
	if err != nil {
		return err
	}

	importer := ingest.NewLessonImporter(service.Store(), config.BuildCSVConfig(), defaultCost)
	stats, collector, err := importer.ImportFile(args[0])
	if err != nil {
		return err
	}

	printStats(cmd, "lessons", stats)

	if collector.HasErrors() {
		fmt.Fprintf(os.Stderr, "\n%s\n", collector.GetSummary().Error())
		for _, rowErr := range collector.GetErrors() {
			fmt.Fprintf(os.Stderr, "  %s\n", rowErr.Error())
		}
	}
	return nil
}

func printStats(cmd *cobra.Command, what string, stats *ingest.Stats) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Imported %s: %d processed, %d created, %d updated\n",
		what, stats.Processed, stats.Created, stats.Updated)
	if stats.Duplicates > 0 || stats.Skipped > 0 || stats.Failed > 0 {
		fmt.Fprintf(out, "  %d duplicates, %d skipped, %d failed\n",
			stats.Duplicates, stats.Skipped, stats.Failed)
	}
}
