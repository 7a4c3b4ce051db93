package cmd

import (
	"fmt"
	"strings"

	apperrors "lesson-reconciliation-service/pkg/errors"

	"github.com/spf13/cobra"
)

var identityNote string

var identityCmd = &cobra.Command{
	Use:   "identity",
	Short: "Manage payer to student associations",
}

var identityLookupCmd = &cobra.Command{
	Use:   "lookup <payer-name>",
	Short: "Resolve a payer through the identity cache",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runIdentityLookup,
}

var identitySetCmd = &cobra.Command{
	Use:   "set <student-name> <payer-name>",
	Short: "Record a payer for a student",
	Long: `Record that a payer's transfers belong to a student. A student has at
most one payer on file; setting a new one supersedes the old.

Examples:
  reconciler identity set Sofia "Мария Петрова" --note "mother's account"`,
	Args: cobra.ExactArgs(2),
	RunE: runIdentitySet,
}

var identityDeleteCmd = &cobra.Command{
	Use:   "delete <student-name>",
	Short: "Forget a student's payer",
	Args:  cobra.ExactArgs(1),
	RunE:  runIdentityDelete,
}

var matchCmd = &cobra.Command{
	Use:   "match <payer-name>",
	Short: "Rank students against a payer name",
	Long: `Run the payer resolution ladder for a name: the identity cache first,
then fuzzy matching against the student roster. Prints the ranked
candidates with their scores.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runMatch,
}

func init() {
	rootCmd.AddCommand(identityCmd)
	rootCmd.AddCommand(matchCmd)
	identityCmd.AddCommand(identityLookupCmd)
	identityCmd.AddCommand(identitySetCmd)
	identityCmd.AddCommand(identityDeleteCmd)

	identitySetCmd.Flags().StringVar(&identityNote, "note", "", "free-form note on the association")
}

func runIdentityLookup(cmd *cobra.Command, args []string) error {
	payer := strings.Join(args, " ")

	service, closer, err := openService()
	if err != nil {
		return err
	}
	defer closer()

	assoc, err := service.LookupIdentity(payer)
	if apperrors.IsNotFound(err) {
		fmt.Fprintf(cmd.OutOrStdout(), "No association for payer %q\n", payer)
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s pays for %s (since %s)\n",
		assoc.PayerName, assoc.StudentName, assoc.ValidFrom)
	if assoc.Note != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "  note: %s\n", assoc.Note)
	}
	return nil
}

func runIdentitySet(cmd *cobra.Command, args []string) error {
	service, closer, err := openService()
	if err != nil {
		return err
	}
	defer closer()

	assoc, err := service.UpsertIdentity(args[0], args[1], identityNote)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Recorded: %s pays for %s\n",
		assoc.PayerName, assoc.StudentName)
	return nil
}

func runIdentityDelete(cmd *cobra.Command, args []string) error {
	service, closer, err := openService()
	if err != nil {
		return err
	}
	defer closer()

	if err := service.DeleteIdentity(args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Forgot payer for %s\n", args[0])
	return nil
}

func runMatch(cmd *cobra.Command, args []string) error {
	payer := strings.Join(args, " ")

	service, closer, err := openService()
	if err != nil {
		return err
	}
	defer closer()

	out := cmd.OutOrStdout()

	if assoc, err := service.LookupIdentity(payer); err == nil {
		fmt.Fprintf(out, "Identity cache: %s pays for %s\n", assoc.PayerName, assoc.StudentName)
		return nil
	}

	candidates, err := service.FuzzyCandidates(payer)
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		fmt.Fprintf(out, "No candidates for %q\n", payer)
		return nil
	}

	fmt.Fprintf(out, "%-24s %6s %s\n", "Student", "Score", "Confidence")
	for _, c := range candidates {
		fmt.Fprintf(out, "%-24s %6d %s\n", c.Name, c.Score, c.Type)
	}
	return nil
}
