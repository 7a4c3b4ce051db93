package cmd

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var suggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "Propose payment to lesson allocations",
	Long: `Scan open payments for lessons they plausibly pay for and print the
proposals. A pair is proposed when the payer is associated with the
student, the lesson falls within the suggestion window and both sides
have money outstanding.

Examples:
  reconciler suggest
  reconciler suggest accept 34 12
  reconciler suggest reject 34 12`,
	Args: cobra.NoArgs,
	RunE: runSuggest,
}

var suggestAcceptCmd = &cobra.Command{
	Use:   "accept <lesson-id> <payment-id> [amount]",
	Short: "Apply a proposed pairing",
	Long: `Apply a proposed pairing. Without an explicit amount the current
proposal's quota is used.`,
	Args: cobra.RangeArgs(2, 3),
	RunE: runSuggestAccept,
}

var suggestRejectCmd = &cobra.Command{
	Use:   "reject <lesson-id> <payment-id>",
	Short: "Dismiss a pairing so it is not proposed again",
	Args:  cobra.ExactArgs(2),
	RunE:  runSuggestReject,
}

var suggestUnrejectCmd = &cobra.Command{
	Use:   "unreject <lesson-id> <payment-id>",
	Short: "Forget a dismissal",
	Args:  cobra.ExactArgs(2),
	RunE:  runSuggestUnreject,
}

func init() {
	rootCmd.AddCommand(suggestCmd)
	suggestCmd.AddCommand(suggestAcceptCmd)
	suggestCmd.AddCommand(suggestRejectCmd)
	suggestCmd.AddCommand(suggestUnrejectCmd)
}

func runSuggest(cmd *cobra.Command, args []string) error {
	service, closer, err := openService()
	if err != nil {
		return err
	}
	defer closer()

	suggestions, err := service.GenerateSuggestions()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(suggestions) == 0 {
		fmt.Fprintln(out, "No suggestions")
		return nil
	}

	fmt.Fprintf(out, "%-8s %-8s %-20s %-20s %12s %6s\n",
		"Lesson", "Payment", "Student", "Payer", "Quota", "Days")
	for _, s := range suggestions {
		fmt.Fprintf(out, "%-8d %-8d %-20s %-20s %12s %6d\n",
			s.LessonID, s.PaymentID, s.StudentName, s.PayerName,
			s.Quota.StringFixed(2), s.DayDistance)
	}
	return nil
}

func suggestPair(args []string) (int64, int64, error) {
	lessonID, err := parseID(args[0], "lesson")
	if err != nil {
		return 0, 0, err
	}
	paymentID, err := parseID(args[1], "payment")
	if err != nil {
		return 0, 0, err
	}
	return lessonID, paymentID, nil
}

func runSuggestAccept(cmd *cobra.Command, args []string) error {
	lessonID, paymentID, err := suggestPair(args)
	if err != nil {
		return err
	}

	service, closer, err := openService()
	if err != nil {
		return err
	}
	defer closer()

	var quota decimal.Decimal
	if len(args) == 3 {
		quota, err = decimal.NewFromString(args[2])
		if err != nil {
			return fmt.Errorf("invalid amount: %s", args[2])
		}
	} else {
		suggestions, err := service.GenerateSuggestions()
		if err != nil {
			return err
		}
		found := false
		for _, s := range suggestions {
			if s.LessonID == lessonID && s.PaymentID == paymentID {
				quota = s.Quota
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("no current suggestion for lesson %d and payment %d; pass an amount explicitly", lessonID, paymentID)
		}
	}

	allocation, err := service.AcceptSuggestion(lessonID, paymentID, quota)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Accepted: %s from payment %d to lesson %d\n",
		allocation.Quota.StringFixed(2), paymentID, lessonID)
	return nil
}

func runSuggestReject(cmd *cobra.Command, args []string) error {
	lessonID, paymentID, err := suggestPair(args)
	if err != nil {
		return err
	}

	service, closer, err := openService()
	if err != nil {
		return err
	}
	defer closer()

	if err := service.RejectSuggestion(lessonID, paymentID); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Rejected pairing of lesson %d and payment %d\n", lessonID, paymentID)
	return nil
}

func runSuggestUnreject(cmd *cobra.Command, args []string) error {
	lessonID, paymentID, err := suggestPair(args)
	if err != nil {
		return err
	}

	service, closer, err := openService()
	if err != nil {
		return err
	}
	defer closer()

	if err := service.UnrejectSuggestion(lessonID, paymentID); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Restored pairing of lesson %d and payment %d\n", lessonID, paymentID)
	return nil
}
