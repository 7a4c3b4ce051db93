package cmd

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "List payments awaiting review",
	Args:  cobra.NoArgs,
	RunE:  runReview,
}

var candidatesCmd = &cobra.Command{
	Use:   "candidates <payment-id>",
	Short: "List candidate lessons for a payment",
	Long: `List the lessons a payment could plausibly pay for: lessons within the
candidate window around the payment's day, narrowed to the associated
student when the payer is known.`,
	Args: cobra.ExactArgs(1),
	RunE: runCandidates,
}

var skipCmd = &cobra.Command{
	Use:   "skip <payment-id>",
	Short: "Defer a payment without changing its state",
	Args:  cobra.ExactArgs(1),
	RunE:  paymentAction("Skipped", func(s paymentService, id int64) error { return s.MarkSkipped(id) }),
}

var unskipCmd = &cobra.Command{
	Use:   "unskip <payment-id>",
	Short: "Return a deferred payment to the review queue",
	Args:  cobra.ExactArgs(1),
	RunE:  paymentAction("Reopened", func(s paymentService, id int64) error { return s.ReopenSkipped(id) }),
}

var archiveCmd = &cobra.Command{
	Use:   "archive <payment-id>",
	Short: "Take a payment out of the automatic flow",
	Args:  cobra.ExactArgs(1),
	RunE:  paymentAction("Archived", func(s paymentService, id int64) error { return s.MarkArchived(id) }),
}

var unarchiveCmd = &cobra.Command{
	Use:   "unarchive <payment-id>",
	Short: "Restore an archived payment",
	Args:  cobra.ExactArgs(1),
	RunE:  paymentAction("Unarchived", func(s paymentService, id int64) error { return s.Unarchive(id) }),
}

var lessonCmd = &cobra.Command{
	Use:   "lesson",
	Short: "Adjust lesson attributes",
}

var lessonCostCmd = &cobra.Command{
	Use:   "cost <lesson-id> <amount>",
	Short: "Override a lesson's cost",
	Args:  cobra.ExactArgs(2),
	RunE:  runLessonCost,
}

var lessonFreeCmd = &cobra.Command{
	Use:   "free <lesson-id> <true|false>",
	Short: "Toggle a lesson's free flag",
	Args:  cobra.ExactArgs(2),
	RunE:  runLessonFree,
}

func init() {
	rootCmd.AddCommand(reviewCmd)
	rootCmd.AddCommand(candidatesCmd)
	rootCmd.AddCommand(skipCmd)
	rootCmd.AddCommand(unskipCmd)
	rootCmd.AddCommand(archiveCmd)
	rootCmd.AddCommand(unarchiveCmd)
	rootCmd.AddCommand(lessonCmd)
	lessonCmd.AddCommand(lessonCostCmd)
	lessonCmd.AddCommand(lessonFreeCmd)
}

// paymentService is the slice of the reconciliation service the
// single-payment actions need.
type paymentService interface {
	MarkSkipped(paymentID int64) error
	ReopenSkipped(paymentID int64) error
	MarkArchived(paymentID int64) error
	Unarchive(paymentID int64) error
}

func paymentAction(verb string, action func(paymentService, int64) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		paymentID, err := parseID(args[0], "payment")
		if err != nil {
			return err
		}

		service, closer, err := openService()
		if err != nil {
			return err
		}
		defer closer()

		if err := action(service, paymentID); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s payment %d\n", verb, paymentID)
		return nil
	}
}

func runReview(cmd *cobra.Command, args []string) error {
	service, closer, err := openService()
	if err != nil {
		return err
	}
	defer closer()

	payments, err := service.ReviewQueue()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(payments) == 0 {
		fmt.Fprintln(out, "Review queue is empty")
		return nil
	}

	fmt.Fprintf(out, "%-6s %-24s %-12s %-10s %12s\n", "ID", "Payer", "Day", "Time", "Amount")
	for _, p := range payments {
		fmt.Fprintf(out, "%-6d %-24s %-12s %-10s %12s\n",
			p.ID, p.PayerName, p.Day, p.TimeOfDay, p.Amount.StringFixed(2))
	}
	return nil
}

func runCandidates(cmd *cobra.Command, args []string) error {
	paymentID, err := parseID(args[0], "payment")
	if err != nil {
		return err
	}

	service, closer, err := openService()
	if err != nil {
		return err
	}
	defer closer()

	lessons, err := service.CandidateLessons(paymentID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(lessons) == 0 {
		fmt.Fprintln(out, "No candidate lessons in the window")
		return nil
	}

	fmt.Fprintf(out, "%-6s %-24s %-12s %-10s %12s\n", "ID", "Student", "Day", "Time", "Cost")
	for _, l := range lessons {
		fmt.Fprintf(out, "%-6d %-24s %-12s %-10s %12s\n",
			l.ID, l.StudentName, l.Day, l.TimeOfDay, l.Cost.StringFixed(2))
	}
	return nil
}

func runLessonCost(cmd *cobra.Command, args []string) error {
	lessonID, err := parseID(args[0], "lesson")
	if err != nil {
		return err
	}
	cost, err := decimal.NewFromString(args[1])
	if err != nil {
		return fmt.Errorf("invalid amount: %s", args[1])
	}

	service, closer, err := openService()
	if err != nil {
		return err
	}
	defer closer()

	if err := service.SetLessonCost(lessonID, cost); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Lesson %d cost set to %s\n", lessonID, cost.StringFixed(2))
	return nil
}

func runLessonFree(cmd *cobra.Command, args []string) error {
	lessonID, err := parseID(args[0], "lesson")
	if err != nil {
		return err
	}
	free, err := strconv.ParseBool(args[1])
	if err != nil {
		return fmt.Errorf("invalid flag value: %s", args[1])
	}

	service, closer, err := openService()
	if err != nil {
		return err
	}
	defer closer()

	if err := service.SetLessonFree(lessonID, free); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Lesson %d free flag set to %v\n", lessonID, free)
	return nil
}
