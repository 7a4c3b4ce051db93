package cmd

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var allocateCmd = &cobra.Command{
	Use:   "allocate <payment-id> <lesson-id> <amount>",
	Short: "Apply part of a payment to a lesson",
	Long: `Apply part of a payment to a lesson. The amount must fit within the
payment's unallocated residual; the payment's state follows from its
allocations afterwards.

Examples:
  reconciler allocate 12 34 2000`,
	Args: cobra.ExactArgs(3),
	RunE: runAllocate,
}

var allocateBundleCmd = &cobra.Command{
	Use:   "allocate-bundle <payment-id> <lesson-id>...",
	Short: "Split a bundle payment across several lessons",
	Long: `Split a payment's residual evenly across the lessons of a recognized
bundle. The residual must match a configured bundle price and the
number of lessons must match the bundle size.

Examples:
  reconciler allocate-bundle 12 34 35 36`,
	Args: cobra.MinimumNArgs(2),
	RunE: runAllocateBundle,
}

var deallocateCmd = &cobra.Command{
	Use:   "deallocate <payment-id> <lesson-id>",
	Short: "Undo an allocation between a payment and a lesson",
	Args:  cobra.ExactArgs(2),
	RunE:  runDeallocate,
}

func init() {
	rootCmd.AddCommand(allocateCmd)
	rootCmd.AddCommand(allocateBundleCmd)
	rootCmd.AddCommand(deallocateCmd)
}

func parseID(arg, what string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s id: %s", what, arg)
	}
	return id, nil
}

func runAllocate(cmd *cobra.Command, args []string) error {
	paymentID, err := parseID(args[0], "payment")
	if err != nil {
		return err
	}
	lessonID, err := parseID(args[1], "lesson")
	if err != nil {
		return err
	}
	quota, err := decimal.NewFromString(args[2])
	if err != nil {
		return fmt.Errorf("invalid amount: %s", args[2])
	}

	service, closer, err := openService()
	if err != nil {
		return err
	}
	defer closer()

	allocation, err := service.Allocate(paymentID, lessonID, quota)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Allocated %s from payment %d to lesson %d\n",
		allocation.Quota.StringFixed(2), paymentID, lessonID)
	return nil
}

func runAllocateBundle(cmd *cobra.Command, args []string) error {
	paymentID, err := parseID(args[0], "payment")
	if err != nil {
		return err
	}

	lessonIDs := make([]int64, 0, len(args)-1)
	for _, arg := range args[1:] {
		id, err := parseID(arg, "lesson")
		if err != nil {
			return err
		}
		lessonIDs = append(lessonIDs, id)
	}

	service, closer, err := openService()
	if err != nil {
		return err
	}
	defer closer()

	allocations, err := service.AllocateBundle(paymentID, lessonIDs)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Bundle split across %d lessons:\n", len(allocations))
	for _, a := range allocations {
		fmt.Fprintf(out, "  lesson %d: %s\n", a.LessonID, a.Quota.StringFixed(2))
	}
	return nil
}

func runDeallocate(cmd *cobra.Command, args []string) error {
	paymentID, err := parseID(args[0], "payment")
	if err != nil {
		return err
	}
	lessonID, err := parseID(args[1], "lesson")
	if err != nil {
		return err
	}

	service, closer, err := openService()
	if err != nil {
		return err
	}
	defer closer()

	if err := service.Deallocate(paymentID, lessonID); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Deallocated payment %d from lesson %d\n", paymentID, lessonID)
	return nil
}
