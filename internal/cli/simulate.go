package cli

import (
	"errors"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var (
	simulateCurrent float64
	simulateTarget  float64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "Fire a synthetic wishlist alert to verify delivery",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateCurrent <= 0 || simulateTarget <= 0 {
			return errors.New("--current and --target must be greater than 0")
		}

		current := toMinor(simulateCurrent)
		target := toMinor(simulateTarget)
		return getApp().SimulateAlert(cmd.Context(), current, target)
	},
}

func toMinor(major float64) int64 {
	return decimal.NewFromFloat(major).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

func init() {
	simulateCmd.Flags().Float64Var(&simulateCurrent, "current", 0, "Current total (major units)")
	simulateCmd.Flags().Float64Var(&simulateTarget, "target", 0, "Target total (major units)")
}
