package cli

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"dealwatch/internal/app"
	"dealwatch/internal/wishlist"
)

var (
	wishUserID      string
	wishItemID      string
	wishTarget      float64
	wishDropPercent float64
	wishPriority    string
	wishRemove      bool
)

var wishCmd = &cobra.Command{
	Use:   "wish",
	Short: "Save, update, or remove a wishlist alert",
	RunE: func(cmd *cobra.Command, args []string) error {
		if wishUserID == "" || wishItemID == "" {
			return fmt.Errorf("--user and --item must be provided")
		}

		opts := app.WishOptions{
			UserID:   wishUserID,
			ItemID:   wishItemID,
			Priority: wishPriority,
			Remove:   wishRemove,
		}

		switch wishlist.Priority(wishPriority) {
		case wishlist.PriorityHigh, wishlist.PriorityMedium, wishlist.PriorityLow:
		default:
			return fmt.Errorf("--priority must be high, medium, or low")
		}

		if wishTarget > 0 {
			// Targets are entered in major units for convenience.
			target := decimal.NewFromFloat(wishTarget).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
			opts.TargetTotal = &target
		}
		if wishDropPercent > 0 {
			drop := decimal.NewFromFloat(wishDropPercent)
			opts.DropPercent = &drop
		}

		return getApp().Wish(cmd.Context(), opts)
	},
}

func init() {
	wishCmd.Flags().StringVar(&wishUserID, "user", "", "Owning user identifier")
	wishCmd.Flags().StringVar(&wishItemID, "item", "", "Tracked item identifier")
	wishCmd.Flags().Float64Var(&wishTarget, "target", 0, "Absolute target total (major units, e.g. 49.99)")
	wishCmd.Flags().Float64Var(&wishDropPercent, "drop-percent", 0, "Percentage drop target")
	wishCmd.Flags().StringVar(&wishPriority, "priority", "medium", "Priority tier: high, medium, or low")
	wishCmd.Flags().BoolVar(&wishRemove, "remove", false, "Remove the wishlist entry")
}
