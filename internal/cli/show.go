package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"dealwatch/internal/app"
)

var (
	showItemID string
	showLimit  int
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display recent price snapshots for an item",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showItemID == "" {
			return fmt.Errorf("--item must be provided")
		}
		if showLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}

		opts := app.ShowOptions{
			ItemID: showItemID,
			Limit:  showLimit,
		}

		return getApp().Show(cmd.Context(), opts)
	},
}

func init() {
	showCmd.Flags().StringVar(&showItemID, "item", "", "Tracked item identifier")
	showCmd.Flags().IntVar(&showLimit, "limit", 20, "Number of snapshots to display")
}
