package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"dealwatch/internal/app"
)

var (
	checkItemID string
	checkQuery  string
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run a one-shot price check for an item",
	RunE: func(cmd *cobra.Command, args []string) error {
		if checkItemID == "" && checkQuery == "" {
			return fmt.Errorf("one of --item or --query must be provided")
		}

		opts := app.CheckOptions{
			ItemID: checkItemID,
			Query:  checkQuery,
		}
		return getApp().Check(cmd.Context(), opts)
	},
}

func init() {
	checkCmd.Flags().StringVar(&checkItemID, "item", "", "Tracked item identifier")
	checkCmd.Flags().StringVar(&checkQuery, "query", "", "Ad-hoc search query (no persistence)")
}
