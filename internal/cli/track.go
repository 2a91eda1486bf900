package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"dealwatch/internal/app"
)

var (
	trackItemID string
	trackQuery  string
	trackName   string
	trackRemove bool
)

var trackCmd = &cobra.Command{
	Use:   "track",
	Short: "Add, update, or remove a tracked item",
	RunE: func(cmd *cobra.Command, args []string) error {
		if trackItemID == "" {
			return fmt.Errorf("--item must be provided")
		}
		if !trackRemove && trackQuery == "" {
			return fmt.Errorf("--query must be provided unless removing")
		}

		opts := app.TrackOptions{
			ItemID: trackItemID,
			Query:  trackQuery,
			Name:   trackName,
			Remove: trackRemove,
		}
		return getApp().Track(cmd.Context(), opts)
	},
}

func init() {
	trackCmd.Flags().StringVar(&trackItemID, "item", "", "Item identifier")
	trackCmd.Flags().StringVar(&trackQuery, "query", "", "Search query used to collect offers")
	trackCmd.Flags().StringVar(&trackName, "name", "", "Display name (defaults to the query)")
	trackCmd.Flags().BoolVar(&trackRemove, "remove", false, "Stop tracking the item")
}
