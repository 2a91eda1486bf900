package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"dealwatch/internal/storage"
)

// Check runs a single on-demand check pass for one item and prints the
// resulting offers, statistics, and deal assessment.
func (a *App) Check(ctx context.Context, opts CheckOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if closeStore != nil {
		defer closeStore()
	}

	item, adhoc, err := a.resolveItem(ctx, store, opts)
	if err != nil {
		return err
	}

	assessments, closeCache := a.openCache()
	if closeCache != nil {
		defer closeCache()
	}

	// Ad-hoc queries have no tracked item to hang history or alerts on, so
	// they run stateless instead of polluting the snapshot table.
	if adhoc {
		store = nil
	}
	svc := a.newService(nil, store, assessments)
	report, err := svc.CheckItem(ctx, item)
	if err != nil {
		return err
	}

	if report.Best == nil {
		fmt.Fprintln(os.Stdout, "no offers collected yet")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Store\tSeller\tTotal\tIn stock\tRating\tURL")
	for _, offer := range report.Offers {
		rating := "-"
		if offer.Offer.Rating != nil {
			rating = fmt.Sprintf("%.1f", *offer.Offer.Rating)
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\t%t\t%s\t%s\n",
			offer.Offer.Store,
			offer.Offer.Seller,
			formatMinor(offer.TotalMinor),
			offer.Offer.InStock,
			rating,
			offer.Offer.URL,
		)
	}
	writer.Flush()

	fmt.Fprintf(os.Stdout, "\nbest: %s at %s\n", report.Best.Offer.Store, formatMinor(report.Best.TotalMinor))
	fmt.Fprintf(os.Stdout, "window: mean=%s min=%s stdev=%s\n",
		formatMinor(report.Stats.Mean), formatMinor(report.Stats.Min), formatMinor(report.Stats.Stdev))
	fmt.Fprintf(os.Stdout, "score: %.3f  verdict: %s  fake sale: %t\n",
		report.Assessment.Score, report.Assessment.Verdict, report.Assessment.FakeSale)
	if report.AlertsFired > 0 {
		fmt.Fprintf(os.Stdout, "alerts fired: %d\n", report.AlertsFired)
	}
	return nil
}

func (a *App) resolveItem(ctx context.Context, store *storage.Store, opts CheckOptions) (storage.Item, bool, error) {
	if opts.ItemID != "" && store != nil {
		items, err := store.ListItems(ctx)
		if err != nil {
			return storage.Item{}, false, err
		}
		for _, item := range items {
			if item.ID == opts.ItemID {
				return item, false, nil
			}
		}
		return storage.Item{}, false, fmt.Errorf("item %q is not tracked", opts.ItemID)
	}

	if opts.Query == "" {
		return storage.Item{}, false, errors.New("either --item (with a database) or --query is required")
	}

	return storage.Item{ID: opts.ItemID, Query: opts.Query, Name: opts.Query}, true, nil
}
