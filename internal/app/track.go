package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"dealwatch/internal/storage"
)

// Track creates, updates, or removes a tracked item.
func (a *App) Track(ctx context.Context, opts TrackOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot manage tracked items")
	}
	if closeStore != nil {
		defer closeStore()
	}

	if opts.Remove {
		if err := store.DeleteItem(ctx, opts.ItemID); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "item %s removed (snapshots and wishlist entries cascade)\n", opts.ItemID)
		return nil
	}

	item := storage.Item{ID: opts.ItemID, Query: opts.Query, Name: opts.Name}
	if item.Name == "" {
		item.Name = item.Query
	}
	if err := store.UpsertItem(ctx, item); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "tracking item %s (%q)\n", item.ID, item.Query)
	return nil
}

// Wish creates or updates a wishlist entry, or removes it. Creating an entry
// that already exists for the (user, item) pair is a no-op returning the
// stored entry; edits go through the update path so the notified flag stays
// untouched.
func (a *App) Wish(ctx context.Context, opts WishOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot manage wishlist entries")
	}
	if closeStore != nil {
		defer closeStore()
	}

	if opts.Remove {
		if err := store.DeleteWishlistEntry(ctx, opts.UserID, opts.ItemID); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "wishlist entry removed for user %s item %s\n", opts.UserID, opts.ItemID)
		return nil
	}

	if opts.TargetTotal == nil && opts.DropPercent == nil {
		return errors.New("at least one of --target or --drop-percent is required")
	}

	record := storage.WishlistRecord{
		UserID:      opts.UserID,
		ItemID:      opts.ItemID,
		TargetTotal: opts.TargetTotal,
		DropPercent: opts.DropPercent,
		Priority:    opts.Priority,
	}

	stored, err := store.EnsureWishlistEntry(ctx, record)
	if err != nil {
		return err
	}

	// EnsureWishlistEntry returns the pre-existing row untouched; apply the
	// requested targets if they differ.
	if !sameTargets(stored, record) {
		record.Notified = stored.Notified
		if err := store.UpdateWishlistEntry(ctx, record); err != nil {
			return err
		}
	}

	fmt.Fprintf(os.Stdout, "wishlist entry saved for user %s item %s\n", opts.UserID, opts.ItemID)
	return nil
}

func sameTargets(a, b storage.WishlistRecord) bool {
	if (a.TargetTotal == nil) != (b.TargetTotal == nil) {
		return false
	}
	if a.TargetTotal != nil && *a.TargetTotal != *b.TargetTotal {
		return false
	}
	if (a.DropPercent == nil) != (b.DropPercent == nil) {
		return false
	}
	if a.DropPercent != nil && !a.DropPercent.Equal(*b.DropPercent) {
		return false
	}
	return a.Priority == b.Priority
}
