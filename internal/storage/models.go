package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// Item is a tracked product.
type Item struct {
	ID        string
	Query     string
	Name      string
	CreatedAt time.Time
}

// OfferRecord is a persisted store quote. The normalized total is always
// recomputed from price/shipping/tax before insert, never patched in place.
type OfferRecord struct {
	ID            int64
	ItemID        string
	Store         string
	Seller        string
	PriceMinor    int64
	ShippingMinor int64
	TaxRate       decimal.Decimal
	TotalMinor    int64
	InStock       bool
	Rating        *float64
	ReviewCount   *int
	URL           string
	CapturedAt    time.Time
}

// SnapshotRecord is one append-only price-history observation for an item.
type SnapshotRecord struct {
	ID         int64
	ItemID     string
	Source     string
	PriceMinor int64
	TotalMinor int64
	Annotation *string
	CapturedAt time.Time
}

// WishlistRecord is a user's standing alert configuration for one item.
// Exactly one row exists per (user, item); EnsureWishlistEntry enforces the
// get-or-create semantics.
type WishlistRecord struct {
	UserID      string
	ItemID      string
	TargetTotal *int64
	DropPercent *decimal.Decimal
	Priority    string
	Notified    bool
	CreatedAt   time.Time
}

// AlertRecord captures a fired wishlist notification for auditing.
type AlertRecord struct {
	ID          int64
	UserID      string
	ItemID      string
	TotalMinor  int64
	TargetTotal *int64
	DropPercent *decimal.Decimal
	Verdict     string
	Channels    []string
	CreatedAt   time.Time
}
