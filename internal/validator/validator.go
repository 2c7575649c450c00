package validator

import (
	"fmt"

	"pixel-relay/internal/models"
)

// Result is the outcome of validating one raw event. Errors make the event
// undeliverable; warnings are data-quality signals only.
type Result struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// Validate runs structural and semantic checks on a raw pixel event.
// checkout_completed must carry value and currency; a missing items array on
// it is tolerated but flagged. page_viewed events skip the monetary checks.
func Validate(ev *models.RawEvent) *Result {
	res := &Result{Valid: true, Errors: []string{}, Warnings: []string{}}

	if ev.EventName == "" {
		res.fail("event_name is required")
	} else if !models.KnownEventNames[ev.EventName] {
		res.fail(fmt.Sprintf("unknown event_name %q", ev.EventName))
	}
	if ev.Timestamp.IsZero() {
		res.fail("timestamp is required")
	}
	if ev.ShopDomain == "" {
		res.fail("shop_domain is required")
	}

	switch ev.EventName {
	case models.EventCheckoutCompleted:
		if ev.Data.Value == nil {
			res.fail("checkout_completed requires data.value")
		}
		if ev.Data.Currency == "" {
			res.fail("checkout_completed requires data.currency")
		}
		if len(ev.Data.Items) == 0 {
			res.warn("checkout_completed has no items")
		}
	case models.EventPageViewed:
		// page views carry no monetary data
	default:
		if ev.Data.Value == nil {
			res.warn(fmt.Sprintf("%s has no data.value", ev.EventName))
		}
		if ev.Data.Currency == "" {
			res.warn(fmt.Sprintf("%s has no data.currency", ev.EventName))
		}
	}

	for i := range ev.Data.Items {
		if ItemID(&ev.Data.Items[i]) == "" {
			res.warn(fmt.Sprintf("item %d has no id field", i))
		}
	}

	return res
}

func (r *Result) fail(msg string) {
	r.Valid = false
	r.Errors = append(r.Errors, msg)
}

func (r *Result) warn(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// ItemID resolves an item id using the priority order
// variantId > variant_id > productId > product_id > id. The normalizer uses
// the same resolution when building canonical items.
func ItemID(item *models.RawItem) string {
	for _, id := range []string{
		item.VariantID,
		item.VariantIDSnake,
		item.ProductID,
		item.ProductIDSnake,
		item.ID,
	} {
		if id != "" {
			return id
		}
	}
	return ""
}
