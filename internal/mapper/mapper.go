package mapper

import (
	"pixel-relay/internal/models"
	"pixel-relay/internal/util"

	"go.uber.org/zap"
)

// Static event-name vocabularies per destination platform. Events absent from
// a platform's table pass through unchanged.
var platformMappings = map[string]map[string]string{
	models.PlatformGA4: {
		models.EventCheckoutCompleted:    "purchase",
		models.EventCheckoutStarted:      "begin_checkout",
		models.EventProductAddedToCart:   "add_to_cart",
		models.EventProductViewed:        "view_item",
		models.EventPageViewed:           "page_view",
		models.EventCheckoutShippingInfo: "add_shipping_info",
		models.EventPaymentInfoSubmitted: "add_payment_info",
	},
	models.PlatformMeta: {
		models.EventCheckoutCompleted:    "Purchase",
		models.EventCheckoutStarted:      "InitiateCheckout",
		models.EventProductAddedToCart:   "AddToCart",
		models.EventProductViewed:        "ViewContent",
		models.EventPageViewed:           "PageView",
		models.EventPaymentInfoSubmitted: "AddPaymentInfo",
	},
	models.PlatformTikTok: {
		models.EventCheckoutCompleted:    "CompletePayment",
		models.EventCheckoutStarted:      "InitiateCheckout",
		models.EventProductAddedToCart:   "AddToCart",
		models.EventProductViewed:        "ViewContent",
		models.EventPageViewed:           "Pageview",
		models.EventPaymentInfoSubmitted: "AddPaymentInfo",
	},
}

// MapEventName translates a canonical event name into the platform's
// vocabulary. Per-shop custom mappings win over the static table. A missing
// mapping never fails the send: the canonical name passes through with a
// logged warning.
func MapEventName(canonicalName, platform string, custom map[string]string) string {
	if custom != nil {
		if mapped, ok := custom[canonicalName]; ok && mapped != "" {
			return mapped
		}
	}
	if table, ok := platformMappings[platform]; ok {
		if mapped, ok := table[canonicalName]; ok {
			return mapped
		}
	}
	util.GetLogger().Warn("No event-name mapping, passing canonical name through",
		zap.String("event_name", canonicalName),
		zap.String("platform", platform))
	return canonicalName
}
