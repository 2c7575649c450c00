package normalizer

import (
	"math"
	"regexp"
	"strings"

	"pixel-relay/internal/models"
	"pixel-relay/internal/util"
	"pixel-relay/internal/validator"

	"go.uber.org/zap"
)

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

// Normalizer canonicalizes raw pixel events.
type Normalizer struct {
	logger *zap.Logger
}

func New() *Normalizer {
	return &Normalizer{logger: util.GetLogger()}
}

// Normalize produces the canonical event. clientEventID, when non-empty, is
// reused as the event id instead of deriving one; duplicate webhook fires then
// dedupe on the caller's key rather than ours.
func (n *Normalizer) Normalize(ev *models.RawEvent, clientEventID string) *models.Event {
	items := n.normalizeItems(ev)
	value := n.normalizeValue(ev, items)
	currency := n.normalizeCurrency(ev)

	id := clientEventID
	if id != "" {
		n.logger.Debug("Using client-supplied event id",
			zap.String("event_id", id),
			zap.String("event_name", ev.EventName))
	} else {
		id = EventID(ev, items)
		n.logger.Debug("Derived canonical event id",
			zap.String("event_id", id),
			zap.String("event_name", ev.EventName))
	}

	out := &models.Event{
		ID:            id,
		Name:          ev.EventName,
		Timestamp:     ev.Timestamp,
		ShopDomain:    ev.ShopDomain,
		Value:         value,
		Currency:      currency,
		Items:         items,
		OrderID:       ev.Data.OrderID,
		OrderNumber:   ev.Data.OrderNumber,
		CheckoutToken: ev.Data.CheckoutToken,
		URL:           ev.Data.URL,
		Title:         ev.Data.Title,
		ProductID:     ev.Data.ProductID,
		Consent:       ev.Consent,
	}
	if ev.Data.Tax != nil {
		out.Tax = clampMoney(float64(*ev.Data.Tax))
	}
	if ev.Data.Shipping != nil {
		out.Shipping = clampMoney(float64(*ev.Data.Shipping))
	}
	return out
}

// normalizeValue applies the value rules: page views are always 0, an explicit
// value wins, otherwise the item total, otherwise 0.
func (n *Normalizer) normalizeValue(ev *models.RawEvent, items []models.Item) float64 {
	if ev.EventName == models.EventPageViewed {
		return 0
	}
	if ev.Data.Value != nil {
		return clampMoney(float64(*ev.Data.Value))
	}
	if len(items) > 0 {
		var total float64
		for _, it := range items {
			total += it.Price * float64(it.Quantity)
		}
		return clampMoney(total)
	}
	return 0
}

func (n *Normalizer) normalizeCurrency(ev *models.RawEvent) string {
	raw := ev.Data.Currency
	if raw == "" {
		kind := "currency_missing"
		if currencyRequired(ev.EventName) {
			kind = "currency_missing_required"
		}
		util.DataQualityWarningsTotal.WithLabelValues(kind).Inc()
		n.logger.Warn("Currency absent, defaulting to USD",
			zap.String("event_name", ev.EventName),
			zap.String("shop_domain", ev.ShopDomain),
			zap.Bool("required", currencyRequired(ev.EventName)))
		return "USD"
	}
	upper := strings.ToUpper(raw)
	if !currencyPattern.MatchString(upper) {
		util.DataQualityWarningsTotal.WithLabelValues("currency_malformed").Inc()
		n.logger.Warn("Currency malformed, defaulting to USD",
			zap.String("currency", raw),
			zap.String("shop_domain", ev.ShopDomain))
		return "USD"
	}
	return upper
}

// normalizeItems maps raw items to canonical ones and drops items with no
// resolvable id. page_viewed always yields an empty slice.
func (n *Normalizer) normalizeItems(ev *models.RawEvent) []models.Item {
	if ev.EventName == models.EventPageViewed {
		return []models.Item{}
	}
	items := make([]models.Item, 0, len(ev.Data.Items))
	for i := range ev.Data.Items {
		raw := &ev.Data.Items[i]
		id := validator.ItemID(raw)
		if id == "" {
			util.DataQualityWarningsTotal.WithLabelValues("item_missing_id").Inc()
			continue
		}
		items = append(items, models.Item{
			ID:       id,
			Name:     itemName(raw),
			Price:    itemPrice(raw),
			Quantity: itemQuantity(raw),
		})
	}
	return items
}

// itemName resolves a display name: name > item_name > title > product_name >
// productTitle, defaulting to "Unknown".
func itemName(item *models.RawItem) string {
	for _, name := range []string{
		item.Name,
		item.ItemName,
		item.Title,
		item.ProductName,
		item.ProductTitle,
	} {
		if name != "" {
			return name
		}
	}
	return "Unknown"
}

func itemPrice(item *models.RawItem) float64 {
	if item.Price == nil {
		return 0
	}
	return clampMoney(float64(*item.Price))
}

// itemQuantity defaults to 1; fractional quantities are floored with a
// minimum of 1.
func itemQuantity(item *models.RawItem) int {
	if item.Quantity == nil {
		return 1
	}
	q := int(math.Floor(float64(*item.Quantity)))
	if q < 1 {
		return 1
	}
	return q
}

// clampMoney clamps to >= 0 and rounds to two decimals.
func clampMoney(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	return math.Round(v*100) / 100
}

// currencyRequired reports whether the event type semantically requires a
// currency (purchase-like events) versus merely benefiting from one.
func currencyRequired(eventName string) bool {
	return eventName == models.EventCheckoutCompleted
}
