package models

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Canonical event names (storefront vocabulary, before platform mapping)
const (
	EventCheckoutCompleted    = "checkout_completed"
	EventCheckoutStarted      = "checkout_started"
	EventProductAddedToCart   = "product_added_to_cart"
	EventProductViewed        = "product_viewed"
	EventPageViewed           = "page_viewed"
	EventCheckoutContactInfo  = "checkout_contact_info_submitted"
	EventCheckoutShippingInfo = "checkout_shipping_info_submitted"
	EventPaymentInfoSubmitted = "payment_info_submitted"
)

// KnownEventNames lists every canonical event name the pipeline accepts.
var KnownEventNames = map[string]bool{
	EventCheckoutCompleted:    true,
	EventCheckoutStarted:      true,
	EventProductAddedToCart:   true,
	EventProductViewed:        true,
	EventPageViewed:           true,
	EventCheckoutContactInfo:  true,
	EventCheckoutShippingInfo: true,
	EventPaymentInfoSubmitted: true,
}

// ValueBearing reports whether an event type carries a monetary value on the
// wire. Page views never do, even though normalization assigns them value 0.
func ValueBearing(eventName string) bool {
	return eventName != EventPageViewed
}

// FlexNumber decodes a JSON number or a numeric string. Storefront pixels are
// not consistent about quoting prices and quantities.
type FlexNumber float64

func (f *FlexNumber) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		return nil
	}
	s = strings.Trim(s, `"`)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		// Unparseable values degrade to zero rather than failing the decode;
		// the validator reports the data-quality problem separately.
		return nil
	}
	*f = FlexNumber(v)
	return nil
}

func (f FlexNumber) MarshalJSON() ([]byte, error) {
	return json.Marshal(float64(f))
}

// Consent carries the shopper's tracking consent flags. Nil pointers mean the
// flag was not reported at all.
type Consent struct {
	Analytics *bool `json:"analytics,omitempty"`
	Marketing *bool `json:"marketing,omitempty"`
}

// RawItem is a line item exactly as the pixel sent it. Id and name fields are
// resolved through a priority order during normalization.
type RawItem struct {
	VariantID      string      `json:"variantId,omitempty"`
	VariantIDSnake string      `json:"variant_id,omitempty"`
	ProductID      string      `json:"productId,omitempty"`
	ProductIDSnake string      `json:"product_id,omitempty"`
	ID             string      `json:"id,omitempty"`
	Name           string      `json:"name,omitempty"`
	ItemName       string      `json:"item_name,omitempty"`
	Title          string      `json:"title,omitempty"`
	ProductName    string      `json:"product_name,omitempty"`
	ProductTitle   string      `json:"productTitle,omitempty"`
	Price          *FlexNumber `json:"price,omitempty"`
	Quantity       *FlexNumber `json:"quantity,omitempty"`
}

// EventData is the payload bag of a raw pixel event, typed per documented shape.
type EventData struct {
	OrderID       string      `json:"order_id,omitempty"`
	OrderNumber   string      `json:"order_number,omitempty"`
	Value         *FlexNumber `json:"value,omitempty"`
	Currency      string      `json:"currency,omitempty"`
	Tax           *FlexNumber `json:"tax,omitempty"`
	Shipping      *FlexNumber `json:"shipping,omitempty"`
	CheckoutToken string      `json:"checkout_token,omitempty"`
	Items         []RawItem   `json:"items,omitempty"`
	ItemCount     *FlexNumber `json:"item_count,omitempty"`
	URL           string      `json:"url,omitempty"`
	Title         string      `json:"title,omitempty"`
	ProductID     string      `json:"product_id,omitempty"`
}

// RawEvent is an inbound pixel event before validation and normalization.
type RawEvent struct {
	EventName  string    `json:"event_name"`
	Timestamp  time.Time `json:"timestamp"`
	ShopDomain string    `json:"shop_domain"`
	Nonce      string    `json:"nonce,omitempty"`
	Consent    *Consent  `json:"consent,omitempty"`
	Data       EventData `json:"data"`
}

// Item is a normalized line item.
type Item struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

// Event is the canonical, destination-agnostic event produced by the
// normalizer. Value is always >= 0 and Currency a 3-letter uppercase code.
type Event struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Timestamp     time.Time `json:"timestamp"`
	ShopDomain    string    `json:"shop_domain"`
	Value         float64   `json:"value"`
	Currency      string    `json:"currency"`
	Items         []Item    `json:"items"`
	OrderID       string    `json:"order_id,omitempty"`
	OrderNumber   string    `json:"order_number,omitempty"`
	CheckoutToken string    `json:"checkout_token,omitempty"`
	Tax           float64   `json:"tax,omitempty"`
	Shipping      float64   `json:"shipping,omitempty"`
	URL           string    `json:"url,omitempty"`
	Title         string    `json:"title,omitempty"`
	ProductID     string    `json:"product_id,omitempty"`
	Consent       *Consent  `json:"consent,omitempty"`
}
