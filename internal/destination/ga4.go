package destination

import (
	"fmt"
	"net/url"

	"pixel-relay/internal/models"
)

const ga4DefaultEndpoint = "https://www.google-analytics.com/mp/collect"

// GA4Adapter delivers events over the GA4 Measurement Protocol. Success is
// signalled by HTTP status alone; the endpoint normally replies 204 with an
// empty body.
type GA4Adapter struct {
	endpoint string
}

func NewGA4Adapter() *GA4Adapter {
	return &GA4Adapter{endpoint: ga4DefaultEndpoint}
}

func (a *GA4Adapter) Platform() string { return models.PlatformGA4 }

func (a *GA4Adapter) ValidateCredentials(creds *models.CredentialBundle) error {
	if creds.MeasurementID == "" {
		return errMissingField(models.PlatformGA4, "measurement_id")
	}
	if creds.APISecret == "" {
		return errMissingField(models.PlatformGA4, "api_secret")
	}
	return nil
}

type ga4Event struct {
	Name   string                 `json:"name"`
	Params map[string]interface{} `json:"params"`
}

type ga4Payload struct {
	ClientID string     `json:"client_id"`
	Events   []ga4Event `json:"events"`
}

func (a *GA4Adapter) BuildRequest(ev *models.Event, mappedName string, creds *models.CredentialBundle, environment string) (*Request, error) {
	params := map[string]interface{}{}

	if models.ValueBearing(ev.Name) {
		params["value"] = ev.Value
		params["currency"] = ev.Currency
	}
	if ev.OrderID != "" {
		params["transaction_id"] = ev.OrderID
	}
	if len(ev.Items) > 0 {
		items := make([]map[string]interface{}, len(ev.Items))
		for i, it := range ev.Items {
			items[i] = map[string]interface{}{
				"item_id":   it.ID,
				"item_name": it.Name,
				"price":     it.Price,
				"quantity":  it.Quantity,
			}
		}
		params["items"] = items
	}

	q := url.Values{}
	q.Set("measurement_id", creds.MeasurementID)
	q.Set("api_secret", creds.APISecret)

	return &Request{
		URL: fmt.Sprintf("%s?%s", a.endpoint, q.Encode()),
		Body: ga4Payload{
			ClientID: ga4ClientID(ev),
			Events:   []ga4Event{{Name: mappedName, Params: params}},
		},
	}, nil
}

// ParseResponse: GA4 signals success via HTTP status alone.
func (a *GA4Adapter) ParseResponse(status int, body []byte) error {
	return nil
}

// ga4ClientID derives a stable client identifier. Checkout-scoped events
// share the checkout token so GA4 can stitch the session; otherwise the
// canonical event id keeps it deterministic.
func ga4ClientID(ev *models.Event) string {
	if ev.CheckoutToken != "" {
		return ev.CheckoutToken
	}
	return ev.ID
}
