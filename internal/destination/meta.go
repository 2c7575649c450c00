package destination

import (
	"encoding/json"
	"fmt"
	"net/url"

	"pixel-relay/internal/models"
)

const metaDefaultEndpoint = "https://graph.facebook.com/v18.0"

// MetaAdapter delivers events to the Meta Conversions API. A 2xx response can
// still carry a top-level error object, so the body is inspected.
type MetaAdapter struct {
	endpoint string
}

func NewMetaAdapter() *MetaAdapter {
	return &MetaAdapter{endpoint: metaDefaultEndpoint}
}

func (a *MetaAdapter) Platform() string { return models.PlatformMeta }

func (a *MetaAdapter) ValidateCredentials(creds *models.CredentialBundle) error {
	if creds.PixelID == "" {
		return errMissingField(models.PlatformMeta, "pixel_id")
	}
	if creds.AccessToken == "" {
		return errMissingField(models.PlatformMeta, "access_token")
	}
	return nil
}

type metaContent struct {
	ID        string  `json:"id"`
	Quantity  int     `json:"quantity"`
	ItemPrice float64 `json:"item_price"`
}

type metaCustomData struct {
	Value       *float64      `json:"value,omitempty"`
	Currency    string        `json:"currency,omitempty"`
	Contents    []metaContent `json:"contents,omitempty"`
	ContentType string        `json:"content_type,omitempty"`
	OrderID     string        `json:"order_id,omitempty"`
}

type metaEvent struct {
	EventName      string          `json:"event_name"`
	EventTime      int64           `json:"event_time"`
	EventID        string          `json:"event_id"`
	ActionSource   string          `json:"action_source"`
	EventSourceURL string          `json:"event_source_url,omitempty"`
	CustomData     *metaCustomData `json:"custom_data,omitempty"`
}

type metaPayload struct {
	Data          []metaEvent `json:"data"`
	TestEventCode string      `json:"test_event_code,omitempty"`
}

func (a *MetaAdapter) BuildRequest(ev *models.Event, mappedName string, creds *models.CredentialBundle, environment string) (*Request, error) {
	custom := &metaCustomData{OrderID: ev.OrderID}
	if models.ValueBearing(ev.Name) {
		v := ev.Value
		custom.Value = &v
		custom.Currency = ev.Currency
	}
	if len(ev.Items) > 0 {
		custom.ContentType = "product"
		custom.Contents = make([]metaContent, len(ev.Items))
		for i, it := range ev.Items {
			custom.Contents[i] = metaContent{ID: it.ID, Quantity: it.Quantity, ItemPrice: it.Price}
		}
	}
	if custom.Value == nil && custom.Currency == "" && len(custom.Contents) == 0 && custom.OrderID == "" {
		custom = nil
	}

	payload := metaPayload{
		Data: []metaEvent{{
			EventName:      mappedName,
			EventTime:      ev.Timestamp.Unix(),
			EventID:        ev.ID,
			ActionSource:   "website",
			EventSourceURL: ev.URL,
			CustomData:     custom,
		}},
	}
	if environment == models.EnvironmentTest && creds.TestEventCode != "" {
		payload.TestEventCode = creds.TestEventCode
	}

	q := url.Values{}
	q.Set("access_token", creds.AccessToken)

	return &Request{
		URL:  fmt.Sprintf("%s/%s/events?%s", a.endpoint, creds.PixelID, q.Encode()),
		Body: payload,
	}, nil
}

// ParseResponse rejects 2xx responses that carry a top-level error object.
func (a *MetaAdapter) ParseResponse(status int, body []byte) error {
	if len(body) == 0 {
		return nil
	}
	var parsed struct {
		Error *struct {
			Message string `json:"message"`
			Code    int    `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		// Non-JSON 2xx bodies are accepted; the status already said ok.
		return nil
	}
	if parsed.Error != nil {
		return fmt.Errorf("meta api error %d: %s", parsed.Error.Code, parsed.Error.Message)
	}
	return nil
}
