package destination

import (
	"time"

	"pixel-relay/internal/models"
)

const tiktokDefaultEndpoint = "https://business-api.tiktok.com/open_api/v1.3/pixel/track/"

// TikTokAdapter delivers events to the TikTok Events API. The access token
// travels in a header, the pixel code in the body.
type TikTokAdapter struct {
	endpoint string
}

func NewTikTokAdapter() *TikTokAdapter {
	return &TikTokAdapter{endpoint: tiktokDefaultEndpoint}
}

func (a *TikTokAdapter) Platform() string { return models.PlatformTikTok }

func (a *TikTokAdapter) ValidateCredentials(creds *models.CredentialBundle) error {
	if creds.PixelCode == "" {
		return errMissingField(models.PlatformTikTok, "pixel_code")
	}
	if creds.AccessToken == "" {
		return errMissingField(models.PlatformTikTok, "access_token")
	}
	return nil
}

type tiktokContent struct {
	ContentID   string  `json:"content_id"`
	ContentName string  `json:"content_name,omitempty"`
	Price       float64 `json:"price"`
	Quantity    int     `json:"quantity"`
}

type tiktokProperties struct {
	Value    *float64        `json:"value,omitempty"`
	Currency string          `json:"currency,omitempty"`
	Contents []tiktokContent `json:"contents,omitempty"`
}

type tiktokContext struct {
	Page struct {
		URL string `json:"url,omitempty"`
	} `json:"page"`
}

type tiktokEvent struct {
	PixelCode  string            `json:"pixel_code"`
	Event      string            `json:"event"`
	EventID    string            `json:"event_id"`
	Timestamp  string            `json:"timestamp"`
	Context    tiktokContext     `json:"context"`
	Properties *tiktokProperties `json:"properties,omitempty"`
}

type tiktokPayload struct {
	Data []tiktokEvent `json:"data"`
}

func (a *TikTokAdapter) BuildRequest(ev *models.Event, mappedName string, creds *models.CredentialBundle, environment string) (*Request, error) {
	props := &tiktokProperties{}
	if models.ValueBearing(ev.Name) {
		v := ev.Value
		props.Value = &v
		props.Currency = ev.Currency
	}
	if len(ev.Items) > 0 {
		props.Contents = make([]tiktokContent, len(ev.Items))
		for i, it := range ev.Items {
			props.Contents[i] = tiktokContent{
				ContentID:   it.ID,
				ContentName: it.Name,
				Price:       it.Price,
				Quantity:    it.Quantity,
			}
		}
	}
	if props.Value == nil && len(props.Contents) == 0 {
		props = nil
	}

	event := tiktokEvent{
		PixelCode:  creds.PixelCode,
		Event:      mappedName,
		EventID:    ev.ID,
		Timestamp:  ev.Timestamp.UTC().Format(time.RFC3339),
		Properties: props,
	}
	event.Context.Page.URL = ev.URL

	return &Request{
		URL:     a.endpoint,
		Headers: map[string]string{"Access-Token": creds.AccessToken},
		Body:    tiktokPayload{Data: []tiktokEvent{event}},
	}, nil
}

// ParseResponse: TikTok signals success via HTTP status.
func (a *TikTokAdapter) ParseResponse(status int, body []byte) error {
	return nil
}
