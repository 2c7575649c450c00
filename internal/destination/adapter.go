package destination

import (
	"fmt"
	"net/url"

	"pixel-relay/internal/models"
)

// Request is a fully built outbound call to a destination API. Secrets may
// appear in the URL query or headers; Redacted copies are produced by the
// sender before anything is logged or persisted.
type Request struct {
	URL     string
	Headers map[string]string
	Body    interface{}
}

// Outcome is the reduced result of one delivery attempt against a
// destination. Every adapter failure mode collapses into this shape; nothing
// propagates past the sender as an error.
type Outcome struct {
	Success        bool
	ErrorCode      string
	ErrorMessage   string
	HTTPStatus     int
	LatencyMs      int64
	RequestPayload string
	ResponseBody   string
}

// Adapter is implemented once per destination platform.
type Adapter interface {
	Platform() string

	// ValidateCredentials checks the decrypted bundle before any network
	// call is attempted.
	ValidateCredentials(creds *models.CredentialBundle) error

	// BuildRequest constructs the platform-specific payload for the mapped
	// event name. Monetary fields are omitted for non-value-bearing events
	// and items blocks only included when at least one item resolved.
	BuildRequest(ev *models.Event, mappedName string, creds *models.CredentialBundle, environment string) (*Request, error)

	// ParseResponse decides success for a 2xx response. Some platforms
	// signal errors inside an otherwise successful HTTP response.
	ParseResponse(status int, body []byte) error
}

// Registry selects adapters by platform identifier.
type Registry struct {
	adapters map[string]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Platform()] = a
	}
	return r
}

// Lookup returns the adapter for a platform, if one is registered.
func (r *Registry) Lookup(platform string) (Adapter, bool) {
	a, ok := r.adapters[platform]
	return a, ok
}

// secretParams are query parameters that must never reach logs or the ledger.
var secretParams = map[string]bool{
	"api_secret":   true,
	"access_token": true,
}

// redactURL replaces secret query parameter values with a placeholder.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "(unparseable url)"
	}
	q := u.Query()
	for param := range secretParams {
		if q.Has(param) {
			q.Set(param, "REDACTED")
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// errMissingField reports a credential bundle field absent for a platform.
func errMissingField(platform, field string) error {
	return fmt.Errorf("%s credentials missing %s", platform, field)
}
