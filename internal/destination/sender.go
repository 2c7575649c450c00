package destination

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"pixel-relay/internal/models"
	"pixel-relay/internal/util"

	"go.uber.org/zap"
)

// maxResponseBytes bounds how much of a destination response is retained for
// the ledger.
const maxResponseBytes = 8 * 1024

// Sender executes adapter-built requests under a fixed timeout and reduces
// every possible failure to an Outcome. Adapter panics are caught here too.
type Sender struct {
	client  *http.Client
	timeout time.Duration
	logger  *zap.Logger
}

func NewSender(timeout time.Duration) *Sender {
	return &Sender{
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
		logger:  util.GetLogger(),
	}
}

// Send validates credentials, builds and executes the request, and parses the
// response. It never returns an error: the worst case is a failed Outcome.
func (s *Sender) Send(ctx context.Context, adapter Adapter, ev *models.Event, mappedName string, creds *models.CredentialBundle, environment string) (out *Outcome) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Adapter panic recovered",
				zap.String("platform", adapter.Platform()),
				zap.Any("panic", r))
			out = &Outcome{
				ErrorCode:    models.ErrCodeSendError,
				ErrorMessage: fmt.Sprintf("adapter panic: %v", r),
			}
		}
	}()

	if err := adapter.ValidateCredentials(creds); err != nil {
		return &Outcome{
			ErrorCode:    models.ErrCodeMissingCredentials,
			ErrorMessage: err.Error(),
		}
	}

	req, err := adapter.BuildRequest(ev, mappedName, creds, environment)
	if err != nil {
		return &Outcome{
			ErrorCode:    models.ErrCodeValidationError,
			ErrorMessage: err.Error(),
		}
	}

	body, err := json.Marshal(req.Body)
	if err != nil {
		return &Outcome{
			ErrorCode:    models.ErrCodeValidationError,
			ErrorMessage: fmt.Sprintf("marshal request: %v", err),
		}
	}

	requestPayload := redactURL(req.URL) + " " + string(body)

	sendCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(sendCtx, http.MethodPost, req.URL, bytes.NewReader(body))
	if err != nil {
		return &Outcome{
			ErrorCode:      models.ErrCodeSendError,
			ErrorMessage:   err.Error(),
			RequestPayload: requestPayload,
		}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := s.client.Do(httpReq)
	latency := time.Since(start)

	defer util.DeliveryLatency.WithLabelValues(adapter.Platform()).Observe(latency.Seconds())

	if err != nil {
		code := models.ErrCodeSendError
		msg := err.Error()
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) || isClientTimeout(err) {
			code = models.ErrCodeTimeout
			msg = fmt.Sprintf("request to %s timed out after %s", adapter.Platform(), s.timeout)
		}
		return &Outcome{
			ErrorCode:      code,
			ErrorMessage:   msg,
			LatencyMs:      latency.Milliseconds(),
			RequestPayload: requestPayload,
		}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))

	out = &Outcome{
		HTTPStatus:     resp.StatusCode,
		LatencyMs:      latency.Milliseconds(),
		RequestPayload: requestPayload,
		ResponseBody:   string(respBody),
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		out.ErrorCode = models.HTTPErrorCode(resp.StatusCode)
		out.ErrorMessage = fmt.Sprintf("%s returned HTTP %d", adapter.Platform(), resp.StatusCode)
		return out
	}

	if err := adapter.ParseResponse(resp.StatusCode, respBody); err != nil {
		out.ErrorCode = models.ErrCodeSendError
		out.ErrorMessage = err.Error()
		return out
	}

	out.Success = true
	return out
}

// isClientTimeout detects net/http client timeouts, which surface as url
// errors with a Timeout method rather than context.DeadlineExceeded.
func isClientTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
