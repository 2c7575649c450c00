package destination

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"pixel-relay/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func metaCreds() *models.CredentialBundle {
	return &models.CredentialBundle{
		PixelID:       "123456",
		AccessToken:   "meta-t0ken",
		TestEventCode: "TEST99",
	}
}

func TestMetaSendSuccess(t *testing.T) {
	var gotPath string
	var gotToken string
	var gotBody metaPayload

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotToken = r.URL.Query().Get("access_token")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"events_received":1}`))
	}))
	defer srv.Close()

	adapter := &MetaAdapter{endpoint: srv.URL}
	ev := testEvent(models.EventCheckoutCompleted)
	out := NewSender(2*time.Second).Send(context.Background(), adapter, ev, "Purchase", metaCreds(), models.EnvironmentLive)

	require.True(t, out.Success)
	assert.True(t, strings.HasSuffix(gotPath, "/123456/events"))
	assert.Equal(t, "meta-t0ken", gotToken)

	require.Len(t, gotBody.Data, 1)
	sent := gotBody.Data[0]
	assert.Equal(t, "Purchase", sent.EventName)
	assert.Equal(t, ev.Timestamp.Unix(), sent.EventTime)
	assert.Equal(t, ev.ID, sent.EventID)
	assert.Equal(t, "website", sent.ActionSource)
	require.NotNil(t, sent.CustomData)
	require.NotNil(t, sent.CustomData.Value)
	assert.Equal(t, 25.0, *sent.CustomData.Value)
	assert.Equal(t, "USD", sent.CustomData.Currency)
	assert.Len(t, sent.CustomData.Contents, 2)
	assert.Equal(t, "product", sent.CustomData.ContentType)
	assert.Empty(t, gotBody.TestEventCode, "test_event_code only in test environment")
}

func TestMetaTestEventCodeInTestEnvironment(t *testing.T) {
	var gotBody metaPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	adapter := &MetaAdapter{endpoint: srv.URL}
	out := NewSender(2*time.Second).Send(context.Background(), adapter, testEvent(models.EventCheckoutCompleted), "Purchase", metaCreds(), models.EnvironmentTest)

	require.True(t, out.Success)
	assert.Equal(t, "TEST99", gotBody.TestEventCode)
}

func TestMetaErrorObjectIn2xxResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":{"message":"Invalid parameter","code":100}}`))
	}))
	defer srv.Close()

	adapter := &MetaAdapter{endpoint: srv.URL}
	out := NewSender(2*time.Second).Send(context.Background(), adapter, testEvent(models.EventCheckoutCompleted), "Purchase", metaCreds(), models.EnvironmentLive)

	assert.False(t, out.Success)
	assert.Equal(t, models.ErrCodeSendError, out.ErrorCode)
	assert.Contains(t, out.ErrorMessage, "Invalid parameter")
}

func TestMetaPageViewOmitsValue(t *testing.T) {
	var gotBody metaPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	ev := testEvent(models.EventPageViewed)
	ev.Items = nil
	ev.OrderID = ""

	adapter := &MetaAdapter{endpoint: srv.URL}
	out := NewSender(2*time.Second).Send(context.Background(), adapter, ev, "PageView", metaCreds(), models.EnvironmentLive)

	require.True(t, out.Success)
	assert.Nil(t, gotBody.Data[0].CustomData)
}

func TestMetaMissingPixelID(t *testing.T) {
	adapter := NewMetaAdapter()
	out := NewSender(2*time.Second).Send(context.Background(), adapter, testEvent(models.EventCheckoutCompleted), "Purchase",
		&models.CredentialBundle{AccessToken: "t"}, models.EnvironmentLive)

	assert.False(t, out.Success)
	assert.Equal(t, models.ErrCodeMissingCredentials, out.ErrorCode)
}

func TestMetaAccessTokenRedacted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	adapter := &MetaAdapter{endpoint: srv.URL}
	out := NewSender(2*time.Second).Send(context.Background(), adapter, testEvent(models.EventCheckoutCompleted), "Purchase", metaCreds(), models.EnvironmentLive)

	assert.NotContains(t, out.RequestPayload, "meta-t0ken")
	assert.Contains(t, out.RequestPayload, "access_token=REDACTED")
}
