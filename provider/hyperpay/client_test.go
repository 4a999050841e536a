package hyperpay

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateCheckout_Success(t *testing.T) {
	gw := newFakeGateway(t)
	p, _ := newTestProvider(t, gw.URL(), nil)

	resp := p.CreateCheckout(context.Background(), map[string]string{
		"entityId":              testEntityID,
		"amount":                "10.00",
		"merchantTransactionId": "ORD1",
	})

	require.False(t, resp.IsSentinel())
	assert.Equal(t, "CHK123", resp.ID)
	assert.Equal(t, "000.200.100", resp.Result.Code)
	assert.NotNil(t, resp.Raw["result"])

	calls := gw.checkoutCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "10.00", calls[0].Get("amount"))
	assert.Equal(t, []string{"Bearer " + testAccessToken}, gw.auth)
}

func TestCreateCheckout_Sentinels(t *testing.T) {
	t.Run("http error without result", func(t *testing.T) {
		gw := newFakeGateway(t)
		gw.checkout = func(w http.ResponseWriter, _ *http.Request, _ url.Values) {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("<html>bad gateway</html>"))
		}
		p, _ := newTestProvider(t, gw.URL(), nil)

		resp := p.CreateCheckout(context.Background(), map[string]string{})
		assert.True(t, resp.IsSentinel())
		assert.Equal(t, CodeHTTPError, resp.Result.Code)
	})

	t.Run("undecodable body", func(t *testing.T) {
		gw := newFakeGateway(t)
		gw.checkout = func(w http.ResponseWriter, _ *http.Request, _ url.Values) {
			writeJSON(w, http.StatusOK, `{"id":`)
		}
		p, _ := newTestProvider(t, gw.URL(), nil)

		resp := p.CreateCheckout(context.Background(), map[string]string{})
		assert.True(t, resp.IsSentinel())
		assert.Equal(t, CodeUnexpectedError, resp.Result.Code)
	})

	t.Run("connection refused", func(t *testing.T) {
		gw := newFakeGateway(t)
		p, _ := newTestProvider(t, gw.URL(), nil)
		gw.server.Close()

		resp := p.CreateCheckout(context.Background(), map[string]string{})
		assert.True(t, resp.IsSentinel())
		assert.Equal(t, CodeConnectionError, resp.Result.Code)
	})

	t.Run("not initialized", func(t *testing.T) {
		resp := NewProvider(&recordingLogger{}, nil).CreateCheckout(context.Background(), nil)
		assert.True(t, resp.IsSentinel())
		assert.Equal(t, CodeUnexpectedError, resp.Result.Code)
	})
}

func TestCreateCheckout_RejectionBodyIsBusinessResponse(t *testing.T) {
	gw := newFakeGateway(t)
	gw.checkout = func(w http.ResponseWriter, _ *http.Request, _ url.Values) {
		writeJSON(w, http.StatusBadRequest, `{"result":{"code":"200.300.404","description":"invalid or missing parameter"}}`)
	}
	p, _ := newTestProvider(t, gw.URL(), nil)

	resp := p.CreateCheckout(context.Background(), map[string]string{})
	assert.False(t, resp.IsSentinel())
	assert.Empty(t, resp.ID)
	assert.Equal(t, "200.300.404", resp.Result.Code)
}

func TestGetStatus(t *testing.T) {
	gw := newFakeGateway(t)
	p, _ := newTestProvider(t, gw.URL(), nil)

	resp := p.GetStatus(context.Background(), "/v1/checkouts/CHK123/payment", MethodCard)
	require.False(t, resp.IsSentinel())
	assert.Equal(t, "ORD1", resp.MerchantTransactionID)
	assert.Equal(t, "000.100.110", resp.Result.Code)
	assert.Equal(t, testEntityID, gw.lastStatusQuery().Get("entityId"))

	resp = p.GetStatus(context.Background(), "/v1/checkouts/CHK123/payment", MethodMada)
	require.False(t, resp.IsSentinel())
	assert.Equal(t, testMadaEntityID, gw.lastStatusQuery().Get("entityId"))
}

func TestGetStatus_FailuresAreStatusSentinels(t *testing.T) {
	t.Run("server error", func(t *testing.T) {
		gw := newFakeGateway(t)
		gw.status = func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}
		p, _ := newTestProvider(t, gw.URL(), nil)

		resp := p.GetStatus(context.Background(), "/v1/checkouts/CHK123/payment", MethodCard)
		assert.True(t, resp.IsSentinel())
		assert.Equal(t, CodeStatusFailure, resp.Result.Code)
	})

	t.Run("connection refused", func(t *testing.T) {
		gw := newFakeGateway(t)
		p, _ := newTestProvider(t, gw.URL(), nil)
		gw.server.Close()

		resp := p.GetStatus(context.Background(), "/v1/checkouts/CHK123/payment", MethodCard)
		assert.True(t, resp.IsSentinel())
		assert.Equal(t, CodeStatusFailure, resp.Result.Code)
	})

	t.Run("missing entity", func(t *testing.T) {
		gw := newFakeGateway(t)
		p, _ := newTestProvider(t, gw.URL(), map[string]string{"madaEntityId": ""})

		resp := p.GetStatus(context.Background(), "/v1/checkouts/CHK123/payment", MethodMada)
		assert.True(t, resp.IsSentinel())
		assert.Equal(t, CodeStatusFailure, resp.Result.Code)
		assert.Zero(t, gw.statusCalls())
	})
}

func TestGetStatus_RejectionBodyIsBusinessResponse(t *testing.T) {
	gw := newFakeGateway(t)
	gw.status = func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusBadRequest, `{"merchantTransactionId":"ORD1","result":{"code":"100.396.101","description":"Cancelled by user"}}`)
	}
	p, _ := newTestProvider(t, gw.URL(), nil)

	resp := p.GetStatus(context.Background(), "/v1/checkouts/CHK123/payment", MethodCard)
	assert.False(t, resp.IsSentinel())
	assert.Equal(t, "100.396.101", resp.Result.Code)
}
