package finam

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flabzik/ppp"
)

type received struct {
	path    string
	header  http.Header
	request Request
}

func newConnector(t *testing.T, status int, body string) (*httptest.Server, chan received) {
	ch := make(chan received, 10)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		var req Request
		assert.NoError(t, json.Unmarshal(raw, &req))
		ch <- received{path: r.URL.Path, header: r.Header.Clone(), request: req}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, ch
}

func TestClientDo(t *testing.T) {
	srv, ch := newConnector(t, http.StatusOK, `{"data": {"clientId": "C12345"}}`)
	client, err := NewClient(srv.URL, nil, 0)
	require.NoError(t, err)

	resp, err := client.Do(context.Background(), &Request{
		Method:  http.MethodPost,
		URL:     DefaultAPIBase + "orders",
		Headers: map[string]string{"X-Api-Key": "secret"},
		Body:    `{"quantity":1}`,
	})
	require.NoError(t, err)
	assert.True(t, resp.OK)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.JSONEq(t, `{"clientId": "C12345"}`, string(resp.Data))
	assert.Nil(t, resp.Error)

	got := <-ch
	assert.Equal(t, "/fetch", got.path)
	assert.Equal(t, appName, got.header.Get("X-App-Name"))
	assert.NotEmpty(t, got.header.Get("X-Request-Id"))
	assert.Equal(t, "application/json", got.header.Get("Content-Type"))
	assert.Equal(t, http.MethodPost, got.request.Method)
	assert.Equal(t, DefaultAPIBase+"orders", got.request.URL)
	assert.Equal(t, "secret", got.request.Headers["X-Api-Key"])
	assert.Equal(t, `{"quantity":1}`, got.request.Body)
}

func TestClientFetchPath(t *testing.T) {
	srv, ch := newConnector(t, http.StatusOK, `{"data": {}}`)
	for _, base := range []string{srv.URL + "/connector", srv.URL + "/connector/"} {
		client, err := NewClient(base, nil, 10)
		require.NoError(t, err)
		_, err = client.Do(context.Background(), &Request{Method: http.MethodGet, URL: DefaultAPIBase + "portfolio"})
		require.NoError(t, err)
		assert.Equal(t, "/connector/fetch", (<-ch).path, base)
	}
}

func TestClientVenueError(t *testing.T) {
	srv, _ := newConnector(t, http.StatusBadRequest, `{"error": {"code": "BadRequest", "message": "Money shortage", "data": {"reason": "x"}}}`)
	client, err := NewClient(srv.URL, nil, 0)
	require.NoError(t, err)

	resp, err := client.Do(context.Background(), &Request{Method: http.MethodPost, URL: DefaultAPIBase + "orders"})
	require.NoError(t, err)
	assert.False(t, resp.OK)
	assert.Equal(t, http.StatusBadRequest, resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "BadRequest", resp.Error.Code)
	assert.Equal(t, "Money shortage", resp.Error.Message)
	assert.Equal(t, "x", resp.Error.Data["reason"])

	te := &ppp.TradingError{Details: resp.Payload(), Raw: resp.Body}
	assert.Equal(t, ppp.ErrorCodeInsufficientFunds, te.Code())
}

func TestClientNotJSON(t *testing.T) {
	srv, _ := newConnector(t, http.StatusBadGateway, `bad gateway`)
	client, err := NewClient(srv.URL, nil, 0)
	require.NoError(t, err)

	// ответ с ошибкой возвращается как есть
	resp, err := client.Do(context.Background(), &Request{Method: http.MethodGet, URL: DefaultAPIBase + "orders"})
	require.NoError(t, err)
	assert.False(t, resp.OK)
	assert.Equal(t, "bad gateway", string(resp.Body))
	assert.Nil(t, resp.Error)

	srv, _ = newConnector(t, http.StatusOK, `<html>`)
	client, err = NewClient(srv.URL, nil, 0)
	require.NoError(t, err)
	_, err = client.Do(context.Background(), &Request{Method: http.MethodGet, URL: DefaultAPIBase + "orders"})
	assert.Error(t, err)
}

func TestNewClientConnectionError(t *testing.T) {
	for _, connector := range []string{"", "localhost:9090", "/fetch", "://"} {
		_, err := NewClient(connector, nil, 0)
		var ce *ppp.ConnectionError
		assert.ErrorAs(t, err, &ce, connector)
	}
}

func TestNewTraderConnectionError(t *testing.T) {
	valid := func() Config {
		return Config{
			ConnectorURL: "http://localhost:9090",
			ClientID:     testClientID,
			Token:        staticToken("secret"),
		}
	}
	tests := map[string]func(*Config){
		"нет шлюза":     func(c *Config) { c.ConnectorURL = "" },
		"неверный шлюз": func(c *Config) { c.ConnectorURL = "localhost" },
		"нет кода":      func(c *Config) { c.ClientID = "" },
		"нет токена":    func(c *Config) { c.Token = nil },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := valid()
			mutate(&cfg)
			_, err := NewTrader(cfg, testCatalog(), &recorder{})
			var ce *ppp.ConnectionError
			require.ErrorAs(t, err, &ce)
			assert.NotEmpty(t, ce.Reason)
		})
	}

	trader, err := NewTrader(valid(), testCatalog(), &recorder{})
	require.NoError(t, err)
	assert.Len(t, trader.Datums(), 2)
}
