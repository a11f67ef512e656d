package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/flabzik/ppp"
	"github.com/flabzik/ppp/catalog"
	"github.com/flabzik/ppp/datum"
	"github.com/flabzik/ppp/finam"
)

var (
	sber     = &ppp.Instrument{Symbol: "SBER", Exchange: ppp.ExchangeMOEX, ClassCode: "TQBR", Lot: 10}
	aaplUS   = &ppp.Instrument{Symbol: "AAPL~US", Exchange: ppp.ExchangeUS, ClassCode: "MCT", Lot: 1}
	aaplSPBX = &ppp.Instrument{Symbol: "AAPL", Exchange: ppp.ExchangeSPBX, ClassCode: "SPBXM", Lot: 1}
	five     = &ppp.Instrument{Symbol: "FIVE", Exchange: ppp.ExchangeMOEX}
)

type call struct {
	method     string
	instrument *ppp.Instrument
	side       ppp.Side
	quantity   int64
	price      decimal.Decimal
	arg        string
}

type fakeBroker struct {
	mu    sync.Mutex
	calls []call
	err   error
}

// AAPL торгуется через американский псевдоним, FIVE брокер не знает
func (b *fakeBroker) Adopt(instrument *ppp.Instrument, _ ppp.AdoptOptions) *ppp.Instrument {
	switch instrument {
	case aaplSPBX:
		return aaplUS
	case five:
		return nil
	}
	return instrument
}

func (b *fakeBroker) record(c call) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, c)
	return b.err
}

func (b *fakeBroker) fail(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.err = err
}

func (b *fakeBroker) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.calls)
}

func (b *fakeBroker) last() call {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[len(b.calls)-1]
}

func (b *fakeBroker) Orders() []ppp.Order {
	return []ppp.Order{{Instrument: sber, ExtraID: "7", Symbol: "SBER", Side: ppp.SideBuy, Status: ppp.OrderStatusWorking}}
}

func (b *fakeBroker) Positions() []ppp.PositionSnapshot {
	return []ppp.PositionSnapshot{{Symbol: "RUB", IsBalance: true, Size: decimal.NewFromInt(100)}}
}

func (b *fakeBroker) PlaceLimitOrder(_ context.Context, instrument *ppp.Instrument, side ppp.Side, quantity int64, price decimal.Decimal) (string, error) {
	if err := b.record(call{method: "place", instrument: instrument, side: side, quantity: quantity, price: price}); err != nil {
		return "", err
	}
	return "900", nil
}

func (b *fakeBroker) CancelRealOrder(_ context.Context, transactionID string) error {
	return b.record(call{method: "cancel", arg: transactionID})
}

func (b *fakeBroker) CancelAllRealOrders(_ context.Context, instrument *ppp.Instrument, filter ppp.Side) error {
	return b.record(call{method: "cancel-all", instrument: instrument, side: filter})
}

func (b *fakeBroker) ModifyRealOrders(_ context.Context, instrument *ppp.Instrument, side ppp.Side, steps int64) error {
	return b.record(call{method: "modify", instrument: instrument, side: side, quantity: steps})
}

func (b *fakeBroker) HistoricalCandles(_ context.Context, instrument *ppp.Instrument, tf ppp.Timeframe, cursor string) (*finam.CandlesPage, error) {
	err := b.record(call{method: "candles", instrument: instrument, arg: string(tf.Unit) + cursor, quantity: int64(tf.Value)})
	return &finam.CandlesPage{Cursor: "c"}, err
}

func newTestServer(t *testing.T, subscriber Subscriber) (*httptest.Server, *fakeBroker) {
	broker := &fakeBroker{}
	srv := httptest.NewServer(NewServer(broker, subscriber, catalog.New(sber, aaplUS, aaplSPBX, five)).Handler())
	t.Cleanup(srv.Close)
	return srv, broker
}

func do(t *testing.T, method string, url string, body string) (*http.Response, string) {
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(raw)
}

func TestSnapshots(t *testing.T) {
	srv, _ := newTestServer(t, datum.New(0))

	resp, body := do(t, http.MethodGet, srv.URL+"/orders", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Contains(t, body, `"extraId":"7"`)

	resp, body = do(t, http.MethodGet, srv.URL+"/positions", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"isBalance":true`)
}

func TestPlaceOrder(t *testing.T) {
	srv, broker := newTestServer(t, datum.New(0))

	resp, body := do(t, http.MethodPost, srv.URL+"/orders", `{"symbol": "SBER", "side": "buy", "quantity": 2, "price": "250.1"}`)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.JSONEq(t, `{"transactionId": "900"}`, body)

	got := broker.last()
	assert.Same(t, sber, got.instrument)
	assert.Equal(t, ppp.SideBuy, got.side)
	assert.Equal(t, int64(2), got.quantity)
	assert.Equal(t, "250.1", got.price.String())
}

func TestPlaceOrderBadRequest(t *testing.T) {
	srv, broker := newTestServer(t, datum.New(0))

	tests := map[string]struct {
		body   string
		status int
	}{
		"не json":            {`{`, http.StatusBadRequest},
		"без количества":     {`{"symbol": "SBER", "side": "buy"}`, http.StatusBadRequest},
		"направление all":    {`{"symbol": "SBER", "side": "all", "quantity": 1}`, http.StatusBadRequest},
		"неизвестный символ": {`{"symbol": "ZZZZ", "side": "buy", "quantity": 1}`, http.StatusNotFound},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			resp, _ := do(t, http.MethodPost, srv.URL+"/orders", tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
	assert.Zero(t, broker.count())
}

func TestTradingErrorResponse(t *testing.T) {
	srv, broker := newTestServer(t, datum.New(0))
	broker.fail(errors.Wrap(&ppp.TradingError{Message: "Trading on the instrument is not available"}, "заявка 7"))

	resp, body := do(t, http.MethodDelete, srv.URL+"/orders/7", "")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, body, `"code":"E_INSTRUMENT_NOT_TRADEABLE"`)
	assert.Equal(t, "7", broker.last().arg)

	broker.fail(errors.New("connection refused"))
	resp, body = do(t, http.MethodDelete, srv.URL+"/orders/8", "")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.NotContains(t, body, `"code"`)
}

func TestCancelAllAndModify(t *testing.T) {
	srv, broker := newTestServer(t, datum.New(0))

	resp, _ := do(t, http.MethodPost, srv.URL+"/orders/cancel-all", `{}`)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	got := broker.last()
	assert.Equal(t, "cancel-all", got.method)
	assert.Nil(t, got.instrument)
	assert.Equal(t, ppp.SideAll, got.side)

	resp, _ = do(t, http.MethodPost, srv.URL+"/orders/modify", `{"symbol": "SBER", "side": "sell", "steps": -3}`)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	got = broker.last()
	assert.Equal(t, "modify", got.method)
	assert.Same(t, sber, got.instrument)
	assert.Equal(t, ppp.SideSell, got.side)
	assert.Equal(t, int64(-3), got.quantity)

	resp, _ = do(t, http.MethodPost, srv.URL+"/orders/modify", `{"side": "sideways"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetCandles(t *testing.T) {
	srv, broker := newTestServer(t, datum.New(0))

	resp, body := do(t, http.MethodGet, srv.URL+"/candles?symbol=SBER&unit=min&value=5&cursor=x", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"cursor":"c"`)
	got := broker.last()
	assert.Equal(t, "minx", got.arg)
	assert.Equal(t, int64(5), got.quantity)

	resp, _ = do(t, http.MethodGet, srv.URL+"/candles?unit=min", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, http.MethodGet, srv.URL+"/candles?symbol=SBER&value=five", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// Источник позиций, который отдаёт один баланс при первой подписке
type balanceDatum struct {
	sink ppp.DataSink
	mu   sync.Mutex
	refs int
}

func (b *balanceDatum) Kinds() []ppp.DatumKind { return []ppp.DatumKind{ppp.KindPositionSize} }

func (b *balanceDatum) AddReference(context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refs++
	if b.refs == 1 {
		b.sink.DataArrived(b, "RUB")
		b.sink.DataArrived(b, "USD")
	}
}

func (b *balanceDatum) RemoveReference() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refs--
}

func (b *balanceDatum) references() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.refs
}

func (b *balanceDatum) Filter(data any, attrs ppp.Attributes, _ ppp.DatumKind) bool {
	return attrs.Balance == "" || attrs.Balance == data
}

func (b *balanceDatum) KeyFor(data any) string { return data.(string) }

func (b *balanceDatum) Value(_ ppp.DatumKind, _ any) (any, bool) { return 100, true }

func TestStream(t *testing.T) {
	dispatcher := datum.New(0)
	source := &balanceDatum{sink: dispatcher}
	dispatcher.Register(source)
	srv, _ := newTestServer(t, dispatcher)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/stream?kind=POSITION_SIZE&balance=USD"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind": "POSITION_SIZE", "key": "USD", "value": 100}`, string(msg))
	assert.Equal(t, 1, source.references())

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool {
		return source.references() == 0
	}, 5*time.Second, 10*time.Millisecond, "подписка снимается вместе с соединением")
}

func TestStreamBadRequest(t *testing.T) {
	srv, _ := newTestServer(t, datum.New(0))

	resp, _ := do(t, http.MethodGet, srv.URL+"/stream", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, http.MethodGet, srv.URL+"/stream?kind=POSITION&symbol=ZZZZ", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// Подписчик, который запоминает атрибуты подписок
type recordingSubscriber struct {
	*datum.Dispatcher

	mu    sync.Mutex
	attrs []ppp.Attributes
}

func (r *recordingSubscriber) Subscribe(ctx context.Context, kind ppp.DatumKind, attrs ppp.Attributes) (*datum.Subscription, error) {
	r.mu.Lock()
	r.attrs = append(r.attrs, attrs)
	r.mu.Unlock()
	return r.Dispatcher.Subscribe(ctx, kind, attrs)
}

func (r *recordingSubscriber) subscribed() []ppp.Attributes {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ppp.Attributes(nil), r.attrs...)
}

func TestStreamAdoptsInstrument(t *testing.T) {
	subscriber := &recordingSubscriber{Dispatcher: datum.New(0)}
	srv, _ := newTestServer(t, subscriber)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/stream?kind=POSITION&symbol=AAPL"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		return len(subscriber.subscribed()) == 1
	}, 5*time.Second, 10*time.Millisecond)
	assert.Same(t, aaplUS, subscriber.subscribed()[0].Instrument, "подписка идёт на инструмент брокера")

	resp, _ := do(t, http.MethodGet, srv.URL+"/stream?kind=POSITION&symbol=FIVE", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Len(t, subscriber.subscribed(), 1)
}

func TestStreamDispatcherClosed(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	previous := l
	SetLogger(zap.New(core))
	t.Cleanup(func() { SetLogger(previous) })

	dispatcher := datum.New(0)
	source := &balanceDatum{sink: dispatcher}
	dispatcher.Register(source)
	srv, _ := newTestServer(t, dispatcher)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/stream?kind=POSITION_SIZE&balance=RUB"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err = conn.ReadMessage()
	require.NoError(t, err)

	// остановка снимает подписки раньше, чем закрывается соединение
	require.NoError(t, dispatcher.Close())
	_, _, err = conn.ReadMessage()
	require.Error(t, err)

	for _, entry := range logs.All() {
		assert.True(t, entry.Level < zapcore.DPanicLevel, entry.Message)
	}
	assert.Equal(t, 1, logs.FilterMessage("подписка уже снята").Len())
}
