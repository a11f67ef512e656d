package finam

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/flabzik/ppp"
	"github.com/flabzik/ppp/catalog"
)

const testClientID = "C12345"

func increment(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

var (
	aaplUS   = &ppp.Instrument{Symbol: "AAPL~US", Exchange: ppp.ExchangeUS, ClassCode: "MCT", Lot: 1, MinPriceIncrement: increment("0"), Currency: "USD"}
	aaplSPBX = &ppp.Instrument{Symbol: "AAPL", Exchange: ppp.ExchangeSPBX, ClassCode: "SPBXM", Lot: 1, MinPriceIncrement: increment("0.01"), Currency: "USD"}
	sber     = &ppp.Instrument{Symbol: "SBER", Exchange: ppp.ExchangeMOEX, ClassCode: "TQBR", Lot: 10, MinPriceIncrement: increment("0.01"), Currency: "RUB"}
	astrMOEX = &ppp.Instrument{Symbol: "ASTR~MOEX", Exchange: ppp.ExchangeMOEX, ClassCode: "TQBR", Lot: 1, MinPriceIncrement: increment("0.05"), Currency: "RUB"}
	vtbr     = &ppp.Instrument{Symbol: "VTBR", Exchange: ppp.ExchangeMOEX, ClassCode: "TQBR", Lot: 10000, Currency: "RUB"}
	tcsUS    = &ppp.Instrument{Symbol: "TCS~US", Exchange: ppp.ExchangeUS, ClassCode: "MCT", Lot: 1, MinPriceIncrement: increment("0"), Currency: "USD"}
	gazp     = &ppp.Instrument{Symbol: "GAZP", Exchange: ppp.ExchangeMOEX, ClassCode: "TQBR", Lot: 10, MinPriceIncrement: increment("0.01"), NotSupported: true}
)

func testCatalog() *catalog.Catalog {
	return catalog.New(aaplUS, aaplSPBX, sber, astrMOEX, vtbr, tcsUS, gazp)
}

// Шлюз, отвечающий по заранее заданным ответам для пути запроса
type fakeGateway struct {
	mu        sync.Mutex
	requests  []*Request
	responses map[string]func(req *Request) (*Response, error)
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{responses: make(map[string]func(req *Request) (*Response, error))}
}

func (g *fakeGateway) on(method string, path string, fn func(req *Request) (*Response, error)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.responses[method+" "+path] = fn
}

func (g *fakeGateway) reply(method string, path string, resp *Response) {
	g.on(method, path, func(*Request) (*Response, error) { return resp, nil })
}

func (g *fakeGateway) Do(ctx context.Context, req *Request) (*Response, error) {
	u, err := url.Parse(req.URL)
	if err != nil {
		return nil, err
	}
	path := strings.TrimPrefix(u.Path, "/public/api/v1/")

	g.mu.Lock()
	g.requests = append(g.requests, req)
	fn, ok := g.responses[req.Method+" "+path]
	g.mu.Unlock()

	if !ok {
		return nil, errors.Errorf("нет ответа для %s %s", req.Method, path)
	}
	return fn(req)
}

func (g *fakeGateway) sent(method string, path string) []*Request {
	g.mu.Lock()
	defer g.mu.Unlock()
	var result []*Request
	for _, req := range g.requests {
		u, _ := url.Parse(req.URL)
		if req.Method == method && strings.TrimPrefix(u.Path, "/public/api/v1/") == path {
			result = append(result, req)
		}
	}
	return result
}

func (g *fakeGateway) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.requests)
}

func okResponse(t *testing.T, data any) *Response {
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return &Response{OK: true, Status: 200, Data: raw}
}

func errorResponse(status int, message string) *Response {
	return &Response{
		Status: status,
		Body:   []byte(`{"error":{"code":"BadRequest","message":"` + message + `"}}`),
		Error:  &ppp.VenueError{Code: "BadRequest", Message: message},
	}
}

// Приёмник, вычисляющий значения всех видов данных источника для заданных атрибутов
type recorder struct {
	attrs ppp.Attributes

	mu      sync.Mutex
	updates []ppp.Update
}

func (r *recorder) DataArrived(source ppp.Datum, data any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, kind := range source.Kinds() {
		if !source.Filter(data, r.attrs, kind) {
			continue
		}
		if value, ok := source.Value(kind, data); ok {
			r.updates = append(r.updates, ppp.Update{Kind: kind, Key: source.KeyFor(data), Value: value})
		}
	}
}

func (r *recorder) take(kind ppp.DatumKind) []ppp.Update {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result, rest []ppp.Update
	for _, u := range r.updates {
		if u.Kind == kind {
			result = append(result, u)
		} else {
			rest = append(rest, u)
		}
	}
	r.updates = rest
	return result
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = nil
}

func staticToken(token string) oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
}

func newTestTrader(t *testing.T, gw Gateway, sink ppp.DataSink) (*Trader, *clock.Mock) {
	mock := clock.NewMock()
	trader, err := NewTrader(Config{
		ConnectorURL: "http://localhost:9090/",
		ClientID:     testClientID,
		Token:        staticToken("secret"),
		Gateway:      gw,
		Clock:        mock,
	}, testCatalog(), sink)
	require.NoError(t, err)
	return trader, mock
}

// runCycle выполняет очередной цикл опроса, не дожидаясь таймера
func runCycle(lp *loop) {
	lp.mu.Lock()
	token := lp.token
	lp.mu.Unlock()
	lp.cycle(context.Background(), token)
}
