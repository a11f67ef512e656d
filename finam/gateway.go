package finam

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/flabzik/ppp"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const appName = "github.com/flabzik/ppp"

// Запрос к площадке, который шлюз передаёт как есть
type Request struct {
	Method  string            `json:"method,omitempty"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers"`
	Body    string            `json:"body,omitempty"`
}

// Ответ площадки, прошедший через шлюз
type Response struct {
	OK     bool
	Status int
	Body   []byte
	Data   jsoniter.RawMessage
	Error  *ppp.VenueError
}

// Payload возвращает ответ площадки целиком для TradingError
func (r *Response) Payload() *ppp.ErrorPayload {
	return &ppp.ErrorPayload{Error: r.Error}
}

// Шлюз: пересылает запросы на площадку и возвращает её ответ
type Gateway interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

var _ Gateway = (*Client)(nil)

// HTTP клиент локального шлюза, запросы уходят на <connectorBase>/fetch
type Client struct {
	fetchURL string
	http     *http.Client
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

// NewClient проверяет адрес шлюза и собирает цепочку обработчиков запросов.
// limit == 0 отключает ограничение частоты запросов.
func NewClient(connectorURL string, base http.RoundTripper, limit rate.Limit) (*Client, error) {
	if connectorURL == "" {
		return nil, &ppp.ConnectionError{Reason: "не задан адрес шлюза"}
	}
	u, err := url.Parse(connectorURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, &ppp.ConnectionError{Reason: "неверный адрес шлюза " + connectorURL}
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	u.Path += "fetch"

	if base == nil {
		base = http.DefaultTransport
	}
	var transport http.RoundTripper = promhttp.InstrumentRoundTripperCounter(gatewayRequestsMetric, base)
	transport = withAppName(transport)
	if limit > 0 {
		transport = withLimit(rate.NewLimiter(limit, 1), transport)
	}

	return &Client{
		fetchURL: u.String(),
		http:     &http.Client{Transport: transport, Timeout: 30 * time.Second},
	}, nil
}

func withAppName(next http.RoundTripper) http.RoundTripper {
	return roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		r = r.Clone(r.Context())
		r.Header.Set("X-App-Name", appName)
		r.Header.Set("X-Request-Id", uuid.New().String())
		return next.RoundTrip(r)
	})
}

func withLimit(limiter *rate.Limiter, next http.RoundTripper) http.RoundTripper {
	return roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		if err := limiter.Wait(r.Context()); err != nil {
			l.Debug("не смог дождаться ratelimit", zap.String("url", r.URL.String()), zap.Error(err))
			return nil, err
		}
		return next.RoundTrip(r)
	})
}

type envelope struct {
	Data  jsoniter.RawMessage `json:"data"`
	Error *ppp.VenueError     `json:"error"`
}

func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "json.Marshal")
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.fetchURL, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "http.NewRequest")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", req.Method, req.URL)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "не смог прочитать ответ шлюза")
	}

	resp := &Response{
		OK:     httpResp.StatusCode >= 200 && httpResp.StatusCode < 300,
		Status: httpResp.StatusCode,
		Body:   raw,
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.OK {
			return nil, errors.Wrapf(err, "ответ площадки не json, статус %d", resp.Status)
		}
		l.Debug("ответ с ошибкой не json", zap.Int("status", resp.Status), zap.ByteString("body", raw))
		return resp, nil
	}
	resp.Data = env.Data
	resp.Error = env.Error
	return resp, nil
}
