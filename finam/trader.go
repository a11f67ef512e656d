package finam

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/flabzik/ppp"
)

const DefaultAPIBase = "https://trade-api.finam.ru/public/api/v1/"

type Config struct {
	ConnectorURL string             // адрес локального шлюза, обязателен
	ClientID     string             // торговый код клиента
	Token        oauth2.TokenSource // токен Trade API, уходит в X-Api-Key
	APIBase      string             // по умолчанию DefaultAPIBase
	PollInterval time.Duration      // по умолчанию DefaultPollInterval
	RateLimit    rate.Limit         // запросов в секунду через шлюз, 0 без ограничения
	Transport    http.RoundTripper
	Gateway      Gateway // если задан, запросы идут через него, а не через HTTP клиент шлюза
	Clock        clock.Clock
}

// Брокер Finam Trade API: сверка состояния счёта и торговые операции
type Trader struct {
	cfg       Config
	gateway   Gateway
	sink      ppp.DataSink
	resolver  *resolver
	positions *positionDatum
	orders    *orderDatum
}

// NewTrader возвращает *ppp.ConnectionError, если конфигурация не позволяет работать с брокером
func NewTrader(cfg Config, catalog ppp.InstrumentCatalog, sink ppp.DataSink) (*Trader, error) {
	if cfg.ConnectorURL == "" {
		return nil, &ppp.ConnectionError{Reason: "не задан адрес шлюза"}
	}
	if cfg.ClientID == "" {
		return nil, &ppp.ConnectionError{Reason: "не задан торговый код клиента"}
	}
	if cfg.Token == nil {
		return nil, &ppp.ConnectionError{Reason: "не задан токен"}
	}
	if cfg.APIBase == "" {
		cfg.APIBase = DefaultAPIBase
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}

	gateway := cfg.Gateway
	if gateway == nil {
		client, err := NewClient(cfg.ConnectorURL, cfg.Transport, cfg.RateLimit)
		if err != nil {
			return nil, err
		}
		gateway = client
	}

	t := &Trader{
		cfg:      cfg,
		gateway:  gateway,
		sink:     sink,
		resolver: newResolver(catalog),
	}
	t.positions = newPositionDatum(t)
	t.orders = newOrderDatum(t)
	t.resolver.instrumentsArrived(catalog.All())
	return t, nil
}

// InstrumentsArrived дополняет индекс инструментов для сопоставления заявок
func (t *Trader) InstrumentsArrived(instruments []*ppp.Instrument) {
	t.resolver.instrumentsArrived(instruments)
}

// Datums источники данных брокера для диспетчера подписок
func (t *Trader) Datums() []ppp.Datum {
	return []ppp.Datum{t.positions, t.orders}
}

func (t *Trader) Resolve(securityCode string, market string) *ppp.Instrument {
	return t.resolver.position(securityCode, market)
}

func (t *Trader) Adopt(instrument *ppp.Instrument, options ppp.AdoptOptions) *ppp.Instrument {
	return t.resolver.adopt(instrument, options)
}

// Orders заявки последнего цикла опроса
func (t *Trader) Orders() []ppp.Order {
	return t.orders.current()
}

// Positions балансы и позиции последнего цикла опроса
func (t *Trader) Positions() []ppp.PositionSnapshot {
	return t.positions.current()
}

// OrdersErr ошибка последнего опроса заявок. Пустой снимок при ошибке не означает отсутствие заявок.
func (t *Trader) OrdersErr() error {
	return t.orders.Err()
}

func (t *Trader) PositionsErr() error {
	return t.positions.Err()
}

func (t *Trader) call(ctx context.Context, method string, path string, query url.Values, body any) (*Response, error) {
	token, err := t.cfg.Token.Token()
	if err != nil {
		return nil, errors.Wrap(err, "не смог получить токен")
	}
	req := &Request{
		Method: method,
		URL:    t.cfg.APIBase + path,
		Headers: map[string]string{
			"X-Api-Key": token.AccessToken,
		},
	}
	if len(query) > 0 {
		req.URL += "?" + query.Encode()
	}
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(err, "json.Marshal")
		}
		req.Body = string(b)
		req.Headers["Content-Type"] = "application/json"
	}
	return t.gateway.Do(ctx, req)
}

func (t *Trader) portfolio(ctx context.Context) (*portfolioDTO, error) {
	resp, err := t.call(ctx, http.MethodGet, "portfolio", url.Values{
		"ClientId":                  {t.cfg.ClientID},
		"Content.IncludeMoney":      {"true"},
		"Content.IncludePositions":  {"true"},
		"Content.IncludeMaxBuySell": {"true"},
	}, nil)
	if err != nil {
		return nil, err
	}
	// пустой портфель в ответ на ошибку закрыл бы все позиции
	if !resp.OK {
		return nil, venueError("portfolio", resp)
	}
	result := &portfolioDTO{}
	if len(resp.Data) > 0 {
		if err := json.Unmarshal(resp.Data, result); err != nil {
			return nil, errors.Wrap(err, "не смог разобрать портфель")
		}
	}
	return result, nil
}

func (t *Trader) fetchOrders(ctx context.Context) ([]orderDTO, error) {
	resp, err := t.call(ctx, http.MethodGet, "orders", url.Values{
		"ClientId":        {t.cfg.ClientID},
		"IncludeMatched":  {"true"},
		"IncludeCanceled": {"true"},
		"IncludeActive":   {"true"},
	}, nil)
	if err != nil {
		return nil, err
	}
	if !resp.OK {
		return nil, venueError("orders", resp)
	}
	result := &ordersDTO{}
	if len(resp.Data) > 0 {
		if err := json.Unmarshal(resp.Data, result); err != nil {
			return nil, errors.Wrap(err, "не смог разобрать заявки")
		}
	}
	return result.Orders, nil
}

func venueError(what string, resp *Response) error {
	if resp.Error != nil {
		return errors.Errorf("%s: статус %d, %s: %s", what, resp.Status, resp.Error.Code, resp.Error.Message)
	}
	return errors.Errorf("%s: статус %d", what, resp.Status)
}
