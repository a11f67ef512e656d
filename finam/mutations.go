package finam

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/flabzik/ppp"
)

const orderPropertyPutInQueue = "PutInQueue"

// PlaceLimitOrder выставляет заявку и возвращает идентификатор транзакции.
// Нулевая цена означает рыночную заявку.
func (t *Trader) PlaceLimitOrder(ctx context.Context, instrument *ppp.Instrument, side ppp.Side, quantity int64, price decimal.Decimal) (string, error) {
	if instrument == nil {
		return "", errors.New("не задан инструмент")
	}
	instrument, err := t.tradable(instrument)
	if err != nil {
		return "", err
	}
	payload := &newOrderDTO{
		ClientID:      t.cfg.ClientID,
		SecurityBoard: instrument.ClassCode,
		SecurityCode:  instrument.VenueCode(),
		BuySell:       venueSide(side),
		Quantity:      quantity,
		UseCredit:     true,
		Property:      orderPropertyPutInQueue,
	}
	if !price.IsZero() {
		fixed := jsonDecimal(ppp.FixPrice(instrument, price))
		payload.Price = &fixed
	}

	resp, err := t.call(ctx, http.MethodPost, "orders", nil, payload)
	if err != nil {
		return "", err
	}
	if !resp.OK {
		return "", &ppp.TradingError{Details: resp.Payload(), Raw: resp.Body}
	}
	placed := &placedOrderDTO{}
	if len(resp.Data) > 0 {
		if err := json.Unmarshal(resp.Data, placed); err != nil {
			l.Warn("не смог разобрать ответ на выставление заявки", zap.Error(err))
		}
	}
	l.Info("заявка выставлена",
		zap.String("symbol", instrument.Symbol),
		zap.String("side", string(side)),
		zap.Int64("quantity", quantity),
		zap.String("price", price.String()),
	)
	return strconv.FormatInt(placed.TransactionID, 10), nil
}

func (t *Trader) PlaceMarketOrder(ctx context.Context, instrument *ppp.Instrument, side ppp.Side, quantity int64) (string, error) {
	return t.PlaceLimitOrder(ctx, instrument, side, quantity, decimal.Zero)
}

// CancelRealOrder снимает заявку по идентификатору транзакции
func (t *Trader) CancelRealOrder(ctx context.Context, transactionID string) error {
	resp, err := t.call(ctx, http.MethodDelete, "orders/", url.Values{
		"ClientId":      {t.cfg.ClientID},
		"TransactionId": {transactionID},
	}, nil)
	if err != nil {
		return err
	}
	if !resp.OK {
		te := &ppp.TradingError{Raw: resp.Body}
		if resp.Error != nil {
			te.Message = resp.Error.Message
		}
		return te
	}
	l.Info("заявка снята", zap.String("transactionId", transactionID))
	return nil
}

// tradable приводит инструмент вызывающего к тому, каким его видит брокер.
// nil означает любой инструмент и остаётся nil.
func (t *Trader) tradable(instrument *ppp.Instrument) (*ppp.Instrument, error) {
	if instrument == nil {
		return nil, nil
	}
	adopted := t.Adopt(instrument, ppp.AdoptOptions{})
	if adopted == nil {
		return nil, errors.Errorf("брокер не торгует инструментом %s", instrument.Symbol)
	}
	return adopted, nil
}

// активные заявки последнего цикла опроса с известным инструментом
func (t *Trader) working(instrument *ppp.Instrument, side ppp.Side) []workingOrder {
	var result []workingOrder
	for _, o := range t.orders.snapshot() {
		if status, _ := OrderStatus(o.Status); status != ppp.OrderStatusWorking {
			continue
		}
		orderInstrument := t.resolver.order(o.SecurityBoard, o.SecurityCode)
		if orderInstrument == nil {
			continue
		}
		if instrument != nil && !ppp.InstrumentsAreEqual(instrument, orderInstrument) {
			continue
		}
		if !side.Matches(o.side()) {
			continue
		}
		result = append(result, workingOrder{dto: o, instrument: orderInstrument})
	}
	return result
}

type workingOrder struct {
	dto        orderDTO
	instrument *ppp.Instrument
}

// CancelAllRealOrders снимает все активные заявки, подходящие под инструмент (nil - любой)
// и направление. Ошибки отдельных заявок не прерывают снятие остальных.
func (t *Trader) CancelAllRealOrders(ctx context.Context, instrument *ppp.Instrument, filter ppp.Side) error {
	instrument, err := t.tradable(instrument)
	if err != nil {
		return err
	}
	var result error
	for _, o := range t.working(instrument, filter) {
		if err := t.CancelRealOrder(ctx, o.dto.key()); err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "заявка %s", o.dto.key()))
		}
	}
	return result
}

// ModifyRealOrders сдвигает цену активных заявок на steps шагов цены: снимает заявку
// и выставляет неисполненный остаток по новой цене. Ошибка после снятия не повторяется.
func (t *Trader) ModifyRealOrders(ctx context.Context, instrument *ppp.Instrument, side ppp.Side, steps int64) error {
	instrument, err := t.tradable(instrument)
	if err != nil {
		return err
	}
	for _, o := range t.working(instrument, side) {
		if !o.instrument.HasPriceIncrement() {
			continue
		}
		increment := o.instrument.MinPriceIncrement.Decimal
		if o.instrument.Exchange == ppp.ExchangeUS {
			increment = ppp.USPriceIncrement(o.dto.Price)
		}
		price := ppp.FixPrice(o.instrument, o.dto.Price.Add(increment.Mul(decimal.NewFromInt(steps))))

		if err := t.CancelRealOrder(ctx, o.dto.key()); err != nil {
			return errors.Wrapf(err, "снятие заявки %s", o.dto.key())
		}
		if _, err := t.PlaceLimitOrder(ctx, o.instrument, o.dto.side(), o.dto.Balance.IntPart(), price); err != nil {
			l.Error("заявка снята, но не выставлена заново",
				zap.String("transactionId", o.dto.key()),
				zap.String("price", price.String()),
				zap.Error(err),
			)
			return errors.Wrapf(err, "выставление заявки взамен %s", o.dto.key())
		}
	}
	return nil
}
