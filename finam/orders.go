package finam

import (
	"context"
	"strconv"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/flabzik/ppp"
)

var _ ppp.Datum = (*orderDatum)(nil)

// соответствие статусов площадки каноническим
var orderStatuses = map[string]ppp.OrderStatus{
	venueStatusCancelled: ppp.OrderStatusCanceled,
	venueStatusActive:    ppp.OrderStatusWorking,
	venueStatusMatched:   ppp.OrderStatusFilled,
	venueStatusNone:      ppp.OrderStatusInactive,
	venueStatusUnknown:   ppp.OrderStatusUnspecified,
}

// OrderStatus переводит статус площадки в канонический.
// Для неизвестного статуса возвращает OrderStatusUndefined и false.
func OrderStatus(venueStatus string) (ppp.OrderStatus, bool) {
	status, ok := orderStatuses[venueStatus]
	return status, ok
}

// Сверка заявок и ленты исполнений
type orderDatum struct {
	*loop
	trader     *Trader
	transforms map[ppp.DatumKind]func(*orderDTO) (any, bool)

	// под loop.mu
	orders  []orderDTO
	unknown map[string]bool // заявки с нераспознанным статусом, о которых уже предупредили
}

func newOrderDatum(t *Trader) *orderDatum {
	d := &orderDatum{
		loop:   newLoop("orders", t.cfg.PollInterval, t.cfg.Clock),
		trader: t,
	}
	d.loop.step = d.step
	d.loop.reset = d.reset
	d.transforms = map[ppp.DatumKind]func(*orderDTO) (any, bool){
		ppp.KindRealOrder:    d.order,
		ppp.KindTimelineItem: d.timelineItem,
	}
	return d
}

func (d *orderDatum) reset() {
	d.orders = nil
	d.unknown = make(map[string]bool)
}

func (d *orderDatum) step(ctx context.Context, token uint64) error {
	orders, err := d.trader.fetchOrders(ctx)
	if err != nil {
		return err
	}
	if !d.lock(token) {
		return nil
	}
	defer d.mu.Unlock()

	d.orders = orders
	for i := range orders {
		o := orders[i]
		if _, ok := OrderStatus(o.Status); !ok && !d.unknown[o.key()] {
			d.unknown[o.key()] = true
			unknownStatusMetric.WithLabelValues(o.Status).Inc()
			l.Warn("неизвестный статус заявки",
				zap.String("transactionId", o.key()),
				zap.String("status", o.Status),
			)
		}
		d.trader.sink.DataArrived(d, &o)
	}
	return nil
}

// snapshot копия последнего списка заявок
func (d *orderDatum) snapshot() []orderDTO {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]orderDTO(nil), d.orders...)
}

func (d *orderDatum) Kinds() []ppp.DatumKind {
	return []ppp.DatumKind{ppp.KindRealOrder, ppp.KindTimelineItem}
}

func (d *orderDatum) Filter(data any, _ ppp.Attributes, kind ppp.DatumKind) bool {
	o, ok := data.(*orderDTO)
	if !ok {
		return false
	}
	switch kind {
	case ppp.KindRealOrder:
		// снятые и исполненные тоже нужны, иначе подписчик не узнает об их исчезновении
		return true
	case ppp.KindTimelineItem:
		return o.Status == venueStatusMatched
	}
	return false
}

func (d *orderDatum) KeyFor(data any) string {
	if o, ok := data.(*orderDTO); ok {
		return o.key()
	}
	return ""
}

func (d *orderDatum) Value(kind ppp.DatumKind, data any) (any, bool) {
	o, ok := data.(*orderDTO)
	if !ok {
		return nil, false
	}
	transform, ok := d.transforms[kind]
	if !ok {
		return nil, false
	}
	return transform(o)
}

func (d *orderDatum) toOrder(o *orderDTO) (ppp.Order, bool) {
	instrument := d.trader.resolver.order(o.SecurityBoard, o.SecurityCode)
	if instrument == nil {
		return ppp.Order{}, false
	}
	status, _ := OrderStatus(o.Status)
	return ppp.Order{
		Instrument: instrument,
		OrderID:    strconv.FormatInt(o.OrderNo, 10),
		ExtraID:    o.key(),
		Symbol:     instrument.Symbol,
		Exchange:   instrument.Exchange,
		OrderType:  ppp.OrderTypeLimit,
		Side:       o.side(),
		Status:     status,
		PlacedAt:   o.CreatedAt.UTC(),
		Quantity:   o.Quantity,
		Filled:     o.Quantity.Sub(o.Balance),
		Price:      o.Price,
	}, true
}

func (d *orderDatum) order(o *orderDTO) (any, bool) {
	order, ok := d.toOrder(o)
	if !ok {
		return nil, false
	}
	return order, true
}

func (d *orderDatum) timelineItem(o *orderDTO) (any, bool) {
	instrument := d.trader.resolver.order(o.SecurityBoard, o.SecurityCode)
	if instrument == nil {
		return nil, false
	}
	operation := ppp.OperationTypeSell
	if o.BuySell == venueBuy {
		operation = ppp.OperationTypeBuy
	}
	orderNo := strconv.FormatInt(o.OrderNo, 10)
	return ppp.TimelineItem{
		Instrument:      instrument,
		OperationID:     orderNo,
		ParentID:        orderNo,
		AccruedInterest: decimal.Zero,
		Commission:      decimal.Zero,
		Symbol:          instrument.Symbol,
		Type:            operation,
		Exchange:        instrument.Exchange,
		Quantity:        o.Quantity,
		Price:           o.Price,
		CreatedAt:       o.CreatedAt.UTC(),
	}, true
}

// current заявки последнего цикла в каноническом виде, без нераспознанных инструментов
func (d *orderDatum) current() []ppp.Order {
	orders := d.snapshot()
	result := make([]ppp.Order, 0, len(orders))
	for i := range orders {
		if order, ok := d.toOrder(&orders[i]); ok {
			result = append(result, order)
		}
	}
	return result
}
