package finam

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/flabzik/ppp"
)

var _ ppp.Datum = (*positionDatum)(nil)

// Сырые данные позиции или баланса, которые получает приёмник
type positionData struct {
	isBalance bool
	balance   *ppp.Money // сумма всех денежных записей валюты за цикл
	position  positionDTO
}

// Сверка позиций и денежных балансов счёта
type positionDatum struct {
	*loop
	trader     *Trader
	transforms map[ppp.DatumKind]func(*positionData) (any, bool)

	// под loop.mu
	positions map[string]positionDTO
	balances  []*ppp.Money
}

func newPositionDatum(t *Trader) *positionDatum {
	d := &positionDatum{
		loop:   newLoop("positions", t.cfg.PollInterval, t.cfg.Clock),
		trader: t,
	}
	d.loop.step = d.step
	d.loop.reset = d.reset
	d.transforms = map[ppp.DatumKind]func(*positionData) (any, bool){
		ppp.KindPosition:        d.snapshot,
		ppp.KindPositionSize:    d.size,
		ppp.KindPositionAverage: d.average,
	}
	return d
}

func (d *positionDatum) reset() {
	d.positions = make(map[string]positionDTO)
	d.balances = nil
}

func (d *positionDatum) step(ctx context.Context, token uint64) error {
	portfolio, err := d.trader.portfolio(ctx)
	if err != nil {
		return err
	}
	if !d.lock(token) {
		return nil
	}
	defer d.mu.Unlock()

	account := d.trader.cfg.ClientID

	sums := make(map[string]decimal.Decimal)
	for _, m := range portfolio.Money {
		sums[m.Currency] = sums[m.Currency].Add(m.Balance)
	}
	currencies := maps.Keys(sums)
	slices.Sort(currencies)
	d.balances = d.balances[:0]
	for _, currency := range currencies {
		b := ppp.NewMoney(currency, sums[currency])
		d.balances = append(d.balances, b)
		balanceMetric.WithLabelValues(account, currency).Set(b.Value.InexactFloat64())
		d.trader.sink.DataArrived(d, &positionData{isBalance: true, balance: b})
	}

	seen := make(map[string]bool, len(portfolio.Positions))
	for _, p := range portfolio.Positions {
		key := p.key()
		seen[key] = true
		d.positions[key] = p
		positionMetric.WithLabelValues(account, key).Set(p.Balance.InexactFloat64())
		d.trader.sink.DataArrived(d, &positionData{position: p})
	}

	tracked := maps.Keys(d.positions)
	slices.Sort(tracked)
	for _, key := range tracked {
		if seen[key] {
			continue
		}
		closed := d.positions[key]
		closed.Balance = decimal.Zero
		delete(d.positions, key)
		positionMetric.DeleteLabelValues(account, key)
		l.Debug("позиция закрыта", zap.String("position", key))
		d.trader.sink.DataArrived(d, &positionData{position: closed})
	}
	return nil
}

func (d *positionDatum) Kinds() []ppp.DatumKind {
	return []ppp.DatumKind{ppp.KindPosition, ppp.KindPositionSize, ppp.KindPositionAverage}
}

func (d *positionDatum) Filter(data any, attrs ppp.Attributes, kind ppp.DatumKind) bool {
	pd, ok := data.(*positionData)
	if !ok {
		return false
	}
	if kind == ppp.KindPosition {
		return true
	}
	if pd.isBalance {
		return pd.balance.Currency == attrs.Balance
	}
	return ppp.InstrumentsAreEqual(d.trader.resolver.position(pd.position.SecurityCode, pd.position.Market), attrs.Instrument)
}

func (d *positionDatum) KeyFor(data any) string {
	pd, ok := data.(*positionData)
	if !ok {
		return ""
	}
	if pd.isBalance {
		return pd.balance.Currency
	}
	return pd.position.key()
}

func (d *positionDatum) Value(kind ppp.DatumKind, data any) (any, bool) {
	pd, ok := data.(*positionData)
	if !ok {
		return nil, false
	}
	transform, ok := d.transforms[kind]
	if !ok {
		return nil, false
	}
	return transform(pd)
}

func (d *positionDatum) balanceSnapshot(b *ppp.Money) ppp.PositionSnapshot {
	return ppp.PositionSnapshot{
		Symbol:     b.Currency,
		Lot:        1,
		Exchange:   ppp.ExchangeCustom,
		IsCurrency: true,
		IsBalance:  true,
		Size:       b.Value,
		AccountID:  d.trader.cfg.ClientID,
	}
}

func (d *positionDatum) positionSnapshot(p positionDTO) (ppp.PositionSnapshot, bool) {
	instrument := d.trader.resolver.position(p.SecurityCode, p.Market)
	if instrument == nil {
		return ppp.PositionSnapshot{}, false
	}
	return ppp.PositionSnapshot{
		Instrument:   instrument,
		Symbol:       instrument.Symbol,
		Lot:          instrument.LotSize(),
		Exchange:     instrument.Exchange,
		AveragePrice: p.AveragePrice,
		Size:         p.Balance.Div(decimal.NewFromInt(instrument.LotSize())),
		AccountID:    d.trader.cfg.ClientID,
	}, true
}

func (d *positionDatum) snapshot(pd *positionData) (any, bool) {
	if pd.isBalance {
		return d.balanceSnapshot(pd.balance), true
	}
	s, ok := d.positionSnapshot(pd.position)
	if !ok {
		return nil, false
	}
	return s, true
}

func (d *positionDatum) size(pd *positionData) (any, bool) {
	if pd.isBalance {
		return pd.balance.Value, true
	}
	s, ok := d.positionSnapshot(pd.position)
	if !ok {
		return nil, false
	}
	return s.Size, true
}

func (d *positionDatum) average(pd *positionData) (any, bool) {
	if pd.isBalance {
		return nil, false
	}
	s, ok := d.positionSnapshot(pd.position)
	if !ok {
		return nil, false
	}
	return s.AveragePrice, true
}

// current снимок балансов и отслеживаемых позиций
func (d *positionDatum) current() []ppp.PositionSnapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	result := make([]ppp.PositionSnapshot, 0, len(d.balances)+len(d.positions))
	for _, b := range d.balances {
		result = append(result, d.balanceSnapshot(b))
	}
	keys := maps.Keys(d.positions)
	slices.Sort(keys)
	for _, key := range keys {
		if s, ok := d.positionSnapshot(d.positions[key]); ok {
			result = append(result, s)
		}
	}
	return result
}
