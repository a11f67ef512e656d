package finam

import (
	"sync"

	"github.com/flabzik/ppp"
)

const (
	marketMma   = "Mma"
	marketStock = "Stock"
)

// бумаги, торгующиеся и на MOEX, и на иностранных площадках под тем же тикером
var moexAliased = map[string]bool{
	"ASTR": true,
	"FIVE": true,
	"GOLD": true,
}

// ResolveSymbol переводит код бумаги и рынок из ответа площадки в канонический символ каталога
func ResolveSymbol(securityCode string, market string) string {
	switch {
	case market == marketMma:
		return securityCode + ppp.AliasSeparator + string(ppp.ExchangeUS)
	case market == marketStock && moexAliased[securityCode]:
		return securityCode + ppp.AliasSeparator + string(ppp.ExchangeMOEX)
	}
	return securityCode
}

// Сопоставляет бумаги площадки инструментам каталога
type resolver struct {
	catalog ppp.InstrumentCatalog

	mu sync.RWMutex
	// класс-код -> код на площадке -> инструмент
	securities map[string]map[string]*ppp.Instrument
}

func newResolver(catalog ppp.InstrumentCatalog) *resolver {
	return &resolver{
		catalog:    catalog,
		securities: make(map[string]map[string]*ppp.Instrument),
	}
}

func (r *resolver) instrumentsArrived(instruments []*ppp.Instrument) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, instrument := range instruments {
		if instrument == nil || instrument.ClassCode == "" {
			continue
		}
		board, ok := r.securities[instrument.ClassCode]
		if !ok {
			board = make(map[string]*ppp.Instrument)
			r.securities[instrument.ClassCode] = board
		}
		board[instrument.VenueCode()] = instrument
	}
}

// position находит инструмент позиции, nil если его нет в каталоге
func (r *resolver) position(securityCode string, market string) *ppp.Instrument {
	instrument, ok := r.catalog.Get(ResolveSymbol(securityCode, market))
	if !ok {
		return nil
	}
	return instrument
}

// order находит инструмент заявки по режиму торгов и коду бумаги
func (r *resolver) order(securityBoard string, securityCode string) *ppp.Instrument {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.securities[securityBoard][securityCode]
}

func (r *resolver) get(symbol string) *ppp.Instrument {
	instrument, _ := r.catalog.Get(symbol)
	return instrument
}

// adopt приводит инструмент из интерфейса к инструменту, которым торгует брокер.
// Может вернуть nil, если нужного псевдонима нет в каталоге.
func (r *resolver) adopt(instrument *ppp.Instrument, options ppp.AdoptOptions) *ppp.Instrument {
	if instrument == nil {
		return nil
	}
	code := instrument.VenueCode()

	switch instrument.Exchange {
	case ppp.ExchangeUS, ppp.ExchangeSPBX, ppp.ExchangeUTEXMarginStocks:
		searchControl := instrument.Exchange == ppp.ExchangeSPBX && options.Origin == ppp.OriginSearchControl
		alias := instrument.Symbol + ppp.AliasSeparator + string(ppp.ExchangeUS)
		if !searchControl && r.catalog.Has(alias) {
			return r.get(alias)
		}
	case ppp.ExchangeMOEX:
		if moexAliased[code] {
			return r.get(code + ppp.AliasSeparator + string(ppp.ExchangeMOEX))
		}
	}

	if instrument.Symbol == "TCS" &&
		(instrument.Exchange == ppp.ExchangeUS || instrument.Exchange == ppp.ExchangeUTEXMarginStocks) {
		return r.get("TCS" + ppp.AliasSeparator + string(ppp.ExchangeUS))
	}

	return r.catalog.AdoptInstrument(instrument, options)
}
