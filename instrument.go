package ppp

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Биржа (торговая площадка) инструмента в терминах каталога
type Exchange string

const (
	ExchangeUS               Exchange = "US"
	ExchangeSPBX             Exchange = "SPBX"
	ExchangeMOEX             Exchange = "MOEX"
	ExchangeUTEXMarginStocks Exchange = "UTEX_MARGIN_STOCKS"
	ExchangeCustom           Exchange = "CUSTOM" // синтетическая площадка для валютных балансов
)

// разделитель канонического символа и псевдонима площадки, например AAPL~US
const AliasSeparator = "~"

// Каноническое описание инструмента. Принадлежит каталогу, после загрузки не меняется.
type Instrument struct {
	Symbol            string              `json:"symbol"`            // канонический символ, может содержать псевдоним (ASTR~MOEX)
	Exchange          Exchange            `json:"exchange"`          // торговая площадка
	ClassCode         string              `json:"classCode"`         // класс-код (режим торгов)
	Lot               int64               `json:"lot"`               // количество в лоте
	MinPriceIncrement decimal.NullDecimal `json:"minPriceIncrement"` // шаг цены, может быть не задан
	Currency          string              `json:"currency"`          // валюта расчётов
	FullName          string              `json:"fullName"`          // название инструмента
	NotSupported      bool                `json:"notSupported"`      // инструмент не поддерживается брокером
}

// VenueCode возвращает код инструмента на площадке: символ без псевдонима
func (i *Instrument) VenueCode() string {
	if i == nil {
		return ""
	}
	if idx := strings.Index(i.Symbol, AliasSeparator); idx >= 0 {
		return i.Symbol[:idx]
	}
	return i.Symbol
}

// HasPriceIncrement сообщает, записан ли у инструмента неотрицательный шаг цены
func (i *Instrument) HasPriceIncrement() bool {
	return i != nil && i.MinPriceIncrement.Valid && !i.MinPriceIncrement.Decimal.IsNegative()
}

// LotSize возвращает размер лота, пустой лот считается единичным
func (i *Instrument) LotSize() int64 {
	if i == nil || i.Lot <= 0 {
		return 1
	}
	return i.Lot
}

// InstrumentsAreEqual сравнивает инструменты по каноническому символу
func InstrumentsAreEqual(a, b *Instrument) bool {
	if a == nil || b == nil {
		return false
	}
	return a.Symbol != "" && a.Symbol == b.Symbol
}

// Откуда пришёл запрос на приведение инструмента
type AdoptOptions struct {
	Origin string
}

const OriginSearchControl = "search-control"

// Каталог инструментов. Внешний по отношению к движку сверки, только читается.
type InstrumentCatalog interface {
	Get(symbol string) (*Instrument, bool)
	Has(symbol string) bool
	All() []*Instrument
	// приведение инструмента по умолчанию, если правила брокера не сработали
	AdoptInstrument(instrument *Instrument, options AdoptOptions) *Instrument
}
