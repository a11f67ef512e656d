package ppp

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Денежный баланс счёта в одной валюте
type Money struct {
	Currency string          // строковый ISO-код валюты
	Value    decimal.Decimal // сумма
}

func NewMoney(currency string, value decimal.Decimal) *Money {
	return &Money{
		Currency: currency,
		Value:    value,
	}
}

// Цена в формате площадки: num / 10^scale
type Price struct {
	Num   int64 `json:"num"`
	Scale int32 `json:"scale"`
}

func (p Price) Decimal() decimal.Decimal {
	return decimal.New(p.Num, -p.Scale)
}

var (
	subCentIncrement = decimal.New(1, -4)
	centIncrement    = decimal.New(1, -2)
	one              = decimal.NewFromInt(1)
)

// USPriceIncrement - шаг цены для бумаг американских площадок:
// 0.0001 для цен меньше 1, иначе 0.01
func USPriceIncrement(price decimal.Decimal) decimal.Decimal {
	if price.LessThan(one) {
		return subCentIncrement
	}
	return centIncrement
}

// FixPrice округляет цену до точности шага цены инструмента.
// Если шаг не задан или нулевой, используется точность американских бумаг.
func FixPrice(instrument *Instrument, price decimal.Decimal) decimal.Decimal {
	increment := USPriceIncrement(price)
	if instrument != nil && instrument.MinPriceIncrement.Valid && instrument.MinPriceIncrement.Decimal.IsPositive() {
		increment = instrument.MinPriceIncrement.Decimal
	}
	return price.Round(decimalPlaces(increment))
}

// количество значащих знаков после запятой (String отбрасывает хвостовые нули)
func decimalPlaces(d decimal.Decimal) int32 {
	s := d.String()
	if idx := strings.IndexByte(s, '.'); idx >= 0 {
		return int32(len(s) - idx - 1)
	}
	return 0
}
