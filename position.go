package ppp

import "github.com/shopspring/decimal"

// Снимок позиции или валютного баланса для подписчиков
type PositionSnapshot struct {
	Instrument   *Instrument     `json:"instrument,omitempty"` // для балансов не заполняется
	Symbol       string          `json:"symbol"`               // символ инструмента или код валюты
	Lot          int64           `json:"lot"`
	Exchange     Exchange        `json:"exchange"`
	AveragePrice decimal.Decimal `json:"averagePrice"`
	IsCurrency   bool            `json:"isCurrency"`
	IsBalance    bool            `json:"isBalance"`
	Size         decimal.Decimal `json:"size"` // в лотах для бумаг, в деньгах для балансов
	AccountID    string          `json:"accountId"`
}
