package finam

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/flabzik/ppp"
)

// Ответ /portfolio
type portfolioDTO struct {
	ClientID  string        `json:"clientId"`
	Positions []positionDTO `json:"positions"`
	Money     []moneyDTO    `json:"money"`
}

type positionDTO struct {
	SecurityCode string          `json:"securityCode"`
	Market       string          `json:"market"`
	Balance      decimal.Decimal `json:"balance"`
	AveragePrice decimal.Decimal `json:"averagePrice"`
	CurrentPrice decimal.Decimal `json:"currentPrice"`
	Currency     string          `json:"currency"`
}

func (p *positionDTO) key() string {
	return p.SecurityCode + ":" + p.Market
}

type moneyDTO struct {
	Market   string          `json:"market"`
	Currency string          `json:"currency"`
	Balance  decimal.Decimal `json:"balance"`
}

// Ответ /orders
type ordersDTO struct {
	ClientID string     `json:"clientId"`
	Orders   []orderDTO `json:"orders"`
}

const (
	venueStatusCancelled = "Cancelled"
	venueStatusActive    = "Active"
	venueStatusMatched   = "Matched"
	venueStatusNone      = "None"
	venueStatusUnknown   = "Unknown"

	venueBuy  = "Buy"
	venueSell = "Sell"
)

type orderDTO struct {
	OrderNo       int64           `json:"orderNo"`
	TransactionID int64           `json:"transactionId"`
	SecurityBoard string          `json:"securityBoard"`
	SecurityCode  string          `json:"securityCode"`
	Market        string          `json:"market"`
	Status        string          `json:"status"`
	BuySell       string          `json:"buySell"`
	CreatedAt     time.Time       `json:"createdAt"`
	Price         decimal.Decimal `json:"price"`
	Quantity      decimal.Decimal `json:"quantity"` // в лотах
	Balance       decimal.Decimal `json:"balance"`  // неисполненный остаток
	Message       string          `json:"message"`
}

func (o *orderDTO) key() string {
	return strconv.FormatInt(o.TransactionID, 10)
}

func (o *orderDTO) side() ppp.Side {
	switch o.BuySell {
	case venueBuy:
		return ppp.SideBuy
	case venueSell:
		return ppp.SideSell
	}
	return ppp.Side("")
}

func venueSide(side ppp.Side) string {
	if side == ppp.SideBuy {
		return venueBuy
	}
	return venueSell
}

// Тело POST /orders
type newOrderDTO struct {
	ClientID      string       `json:"clientId"`
	SecurityBoard string       `json:"securityBoard"`
	SecurityCode  string       `json:"securityCode"`
	BuySell       string       `json:"buySell"`
	Quantity      int64        `json:"quantity"`
	UseCredit     bool         `json:"useCredit"`
	Property      string       `json:"property"`
	Price         *jsonDecimal `json:"price,omitempty"`
}

type placedOrderDTO struct {
	ClientID      string `json:"clientId"`
	TransactionID int64  `json:"transactionId"`
	SecurityCode  string `json:"securityCode"`
}

// число в json без кавычек
type jsonDecimal decimal.Decimal

func (d jsonDecimal) MarshalJSON() ([]byte, error) {
	return []byte(decimal.Decimal(d).String()), nil
}

// Ответы /intraday-candles и /day-candles
type candlesDTO struct {
	Candles []candleDTO `json:"candles"`
}

type candleDTO struct {
	Timestamp string    `json:"timestamp,omitempty"` // внутридневные свечи
	Date      string    `json:"date,omitempty"`      // дневные и недельные свечи
	Open      ppp.Price `json:"open"`
	Close     ppp.Price `json:"close"`
	High      ppp.Price `json:"high"`
	Low       ppp.Price `json:"low"`
	Volume    int64     `json:"volume"`
}

const dayLayout = "2006-01-02"

func (c *candleDTO) candle() (ppp.Candle, error) {
	var t time.Time
	var err error
	if c.Date != "" {
		t, err = time.ParseInLocation(dayLayout, c.Date, time.UTC)
	} else {
		t, err = time.Parse(time.RFC3339, c.Timestamp)
	}
	if err != nil {
		return ppp.Candle{}, err
	}
	return ppp.Candle{
		Time:   t.UTC(),
		Open:   c.Open.Decimal(),
		High:   c.High.Decimal(),
		Low:    c.Low.Decimal(),
		Close:  c.Close.Decimal(),
		Volume: decimal.NewFromInt(c.Volume),
	}, nil
}
