package ppp

import (
	"time"

	"github.com/shopspring/decimal"
)

// Направление заявки
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
	SideAll  Side = "all" // используется только как фильтр
)

// Matches проверяет, проходит ли сторона заявки через фильтр.
// Пустой фильтр и SideAll пропускают любые заявки.
func (filter Side) Matches(side Side) bool {
	return filter == "" || filter == SideAll || filter == side
}

// Канонический статус заявки
type OrderStatus string

const (
	OrderStatusUndefined   OrderStatus = ""            // статус площадки не распознан
	OrderStatusCanceled    OrderStatus = "canceled"    // снята
	OrderStatusWorking     OrderStatus = "working"     // активна, может быть снята или изменена
	OrderStatusFilled      OrderStatus = "filled"      // исполнена полностью
	OrderStatusInactive    OrderStatus = "inactive"    // не активна
	OrderStatusUnspecified OrderStatus = "unspecified" // площадка сама не знает статуса
)

const OrderTypeLimit = "limit"

// Заявка в каноническом виде, как её видят подписчики
type Order struct {
	Instrument *Instrument     `json:"instrument"`
	OrderID    string          `json:"orderId"` // номер заявки на площадке
	ExtraID    string          `json:"extraId"` // идентификатор транзакции, по нему заявка снимается
	Symbol     string          `json:"symbol"`
	Exchange   Exchange        `json:"exchange"`
	OrderType  string          `json:"orderType"`
	Side       Side            `json:"side"`
	Status     OrderStatus     `json:"status"`
	PlacedAt   time.Time       `json:"placedAt"`
	EndsAt     *time.Time      `json:"endsAt"`
	Quantity   decimal.Decimal `json:"quantity"`
	Filled     decimal.Decimal `json:"filled"`
	Price      decimal.Decimal `json:"price"`
}

// Тип операции в ленте исполнений
type OperationType string

const (
	OperationTypeBuy  OperationType = "OPERATION_TYPE_BUY"
	OperationTypeSell OperationType = "OPERATION_TYPE_SELL"
)

// Запись ленты исполнений, строится по полностью исполненной заявке
type TimelineItem struct {
	Instrument      *Instrument     `json:"instrument"`
	OperationID     string          `json:"operationId"`
	ParentID        string          `json:"parentId"`
	AccruedInterest decimal.Decimal `json:"accruedInterest"`
	Commission      decimal.Decimal `json:"commission"`
	Symbol          string          `json:"symbol"`
	Type            OperationType   `json:"type"`
	Exchange        Exchange        `json:"exchange"`
	Quantity        decimal.Decimal `json:"quantity"`
	Price           decimal.Decimal `json:"price"`
	CreatedAt       time.Time       `json:"createdAt"`
}
