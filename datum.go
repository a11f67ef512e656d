package ppp

import "context"

// Вид данных, на который подписывается клиент
type DatumKind string

const (
	KindPosition        DatumKind = "POSITION"
	KindPositionSize    DatumKind = "POSITION_SIZE"
	KindPositionAverage DatumKind = "POSITION_AVERAGE"
	KindRealOrder       DatumKind = "REAL_ORDER"
	KindTimelineItem    DatumKind = "TIMELINE_ITEM"
)

// Параметры подписки
type Attributes struct {
	Instrument *Instrument `json:"instrument,omitempty"`
	Balance    string      `json:"balance,omitempty"` // код валюты для подписки на баланс
}

// Изменение, доставляемое подписчику
type Update struct {
	Kind  DatumKind `json:"kind"`
	Key   string    `json:"key"`
	Value any       `json:"value"`
}

// Источник данных, живущий пока на него есть хотя бы одна ссылка.
//
// AddReference на первой ссылке запускает опрос площадки, RemoveReference
// на последней его останавливает. Filter, KeyFor и Value вызываются
// приёмником для каждого сырого элемента, пришедшего от источника.
type Datum interface {
	Kinds() []DatumKind
	AddReference(ctx context.Context)
	RemoveReference()
	Filter(data any, attrs Attributes, kind DatumKind) bool
	KeyFor(data any) string
	Value(kind DatumKind, data any) (any, bool)
}

// Приёмник сырых данных от источника
type DataSink interface {
	DataArrived(source Datum, data any)
}

// DataSinkFunc позволяет использовать функцию как приёмник
type DataSinkFunc func(source Datum, data any)

func (f DataSinkFunc) DataArrived(source Datum, data any) {
	f(source, data)
}
