// Package datum раздаёт данные брокера подписчикам.
package datum

import (
	"context"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/flabzik/ppp"
)

var l *zap.Logger

func init() {
	logger, _ := zap.NewProduction()
	l = logger
}

func SetLogger(logger *zap.Logger) {
	l = logger
}

const DefaultBufferSize = 256

var (
	ErrUnknownKind   = errors.New("нет источника для вида данных")
	ErrNotSubscribed = errors.New("подписка не найдена")
)

var _ ppp.DataSink = (*Dispatcher)(nil)

type Subscription struct {
	Kind       ppp.DatumKind
	Attributes ppp.Attributes
	C          <-chan ppp.Update

	ch    chan ppp.Update
	datum ppp.Datum
}

// Диспетчер подписок. Источник данных живёт, пока на него подписан хотя бы один клиент.
type Dispatcher struct {
	bufferSize int

	mu          sync.RWMutex
	datums      map[ppp.DatumKind]ppp.Datum
	subscribers map[ppp.Datum][]*Subscription
}

func New(bufferSize int) *Dispatcher {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Dispatcher{
		bufferSize:  bufferSize,
		datums:      make(map[ppp.DatumKind]ppp.Datum),
		subscribers: make(map[ppp.Datum][]*Subscription),
	}
}

func (d *Dispatcher) Register(datums ...ppp.Datum) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, datum := range datums {
		for _, kind := range datum.Kinds() {
			if _, ok := d.datums[kind]; ok {
				l.DPanic("источник для вида данных уже зарегистрирован", zap.String("kind", string(kind)))
			}
			d.datums[kind] = datum
		}
	}
}

// Subscribe добавляет ссылку на источник. Первая подписка на источник синхронно
// выполняет первый опрос, его данные уже лежат в канале, когда Subscribe возвращается.
func (d *Dispatcher) Subscribe(ctx context.Context, kind ppp.DatumKind, attrs ppp.Attributes) (*Subscription, error) {
	d.mu.Lock()
	datum, ok := d.datums[kind]
	if !ok {
		d.mu.Unlock()
		return nil, errors.Wrap(ErrUnknownKind, string(kind))
	}
	ch := make(chan ppp.Update, d.bufferSize)
	sub := &Subscription{
		Kind:       kind,
		Attributes: attrs,
		C:          ch,
		ch:         ch,
		datum:      datum,
	}
	d.subscribers[datum] = append(d.subscribers[datum], sub)
	d.mu.Unlock()

	// источник шлёт данные в DataArrived под своей блокировкой, поэтому ссылки меняются без d.mu
	datum.AddReference(ctx)
	return sub, nil
}

// Unsubscribe закрывает канал подписки и отпускает ссылку на источник
func (d *Dispatcher) Unsubscribe(sub *Subscription) error {
	d.mu.Lock()
	subs := d.subscribers[sub.datum]
	idx := -1
	for i, s := range subs {
		if s == sub {
			idx = i
			break
		}
	}
	if idx == -1 {
		d.mu.Unlock()
		return ErrNotSubscribed
	}
	d.subscribers[sub.datum] = append(subs[:idx:idx], subs[idx+1:]...)
	close(sub.ch)
	d.mu.Unlock()

	sub.datum.RemoveReference()
	return nil
}

// Close отписывает всех
func (d *Dispatcher) Close() error {
	d.mu.RLock()
	var all []*Subscription
	for _, subs := range d.subscribers {
		all = append(all, subs...)
	}
	d.mu.RUnlock()

	var result error
	for _, sub := range all {
		if err := d.Unsubscribe(sub); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result
}

func (d *Dispatcher) DataArrived(source ppp.Datum, data any) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, sub := range d.subscribers[source] {
		if !source.Filter(data, sub.Attributes, sub.Kind) {
			continue
		}
		value, ok := source.Value(sub.Kind, data)
		if !ok {
			continue
		}
		update := ppp.Update{Kind: sub.Kind, Key: source.KeyFor(data), Value: value}
		select {
		case sub.ch <- update:
		default:
			l.Error("переполнен поток подписчика, обновление потеряно",
				zap.String("kind", string(sub.Kind)),
				zap.String("key", update.Key),
			)
		}
	}
}
