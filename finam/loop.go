package finam

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

const DefaultPollInterval = 750 * time.Millisecond

// Цикл опроса площадки с подсчётом ссылок.
//
// Пока есть хотя бы одна ссылка, step вызывается снова и снова с паузой
// interval между концом одного вызова и началом следующего. Каждый запуск
// получает свой token: step обязан проверить его через lock перед тем, как
// трогать состояние, иначе результат остановленного цикла попадёт подписчикам.
type loop struct {
	name     string
	interval time.Duration
	clock    clock.Clock
	step     func(ctx context.Context, token uint64) error
	reset    func() // сброс отслеживаемого состояния, вызывается под mu

	mu     sync.Mutex
	refs   int
	token  uint64
	cancel context.CancelFunc
	err    error // итог последнего цикла текущего запуска
}

func newLoop(name string, interval time.Duration, clk clock.Clock) *loop {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if clk == nil {
		clk = clock.New()
	}
	return &loop{
		name:     name,
		interval: interval,
		clock:    clk,
	}
}

// AddReference на первой ссылке сбрасывает состояние и синхронно выполняет первый цикл.
// ctx нужен только для значений: остановить опрос можно лишь через RemoveReference.
func (lp *loop) AddReference(ctx context.Context) {
	lp.mu.Lock()
	lp.refs++
	if lp.refs > 1 {
		lp.mu.Unlock()
		return
	}
	lp.token++
	token := lp.token
	lp.err = nil
	lp.reset()
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	lp.cancel = cancel
	lp.mu.Unlock()

	l.Debug("запускаю опрос", zap.String("loop", lp.name))
	lp.cycle(runCtx, token)
	go lp.run(runCtx, token)
}

func (lp *loop) RemoveReference() {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	if lp.refs == 0 {
		l.DPanic("лишний RemoveReference", zap.String("loop", lp.name))
		return
	}
	lp.refs--
	if lp.refs > 0 {
		return
	}
	l.Debug("останавливаю опрос", zap.String("loop", lp.name))
	lp.token++
	lp.err = nil
	lp.reset()
	if lp.cancel != nil {
		lp.cancel()
		lp.cancel = nil
	}
}

// References текущее количество ссылок
func (lp *loop) References() int {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	return lp.refs
}

// Err ошибка последнего цикла опроса, nil после удачного цикла
func (lp *loop) Err() error {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	return lp.err
}

// lock захватывает mu, если запуск token ещё актуален.
// При false mu уже отпущен.
func (lp *loop) lock(token uint64) bool {
	lp.mu.Lock()
	if lp.refs > 0 && lp.token == token {
		return true
	}
	lp.mu.Unlock()
	return false
}

func (lp *loop) running(token uint64) bool {
	if !lp.lock(token) {
		return false
	}
	lp.mu.Unlock()
	return true
}

func (lp *loop) run(ctx context.Context, token uint64) {
	for {
		timer := lp.clock.Timer(lp.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		if !lp.running(token) {
			return
		}
		lp.cycle(ctx, token)
	}
}

func (lp *loop) cycle(ctx context.Context, token uint64) {
	start := lp.clock.Now()
	err := lp.step(ctx, token)
	pollDurationMetric.WithLabelValues(lp.name).Observe(lp.clock.Since(start).Seconds())
	if ctx.Err() != nil {
		return
	}
	if lp.lock(token) {
		lp.err = err
		lp.mu.Unlock()
	}
	if err == nil {
		return
	}
	pollErrorsMetric.WithLabelValues(lp.name).Inc()
	l.Error("ошибка опроса площадки", zap.String("loop", lp.name), zap.Error(err))
}
