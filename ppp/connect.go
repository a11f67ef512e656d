package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/flabzik/ppp"
	"github.com/flabzik/ppp/catalog"
	"github.com/flabzik/ppp/datum"
	"github.com/flabzik/ppp/finam"
)

type session struct {
	trader     *finam.Trader
	dispatcher *datum.Dispatcher
	catalog    *catalog.Catalog
}

func connect(c *cli.Context) (*session, error) {
	cat, err := catalog.LoadFile(c.Path("catalog"))
	if err != nil {
		return nil, err
	}
	dispatcher := datum.New(c.Int("buffer"))
	trader, err := finam.NewTrader(finam.Config{
		ConnectorURL: c.String("connector"),
		ClientID:     c.String("client-id"),
		Token:        oauth2.StaticTokenSource(&oauth2.Token{AccessToken: c.String("token")}),
		APIBase:      c.String("api"),
		PollInterval: c.Duration("poll-interval"),
		RateLimit:    rate.Limit(c.Float64("rate-limit")),
	}, cat, dispatcher)
	if err != nil {
		return nil, err
	}
	dispatcher.Register(trader.Datums()...)
	return &session{trader: trader, dispatcher: dispatcher, catalog: cat}, nil
}

func (s *session) close() {
	if err := s.dispatcher.Close(); err != nil {
		l.DPanic("не смог отписаться", zap.Error(err))
	}
}

// instrument ищет инструмент в справочнике и приводит его к инструменту брокера
func (s *session) instrument(symbol string) (*ppp.Instrument, error) {
	if symbol == "" {
		return nil, nil
	}
	instrument, ok := s.catalog.Get(symbol)
	if !ok {
		return nil, errors.Errorf("инструмент %s не найден в справочнике", symbol)
	}
	adopted := s.trader.Adopt(instrument, ppp.AdoptOptions{})
	if adopted == nil {
		return nil, errors.Errorf("брокер не торгует инструментом %s", symbol)
	}
	return adopted, nil
}

// withOrders держит сверку заявок запущенной на время fn
func (s *session) withOrders(ctx context.Context, fn func() error) error {
	sub, err := s.dispatcher.Subscribe(ctx, ppp.KindRealOrder, ppp.Attributes{})
	if err != nil {
		return err
	}
	defer func() {
		if err := s.dispatcher.Unsubscribe(sub); err != nil {
			l.DPanic("Unsubscribe", zap.Error(err))
		}
	}()
	go drain(sub.C)
	if err := s.trader.OrdersErr(); err != nil {
		return errors.Wrap(err, "не смог получить заявки")
	}
	return fn()
}

func drain(ch <-chan ppp.Update) {
	for range ch {
	}
}

func waitSignal() {
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
}
