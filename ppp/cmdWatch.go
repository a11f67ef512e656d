package main

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/flabzik/ppp"
)

func printUpdates(ch <-chan ppp.Update) {
	for u := range ch {
		line, err := jsoniter.MarshalToString(u)
		if err != nil {
			l.DPanic("jsoniter.Marshal", zap.Error(err))
			continue
		}
		fmt.Println(line)
	}
}

func watch(c *cli.Context) error {
	s, err := connect(c)
	if err != nil {
		return err
	}
	defer s.close()

	instrument, err := s.instrument(c.String("symbol"))
	if err != nil {
		return err
	}
	attrs := ppp.Attributes{Instrument: instrument, Balance: c.String("balance")}

	for _, kind := range c.StringSlice("kind") {
		sub, err := s.dispatcher.Subscribe(c.Context, ppp.DatumKind(kind), attrs)
		if err != nil {
			return err
		}
		l.Debug("подписка оформлена", zap.String("kind", kind))
		go printUpdates(sub.C)
	}

	waitSignal()
	return nil
}
