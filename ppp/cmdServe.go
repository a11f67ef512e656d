package main

import (
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/flabzik/ppp/api"
)

func serve(c *cli.Context) error {
	s, err := connect(c)
	if err != nil {
		return err
	}
	defer s.close()

	server := api.NewServer(s.trader, s.dispatcher, s.catalog)
	if err := server.Start(c.String("listen")); err != nil {
		return err
	}
	waitSignal()
	if err := server.Stop(); err != nil {
		l.DPanic("api не остановлен", zap.Error(err))
	}
	return nil
}
