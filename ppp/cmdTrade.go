package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/flabzik/ppp"
)

func parseSide(side string, allowAll bool) (ppp.Side, error) {
	switch ppp.Side(side) {
	case ppp.SideBuy, ppp.SideSell:
		return ppp.Side(side), nil
	case ppp.SideAll:
		if allowAll {
			return ppp.SideAll, nil
		}
	}
	return "", errors.Errorf("неверное направление %q", side)
}

// печатает семантический код торговой ошибки, если площадка его сообщила
func reportTradingError(err error) error {
	if code := ppp.Classify(err); code != ppp.ErrorCodeNone {
		l.Error("площадка отклонила операцию", zap.String("code", string(code)), zap.Error(err))
	}
	return err
}

func place(c *cli.Context) error {
	s, err := connect(c)
	if err != nil {
		return err
	}
	defer s.close()

	side, err := parseSide(c.String("side"), false)
	if err != nil {
		return err
	}
	instrument, err := s.instrument(c.String("symbol"))
	if err != nil {
		return err
	}
	price := decimal.Zero
	if c.IsSet("price") {
		if price, err = decimal.NewFromString(c.String("price")); err != nil {
			return errors.Wrap(err, "неверная цена")
		}
	}

	ctx, cancel := context.WithTimeout(c.Context, c.Duration("timeout"))
	defer cancel()
	id, err := s.trader.PlaceLimitOrder(ctx, instrument, side, c.Int64("quantity"), price)
	if err != nil {
		return reportTradingError(err)
	}
	fmt.Println(id)
	return nil
}

func cancel(c *cli.Context) error {
	s, err := connect(c)
	if err != nil {
		return err
	}
	defer s.close()

	ctx, stop := context.WithTimeout(c.Context, c.Duration("timeout"))
	defer stop()
	return reportTradingError(s.trader.CancelRealOrder(ctx, c.String("transaction")))
}

func cancelAll(c *cli.Context) error {
	s, err := connect(c)
	if err != nil {
		return err
	}
	defer s.close()

	side, err := parseSide(c.String("side"), true)
	if err != nil {
		return err
	}
	instrument, err := s.instrument(c.String("symbol"))
	if err != nil {
		return err
	}
	return s.withOrders(c.Context, func() error {
		ctx, stop := context.WithTimeout(c.Context, c.Duration("timeout"))
		defer stop()
		return reportTradingError(s.trader.CancelAllRealOrders(ctx, instrument, side))
	})
}

func modify(c *cli.Context) error {
	s, err := connect(c)
	if err != nil {
		return err
	}
	defer s.close()

	side, err := parseSide(c.String("side"), true)
	if err != nil {
		return err
	}
	instrument, err := s.instrument(c.String("symbol"))
	if err != nil {
		return err
	}
	return s.withOrders(c.Context, func() error {
		ctx, stop := context.WithTimeout(c.Context, c.Duration("timeout"))
		defer stop()
		return reportTradingError(s.trader.ModifyRealOrders(ctx, instrument, side, c.Int64("steps")))
	})
}
