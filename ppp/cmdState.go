package main

import (
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/flabzik/ppp"
)

func orders(c *cli.Context) error {
	s, err := connect(c)
	if err != nil {
		return err
	}
	defer s.close()

	return s.withOrders(c.Context, func() error {
		tbl := tablewriter.NewWriter(os.Stdout)
		tbl.SetHeader([]string{"Транзакция", "Заявка", "Инструмент", "Направление", "Статус", "Цена", "Количество", "Исполнено", "Выставлена"})
		for _, o := range s.trader.Orders() {
			tbl.Append([]string{
				o.ExtraID,
				o.OrderID,
				o.Symbol,
				string(o.Side),
				string(o.Status),
				o.Price.String(),
				o.Quantity.String(),
				o.Filled.String(),
				o.PlacedAt.Format("2006-01-02 15:04:05"),
			})
		}
		tbl.Render()
		return nil
	})
}

func positions(c *cli.Context) error {
	s, err := connect(c)
	if err != nil {
		return err
	}
	defer s.close()

	sub, err := s.dispatcher.Subscribe(c.Context, ppp.KindPosition, ppp.Attributes{})
	if err != nil {
		return err
	}
	defer func() {
		if err := s.dispatcher.Unsubscribe(sub); err != nil {
			l.DPanic("Unsubscribe", zap.Error(err))
		}
	}()
	go drain(sub.C)
	if err := s.trader.PositionsErr(); err != nil {
		return errors.Wrap(err, "не смог получить портфель")
	}

	tbl := tablewriter.NewWriter(os.Stdout)
	tbl.SetHeader([]string{"Символ", "Площадка", "Лот", "Размер", "Средняя цена"})
	tbl.SetAlignment(tablewriter.ALIGN_RIGHT)
	for _, p := range s.trader.Positions() {
		average := ""
		if !p.IsBalance {
			average = p.AveragePrice.String()
		}
		tbl.Append([]string{
			p.Symbol,
			string(p.Exchange),
			strconv.FormatInt(p.Lot, 10),
			p.Size.String(),
			average,
		})
	}
	tbl.Render()
	return nil
}
