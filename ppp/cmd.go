package main

// В файле описаны все команды, доступные в командной строке

import (
	"github.com/urfave/cli/v2"
)

var commands = []*cli.Command{
	{
		Name:   "watch",
		Usage:  "Подписаться на данные счёта и печатать обновления до Ctrl+C",
		Action: watch,
		Flags:  with(kindsFlag, symbolFlag, balanceFlag),
	}, {
		Name:   "orders",
		Usage:  "Вывести заявки счёта",
		Action: orders,
		Flags:  connectionFlags,
	}, {
		Name:   "positions",
		Usage:  "Вывести позиции и денежные балансы счёта",
		Action: positions,
		Flags:  connectionFlags,
	}, {
		Name:   "place",
		Usage:  "Выставить лимитную или рыночную заявку",
		Action: place,
		Flags:  with(requiredSymbolFlag, sideFlag, quantityFlag, priceFlag),
	}, {
		Name:   "cancel",
		Usage:  "Снять заявку",
		Action: cancel,
		Flags:  with(transactionFlag),
	}, {
		Name:   "cancel-all",
		Usage:  "Снять все активные заявки, можно ограничить инструментом и направлением",
		Action: cancelAll,
		Flags:  with(symbolFlag, sideFilterFlag),
	}, {
		Name:   "modify",
		Usage:  "Сдвинуть цену активных заявок на несколько шагов цены",
		Action: modify,
		Flags:  with(symbolFlag, sideFilterFlag, stepsFlag),
	}, {
		Name:   "candles",
		Usage:  "Скачать исторические свечи в csv",
		Action: candles,
		Flags:  with(requiredSymbolFlag, unitFlag, valueFlag, pagesFlag, outFlag),
	}, {
		Name:   "serve",
		Usage:  "Запустить http api с потоком обновлений через websocket",
		Action: serve,
		Flags:  with(listenFlag),
	},
}
