package main

// описание аргументов командной строки

import (
	"time"

	"github.com/urfave/cli/v2"

	"github.com/flabzik/ppp/datum"
	"github.com/flabzik/ppp/finam"
)

var (
	symbolFlag = &cli.StringFlag{
		Name:    "symbol",
		Usage:   "Символ инструмента в справочнике, например AAPL~US",
		Aliases: []string{"s"},
		EnvVars: []string{"PPP_SYMBOL"},
	}
	requiredSymbolFlag = &cli.StringFlag{
		Name:     "symbol",
		Usage:    "Символ инструмента в справочнике, например AAPL~US",
		Aliases:  []string{"s"},
		Required: true,
		EnvVars:  []string{"PPP_SYMBOL"},
	}
	sideFilterFlag = &cli.StringFlag{
		Name:  "side",
		Usage: "Направление заявок: buy, sell или all",
		Value: "all",
	}
	sideFlag = &cli.StringFlag{
		Name:     "side",
		Usage:    "Направление заявки: buy или sell",
		Required: true,
	}
	quantityFlag = &cli.Int64Flag{
		Name:     "quantity",
		Usage:    "Количество лотов",
		Aliases:  []string{"q"},
		Required: true,
	}
	priceFlag = &cli.StringFlag{
		Name:  "price",
		Usage: "Цена заявки, без цены выставляется рыночная заявка",
	}
	stepsFlag = &cli.Int64Flag{
		Name:     "steps",
		Usage:    "На сколько шагов цены сдвинуть заявки, может быть отрицательным",
		Required: true,
	}
	transactionFlag = &cli.StringFlag{
		Name:     "transaction",
		Usage:    "Идентификатор транзакции заявки",
		Required: true,
	}
	kindsFlag = &cli.StringSliceFlag{
		Name:     "kind",
		Usage:    "Вид данных: POSITION, POSITION_SIZE, POSITION_AVERAGE, REAL_ORDER, TIMELINE_ITEM",
		Aliases:  []string{"k"},
		Required: true,
	}
	balanceFlag = &cli.StringFlag{
		Name:  "balance",
		Usage: "Валюта баланса для POSITION_SIZE",
	}
	unitFlag = &cli.StringFlag{
		Name:  "unit",
		Usage: "Единица таймфрейма: min, hour, day, week",
		Value: "min",
	}
	valueFlag = &cli.IntFlag{
		Name:  "value",
		Usage: "Размер таймфрейма в единицах",
		Value: 1,
	}
	pagesFlag = &cli.IntFlag{
		Name:  "pages",
		Usage: "Сколько страниц по 500 свечей скачать",
		Value: 1,
	}
	outFlag = &cli.PathFlag{
		Name:     "out",
		Usage:    "csv файл для свечей, уже скачанные свечи из него сохраняются",
		Required: true,
	}
	listenFlag = &cli.StringFlag{
		Name:    "listen",
		Usage:   "Адрес http api, например :8081",
		Value:   ":8081",
		EnvVars: []string{"PPP_LISTEN"},
	}

	connectionFlags = []cli.Flag{
		&cli.StringFlag{
			Name:     "connector",
			Usage:    "Адрес локального шлюза, через который идут запросы к площадке",
			Required: true,
			Aliases:  []string{"c"},
			EnvVars:  []string{"PPP_CONNECTOR_URL"},
		},
		&cli.StringFlag{
			Name:     "client-id",
			Usage:    "Торговый код клиента",
			Required: true,
			EnvVars:  []string{"PPP_CLIENT_ID"},
		},
		&cli.StringFlag{
			Name:     "token",
			Usage:    "Токен Finam Trade API",
			Required: true,
			Aliases:  []string{"t"},
			EnvVars:  []string{"PPP_TOKEN"},
		},
		&cli.StringFlag{
			Name:    "api",
			Usage:   "Адрес Finam Trade API",
			Value:   finam.DefaultAPIBase,
			EnvVars: []string{"PPP_API"},
		},
		&cli.PathFlag{
			Name:     "catalog",
			Usage:    "json файл справочника инструментов",
			Required: true,
			EnvVars:  []string{"PPP_CATALOG"},
		},
		&cli.DurationFlag{
			Name:    "poll-interval",
			Usage:   "Пауза между опросами площадки",
			Value:   finam.DefaultPollInterval,
			EnvVars: []string{"PPP_POLL_INTERVAL"},
		},
		&cli.Float64Flag{
			Name:    "rate-limit",
			Usage:   "Максимум запросов в секунду через шлюз, 0 без ограничения",
			Value:   10,
			EnvVars: []string{"PPP_RATE_LIMIT"},
		},
		&cli.IntFlag{
			Name:    "buffer",
			Usage:   "Размер очереди обновлений одного подписчика",
			Value:   datum.DefaultBufferSize,
			EnvVars: []string{"PPP_BUFFER"},
		},
	}
	globalFlags = []cli.Flag{
		&cli.BoolFlag{
			Name:    "debug",
			Value:   false,
			Usage:   "Устанавливает уровень логирования в debug уровень",
			Aliases: []string{"d"},
			EnvVars: []string{"PPP_DEBUG"},
		},
		&cli.StringFlag{
			Name:    "monitoring",
			Usage:   "Адрес, по которому включить метрики prometheus. Например :8080",
			Aliases: []string{"m"},
			EnvVars: []string{"PPP_MONITORING"},
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "Ограничение времени одной торговой операции",
			Value: 30 * time.Second,
		},
	}
)

func with(flags ...cli.Flag) []cli.Flag {
	return append(append([]cli.Flag{}, connectionFlags...), flags...)
}
