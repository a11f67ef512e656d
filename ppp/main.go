package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/flabzik/ppp/finam"
)

func main() {
	// флаги читают переменные окружения при разборе, поэтому .env загружается до app.Run
	envFile := os.Getenv("PPP_ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		l.Debug("файл .env не загружен", zap.String("fileName", envFile), zap.Error(err))
	}

	app := &cli.App{
		Name:     "ppp",
		Usage:    "Сверка состояния счёта и торговые операции через Finam Trade API",
		Version:  "v0.1.0",
		Before:   before,
		After:    after,
		Flags:    globalFlags,
		Commands: commands,
		Metadata: map[string]interface{}{"monitoring": &finam.PrometheusService{}},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func before(c *cli.Context) error {
	if c.Bool("debug") {
		initDebugLogger()
	}
	monitoring, _ := c.App.Metadata["monitoring"].(*finam.PrometheusService)
	if monitoring == nil {
		l.DPanic("MonitoringService не определён")
		return nil
	}
	if c.IsSet("monitoring") {
		if err := monitoring.Start(c.String("monitoring")); err != nil {
			l.DPanic("MonitoringService не запущен", zap.Error(err))
		}
	}
	return nil
}

func after(c *cli.Context) error {
	monitoring, _ := c.App.Metadata["monitoring"].(*finam.PrometheusService)
	if monitoring == nil {
		l.DPanic("MonitoringService не определён")
		return nil
	}
	if err := monitoring.Stop(); err != nil {
		l.DPanic("MonitoringService не остановлен", zap.Error(err))
	}
	return nil
}
