package main

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sdcoffey/techan"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/flabzik/ppp"
)

func candles(c *cli.Context) error {
	s, err := connect(c)
	if err != nil {
		return err
	}
	defer s.close()

	instrument, err := s.instrument(c.String("symbol"))
	if err != nil {
		return err
	}
	tf := ppp.Timeframe{Unit: ppp.TimeframeUnit(c.String("unit")), Value: c.Int("value")}
	fileName := c.Path("out")

	series := techan.NewTimeSeries()
	if file, err := os.Open(fileName); err == nil {
		series, err = ppp.LoadCandlesCSV(file, tf.Duration())
		file.Close()
		if err != nil {
			return err
		}
	} else {
		l.Debug("ранее скачанных свечей нет", zap.String("fileName", fileName))
	}

	cursor := ""
	for page := 0; page < c.Int("pages"); page++ {
		p, err := s.trader.HistoricalCandles(c.Context, instrument, tf, cursor)
		if err != nil {
			return err
		}
		for _, candle := range p.Candles {
			ppp.UpsertSeries(series, candle.Techan(tf.Duration()))
		}
		l.Debug("страница свечей", zap.Int("page", page), zap.Int("count", len(p.Candles)), zap.String("cursor", p.Cursor))
		if p.Cursor == "" || len(p.Candles) == 0 {
			break
		}
		cursor = p.Cursor
	}

	if err := os.MkdirAll(filepath.Dir(fileName), os.ModePerm); err != nil {
		return errors.Wrap(err, "не смог создать каталог")
	}
	file, err := os.Create(fileName)
	if err != nil {
		return errors.Wrap(err, "не смог открыть файл")
	}
	defer file.Close()
	if err := ppp.SaveCandlesCSV(file, series); err != nil {
		return err
	}
	l.Info("свечи сохранены", zap.String("fileName", fileName), zap.Int("count", len(series.Candles)))
	return nil
}
