package finam

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sdcoffey/techan"
	"go.uber.org/zap"

	"github.com/flabzik/ppp"
)

const candlesPageSize = 500

// Страница исторических свечей. Cursor передаётся в следующий запрос, чтобы получить более ранние свечи.
type CandlesPage struct {
	Cursor  string       `json:"cursor,omitempty"`
	Candles []ppp.Candle `json:"candles"`
}

// Series собирает страницу в серию techan
func (p *CandlesPage) Series(period time.Duration) *techan.TimeSeries {
	return ppp.NewSeries(p.Candles, period)
}

type TimeframeValues struct {
	Unit   ppp.TimeframeUnit `json:"unit"`
	Values []int             `json:"values"`
}

// Timeframes таймфреймы, которые отдаёт площадка
func (t *Trader) Timeframes() []TimeframeValues {
	return []TimeframeValues{
		{Unit: ppp.TimeframeSec, Values: []int{}},
		{Unit: ppp.TimeframeMin, Values: []int{1, 5, 15}},
		{Unit: ppp.TimeframeHour, Values: []int{1}},
		{Unit: ppp.TimeframeDay, Values: []int{1}},
		{Unit: ppp.TimeframeWeek, Values: []int{1}},
		{Unit: ppp.TimeframeMonth, Values: []int{}},
	}
}

// код таймфрейма площадки, пустая строка если таймфрейм не поддерживается
func venueTimeframe(tf ppp.Timeframe) string {
	switch tf.Unit {
	case ppp.TimeframeMin:
		if tf.Value == 1 || tf.Value == 5 || tf.Value == 15 {
			return "M" + strconv.Itoa(tf.Value)
		}
	case ppp.TimeframeHour:
		if tf.Value == 1 {
			return "H1"
		}
	case ppp.TimeframeDay:
		if tf.Value == 1 {
			return "D1"
		}
	case ppp.TimeframeWeek:
		if tf.Value == 1 {
			return "W1"
		}
	}
	return ""
}

// HistoricalCandles возвращает до 500 свечей, закончившихся не позже cursor (пустой cursor - сейчас)
func (t *Trader) HistoricalCandles(ctx context.Context, instrument *ppp.Instrument, tf ppp.Timeframe, cursor string) (*CandlesPage, error) {
	instrument = t.Adopt(instrument, ppp.AdoptOptions{})
	if instrument == nil || instrument.NotSupported {
		return &CandlesPage{}, nil
	}
	timeframe := venueTimeframe(tf)
	if timeframe == "" {
		return &CandlesPage{}, nil
	}
	daily := tf.Unit == ppp.TimeframeDay || tf.Unit == ppp.TimeframeWeek
	path := "intraday-candles"
	if daily {
		path = "day-candles"
	}

	to := cursor
	if to == "" {
		to = t.cfg.Clock.Now().UTC().Format(time.RFC3339)
	}
	if daily {
		to, _, _ = strings.Cut(to, "T")
	}

	resp, err := t.call(ctx, http.MethodGet, path, url.Values{
		"SecurityBoard":  {instrument.ClassCode},
		"SecurityCode":   {instrument.VenueCode()},
		"TimeFrame":      {timeframe},
		"Interval.Count": {strconv.Itoa(candlesPageSize)},
		"Interval.To":    {to},
	}, nil)
	if err != nil {
		return nil, err
	}
	if !resp.OK {
		l.Debug("площадка не отдала свечи", zap.String("symbol", instrument.Symbol), zap.Error(venueError(path, resp)))
		return &CandlesPage{}, nil
	}

	data := &candlesDTO{}
	if len(resp.Data) > 0 {
		if err := json.Unmarshal(resp.Data, data); err != nil {
			return nil, errors.Wrap(err, "не смог разобрать свечи")
		}
	}
	// граница To входит в выборку, последняя свеча уже есть у вызывающего
	if cursor != "" && len(data.Candles) > 0 {
		data.Candles = data.Candles[:len(data.Candles)-1]
	}

	page := &CandlesPage{Candles: make([]ppp.Candle, 0, len(data.Candles))}
	if len(data.Candles) > 0 {
		first := data.Candles[0]
		page.Cursor = first.Timestamp
		if daily {
			page.Cursor = first.Date
		}
	}
	for i := range data.Candles {
		c, err := data.Candles[i].candle()
		if err != nil {
			return nil, errors.Wrap(err, "неверное время свечи")
		}
		page.Candles = append(page.Candles, c)
	}
	return page, nil
}
