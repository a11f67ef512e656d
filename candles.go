package ppp

import (
	"io"
	"sort"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"
	"github.com/sdcoffey/big"
	"github.com/sdcoffey/techan"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/exp/slices"
)

// Единица таймфрейма свечей
type TimeframeUnit string

const (
	TimeframeSec   TimeframeUnit = "sec"
	TimeframeMin   TimeframeUnit = "min"
	TimeframeHour  TimeframeUnit = "hour"
	TimeframeDay   TimeframeUnit = "day"
	TimeframeWeek  TimeframeUnit = "week"
	TimeframeMonth TimeframeUnit = "month"
)

type Timeframe struct {
	Unit  TimeframeUnit `json:"unit"`
	Value int           `json:"value"`
}

// Duration длительность одной свечи, для месяца приблизительная
func (t Timeframe) Duration() time.Duration {
	var unit time.Duration
	switch t.Unit {
	case TimeframeSec:
		unit = time.Second
	case TimeframeMin:
		unit = time.Minute
	case TimeframeHour:
		unit = time.Hour
	case TimeframeDay:
		unit = 24 * time.Hour
	case TimeframeWeek:
		unit = 7 * 24 * time.Hour
	case TimeframeMonth:
		unit = 30 * 24 * time.Hour
	}
	return time.Duration(t.Value) * unit
}

type Candle struct {
	Time   time.Time       `json:"time"`
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume decimal.Decimal `json:"volume"`
}

func toBig(d decimal.Decimal) big.Decimal {
	return big.NewFromString(d.String())
}

// Techan переводит свечу в формат techan
func (c Candle) Techan(period time.Duration) *techan.Candle {
	return &techan.Candle{
		Period:     techan.NewTimePeriod(c.Time, period),
		OpenPrice:  toBig(c.Open),
		MaxPrice:   toBig(c.High),
		MinPrice:   toBig(c.Low),
		ClosePrice: toBig(c.Close),
		Volume:     toBig(c.Volume),
	}
}

// NewSeries собирает серию из свечей, порядок свечей не важен
func NewSeries(candles []Candle, period time.Duration) *techan.TimeSeries {
	series := techan.NewTimeSeries()
	for _, c := range candles {
		UpsertSeries(series, c.Techan(period))
	}
	return series
}

// FindSeries ищет свечу, содержащую момент t. Свечи серии упорядочены по началу.
func FindSeries(series *techan.TimeSeries, t time.Time) int {
	if series == nil {
		return -1
	}
	// первая свеча, начавшаяся позже t
	idx := sort.Search(len(series.Candles), func(i int) bool {
		return series.Candles[i].Period.Start.After(t)
	})
	if idx == 0 {
		return -1
	}
	p := series.Candles[idx-1].Period
	if t.Equal(p.Start) || t.Before(p.End) {
		return idx - 1
	}
	return -1
}

// UpsertSeries заменяет свечу с тем же началом или вставляет новую на её место по времени
func UpsertSeries(series *techan.TimeSeries, newCandle *techan.Candle) {
	start := newCandle.Period.Start
	i := sort.Search(len(series.Candles), func(i int) bool {
		return !series.Candles[i].Period.Start.Before(start)
	})
	if i < len(series.Candles) && series.Candles[i].Period.Start.Equal(start) {
		series.Candles[i] = newCandle
		return
	}
	series.Candles = slices.Insert(series.Candles, i, newCandle)
}

const csvTimeLayout = "2006-01-02 15:04"

type csvCandle struct {
	Time   string `csv:"Time"`
	Open   string `csv:"Open"`
	High   string `csv:"High"`
	Low    string `csv:"Low"`
	Close  string `csv:"Close"`
	Volume string `csv:"Volume"`
}

// SaveCandlesCSV пишет серию в csv с заголовком Time,Open,High,Low,Close,Volume
func SaveCandlesCSV(w io.Writer, series *techan.TimeSeries) error {
	rows := make([]*csvCandle, 0, len(series.Candles))
	for _, c := range series.Candles {
		rows = append(rows, &csvCandle{
			Time:   c.Period.Start.UTC().Format(csvTimeLayout),
			Open:   c.OpenPrice.String(),
			High:   c.MaxPrice.String(),
			Low:    c.MinPrice.String(),
			Close:  c.ClosePrice.String(),
			Volume: c.Volume.String(),
		})
	}
	return errors.Wrap(gocsv.Marshal(&rows, w), "не смог записать свечи")
}

func LoadCandlesCSV(r io.Reader, period time.Duration) (*techan.TimeSeries, error) {
	var rows []*csvCandle
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, errors.Wrap(err, "не смог прочитать свечи")
	}
	result := techan.NewTimeSeries()
	for line, row := range rows {
		t, err := time.ParseInLocation(csvTimeLayout, row.Time, time.UTC)
		if err != nil {
			l.Error("time.Parse error", zap.Int("line", line+2), zap.Error(err))
			return nil, errors.Wrapf(err, "строка %d", line+2)
		}
		UpsertSeries(result, &techan.Candle{
			Period:     techan.NewTimePeriod(t, period),
			OpenPrice:  big.NewFromString(row.Open),
			MaxPrice:   big.NewFromString(row.High),
			MinPrice:   big.NewFromString(row.Low),
			ClosePrice: big.NewFromString(row.Close),
			Volume:     big.NewFromString(row.Volume),
		})
	}
	return result, nil
}
