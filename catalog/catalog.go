// Package catalog хранит справочник инструментов в памяти.
package catalog

import (
	"io"
	"os"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/flabzik/ppp"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var l *zap.Logger

func init() {
	logger, _ := zap.NewProduction()
	l = logger
}

func SetLogger(logger *zap.Logger) {
	l = logger
}

var _ ppp.InstrumentCatalog = (*Catalog)(nil)

type Catalog struct {
	mu          sync.RWMutex
	instruments map[string]*ppp.Instrument
}

func New(instruments ...*ppp.Instrument) *Catalog {
	c := &Catalog{instruments: make(map[string]*ppp.Instrument, len(instruments))}
	c.Add(instruments...)
	return c
}

// Load читает json-массив инструментов
func Load(r io.Reader) (*Catalog, error) {
	var instruments []*ppp.Instrument
	if err := json.NewDecoder(r).Decode(&instruments); err != nil {
		return nil, errors.Wrap(err, "не смог разобрать справочник инструментов")
	}
	return New(instruments...), nil
}

func LoadFile(fileName string) (*Catalog, error) {
	file, err := os.Open(fileName)
	if err != nil {
		return nil, errors.Wrap(err, "не смог открыть справочник инструментов")
	}
	defer file.Close()
	c, err := Load(file)
	if err != nil {
		return nil, err
	}
	l.Debug("справочник загружен", zap.String("fileName", fileName), zap.Int("count", len(c.instruments)))
	return c, nil
}

func (c *Catalog) Add(instruments ...*ppp.Instrument) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, i := range instruments {
		if i == nil || i.Symbol == "" {
			l.Warn("инструмент без символа пропущен")
			continue
		}
		c.instruments[i.Symbol] = i
	}
}

func (c *Catalog) Get(symbol string) (*ppp.Instrument, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.instruments[symbol]
	return i, ok
}

func (c *Catalog) Has(symbol string) bool {
	_, ok := c.Get(symbol)
	return ok
}

// All инструменты, упорядоченные по символу
func (c *Catalog) All() []*ppp.Instrument {
	c.mu.RLock()
	result := maps.Values(c.instruments)
	c.mu.RUnlock()
	slices.SortFunc(result, func(a, b *ppp.Instrument) bool {
		return a.Symbol < b.Symbol
	})
	return result
}

// AdoptInstrument по умолчанию: инструмент из справочника с тем же символом, иначе сам инструмент
func (c *Catalog) AdoptInstrument(instrument *ppp.Instrument, _ ppp.AdoptOptions) *ppp.Instrument {
	if instrument == nil {
		return nil
	}
	if i, ok := c.Get(instrument.Symbol); ok {
		return i
	}
	return instrument
}
