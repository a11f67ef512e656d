// Package api отдаёт состояние счёта и торговые операции по HTTP.
package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/flabzik/ppp"
	"github.com/flabzik/ppp/datum"
	"github.com/flabzik/ppp/finam"
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

// Торговые операции и снимки состояния брокера
type Broker interface {
	Adopt(instrument *ppp.Instrument, options ppp.AdoptOptions) *ppp.Instrument
	Orders() []ppp.Order
	Positions() []ppp.PositionSnapshot
	PlaceLimitOrder(ctx context.Context, instrument *ppp.Instrument, side ppp.Side, quantity int64, price decimal.Decimal) (string, error)
	CancelRealOrder(ctx context.Context, transactionID string) error
	CancelAllRealOrders(ctx context.Context, instrument *ppp.Instrument, filter ppp.Side) error
	ModifyRealOrders(ctx context.Context, instrument *ppp.Instrument, side ppp.Side, steps int64) error
	HistoricalCandles(ctx context.Context, instrument *ppp.Instrument, tf ppp.Timeframe, cursor string) (*finam.CandlesPage, error)
}

type Subscriber interface {
	Subscribe(ctx context.Context, kind ppp.DatumKind, attrs ppp.Attributes) (*datum.Subscription, error)
	Unsubscribe(sub *datum.Subscription) error
}

type Server struct {
	broker     Broker
	subscriber Subscriber
	catalog    ppp.InstrumentCatalog
	router     *mux.Router
	server     *http.Server
}

func NewServer(broker Broker, subscriber Subscriber, catalog ppp.InstrumentCatalog) *Server {
	s := &Server{
		broker:     broker,
		subscriber: subscriber,
		catalog:    catalog,
		router:     mux.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/orders", s.handleGetOrders).Methods(http.MethodGet)
	s.router.HandleFunc("/orders", s.handlePlaceOrder).Methods(http.MethodPost)
	s.router.HandleFunc("/orders/cancel-all", s.handleCancelAll).Methods(http.MethodPost)
	s.router.HandleFunc("/orders/modify", s.handleModify).Methods(http.MethodPost)
	s.router.HandleFunc("/orders/{transactionId}", s.handleCancel).Methods(http.MethodDelete)
	s.router.HandleFunc("/positions", s.handleGetPositions).Methods(http.MethodGet)
	s.router.HandleFunc("/candles", s.handleGetCandles).Methods(http.MethodGet)
	s.router.HandleFunc("/stream", s.handleStream)
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start(addr string) error {
	s.server = &http.Server{Addr: addr, Handler: s.router, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		l.Info("запускаю api", zap.String("address", addr))
		err := s.server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			l.Error("не смог открыть порт api", zap.String("address", addr), zap.Error(err))
		}
	}()
	return nil
}

func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

type errorResponse struct {
	Error string        `json:"error"`
	Code  ppp.ErrorCode `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		l.Debug("не смог записать ответ", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var te *ppp.TradingError
	switch {
	case errors.As(err, &te):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, errNotFound):
		status = http.StatusNotFound
	case errors.Is(err, errBadRequest):
		status = http.StatusBadRequest
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Code: ppp.Classify(err)})
}

var (
	errNotFound   = errors.New("не найдено")
	errBadRequest = errors.New("неверный запрос")
)

// instrument ищет инструмент по символу, пустой символ означает любой инструмент
func (s *Server) instrument(symbol string) (*ppp.Instrument, error) {
	if symbol == "" {
		return nil, nil
	}
	instrument, ok := s.catalog.Get(symbol)
	if !ok {
		return nil, errors.Wrapf(errNotFound, "инструмент %s", symbol)
	}
	return instrument, nil
}

func parseSide(side string, allowAll bool) (ppp.Side, error) {
	switch ppp.Side(side) {
	case ppp.SideBuy, ppp.SideSell:
		return ppp.Side(side), nil
	case ppp.SideAll, "":
		if allowAll {
			return ppp.SideAll, nil
		}
	}
	return "", errors.Wrapf(errBadRequest, "направление %q", side)
}

func (s *Server) handleGetOrders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.broker.Orders())
}

func (s *Server) handleGetPositions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.broker.Positions())
}

type placeOrderRequest struct {
	Symbol   string          `json:"symbol"`
	Side     string          `json:"side"`
	Quantity int64           `json:"quantity"`
	Price    decimal.Decimal `json:"price"` // 0 - рыночная заявка
}

type placeOrderResponse struct {
	TransactionID string `json:"transactionId"`
}

func (s *Server) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.Wrap(errBadRequest, err.Error()))
		return
	}
	if req.Symbol == "" || req.Quantity <= 0 {
		writeError(w, errors.Wrap(errBadRequest, "нужны symbol и quantity"))
		return
	}
	side, err := parseSide(req.Side, false)
	if err != nil {
		writeError(w, err)
		return
	}
	instrument, err := s.instrument(req.Symbol)
	if err != nil {
		writeError(w, err)
		return
	}
	id, err := s.broker.PlaceLimitOrder(r.Context(), instrument, side, req.Quantity, req.Price)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, placeOrderResponse{TransactionID: id})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["transactionId"]
	if err := s.broker.CancelRealOrder(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type cancelAllRequest struct {
	Symbol string `json:"symbol,omitempty"`
	Side   string `json:"side,omitempty"`
}

func (s *Server) handleCancelAll(w http.ResponseWriter, r *http.Request) {
	var req cancelAllRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.Wrap(errBadRequest, err.Error()))
		return
	}
	side, err := parseSide(req.Side, true)
	if err != nil {
		writeError(w, err)
		return
	}
	instrument, err := s.instrument(req.Symbol)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.broker.CancelAllRealOrders(r.Context(), instrument, side); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type modifyRequest struct {
	Symbol string `json:"symbol,omitempty"`
	Side   string `json:"side"`
	Steps  int64  `json:"steps"`
}

func (s *Server) handleModify(w http.ResponseWriter, r *http.Request) {
	var req modifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.Wrap(errBadRequest, err.Error()))
		return
	}
	side, err := parseSide(req.Side, true)
	if err != nil {
		writeError(w, err)
		return
	}
	instrument, err := s.instrument(req.Symbol)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.broker.ModifyRealOrders(r.Context(), instrument, side, req.Steps); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetCandles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	instrument, err := s.instrument(q.Get("symbol"))
	if err != nil {
		writeError(w, err)
		return
	}
	if instrument == nil {
		writeError(w, errors.Wrap(errBadRequest, "нужен symbol"))
		return
	}
	value := 1
	if v := q.Get("value"); v != "" {
		if value, err = strconv.Atoi(v); err != nil {
			writeError(w, errors.Wrap(errBadRequest, err.Error()))
			return
		}
	}
	tf := ppp.Timeframe{Unit: ppp.TimeframeUnit(q.Get("unit")), Value: value}
	page, err := s.broker.HistoricalCandles(r.Context(), instrument, tf, q.Get("cursor"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}
