package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/flabzik/ppp"
	"github.com/flabzik/ppp/datum"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleStream подписывает соединение на один вид данных:
// /stream?kind=POSITION_SIZE&symbol=AAPL~US или /stream?kind=POSITION_SIZE&balance=USD.
// Подписка живёт, пока открыто соединение.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	kind := ppp.DatumKind(q.Get("kind"))
	instrument, err := s.instrument(q.Get("symbol"))
	if err != nil {
		writeError(w, err)
		return
	}
	if instrument != nil {
		// позиции приходят по инструменту, которым торгует брокер
		adopted := s.broker.Adopt(instrument, ppp.AdoptOptions{})
		if adopted == nil {
			writeError(w, errors.Wrapf(errNotFound, "брокер не торгует инструментом %s", instrument.Symbol))
			return
		}
		instrument = adopted
	}
	if kind == "" {
		writeError(w, errors.Wrap(errBadRequest, "нужен kind"))
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		l.Debug("не смог открыть websocket", zap.Error(err))
		return
	}
	defer conn.Close()

	sub, err := s.subscriber.Subscribe(r.Context(), kind, ppp.Attributes{
		Instrument: instrument,
		Balance:    q.Get("balance"),
	})
	if err != nil {
		msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error())
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		return
	}
	defer s.unsubscribe(sub)
	l.Debug("клиент подписался", zap.String("kind", string(kind)), zap.String("remote", r.RemoteAddr))

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-closed:
			return
		case update, ok := <-sub.C:
			if !ok {
				return
			}
			data, err := json.Marshal(update)
			if err != nil {
				l.DPanic("json.Marshal", zap.Error(err))
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// unsubscribe снимает подписку соединения. Подписку мог уже снять
// диспетчер при остановке, это штатно.
func (s *Server) unsubscribe(sub *datum.Subscription) {
	err := s.subscriber.Unsubscribe(sub)
	switch {
	case err == nil:
	case errors.Is(err, datum.ErrNotSubscribed):
		l.Debug("подписка уже снята", zap.String("kind", string(sub.Kind)))
	default:
		l.DPanic("Unsubscribe", zap.Error(err))
	}
}
