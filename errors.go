package ppp

import (
	"fmt"
	"regexp"

	"github.com/pkg/errors"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Ошибка конфигурации брокера, объект не может быть создан
type ConnectionError struct {
	Reason string
}

func (e *ConnectionError) Error() string {
	return "ошибка подключения к брокеру: " + e.Reason
}

// Ошибка площадки в ответе {data, error}
type VenueError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

// Ответ площадки целиком, сохраняется в TradingError для классификации
type ErrorPayload struct {
	Error *VenueError `json:"error,omitempty"`
}

// Площадка отвергла выставление или снятие заявки.
// При выставлении заполняется Details, при снятии только Message.
type TradingError struct {
	Message string
	Details *ErrorPayload
	Raw     []byte
}

func (e *TradingError) Error() string {
	msg := e.Message
	if msg == "" && e.Details != nil && e.Details.Error != nil {
		msg = e.Details.Error.Message
	}
	if code := e.Code(); code != ErrorCodeNone {
		return fmt.Sprintf("торговая ошибка %s: %s", code, msg)
	}
	return "торговая ошибка: " + msg
}

// Code семантический код ошибки, ErrorCodeNone если сообщение не распознано
func (e *TradingError) Code() ErrorCode {
	if e.Details != nil && e.Details.Error != nil {
		return classify(detailRules, e.Details.Error.Message)
	}
	if e.Message != "" {
		return classify(messageRules, e.Message)
	}
	return ErrorCodeNone
}

// GRPCStatus позволяет разбирать ошибку так же, как ошибки grpc-клиентов
func (e *TradingError) GRPCStatus() *status.Status {
	code := codes.Unknown
	switch e.Code() {
	case ErrorCodeInsufficientFunds:
		code = codes.FailedPrecondition
	case ErrorCodeInstrumentNotTradeable, ErrorCodeRoutingError:
		code = codes.Unavailable
	case ErrorCodeNoQualification:
		code = codes.PermissionDenied
	}
	return status.New(code, e.Error())
}

type ErrorCode string

const (
	ErrorCodeNone                   ErrorCode = ""
	ErrorCodeInsufficientFunds      ErrorCode = "E_INSUFFICIENT_FUNDS"
	ErrorCodeInstrumentNotTradeable ErrorCode = "E_INSTRUMENT_NOT_TRADEABLE"
	ErrorCodeRoutingError           ErrorCode = "E_ROUTING_ERROR"
	ErrorCodeNoQualification        ErrorCode = "E_NO_QUALIFICATION"
)

type rule struct {
	re   *regexp.Regexp
	code ErrorCode
}

// порядок важен, срабатывает первое совпадение
var detailRules = []rule{
	{regexp.MustCompile(`(?i)Money shortage`), ErrorCodeInsufficientFunds},
	{regexp.MustCompile(`(?i)No enough coverage`), ErrorCodeInsufficientFunds},
	{regexp.MustCompile(`(?i)market standby mode`), ErrorCodeInstrumentNotTradeable},
	{regexp.MustCompile(`(?i)Execution route selection failed`), ErrorCodeRoutingError},
	{regexp.MustCompile(`(?i)confirm your qualification level`), ErrorCodeNoQualification},
}

var messageRules = []rule{
	{regexp.MustCompile(`(?i)Trading on the instrument is not available`), ErrorCodeInstrumentNotTradeable},
}

func classify(rules []rule, message string) ErrorCode {
	for _, r := range rules {
		if r.re.MatchString(message) {
			return r.code
		}
	}
	return ErrorCodeNone
}

// Classify возвращает семантический код для любой ошибки, в цепочке которой есть TradingError
func Classify(err error) ErrorCode {
	var te *TradingError
	if errors.As(err, &te) {
		return te.Code()
	}
	return ErrorCodeNone
}

// ClassifyMessage разбирает текст сообщения площадки по правилам выставления заявки
func ClassifyMessage(message string) ErrorCode {
	return classify(detailRules, message)
}
