package finam

import (
	"go.uber.org/zap"
)

var l *zap.Logger

func init() {
	logger, _ := zap.NewProduction()
	l = logger.Named("finam")
}

func SetLogger(logger *zap.Logger) {
	l = logger.Named("finam")
}
