package main

import (
	"go.uber.org/zap"

	"github.com/flabzik/ppp"
	"github.com/flabzik/ppp/api"
	"github.com/flabzik/ppp/catalog"
	"github.com/flabzik/ppp/datum"
	"github.com/flabzik/ppp/finam"
)

var l *zap.Logger

func init() {
	logger, _ := zap.NewProduction()
	l = logger
}

func initDebugLogger() {
	logger, _ := zap.NewDevelopment()
	l = logger
	ppp.SetLogger(l)
	finam.SetLogger(l)
	datum.SetLogger(l)
	catalog.SetLogger(l)
	api.SetLogger(l)
}
