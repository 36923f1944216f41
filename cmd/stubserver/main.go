// Package main starts the in-memory stub backend used for developing the
// storefront client without the real API: accounts, cart, orders, payment
// intents, and the processor confirmation stand-in.
package main

import (
	"flag"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/tresse/storefront/internal/logger"
	"github.com/tresse/storefront/internal/stubapi"
)

func main() {
	var (
		addr     string
		logLevel string
	)
	flag.StringVar(&addr, "a", "localhost:8443", "listen address")
	flag.StringVar(&logLevel, "log", "debug", "log level")
	flag.Parse()

	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init(logLevel); err != nil {
		fmt.Println("failed to init logger:", err)
		return
	}
	zl := log.Log

	state := stubapi.NewState([]stubapi.ProductSize{
		{ID: 7, ProductID: 3, Name: "Silk Scarf", SizeName: "One Size", Price: "79.00", Stock: 12},
		{ID: 8, ProductID: 4, Name: "Wool Coat", SizeName: "M", Price: "249.00", Stock: 5},
		{ID: 9, ProductID: 4, Name: "Wool Coat", SizeName: "L", Price: "249.00", Stock: 3},
	})
	state.AddUser("demo@example.com", "demo1234", "Demo", "User")

	router := stubapi.NewRouter(state, zl)

	zl.Info("starting stub backend", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, router); err != nil {
		zl.Fatal("stub backend failed", zap.Error(err))
	}
}
