package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/trezcool/masomo-portal/apps/api/echo"
	"github.com/trezcool/masomo-portal/core"
	logsvc "github.com/trezcool/masomo-portal/services/logger"
	inmemdb "github.com/trezcool/masomo-portal/storage/school/inmem"
)

// Development API: serves the messaging endpoints of the school API from an in-memory demo school.
func main() {
	errAndDie(core.Conf.Validate())

	logger, err := logsvc.New(core.Conf)
	errAndDie(err)
	defer logger.Close()

	// set up DB
	db := inmemdb.Open()
	fx, err := inmemdb.Seed(db, time.Now())
	errAndDie(err)
	logger.Info("api: demo school seeded", map[string]interface{}{
		"parent":   fx.Parent.Username,
		"teacher":  fx.Teacher.Username,
		"password": inmemdb.DemoPassword,
	})

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// start API server
	app := echoapi.NewServer(
		&echoapi.Options{
			Address:  core.Conf.Server.Address,
			DB:       db,
			Logger:   logger,
			Shutdown: shutdown,
		},
	)
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.Start()
	}()

	select {
	case err := <-serverErrors:
		errAndDie(err)
	case sig := <-shutdown:
		logger.Info("api: shutting down", map[string]interface{}{"signal": sig.String()})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := app.Stop(ctx); err != nil {
			logger.Error("api: graceful shutdown failed", err)
		}
	}
}

func errAndDie(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
