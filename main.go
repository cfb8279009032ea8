package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"medeasy/pos/internal/api"
	"medeasy/pos/internal/checkout"
	"medeasy/pos/internal/classify"
	"medeasy/pos/internal/config"
	"medeasy/pos/internal/database"
	"medeasy/pos/internal/invoices"
	"medeasy/pos/internal/ledger"
	"medeasy/pos/internal/logging"
	"medeasy/pos/internal/migrations"
	"medeasy/pos/internal/seed"
)

func main() {
	app := &cli.App{
		Name:  "medeasy",
		Usage: "pharmacy inventory and point of sale",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API",
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "create the database schema",
				Action: migrate,
			},
			{
				Name:      "seed",
				Usage:     "load medicines from a CSV file",
				ArgsUsage: "<file.csv>",
				Action:    seedCatalog,
			},
		},
		DefaultCommand: "serve",
	}
	if err := app.Run(os.Args); err != nil {
		logrus.WithError(err).Fatal("medeasy failed")
	}
}

type env struct {
	cfg config.Config
	log *logrus.Logger
	db  *sqlx.DB
}

func setup() (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}
	db, err := database.Connect(cfg.DatabaseDSN)
	if err != nil {
		return nil, err
	}
	if err := migrations.Run(db); err != nil {
		db.Close()
		return nil, err
	}
	return &env{cfg: cfg, log: log, db: db}, nil
}

func migrate(_ *cli.Context) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.db.Close()
	e.log.Info("schema up to date")
	return nil
}

func seedCatalog(c *cli.Context) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.db.Close()
	path := c.Args().First()
	if path == "" {
		path = e.cfg.SeedCSV
	}
	if path == "" {
		return errors.New("seed: no CSV file given")
	}
	_, err = seed.LoadMedicinesFile(e.db, path, e.log)
	return err
}

func serve(c *cli.Context) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.db.Close()

	if e.cfg.SeedCSV != "" {
		if _, err := seed.LoadMedicinesFile(e.db, e.cfg.SeedCSV, e.log); err != nil {
			e.log.WithError(err).Warn("medicine seed skipped")
		}
	}

	stock := ledger.NewSQLStore(e.db)
	sales := invoices.NewStore(e.db)
	coordinator := checkout.New(stock,
		checkout.WithSink(sales),
		checkout.WithApplyTimeout(e.cfg.ApplyTimeout),
		checkout.WithLogger(e.log),
	)
	handler := api.New(e.db, stock, coordinator, sales, api.Options{
		Secret: e.cfg.Secret,
		Classifier: classify.Classifier{
			LowStockThreshold: e.cfg.LowStockThreshold,
			ExpiringWindow:    e.cfg.ExpiringWindow,
		},
		Logger: e.log,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", e.cfg.HTTPPort),
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		e.log.Infof("MedEasy POS server starting on %s", srv.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	e.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
