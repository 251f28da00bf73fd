package main

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"dukapos/internal/api"
	"dukapos/internal/catalog"
	"dukapos/internal/config"
	"dukapos/internal/database"
	"dukapos/internal/migrations"
	"dukapos/internal/mpesa"
	"dukapos/internal/purchasing"
	"dukapos/internal/reports"
	"dukapos/internal/sales"
	"dukapos/internal/seed"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("unable to load configuration")
	}

	db, err := database.Connect(cfg.DatabaseDSN)
	if err != nil {
		logger.WithError(err).Fatal("unable to connect to database")
	}
	defer db.Close()

	if err := migrations.Run(db); err != nil {
		logger.WithError(err).Fatal("unable to run migrations")
	}
	if cfg.SeedCSV != "" {
		seed.LoadProducts(db, cfg.SeedCSV, logger)
	}

	catalogStore := catalog.NewStore(db)
	processor := sales.NewProcessor(db, catalogStore, logger)
	purchaseSvc := purchasing.NewService(db, logger)
	reportSvc := reports.NewService(db)
	mpesaSvc := mpesa.NewService(mpesa.Config{
		BaseURL:        cfg.Mpesa.BaseURL,
		ConsumerKey:    cfg.Mpesa.ConsumerKey,
		ConsumerSecret: cfg.Mpesa.ConsumerSecret,
		ShortCode:      cfg.Mpesa.ShortCode,
		Passkey:        cfg.Mpesa.Passkey,
		CallbackURL:    cfg.Mpesa.CallbackURL,
	}, db, logger)

	handler := api.New(db, cfg.Secret, catalogStore, processor, purchaseSvc, reportSvc, mpesaSvc, logger)

	logger.Infof("POS server starting on :%s", cfg.HTTPPort)
	if err := http.ListenAndServe(":"+cfg.HTTPPort, handler.Router()); err != nil {
		logger.WithError(err).Fatal("server error")
	}
}
