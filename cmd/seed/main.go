package main

import (
	"context"
	"flag"
	"time"

	"github.com/sentinel-health/copd-monitor/pkg/common/config"
	"github.com/sentinel-health/copd-monitor/pkg/common/database"
	"github.com/sentinel-health/copd-monitor/pkg/common/logger"
	"github.com/sentinel-health/copd-monitor/pkg/patient"
)

// seed migrates the Postgres schema and upserts the YAML patient roster.
func main() {
	logger.Init("copd-seed")
	cfg := config.Load()

	path := flag.String("roster", cfg.PatientFixtures, "path to the patient roster YAML")
	flag.Parse()

	db, err := database.GetPostgres()
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer database.ClosePostgres()

	repo := patient.NewGormRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("Failed to migrate schema")
	}

	roster, err := patient.LoadRoster(*path, time.Now())
	if err != nil {
		logger.Log.WithError(err).WithField("path", *path).Fatal("Failed to load roster")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	for _, p := range roster {
		if err := repo.Save(ctx, p); err != nil {
			logger.ForPatient(p.ID).WithError(err).Fatal("Failed to save patient")
		}
		logger.ForPatient(p.ID).Info("Patient seeded")
	}
	logger.Log.WithField("patients", len(roster)).Info("Seed complete")
}
