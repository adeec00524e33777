package db

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"bioreactor-monitor/config"
	"bioreactor-monitor/internal/model"
)

// Init initializes the database connection and runs migrations.
func Init(cfg *config.DatabaseConfig, log zerolog.Logger) (*gorm.DB, error) {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.New(gormWriter{log: log.With().Str("component", "gorm").Logger()}, logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logLevel(cfg.LogLevel),
			IgnoreRecordNotFoundError: true,
		}),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetimeMinutes > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)
	}

	log.Info().Str("driver", cfg.Driver).Msg("running database migrations")
	if err := Migrate(db); err != nil {
		return nil, err
	}

	if cfg.EnableTimescale && cfg.Driver == "postgres" {
		log.Info().Msg("TimescaleDB is enabled, applying TimescaleDB-specific DDL")
		if err := applyTimescaleDDL(db); err != nil {
			log.Warn().Err(err).Msg("failed to apply some TimescaleDB DDL, continuing without them")
		}
	}

	log.Info().Msg("database initialization complete")
	return db, nil
}

func dialectorFor(cfg *config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "", "postgres":
		return postgres.Open(cfg.DSN), nil
	case "sqlite":
		return sqlite.Open(cfg.DSN), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// gormWriter routes gorm's statement and slow-query lines into the service log.
type gormWriter struct {
	log zerolog.Logger
}

func (w gormWriter) Printf(format string, args ...any) {
	w.log.Info().Msgf(format, args...)
}

func logLevel(level string) logger.LogLevel {
	switch level {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}

// Migrate creates or updates every table the service uses.
func Migrate(db *gorm.DB) error {
	models := []any{
		&model.Reactor{},
		&model.SetPoint{},
		&model.Alert{},
		&model.PushSubscription{},
	}
	for _, dt := range model.AllDataTypes() {
		models = append(models, model.Describe(dt).New())
	}
	if err := db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("automigrate failed: %w", err)
	}
	return nil
}

// timescaleDDL turns the sensor tables into hypertables on their timestamp column.
// Hypertables need the time column in every unique index, so the primary key is
// widened to (record_id, timestamp) first.
func timescaleDDL() []string {
	ddls := []string{"CREATE EXTENSION IF NOT EXISTS timescaledb;"}
	for _, dt := range model.AllDataTypes() {
		table := model.Describe(dt).Table
		ddls = append(ddls,
			fmt.Sprintf("ALTER TABLE %[1]s DROP CONSTRAINT IF EXISTS %[1]s_pkey;", table),
			fmt.Sprintf("ALTER TABLE %[1]s ADD PRIMARY KEY (record_id, timestamp);", table),
			fmt.Sprintf("SELECT create_hypertable('%s', 'timestamp', if_not_exists => TRUE, migrate_data => TRUE);", table),
			fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%[1]s_reactor_ts ON %[1]s (reactor_id, timestamp DESC);", table),
		)
	}
	return ddls
}

func applyTimescaleDDL(db *gorm.DB) error {
	for _, ddl := range timescaleDDL() {
		if err := db.Exec(ddl).Error; err != nil {
			return fmt.Errorf("DDL failed on %q: %w", ddl, err)
		}
	}
	return nil
}
