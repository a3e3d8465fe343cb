package db

import (
	"database/sql"
	"fmt"
	"log"
	"strings"

	"TuneScope/config"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
)

var DB *sql.DB

// ConnectDB establishes the raw database connection used for schema work.
func ConnectDB(cfg *config.Config) error {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)

	var err error
	DB, err = sql.Open("mysql", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	if err = DB.Ping(); err != nil {
		DB.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("Successfully connected to the database.")
	return nil
}

// EnsureIndexes creates the indexes GORM's migration cannot express: the
// multi-valued JSON indexes that back set-membership filters on mood tags and
// instrument names. Requires MySQL 8.0.17+. Safe to re-run.
func EnsureIndexes() error {
	statements := []string{
		`ALTER TABLE tracks ADD INDEX idx_mood_tags ((CAST(mood_tags AS CHAR(64) ARRAY)))`,
		`ALTER TABLE tracks ADD INDEX idx_instrument_names ((CAST(instruments->'$[*].name' AS CHAR(64) ARRAY)))`,
	}

	for _, stmt := range statements {
		if _, err := DB.Exec(stmt); err != nil {
			if strings.Contains(err.Error(), "Duplicate key name") {
				continue
			}
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	log.Println("Track indexes ensured.")
	return nil
}
