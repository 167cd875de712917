package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

var (
	db *gorm.DB
)

func GetDB() *gorm.DB {
	return db
}

func init() {
	// Load env from .env
	godotenv.Load()
	// The terminal store is an embedded sqlite file; opening it is cheap,
	// but main() still controls when ConnectDatabase runs so the HTTP
	// surface can come up first.
}

// ConnectDatabase opens (and creates if missing) the terminal's embedded
// sqlite store and sets the global DB. Call this from main() before
// starting the sync workers.
func ConnectDatabase() error {
	dbPath := strings.TrimSpace(os.Getenv("TERMINAL_DB_PATH"))
	if dbPath == "" {
		dbPath = "pos_terminal.db"
	}

	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create database directory: %w", err)
		}
	}

	// WAL keeps writes durable without blocking the read paths the UI and
	// the analytics projector use. busy_timeout covers the brief overlap
	// between the gin handlers and the sync workers.
	dsn := dbPath + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"

	var err error
	db, err = gorm.Open(sqlite.Open(dsn), initConfig())
	if err != nil {
		return fmt.Errorf("open terminal database %s: %w", dbPath, err)
	}

	if sqlDB, derr := db.DB(); derr == nil && sqlDB != nil {
		// One writer terminal per store; a single connection avoids
		// SQLITE_BUSY between the workers entirely.
		sqlDB.SetMaxOpenConns(intFromEnv("DB_MAX_OPEN_CONNS", 1))
		sqlDB.SetConnMaxIdleTime(time.Duration(intFromEnv("DB_CONN_MAX_IDLE_TIME_SECONDS", 60)) * time.Second)
	}

	log.Printf("opened terminal database at %s", dbPath)
	return nil
}

// CloseDatabase releases the sqlite handle. Used by tests and shutdown.
func CloseDatabase() {
	if db == nil {
		return
	}
	if sqlDB, err := db.DB(); err == nil && sqlDB != nil {
		_ = sqlDB.Close()
	}
	db = nil
}

func intFromEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// InitConfig Initialize Config
func initConfig() *gorm.Config {
	return &gorm.Config{
		Logger:         initLog(),
		NamingStrategy: initNamingStrategy(),
	}
}

// InitLog Connection Log Configuration
func initLog() logger.Interface {
	newLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			Colorful:      false,
			LogLevel:      logger.Error,
			SlowThreshold: time.Second,
		},
	)
	return newLogger
}

// InitNamingStrategy Init NamingStrategy
func initNamingStrategy() *schema.NamingStrategy {
	return &schema.NamingStrategy{
		SingularTable: false,
		TablePrefix:   "",
	}
}
