package config

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/sijms/go-ora/v2"
)

var (
	globusDB *sqlx.DB
)

// GetGlobusDB returns the read-only handle to the legacy Oracle source.
// Nil until ConnectGlobusWithRetry has succeeded.
func GetGlobusDB() *sqlx.DB {
	return globusDB
}

// ConnectGlobusWithRetry opens the connection to the Globus Oracle
// instance. The source is pull-only: nothing in this codebase ever
// writes through this handle.
//
// Env:
//   - GLOBUS_DSN       full oracle:// connection string, or
//   - GLOBUS_USER / GLOBUS_PASSWORD / GLOBUS_HOST / GLOBUS_PORT / GLOBUS_SERVICE
func ConnectGlobusWithRetry() {
	dsn := strings.TrimSpace(os.Getenv("GLOBUS_DSN"))
	if dsn == "" {
		host := os.Getenv("GLOBUS_HOST")
		port := os.Getenv("GLOBUS_PORT")
		if port == "" {
			port = "1521"
		}
		service := os.Getenv("GLOBUS_SERVICE")
		user := os.Getenv("GLOBUS_USER")
		password := os.Getenv("GLOBUS_PASSWORD")
		dsn = "oracle://" + user + ":" + password + "@" + host + ":" + port + "/" + service
	}

	var attempt int
	for {
		attempt++
		conn, err := sqlx.Connect("oracle", dsn)
		if err == nil {
			// Globus is slow and rate-sensitive: keep the pool small so
			// concurrent domain syncs cannot pile load onto it.
			conn.SetMaxOpenConns(intFromEnv("GLOBUS_MAX_OPEN_CONNS", 4))
			conn.SetMaxIdleConns(intFromEnv("GLOBUS_MAX_IDLE_CONNS", 2))
			conn.SetConnMaxLifetime(10 * time.Minute)
			globusDB = conn
			log.Printf("connected to globus (attempt=%d)", attempt)
			return
		}

		sleep := time.Second * time.Duration(1<<min(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		log.Printf("failed to connect globus (attempt=%d): %v; retrying in %s", attempt, err, sleep)
		time.Sleep(sleep)
	}
}
