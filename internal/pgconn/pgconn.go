// Package pgconn parses and formats PostgreSQL connection targets.
package pgconn

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
)

// Config describes one PostgreSQL connection target. It is a value type so
// derived targets (ephemeral databases, maintenance connections) can be built
// without mutating the original.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	// Options carries the raw query string (sslmode and friends) untouched.
	Options string
}

// MaintenanceDatabase is the database used for create/drop database statements,
// which cannot run against the database being created or dropped.
const MaintenanceDatabase = "template1"

// Parse parses a postgres:// or postgresql:// URL into a Config.
func Parse(raw string) (Config, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Config{}, fmt.Errorf("invalid connection url: %w", err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return Config{}, fmt.Errorf("invalid connection url %q: scheme must be postgres:// or postgresql://", raw)
	}

	cfg := Config{
		Host:     u.Hostname(),
		Port:     5432,
		Database: strings.TrimPrefix(u.Path, "/"),
		Options:  u.RawQuery,
	}
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return Config{}, fmt.Errorf("invalid port in connection url %q: %w", raw, err)
		}
		cfg.Port = port
	}
	if u.User != nil {
		cfg.User = u.User.Username()
		cfg.Password, _ = u.User.Password()
	}
	return cfg, nil
}

// WithDatabase returns a copy of the config pointing at another database on the
// same server.
func (c Config) WithDatabase(name string) Config {
	c.Database = name
	return c
}

// URL renders the config as a postgresql:// URL, the form both lib/pq and the
// external diff tool accept.
func (c Config) URL() string {
	var b strings.Builder
	b.WriteString("postgresql://")
	if c.User != "" {
		// url.UserPassword escapes per the userinfo rules; query escaping would
		// turn a space into "+", which reads back as a literal plus.
		userinfo := url.User(c.User)
		if c.Password != "" {
			userinfo = url.UserPassword(c.User, c.Password)
		}
		b.WriteString(userinfo.String())
		b.WriteString("@")
	}
	host := c.Host
	if host == "" {
		host = "localhost"
	}
	port := c.Port
	if port == 0 {
		port = 5432
	}
	fmt.Fprintf(&b, "%s:%d/%s", host, port, c.Database)
	if c.Options != "" {
		b.WriteString("?")
		b.WriteString(c.Options)
	}
	return b.String()
}

// Redacted renders the URL with the password hidden, for log output.
func (c Config) Redacted() string {
	if c.Password == "" {
		return c.URL()
	}
	hidden := c
	hidden.Password = "xxxxx"
	return hidden.URL()
}

// Connect opens and pings a connection to the target.
func Connect(ctx context.Context, cfg Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.URL())
	if err != nil {
		return nil, fmt.Errorf("failed to open connection to %s: %w", cfg.Redacted(), err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Redacted(), err)
	}
	return db, nil
}
