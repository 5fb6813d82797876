// Package whatsapp implements client.Factory on top of whatsmeow. Every
// session gets a fresh device in one shared sqlite-backed store.
package whatsapp

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	_ "github.com/mattn/go-sqlite3"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/store/sqlstore"

	"github.com/MrEthical07/goWA/client"
)

const defaultEventBuffer = 16

// Config configures the device store and the per-client event queue.
type Config struct {
	// DSN is the sqlite data source, e.g. "file:wagw.db?_foreign_keys=on".
	DSN string
	// EventBuffer sizes each client's event channel. Defaults to 16.
	EventBuffer int
	// AutoReconnect lets whatsmeow redial after transient disconnects.
	AutoReconnect bool
}

// Factory builds whatsmeow clients that share one device store.
type Factory struct {
	cfg       Config
	db        *sql.DB
	container *sqlstore.Container
	logger    *slog.Logger
}

// NewFactory opens the device store and applies its migrations.
func NewFactory(ctx context.Context, cfg Config, logger *slog.Logger) (*Factory, error) {
	if cfg.DSN == "" {
		return nil, errors.New("whatsapp: device store DSN is required")
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = defaultEventBuffer
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	db, err := sql.Open("sqlite3", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("whatsapp: open device store: %w", err)
	}
	container := sqlstore.NewWithDB(db, "sqlite3", newLogger(logger, "store"))
	if err := container.Upgrade(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("whatsapp: migrate device store: %w", err)
	}

	return &Factory{cfg: cfg, db: db, container: container, logger: logger}, nil
}

// New implements client.Factory. The returned client is unpaired until its
// first challenge is scanned.
func (f *Factory) New(ctx context.Context, sessionID string) (client.Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	logger := f.logger.With("session_id", sessionID)

	wc := whatsmeow.NewClient(f.container.NewDevice(), newLogger(logger, "client"))
	wc.EnableAutoReconnect = f.cfg.AutoReconnect

	return newClient(wc, sessionID, f.cfg.EventBuffer, logger), nil
}

// Close releases the device store.
func (f *Factory) Close() error {
	return f.db.Close()
}
