package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tOgg1/margin/internal/config"
	"github.com/tOgg1/margin/internal/db"
	"github.com/tOgg1/margin/internal/events"
	"github.com/tOgg1/margin/internal/source"
)

// backend is the storage a command works against: the database, or a YAML
// document when --file is given. Events are always logged to the database.
type backend struct {
	db        *db.DB
	source    source.Source
	service   *source.Service
	publisher *events.InMemoryPublisher
	watchPath string
}

func openDatabase() (*db.DB, error) {
	cfg := GetConfig()
	database, err := db.Open(db.Config{
		Path:          cfg.DatabasePath(),
		BusyTimeoutMs: cfg.Database.BusyTimeoutMs,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := database.MigrateUp(context.Background()); err != nil {
		database.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return database, nil
}

func openBackend() (*backend, error) {
	database, err := openDatabase()
	if err != nil {
		return nil, err
	}

	b := &backend{
		db:        database,
		publisher: events.NewInMemoryPublisher(events.WithRepository(db.NewEventRepository(database))),
	}
	if path := strings.TrimSpace(docFile); path != "" {
		b.source = source.NewFileSource(path)
		b.watchPath = path
	} else {
		b.source = source.NewSQLiteSource(db.NewAnnotationRepository(database))
	}
	b.service = source.NewService(b.source, b.publisher)
	return b, nil
}

func (b *backend) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

// resolveURI picks the document a command acts on: the argument, then the
// --file document's own URI, then the selected context.
func resolveURI(args []string) (string, error) {
	if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
		return strings.TrimSpace(args[0]), nil
	}
	if path := strings.TrimSpace(docFile); path != "" {
		doc, err := source.ReadDocument(path)
		if err != nil {
			return "", err
		}
		if doc.URI != "" {
			return doc.URI, nil
		}
	}
	uri, err := config.NewContextStore(GetConfig().ContextPath()).ResolveURI("")
	if err != nil {
		return "", &PreflightError{
			Message:  err.Error(),
			Hint:     "Pass a document URI or select one first",
			NextStep: "margin use <uri>",
		}
	}
	return uri, nil
}

// notFound maps missing annotations to their exit code.
func notFound(err error) error {
	if errors.Is(err, source.ErrNotFound) {
		return &ExitError{Code: ExitNotFound, Err: err}
	}
	return err
}
