// Package store provides the shared state-store layer: a document-oriented
// client over Redis, an in-memory implementation for tests, and the
// process-wide Manager that owns the single live connection.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"

	apperrors "github.com/daig/daig-node/internal/errors"
)

// ErrNotFound is returned when a document is not found
var ErrNotFound = errors.New("document not found")

// Document is the flat field mapping persisted for one document. Values
// stay scalar so partial updates remain simple merges on the remote side.
type Document map[string]interface{}

// DocumentStore is the client contract for the remote document store.
// Documents are addressed by collection name and document id.
type DocumentStore interface {
	// Set replaces the document, dropping any fields not present in doc
	Set(ctx context.Context, collection, docID string, doc Document) error
	// Merge upserts only the given fields, leaving the rest untouched
	Merge(ctx context.Context, collection, docID string, fields Document) error
	Get(ctx context.Context, collection, docID string) (Document, error)
	Delete(ctx context.Context, collection, docID string) error
	// List returns every document in a collection
	List(ctx context.Context, collection string) ([]Document, error)
	Ping(ctx context.Context) error
	Close() error
}

// Config holds the validated connection settings for the remote store.
// Immutable once validated; the Manager rejects it before any network
// call when it is malformed.
type Config struct {
	ProjectID       string `yaml:"project_id" mapstructure:"project_id"`
	Addr            string `yaml:"addr" mapstructure:"addr"`
	CredentialsPath string `yaml:"credentials_path" mapstructure:"credentials_path"`
	UseEmulator     bool   `yaml:"use_emulator" mapstructure:"use_emulator"`
	EmulatorHost    string `yaml:"emulator_host" mapstructure:"emulator_host"`
}

// Validate checks the configuration without touching the network
func (c Config) Validate() error {
	if c.ProjectID == "" {
		return apperrors.Configuration("project_id is required", nil)
	}
	if !c.UseEmulator && c.CredentialsPath != "" {
		if _, err := os.Stat(c.CredentialsPath); err != nil {
			return apperrors.Configuration(
				fmt.Sprintf("credentials not found at %s", c.CredentialsPath), err).
				WithDetail("credentials_path", c.CredentialsPath)
		}
	}
	return nil
}

// address returns the endpoint to dial, honoring the emulator redirect
func (c Config) address() string {
	if c.UseEmulator {
		if c.EmulatorHost != "" {
			return c.EmulatorHost
		}
		return "localhost:8080"
	}
	if c.Addr != "" {
		return c.Addr
	}
	return "localhost:6379"
}
