package cinerag

import (
	"errors"

	"github.com/helixml/cinerag/application/service"
)

// Exported errors for library consumers.
var (
	// ErrNoDatabase indicates no database was configured.
	ErrNoDatabase = errors.New("cinerag: no database configured")

	// ErrNoEmbeddingProvider indicates no embedding provider was configured.
	ErrNoEmbeddingProvider = errors.New("cinerag: no embedding provider configured")

	// ErrClientClosed indicates the client has been closed.
	ErrClientClosed = service.ErrClientClosed
)
