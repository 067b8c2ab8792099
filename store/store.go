// Package store defines the storage interface and implementations.
package store

import (
	"context"

	"github.com/PranavReddyGaddam/Signal/domain"
)

// Store defines the interface for data persistence.
type Store interface {
	// Session operations
	CreateSession(ctx context.Context, session *domain.Session) error
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)
	UpdateSession(ctx context.Context, session *domain.Session) error
	ListSessions(ctx context.Context) ([]domain.Session, error)
	DeleteSession(ctx context.Context, sessionID string) error

	// Artifact operations
	CreateArtifact(ctx context.Context, artifact *domain.Artifact) error
	GetArtifact(ctx context.Context, artifactID string) (*domain.Artifact, error)

	// Lifecycle
	Close() error
}
