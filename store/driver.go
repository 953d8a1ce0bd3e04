package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	// Type returns the driver name used to locate migration files.
	Type() string

	IsInitialized(ctx context.Context) (bool, error)

	// Event model related methods.
	CreateEvent(ctx context.Context, create *Event) (*Event, error)
	ListEvents(ctx context.Context, find *FindEvent) ([]*Event, error)
	UpdateEvent(ctx context.Context, update *UpdateEvent) error
	DeleteEvent(ctx context.Context, delete *DeleteEvent) error

	// Conversation model related methods.
	CreateConversation(ctx context.Context, create *Conversation) (*Conversation, error)
	ListConversations(ctx context.Context, find *FindConversation) ([]*Conversation, error)
	UpdateConversation(ctx context.Context, update *UpdateConversation) error

	// ConversationMessage model related methods.
	CreateConversationMessage(ctx context.Context, create *ConversationMessage) (*ConversationMessage, error)
	ListConversationMessages(ctx context.Context, find *FindConversationMessage) ([]*ConversationMessage, error)
}
