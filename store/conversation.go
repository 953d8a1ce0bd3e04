package store

import "context"

type Conversation struct {
	ID        int32
	UID       string
	CreatorID int32
	Title     string
	CreatedTs int64
	UpdatedTs int64
	RowStatus RowStatus
}

type FindConversation struct {
	ID        *int32
	UID       *string
	CreatorID *int32
}

type UpdateConversation struct {
	ID        int32
	Title     *string
	UpdatedTs *int64
}

type MessageRole string

const (
	MessageRoleUser      MessageRole = "USER"
	MessageRoleAssistant MessageRole = "ASSISTANT"
)

// ConversationMessage is an immutable entry in a conversation's ordered log.
type ConversationMessage struct {
	ID             int32
	ConversationID int32
	Role           MessageRole
	Content        string
	CreatedTs      int64
}

type FindConversationMessage struct {
	ConversationID int32
	// Last keeps only the most recent N messages, still returned oldest first.
	Last *int
}

func (s *Store) CreateConversation(ctx context.Context, create *Conversation) (*Conversation, error) {
	return s.driver.CreateConversation(ctx, create)
}

func (s *Store) GetConversation(ctx context.Context, find *FindConversation) (*Conversation, error) {
	list, err := s.driver.ListConversations(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

func (s *Store) ListConversations(ctx context.Context, find *FindConversation) ([]*Conversation, error) {
	return s.driver.ListConversations(ctx, find)
}

func (s *Store) UpdateConversation(ctx context.Context, update *UpdateConversation) error {
	return s.driver.UpdateConversation(ctx, update)
}

func (s *Store) CreateConversationMessage(ctx context.Context, create *ConversationMessage) (*ConversationMessage, error) {
	return s.driver.CreateConversationMessage(ctx, create)
}

func (s *Store) ListConversationMessages(ctx context.Context, find *FindConversationMessage) ([]*ConversationMessage, error) {
	return s.driver.ListConversationMessages(ctx, find)
}
