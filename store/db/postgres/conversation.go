package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hrygo/familycal/store"
)

func (d *DB) CreateConversation(ctx context.Context, create *store.Conversation) (*store.Conversation, error) {
	fields := []string{"uid", "creator_id", "title"}
	args := []any{create.UID, create.CreatorID, create.Title}

	if create.CreatedTs != 0 {
		fields, args = append(fields, "created_ts"), append(args, create.CreatedTs)
	}
	if create.UpdatedTs != 0 {
		fields, args = append(fields, "updated_ts"), append(args, create.UpdatedTs)
	}

	stmt := `INSERT INTO conversation (` + strings.Join(fields, ", ") + `)
		VALUES (` + placeholders(len(args)) + `)
		RETURNING id, created_ts, updated_ts, row_status`
	if err := d.db.QueryRowContext(ctx, stmt, args...).Scan(
		&create.ID,
		&create.CreatedTs,
		&create.UpdatedTs,
		&create.RowStatus,
	); err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	return create, nil
}

func (d *DB) ListConversations(ctx context.Context, find *store.FindConversation) ([]*store.Conversation, error) {
	where, args := []string{"1 = 1"}, []any{}

	if v := find.ID; v != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.UID; v != nil {
		where, args = append(where, "uid = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.CreatorID; v != nil {
		where, args = append(where, "creator_id = "+placeholder(len(args)+1)), append(args, *v)
	}

	query := `SELECT id, uid, creator_id, title, created_ts, updated_ts, row_status
		FROM conversation
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY updated_ts DESC, id DESC`

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer rows.Close()

	list := make([]*store.Conversation, 0)
	for rows.Next() {
		var c store.Conversation
		if err := rows.Scan(&c.ID, &c.UID, &c.CreatorID, &c.Title, &c.CreatedTs, &c.UpdatedTs, &c.RowStatus); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		list = append(list, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate conversations: %w", err)
	}
	return list, nil
}

func (d *DB) UpdateConversation(ctx context.Context, update *store.UpdateConversation) error {
	set, args := []string{}, []any{}
	if v := update.Title; v != nil {
		set, args = append(set, "title = "+placeholder(len(args)+1)), append(args, *v)
	}

	updatedTs := time.Now().Unix()
	if update.UpdatedTs != nil {
		updatedTs = *update.UpdatedTs
	}
	set, args = append(set, "updated_ts = "+placeholder(len(args)+1)), append(args, updatedTs)
	args = append(args, update.ID)

	stmt := `UPDATE conversation SET ` + strings.Join(set, ", ") + ` WHERE id = ` + placeholder(len(args))
	if _, err := d.db.ExecContext(ctx, stmt, args...); err != nil {
		return fmt.Errorf("failed to update conversation: %w", err)
	}
	return nil
}

func (d *DB) CreateConversationMessage(ctx context.Context, create *store.ConversationMessage) (*store.ConversationMessage, error) {
	fields := []string{"conversation_id", "role", "content"}
	args := []any{create.ConversationID, create.Role, create.Content}
	if create.CreatedTs != 0 {
		fields, args = append(fields, "created_ts"), append(args, create.CreatedTs)
	}

	stmt := `INSERT INTO conversation_message (` + strings.Join(fields, ", ") + `)
		VALUES (` + placeholders(len(args)) + `)
		RETURNING id, created_ts`
	if err := d.db.QueryRowContext(ctx, stmt, args...).Scan(&create.ID, &create.CreatedTs); err != nil {
		return nil, fmt.Errorf("failed to create conversation message: %w", err)
	}
	return create, nil
}

func (d *DB) ListConversationMessages(ctx context.Context, find *store.FindConversationMessage) ([]*store.ConversationMessage, error) {
	query := `SELECT id, conversation_id, role, content, created_ts
		FROM conversation_message
		WHERE conversation_id = ` + placeholder(1) + `
		ORDER BY id ASC`
	args := []any{find.ConversationID}

	if find.Last != nil {
		query = `SELECT id, conversation_id, role, content, created_ts FROM (
			SELECT id, conversation_id, role, content, created_ts
			FROM conversation_message
			WHERE conversation_id = ` + placeholder(1) + `
			ORDER BY id DESC
			LIMIT ` + placeholder(2) + `
		) recent ORDER BY id ASC`
		args = append(args, *find.Last)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversation messages: %w", err)
	}
	defer rows.Close()

	list := make([]*store.ConversationMessage, 0)
	for rows.Next() {
		var m store.ConversationMessage
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.CreatedTs); err != nil {
			return nil, fmt.Errorf("failed to scan conversation message: %w", err)
		}
		list = append(list, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate conversation messages: %w", err)
	}
	return list, nil
}
