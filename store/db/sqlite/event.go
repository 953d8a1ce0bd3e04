package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/hrygo/familycal/store"
)

func (d *DB) CreateEvent(ctx context.Context, create *store.Event) (*store.Event, error) {
	fields := []string{
		"uid", "creator_id", "family_id", "title", "title_lower", "description", "location",
		"start_ts", "end_ts", "all_day", "timezone",
		"recurrence_rule", "recurrence_text",
	}
	placeholderValues := []any{
		create.UID, create.CreatorID, create.FamilyID, create.Title, strings.ToLower(create.Title), create.Description, create.Location,
		create.StartTs, create.EndTs, create.AllDay, create.Timezone,
		create.RecurrenceRule, create.RecurrenceText,
	}

	if create.CreatedTs != 0 {
		fields = append(fields, "created_ts")
		placeholderValues = append(placeholderValues, create.CreatedTs)
	}
	if create.UpdatedTs != 0 {
		fields = append(fields, "updated_ts")
		placeholderValues = append(placeholderValues, create.UpdatedTs)
	}

	stmt := `INSERT INTO event (` + strings.Join(fields, ", ") + `)
		VALUES (` + placeholders(len(placeholderValues)) + `)
		RETURNING id, created_ts, updated_ts, row_status`

	if err := d.db.QueryRowContext(ctx, stmt, placeholderValues...).Scan(
		&create.ID,
		&create.CreatedTs,
		&create.UpdatedTs,
		&create.RowStatus,
	); err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	return create, nil
}

func (d *DB) ListEvents(ctx context.Context, find *store.FindEvent) ([]*store.Event, error) {
	where, args := []string{"1 = 1"}, []any{}
	where, args = scopeCondition(find.Scope, where, args)

	if v := find.ID; v != nil {
		where, args = append(where, "event.id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.UID; v != nil {
		where, args = append(where, "event.uid = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.RowStatus; v != nil {
		where, args = append(where, "event.row_status = "+placeholder(len(args)+1)), append(args, *v)
	}
	// SQLite's LOWER() folds ASCII only, so titles are compared on title_lower,
	// which is lowercased in Go on every write.
	if v := find.TitleEquals; v != nil {
		where, args = append(where, "event.title_lower = "+placeholder(len(args)+1)), append(args, strings.ToLower(*v))
	}
	if v := find.TitleContains; v != nil {
		where, args = append(where, "event.title_lower LIKE "+placeholder(len(args)+1)+` ESCAPE '\'`), append(args, store.LikeContains(*v))
	}
	if v := find.StartTsAfter; v != nil {
		where, args = append(where, "event.start_ts >= "+placeholder(len(args)+1)), append(args, *v)
	}

	orderBy := "ORDER BY event.start_ts ASC, event.id ASC"
	if find.OrderByStartDesc {
		orderBy = "ORDER BY event.start_ts DESC, event.id DESC"
	}

	query := `
		SELECT
			id, uid, creator_id, family_id, created_ts, updated_ts, row_status,
			title, description, location,
			start_ts, end_ts, all_day, timezone,
			recurrence_rule, recurrence_text
		FROM event
		WHERE ` + strings.Join(where, " AND ") + ` ` + orderBy

	if find.Limit != nil {
		query = fmt.Sprintf("%s LIMIT %d", query, *find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	list := make([]*store.Event, 0)
	for rows.Next() {
		var event store.Event
		var familyID sql.NullInt32
		var endTs sql.NullInt64
		var recurrenceRule, recurrenceText sql.NullString

		if err := rows.Scan(
			&event.ID,
			&event.UID,
			&event.CreatorID,
			&familyID,
			&event.CreatedTs,
			&event.UpdatedTs,
			&event.RowStatus,
			&event.Title,
			&event.Description,
			&event.Location,
			&event.StartTs,
			&endTs,
			&event.AllDay,
			&event.Timezone,
			&recurrenceRule,
			&recurrenceText,
		); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}

		if familyID.Valid {
			event.FamilyID = &familyID.Int32
		}
		if endTs.Valid {
			event.EndTs = &endTs.Int64
		}
		if recurrenceRule.Valid && recurrenceRule.String != "" {
			event.RecurrenceRule = &recurrenceRule.String
		}
		if recurrenceText.Valid && recurrenceText.String != "" {
			event.RecurrenceText = &recurrenceText.String
		}

		list = append(list, &event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}

	return list, nil
}

func (d *DB) UpdateEvent(ctx context.Context, update *store.UpdateEvent) error {
	set, args := []string{}, []any{}

	if v := update.RowStatus; v != nil {
		set, args = append(set, "row_status = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.Title; v != nil {
		set, args = append(set, "title = "+placeholder(len(args)+1)), append(args, *v)
		set, args = append(set, "title_lower = "+placeholder(len(args)+1)), append(args, strings.ToLower(*v))
	}
	if v := update.Description; v != nil {
		set, args = append(set, "description = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.Location; v != nil {
		set, args = append(set, "location = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.StartTs; v != nil {
		set, args = append(set, "start_ts = "+placeholder(len(args)+1)), append(args, *v)
	}
	if update.ClearEndTs {
		set = append(set, "end_ts = NULL")
	} else if v := update.EndTs; v != nil {
		set, args = append(set, "end_ts = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.AllDay; v != nil {
		set, args = append(set, "all_day = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.Timezone; v != nil {
		set, args = append(set, "timezone = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.RecurrenceRule; v != nil {
		set, args = append(set, "recurrence_rule = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.RecurrenceText; v != nil {
		set, args = append(set, "recurrence_text = "+placeholder(len(args)+1)), append(args, *v)
	}

	// If no fields to update, return early
	if len(set) == 0 {
		return nil
	}

	updatedTs := time.Now().Unix()
	if update.UpdatedTs != nil {
		updatedTs = *update.UpdatedTs
	}
	set, args = append(set, "updated_ts = "+placeholder(len(args)+1)), append(args, updatedTs)

	where := []string{"event.id = " + placeholder(len(args)+1)}
	args = append(args, update.ID)
	where, args = scopeCondition(update.Scope, where, args)

	stmt := `UPDATE event SET ` + strings.Join(set, ", ") + ` WHERE ` + strings.Join(where, " AND ")
	result, err := d.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("failed to update event: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return store.ErrEventNotFound
	}

	return nil
}

func (d *DB) DeleteEvent(ctx context.Context, delete *store.DeleteEvent) error {
	where, args := []string{"event.id = " + placeholder(1)}, []any{delete.ID}
	where, args = scopeCondition(delete.Scope, where, args)

	stmt := `DELETE FROM event WHERE ` + strings.Join(where, " AND ")
	result, err := d.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}

	if rows, _ := result.RowsAffected(); rows == 0 {
		return store.ErrEventNotFound
	}

	return nil
}
