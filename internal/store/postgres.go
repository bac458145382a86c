package store

import (
	"context"
	"database/sql"
	"errors"
)

// Postgres persists messages and pins over a database/sql connection
// using the pgx stdlib driver.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) Append(ctx context.Context, msg *Message) error {
	query := `INSERT INTO messages (id, room, sender_id, sender_name, kind, body, created_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := p.db.ExecContext(ctx, query,
		msg.ID, msg.Room, msg.SenderID, msg.SenderName, msg.Kind, msg.Body, msg.CreatedAt)
	return err
}

func (p *Postgres) Query(ctx context.Context, room string, limit int) ([]Message, error) {
	// Newest tail first, then reversed so the caller always sees
	// ascending timestamps.
	query := `
		SELECT id, room, sender_id, sender_name, kind, body, created_at
		FROM messages
		WHERE room = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`
	rows, err := p.db.QueryContext(ctx, query, room, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var msg Message
		if err := rows.Scan(&msg.ID, &msg.Room, &msg.SenderID, &msg.SenderName,
			&msg.Kind, &msg.Body, &msg.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (p *Postgres) GetPinned(ctx context.Context, room string) (*Message, error) {
	query := `
		SELECT m.id, m.room, m.sender_id, m.sender_name, m.kind, m.body, m.created_at
		FROM pins p
		JOIN messages m ON m.id = p.message_id
		WHERE p.room = $1
	`
	var msg Message
	err := p.db.QueryRowContext(ctx, query, room).Scan(&msg.ID, &msg.Room,
		&msg.SenderID, &msg.SenderName, &msg.Kind, &msg.Body, &msg.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	msg.Pinned = true
	return &msg, nil
}

func (p *Postgres) SetPinned(ctx context.Context, room string, msg *Message) error {
	if msg == nil {
		_, err := p.db.ExecContext(ctx, `DELETE FROM pins WHERE room = $1`, room)
		return err
	}
	query := `INSERT INTO pins (room, message_id) VALUES ($1, $2)
              ON CONFLICT (room) DO UPDATE SET message_id = EXCLUDED.message_id`
	_, err := p.db.ExecContext(ctx, query, room, msg.ID)
	return err
}
