package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"modernc.org/sqlite"

	"duochat/internal/model"
)

const (
	mysqlDuplicateEntry = 1062

	sqliteConstraintPrimaryKey = 1555
	sqliteConstraintUnique     = 2067
)

// SQLStore implements RowStore over database/sql. Both MySQL and SQLite
// accept the "?" placeholder, so only duplicate-key detection is dialect specific.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore wraps an open database whose schema has been migrated.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

func isDuplicate(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDuplicateEntry
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		return code == sqliteConstraintUnique || code == sqliteConstraintPrimaryKey
	}
	return false
}

func wrapInsert(table string, err error) error {
	if isDuplicate(err) {
		return fmt.Errorf("insert %s: %w", table, ErrDuplicate)
	}
	return fmt.Errorf("insert %s: %w", table, err)
}

// ListParticipants returns participants ordered by handle.
func (s *SQLStore) ListParticipants(ctx context.Context) ([]model.Participant, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, username, display_name, avatar_url, created_at FROM participants ORDER BY username")
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	var out []model.Participant
	for rows.Next() {
		var (
			p      model.Participant
			avatar sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.Handle, &p.DisplayName, &avatar, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		if avatar.Valid {
			p.AvatarURL = &avatar.String
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpsertParticipant returns the existing row for p.Handle or inserts p.
func (s *SQLStore) UpsertParticipant(ctx context.Context, p model.Participant) (model.Participant, error) {
	var (
		existing model.Participant
		avatar   sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, username, display_name, avatar_url, created_at FROM participants WHERE username = ?", p.Handle).
		Scan(&existing.ID, &existing.Handle, &existing.DisplayName, &avatar, &existing.CreatedAt)
	if err == nil {
		if avatar.Valid {
			existing.AvatarURL = &avatar.String
		}
		return existing, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return model.Participant{}, fmt.Errorf("get participant: %w", err)
	}

	stamp(&p.ID, &p.CreatedAt)
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO participants (id, username, display_name, avatar_url, created_at) VALUES (?, ?, ?, ?, ?)",
		p.ID, p.Handle, p.DisplayName, p.AvatarURL, p.CreatedAt)
	if err != nil {
		return model.Participant{}, wrapInsert(TableParticipants, err)
	}
	return p, nil
}

const messageColumns = "id, sender_id, content, reply_to_id, attachment_url, attachment_type, attachment_name, attachment_size, created_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(sc rowScanner) (model.Message, error) {
	var (
		m                        model.Message
		content, replyTo         sql.NullString
		attURL, attType, attName sql.NullString
		attSize                  sql.NullInt64
	)
	if err := sc.Scan(&m.ID, &m.SenderID, &content, &replyTo, &attURL, &attType, &attName, &attSize, &m.CreatedAt); err != nil {
		return model.Message{}, err
	}
	if content.Valid {
		m.Content = &content.String
	}
	if replyTo.Valid {
		m.ReplyToID = &replyTo.String
	}
	if attURL.Valid {
		m.Attachment = &model.Attachment{
			URL:      attURL.String,
			MIMEType: attType.String,
			Name:     attName.String,
			Size:     attSize.Int64,
		}
	}
	return m, nil
}

// InsertMessage appends a message row.
func (s *SQLStore) InsertMessage(ctx context.Context, m model.Message) (model.Message, error) {
	stamp(&m.ID, &m.CreatedAt)

	var attURL, attType, attName, attSize any
	if a := m.Attachment; a != nil {
		attURL, attType, attName, attSize = a.URL, a.MIMEType, a.Name, a.Size
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO messages ("+messageColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		m.ID, m.SenderID, m.Content, m.ReplyToID, attURL, attType, attName, attSize, m.CreatedAt)
	if err != nil {
		return model.Message{}, wrapInsert(TableMessages, err)
	}
	return m, nil
}

// GetMessage looks a message up by id.
func (s *SQLStore) GetMessage(ctx context.Context, id string) (model.Message, bool, error) {
	m, err := scanMessage(s.db.QueryRowContext(ctx, "SELECT "+messageColumns+" FROM messages WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Message{}, false, nil
	}
	if err != nil {
		return model.Message{}, false, fmt.Errorf("get message: %w", err)
	}
	return m, true, nil
}

// ListMessages returns the whole log ordered by (created_at, id).
func (s *SQLStore) ListMessages(ctx context.Context) ([]model.Message, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+messageColumns+" FROM messages ORDER BY created_at, id")
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var out []model.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

const stateColumns = "id, message_id, user_id, is_important, is_deleted, created_at"

func scanState(sc rowScanner) (model.MessageState, error) {
	var st model.MessageState
	err := sc.Scan(&st.ID, &st.MessageID, &st.UserID, &st.IsImportant, &st.IsDeleted, &st.CreatedAt)
	return st, err
}

// ListStates returns the annotation rows owned by userID.
func (s *SQLStore) ListStates(ctx context.Context, userID string) ([]model.MessageState, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+stateColumns+" FROM message_states WHERE user_id = ?", userID)
	if err != nil {
		return nil, fmt.Errorf("list states: %w", err)
	}
	defer rows.Close()

	var out []model.MessageState
	for rows.Next() {
		st, err := scanState(rows)
		if err != nil {
			return nil, fmt.Errorf("scan state: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// GetState returns the (message, user) annotation row if one exists.
func (s *SQLStore) GetState(ctx context.Context, messageID, userID string) (model.MessageState, bool, error) {
	st, err := scanState(s.db.QueryRowContext(ctx,
		"SELECT "+stateColumns+" FROM message_states WHERE message_id = ? AND user_id = ?", messageID, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.MessageState{}, false, nil
	}
	if err != nil {
		return model.MessageState{}, false, fmt.Errorf("get state: %w", err)
	}
	return st, true, nil
}

// InsertState creates an annotation row. A second row for the same
// (message, user) pair fails with ErrDuplicate.
func (s *SQLStore) InsertState(ctx context.Context, st model.MessageState) (model.MessageState, error) {
	stamp(&st.ID, &st.CreatedAt)
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO message_states ("+stateColumns+") VALUES (?, ?, ?, ?, ?, ?)",
		st.ID, st.MessageID, st.UserID, st.IsImportant, st.IsDeleted, st.CreatedAt)
	if err != nil {
		return model.MessageState{}, wrapInsert(TableMessageStates, err)
	}
	return st, nil
}

// UpdateState overwrites both flags of the (message, user) row.
func (s *SQLStore) UpdateState(ctx context.Context, st model.MessageState) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE message_states SET is_important = ?, is_deleted = ? WHERE message_id = ? AND user_id = ?",
		st.IsImportant, st.IsDeleted, st.MessageID, st.UserID)
	if err != nil {
		return fmt.Errorf("update state: %w", err)
	}
	// MySQL reports zero affected rows when values are unchanged, so only
	// a missing row is treated as an error.
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		if _, found, err := s.GetState(ctx, st.MessageID, st.UserID); err != nil {
			return err
		} else if !found {
			return fmt.Errorf("update state: %w", ErrNotFound)
		}
	}
	return nil
}

const reactionColumns = "id, message_id, user_id, emoji, created_at"

func scanReaction(sc rowScanner) (model.Reaction, error) {
	var r model.Reaction
	err := sc.Scan(&r.ID, &r.MessageID, &r.UserID, &r.Emoji, &r.CreatedAt)
	return r, err
}

// ListReactions returns every reaction ordered by creation.
func (s *SQLStore) ListReactions(ctx context.Context) ([]model.Reaction, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+reactionColumns+" FROM reactions ORDER BY created_at, id")
	if err != nil {
		return nil, fmt.Errorf("list reactions: %w", err)
	}
	defer rows.Close()

	var out []model.Reaction
	for rows.Next() {
		r, err := scanReaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reaction: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// FindReaction looks up the exact (message, user, emoji) triple.
func (s *SQLStore) FindReaction(ctx context.Context, messageID, userID, emoji string) (model.Reaction, bool, error) {
	r, err := scanReaction(s.db.QueryRowContext(ctx,
		"SELECT "+reactionColumns+" FROM reactions WHERE message_id = ? AND user_id = ? AND emoji = ?",
		messageID, userID, emoji))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Reaction{}, false, nil
	}
	if err != nil {
		return model.Reaction{}, false, fmt.Errorf("find reaction: %w", err)
	}
	return r, true, nil
}

// InsertReaction adds a reaction, failing with ErrDuplicate if the triple exists.
func (s *SQLStore) InsertReaction(ctx context.Context, r model.Reaction) (model.Reaction, error) {
	stamp(&r.ID, &r.CreatedAt)
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO reactions ("+reactionColumns+") VALUES (?, ?, ?, ?, ?)",
		r.ID, r.MessageID, r.UserID, r.Emoji, r.CreatedAt)
	if err != nil {
		return model.Reaction{}, wrapInsert(TableReactions, err)
	}
	return r, nil
}

// DeleteReaction hard-deletes the triple. Deleting an absent triple is not an error.
func (s *SQLStore) DeleteReaction(ctx context.Context, messageID, userID, emoji string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM reactions WHERE message_id = ? AND user_id = ? AND emoji = ?", messageID, userID, emoji)
	if err != nil {
		return fmt.Errorf("delete reaction: %w", err)
	}
	return nil
}
