package vclog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// ErrInvalidFilter is returned when remove_undo is requested without
// remove_dupes; undo cancellation without deduplication is not well-defined.
var ErrInvalidFilter = errors.New("vclog: remove_undo requires remove_dupes")

// Event is one persisted voice-state change. Events are append-only; they
// are never mutated, only bulk-deleted when a channel empties or the log is
// reconciled.
type Event struct {
	ID        int64
	GuildID   snowflake.ID
	ChannelID snowflake.ID
	UserID    snowflake.ID
	Change    Change
	At        time.Time
}

// Store persists events and notification rules on an injected database
// handle.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Init creates the store's tables. Safe to call repeatedly.
func (s *Store) Init(ctx context.Context) error {
	tableQueries := []string{
		`CREATE TABLE IF NOT EXISTS voice_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			guild_id TEXT NOT NULL,
			channel_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			change_attr TEXT NOT NULL,
			change_toggle INTEGER NOT NULL,
			at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_voice_events_channel ON voice_events (channel_id, at)`,
		`CREATE TABLE IF NOT EXISTS voice_notifs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			guild_id TEXT NOT NULL,
			send_channel_id TEXT NOT NULL,
			voice_channel_id TEXT NOT NULL DEFAULT '0',
			on_attr TEXT NOT NULL,
			on_toggle INTEGER NOT NULL,
			on_empty INTEGER NOT NULL DEFAULT 0,
			on_non_empty INTEGER NOT NULL DEFAULT 1,
			amount INTEGER NOT NULL DEFAULT -1,
			remove_dupes INTEGER NOT NULL DEFAULT 1,
			remove_undo INTEGER NOT NULL DEFAULT 0,
			time_format TEXT NOT NULL DEFAULT 'R'
		)`,
	}
	for _, q := range tableQueries {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	return nil
}

// Append persists one event. The caller supplies the timestamp so every
// event derived from the same snapshot diff shares one clock read.
func (s *Store) Append(ctx context.Context, e *Event) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO voice_events (guild_id, channel_id, user_id, change_attr, change_toggle, at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, e.GuildID.String(), e.ChannelID.String(), e.UserID.String(), string(e.Change.Attr), e.Change.Toggle, e.At.UTC())
	if err != nil {
		return err
	}
	e.ID, _ = res.LastInsertId()
	return nil
}

// DeleteChannel removes every event recorded for a voice channel. Called
// when the channel's occupancy reaches zero; queries tolerate an empty log.
func (s *Store) DeleteChannel(ctx context.Context, channelID snowflake.ID) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM voice_events WHERE channel_id = ?", channelID.String())
	return err
}

// DeleteAll clears the whole event log. Reconciliation runs it before
// seeding synthetic baseline events.
func (s *Store) DeleteAll(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM voice_events")
	return err
}

// UserFilter restricts a query to a set of users, an exclusion set, or both.
type UserFilter struct {
	Include []snowflake.ID
	Exclude []snowflake.ID
}

// Query is a parameterized historical fetch. All filters are conjunctive.
type Query struct {
	GuildIDs   []snowflake.ID
	ChannelIDs []snowflake.ID
	Users      UserFilter
	Changes    []Change

	// RemoveDupes keeps only the most recent event per (user, kind).
	// RemoveUndo widens the group to (user, attribute) so the latest toggle
	// direction wins; it requires RemoveDupes.
	RemoveDupes bool
	RemoveUndo  bool

	// Since drops events older than the given instant; zero means unbounded.
	Since time.Time

	// Limit caps rows after filtering and grouping, most recent first.
	// Negative means no cap.
	Limit int
}

// Fetch answers a Query, ordered newest-first. Timestamp ties are broken by
// highest id, so results are deterministic.
func (s *Store) Fetch(ctx context.Context, q Query) ([]Event, error) {
	if q.RemoveUndo && !q.RemoveDupes {
		return nil, ErrInvalidFilter
	}

	var where []string
	var args []any

	if len(q.GuildIDs) > 0 {
		where = append(where, inClause("guild_id", len(q.GuildIDs)))
		for _, id := range q.GuildIDs {
			args = append(args, id.String())
		}
	}
	if len(q.ChannelIDs) > 0 {
		where = append(where, inClause("channel_id", len(q.ChannelIDs)))
		for _, id := range q.ChannelIDs {
			args = append(args, id.String())
		}
	}
	if len(q.Users.Include) > 0 {
		where = append(where, inClause("user_id", len(q.Users.Include)))
		for _, id := range q.Users.Include {
			args = append(args, id.String())
		}
	}
	if len(q.Users.Exclude) > 0 {
		where = append(where, notInClause("user_id", len(q.Users.Exclude)))
		for _, id := range q.Users.Exclude {
			args = append(args, id.String())
		}
	}
	if len(q.Changes) > 0 {
		pairs := make([]string, len(q.Changes))
		for i, c := range q.Changes {
			pairs[i] = "(change_attr = ? AND change_toggle = ?)"
			args = append(args, string(c.Attr), c.Toggle)
		}
		where = append(where, "("+strings.Join(pairs, " OR ")+")")
	}
	if !q.Since.IsZero() {
		where = append(where, "at >= ?")
		args = append(args, q.Since.UTC())
	}

	whereSQL := ""
	if len(where) > 0 {
		whereSQL = " WHERE " + strings.Join(where, " AND ")
	}

	var sb strings.Builder
	sb.WriteString("SELECT id, guild_id, channel_id, user_id, change_attr, change_toggle, at FROM ")
	if q.RemoveDupes {
		// Group by (user, kind), or (user, attribute) when undo cancellation
		// is on, and keep the newest row per group. Ties fall to highest id.
		partition := "user_id, change_attr, change_toggle"
		if q.RemoveUndo {
			partition = "user_id, change_attr"
		}
		sb.WriteString("(SELECT *, ROW_NUMBER() OVER (PARTITION BY ")
		sb.WriteString(partition)
		sb.WriteString(" ORDER BY at DESC, id DESC) AS rn FROM voice_events")
		sb.WriteString(whereSQL)
		sb.WriteString(") WHERE rn = 1")
	} else {
		sb.WriteString("voice_events")
		sb.WriteString(whereSQL)
	}
	sb.WriteString(" ORDER BY at DESC, id DESC")
	if q.Limit >= 0 {
		sb.WriteString(" LIMIT ?")
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var gid, cid, uid, attr string
		if err := rows.Scan(&e.ID, &gid, &cid, &uid, &attr, &e.Change.Toggle, &e.At); err != nil {
			return nil, err
		}
		e.GuildID, _ = snowflake.Parse(gid)
		e.ChannelID, _ = snowflake.Parse(cid)
		e.UserID, _ = snowflake.Parse(uid)
		e.Change.Attr = Attribute(attr)
		e.At = e.At.UTC()
		events = append(events, e)
	}
	return events, rows.Err()
}

func inClause(col string, n int) string {
	return col + " IN (?" + strings.Repeat(", ?", n-1) + ")"
}

func notInClause(col string, n int) string {
	return col + " NOT IN (?" + strings.Repeat(", ?", n-1) + ")"
}
