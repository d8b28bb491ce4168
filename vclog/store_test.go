package vclog

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testGuild   = snowflake.ID(1000)
	testChannel = snowflake.ID(2000)
	userAlice   = snowflake.ID(1)
	userBob     = snowflake.ID(2)
)

func newTestStore(t *testing.T) (*Store, context.Context) {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	// A second connection would see a different in-memory database.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	store := NewStore(db)
	ctx := context.Background()
	require.NoError(t, store.Init(ctx))
	return store, ctx
}

func appendAt(t *testing.T, store *Store, ctx context.Context, user snowflake.ID, change Change, at time.Time) Event {
	t.Helper()
	e := Event{
		GuildID:   testGuild,
		ChannelID: testChannel,
		UserID:    user,
		Change:    change,
		At:        at,
	}
	require.NoError(t, store.Append(ctx, &e))
	require.NotZero(t, e.ID)
	return e
}

func fetchChanges(events []Event) []Change {
	out := make([]Change, len(events))
	for i, e := range events {
		out[i] = e.Change
	}
	return out
}

func TestFetchRejectsUndoWithoutDupes(t *testing.T) {
	store, ctx := newTestStore(t)
	_, err := store.Fetch(ctx, Query{RemoveUndo: true, Limit: -1})
	require.ErrorIs(t, err, ErrInvalidFilter)
}

func TestFetchNewestFirstWithIDTieBreak(t *testing.T) {
	store, ctx := newTestStore(t)
	at := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	first := appendAt(t, store, ctx, userAlice, ChannelJoin, at)
	second := appendAt(t, store, ctx, userAlice, SelfMute, at) // same instant
	third := appendAt(t, store, ctx, userAlice, SelfUnmute, at.Add(time.Minute))

	events, err := store.Fetch(ctx, Query{Limit: -1})
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, third.ID, events[0].ID)
	assert.Equal(t, second.ID, events[1].ID, "equal timestamps fall back to highest id first")
	assert.Equal(t, first.ID, events[2].ID)
}

func TestFetchRemoveDupes(t *testing.T) {
	store, ctx := newTestStore(t)
	at := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	appendAt(t, store, ctx, userAlice, SelfMute, at)
	appendAt(t, store, ctx, userAlice, SelfMute, at.Add(time.Minute))
	latest := appendAt(t, store, ctx, userAlice, SelfMute, at.Add(2*time.Minute))
	appendAt(t, store, ctx, userBob, SelfMute, at)

	events, err := store.Fetch(ctx, Query{RemoveDupes: true, Limit: -1})
	require.NoError(t, err)
	require.Len(t, events, 2, "one row per (user, kind)")
	assert.Equal(t, latest.ID, events[0].ID)
	assert.Equal(t, userBob, events[1].UserID)
}

func TestFetchRemoveUndo(t *testing.T) {
	store, ctx := newTestStore(t)
	at := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	appendAt(t, store, ctx, userAlice, SelfMute, at)
	appendAt(t, store, ctx, userAlice, SelfUnmute, at.Add(time.Minute))

	// Dedup alone keeps both directions.
	events, err := store.Fetch(ctx, Query{RemoveDupes: true, Limit: -1})
	require.NoError(t, err)
	assert.Len(t, events, 2)

	// Undo cancellation keeps only the latest direction per attribute.
	events, err = store.Fetch(ctx, Query{RemoveDupes: true, RemoveUndo: true, Limit: -1})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, SelfUnmute, events[0].Change)

	// Same in the other order: the mute wins.
	require.NoError(t, store.DeleteAll(ctx))
	appendAt(t, store, ctx, userAlice, SelfUnmute, at)
	appendAt(t, store, ctx, userAlice, SelfMute, at.Add(time.Minute))

	events, err = store.Fetch(ctx, Query{RemoveDupes: true, RemoveUndo: true, Limit: -1})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, SelfMute, events[0].Change)
}

func TestFetchFilters(t *testing.T) {
	store, ctx := newTestStore(t)
	at := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	appendAt(t, store, ctx, userAlice, ChannelJoin, at)
	appendAt(t, store, ctx, userBob, ChannelJoin, at.Add(time.Minute))
	appendAt(t, store, ctx, userAlice, SelfMute, at.Add(2*time.Minute))

	otherChannel := Event{
		GuildID:   testGuild,
		ChannelID: snowflake.ID(9999),
		UserID:    userAlice,
		Change:    ChannelJoin,
		At:        at,
	}
	require.NoError(t, store.Append(ctx, &otherChannel))

	// Channel filter.
	events, err := store.Fetch(ctx, Query{ChannelIDs: []snowflake.ID{testChannel}, Limit: -1})
	require.NoError(t, err)
	assert.Len(t, events, 3)

	// Guild filter excludes nothing here, a foreign guild excludes everything.
	events, err = store.Fetch(ctx, Query{GuildIDs: []snowflake.ID{testGuild}, Limit: -1})
	require.NoError(t, err)
	assert.Len(t, events, 4)
	events, err = store.Fetch(ctx, Query{GuildIDs: []snowflake.ID{12345}, Limit: -1})
	require.NoError(t, err)
	assert.Empty(t, events)

	// User include and exclude.
	events, err = store.Fetch(ctx, Query{Users: UserFilter{Include: []snowflake.ID{userBob}}, Limit: -1})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, userBob, events[0].UserID)

	events, err = store.Fetch(ctx, Query{Users: UserFilter{Exclude: []snowflake.ID{userBob}}, Limit: -1})
	require.NoError(t, err)
	assert.Len(t, events, 3)

	// Kind filter.
	events, err = store.Fetch(ctx, Query{Changes: []Change{SelfMute}, Limit: -1})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, SelfMute, events[0].Change)

	// Toggle matters: self_unmute matches nothing.
	events, err = store.Fetch(ctx, Query{Changes: []Change{SelfUnmute}, Limit: -1})
	require.NoError(t, err)
	assert.Empty(t, events)

	// Since filter keeps the boundary event.
	events, err = store.Fetch(ctx, Query{Since: at.Add(time.Minute), Limit: -1})
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestFetchLimitAppliesAfterGrouping(t *testing.T) {
	store, ctx := newTestStore(t)
	at := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		appendAt(t, store, ctx, userAlice, SelfMute, at.Add(time.Duration(i)*time.Minute))
	}
	appendAt(t, store, ctx, userBob, ChannelJoin, at.Add(10*time.Minute))

	// Dedup collapses Alice's five mutes into one; the limit then keeps the
	// two surviving rows rather than cutting inside the duplicate run.
	events, err := store.Fetch(ctx, Query{RemoveDupes: true, Limit: 2})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, []Change{ChannelJoin, SelfMute}, fetchChanges(events))

	events, err = store.Fetch(ctx, Query{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, events, 2)

	// Limit zero is a valid cap; negative means unbounded.
	events, err = store.Fetch(ctx, Query{Limit: 0})
	require.NoError(t, err)
	assert.Empty(t, events)
	events, err = store.Fetch(ctx, Query{Limit: -1})
	require.NoError(t, err)
	assert.Len(t, events, 6)
}

func TestDeleteChannelAndAll(t *testing.T) {
	store, ctx := newTestStore(t)
	at := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	appendAt(t, store, ctx, userAlice, ChannelJoin, at)
	other := Event{
		GuildID:   testGuild,
		ChannelID: snowflake.ID(9999),
		UserID:    userBob,
		Change:    ChannelJoin,
		At:        at,
	}
	require.NoError(t, store.Append(ctx, &other))

	require.NoError(t, store.DeleteChannel(ctx, testChannel))
	events, err := store.Fetch(ctx, Query{Limit: -1})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, other.ChannelID, events[0].ChannelID)

	require.NoError(t, store.DeleteAll(ctx))
	events, err = store.Fetch(ctx, Query{Limit: -1})
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestFetchRoundTripsIdentifiers(t *testing.T) {
	store, ctx := newTestStore(t)
	at := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	appendAt(t, store, ctx, userAlice, StartStream, at)

	events, err := store.Fetch(ctx, Query{Limit: -1})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, testGuild, events[0].GuildID)
	assert.Equal(t, testChannel, events[0].ChannelID)
	assert.Equal(t, userAlice, events[0].UserID)
	assert.Equal(t, StartStream, events[0].Change)
	assert.True(t, events[0].At.Equal(at))
}
