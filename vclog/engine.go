package vclog

import (
	"context"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"golang.org/x/time/rate"
)

// Source is the engine's view of the live event source: current occupancy
// for reconciliation and the emptiness predicate for pruning.
type Source interface {
	// ChannelEmpty reports whether a voice channel currently has no occupants.
	ChannelEmpty(guildID, channelID snowflake.ID) bool
	// VisitVoiceStates calls fn for every live voice state across every
	// observed guild.
	VisitVoiceStates(fn func(guildID, userID snowflake.ID, live Snapshot))
}

// Sink delivers a formatted digest to an output channel. Failures are
// caught per delivery and never abort the event pipeline.
type Sink interface {
	Deliver(ctx context.Context, channelID snowflake.ID, content string) error
}

// Logf matches the sys package's printf-style log helpers.
type Logf func(format string, v ...any)

// Engine runs the classify -> persist -> trigger pipeline and owns
// reconciliation. All collaborators are injected; nothing in here reaches
// for package-level state.
type Engine struct {
	store   *Store
	src     Source
	sink    Sink
	now     func() time.Time
	limiter *rate.Limiter
	logf    Logf
	warnf   Logf

	fanout sync.WaitGroup
}

func NewEngine(store *Store, src Source, sink Sink, logf, warnf Logf) *Engine {
	if logf == nil {
		logf = func(string, ...any) {}
	}
	if warnf == nil {
		warnf = func(string, ...any) {}
	}
	return &Engine{
		store: store,
		src:   src,
		sink:  sink,
		now:   time.Now,
		// Digest fan-out shares one limiter so a busy channel cannot flood
		// the output channels.
		limiter: rate.NewLimiter(rate.Limit(4), 10),
		logf:    logf,
		warnf:   warnf,
	}
}

// Store exposes the record store for the command surface.
func (e *Engine) Store() *Store { return e.store }

// Fetch answers a historical query.
func (e *Engine) Fetch(ctx context.Context, q Query) ([]Event, error) {
	return e.store.Fetch(ctx, q)
}

// HandleUpdate processes one observed before/after snapshot pair: every
// detected change is persisted with a shared timestamp, matched against
// notification rules, and a channel that just emptied has its log pruned.
// Persistence errors propagate; the batch stops at the first one.
func (e *Engine) HandleUpdate(ctx context.Context, guildID, userID snowflake.ID, old, new Snapshot) error {
	at := e.now().UTC()
	for _, change := range FindChanges(old, new, false) {
		channelID := new.ChannelID
		isEmpty := false
		if change == ChannelLeave {
			channelID = old.ChannelID
			isEmpty = e.src.ChannelEmpty(guildID, channelID)
		} else if channelID == 0 {
			// Flag changes arriving in the same batch as a disconnect still
			// belong to the channel the user was in.
			channelID = old.ChannelID
		}

		ev := &Event{
			GuildID:   guildID,
			ChannelID: channelID,
			UserID:    userID,
			Change:    change,
			At:        at,
		}
		if err := e.store.Append(ctx, ev); err != nil {
			return err
		}
		e.logf("%s in channel %s (guild %s, user %s)", change.Name(), channelID, guildID, userID)

		// fireTriggers captures every matched rule's digest before this
		// returns, so pruning below cannot empty a pending digest.
		e.fireTriggers(ctx, guildID, channelID, change, isEmpty)

		if isEmpty {
			if err := e.store.DeleteChannel(ctx, channelID); err != nil {
				e.warnf("Failed to prune empty channel %s: %v", channelID, err)
			}
		}
	}
	return nil
}

// Reconcile rebuilds the event log from live occupancy: the log is cleared,
// then every currently-present user is run through the normal pipeline as a
// diff against an absent baseline. Join times read as the reconciliation
// time. A failing user/channel is logged and skipped.
func (e *Engine) Reconcile(ctx context.Context) error {
	e.logf("Reconciling voice logs against live voice states...")
	if err := e.store.DeleteAll(ctx); err != nil {
		return err
	}

	users := 0
	channels := map[snowflake.ID]struct{}{}
	e.src.VisitVoiceStates(func(guildID, userID snowflake.ID, live Snapshot) {
		if live.ChannelID == 0 {
			return
		}
		if err := e.HandleUpdate(ctx, guildID, userID, Snapshot{}, live); err != nil {
			e.warnf("Skipping channel %s during reconciliation: %v", live.ChannelID, err)
			return
		}
		users++
		channels[live.ChannelID] = struct{}{}
	})

	e.logf("Reconciliation complete: %d users across %d channels", users, len(channels))
	return nil
}

// Wait blocks until all in-flight digest deliveries have finished. Used on
// shutdown and by tests.
func (e *Engine) Wait() {
	e.fanout.Wait()
}
