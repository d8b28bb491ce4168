package vclog

import (
	"context"
	"database/sql"

	"github.com/disgoorg/snowflake/v2"
)

// Attribute filter modes stored in a rule's on_attr column, alongside plain
// attribute names.
const (
	OnAttrAll     = "all"     // any attribute matches
	OnAttrTrigger = "trigger" // the triggering change's attribute
)

// Toggle filter modes stored in a rule's on_toggle column. 0 and 1 are the
// literal toggle values.
const (
	ToggleOff     = 0
	ToggleOn      = 1
	ToggleBoth    = 2
	ToggleTrigger = -1 // whichever toggle triggered the rule
)

// Rule subscribes an output channel to change events on a voice channel
// (or all of them), filtered by attribute, toggle and occupancy condition.
// Rules are created and removed only by user command.
type Rule struct {
	ID             int64
	GuildID        snowflake.ID
	SendChannelID  snowflake.ID
	VoiceChannelID snowflake.ID // 0 = every voice channel in the guild
	OnAttr         string       // attribute name, OnAttrAll or OnAttrTrigger
	OnToggle       int
	OnEmpty        bool // fire when the channel just became empty
	OnNonEmpty     bool // fire while the channel still has occupants

	// Display parameters for the digest the rule re-fetches.
	Amount      int
	RemoveDupes bool
	RemoveUndo  bool
	TimeFormat  string
}

// Changes expands the rule's filter into the concrete change kinds its
// digest query should include, given the change that fired it.
func (r Rule) Changes(trigger Change) []Change {
	if r.OnAttr == OnAttrAll {
		switch r.OnToggle {
		case ToggleBoth:
			return AllChanges(nil)
		case ToggleTrigger:
			return AllChanges(&trigger.Toggle)
		default:
			t := r.OnToggle == ToggleOn
			return AllChanges(&t)
		}
	}

	attr := Attribute(r.OnAttr)
	if r.OnAttr == OnAttrTrigger {
		attr = trigger.Attr
	}
	switch r.OnToggle {
	case ToggleBoth:
		return []Change{{attr, true}, {attr, false}}
	case ToggleTrigger:
		return []Change{{attr, trigger.Toggle}}
	default:
		return []Change{{attr, r.OnToggle == ToggleOn}}
	}
}

const ruleColumns = `id, guild_id, send_channel_id, voice_channel_id, on_attr, on_toggle,
	on_empty, on_non_empty, amount, remove_dupes, remove_undo, time_format`

// AddRule persists a rule and assigns its id.
func (s *Store) AddRule(ctx context.Context, r *Rule) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO voice_notifs (guild_id, send_channel_id, voice_channel_id, on_attr, on_toggle,
			on_empty, on_non_empty, amount, remove_dupes, remove_undo, time_format)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.GuildID.String(), r.SendChannelID.String(), r.VoiceChannelID.String(), r.OnAttr, r.OnToggle,
		r.OnEmpty, r.OnNonEmpty, r.Amount, r.RemoveDupes, r.RemoveUndo, r.TimeFormat)
	if err != nil {
		return err
	}
	r.ID, _ = res.LastInsertId()
	return nil
}

// DeleteRule removes a rule by id, scoped to its guild. Returns whether a
// rule was actually removed.
func (s *Store) DeleteRule(ctx context.Context, guildID snowflake.ID, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM voice_notifs WHERE id = ? AND guild_id = ?", id, guildID.String())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// RulesForGuild lists every rule configured in a guild.
func (s *Store) RulesForGuild(ctx context.Context, guildID snowflake.ID) ([]Rule, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+ruleColumns+" FROM voice_notifs WHERE guild_id = ? ORDER BY id", guildID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRules(rows)
}

// MatchRules returns the rules a change event activates, mirroring the
// stored filter columns: channel (or all), attribute (exact, all, or
// trigger), toggle (exact, both, or trigger) and the occupancy condition.
func (s *Store) MatchRules(ctx context.Context, guildID, channelID snowflake.ID, change Change, isEmpty bool) ([]Rule, error) {
	occupancy := "on_non_empty = 1"
	if isEmpty {
		occupancy = "on_empty = 1"
	}
	toggle := ToggleOff
	if change.Toggle {
		toggle = ToggleOn
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+ruleColumns+` FROM voice_notifs
		WHERE guild_id = ?
		AND voice_channel_id IN (?, '0')
		AND on_attr IN (?, ?, ?)
		AND on_toggle IN (?, ?, ?)
		AND `+occupancy,
		guildID.String(), channelID.String(),
		string(change.Attr), OnAttrAll, OnAttrTrigger,
		toggle, ToggleBoth, ToggleTrigger)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRules(rows)
}

func scanRules(rows *sql.Rows) ([]Rule, error) {
	var rules []Rule
	for rows.Next() {
		var r Rule
		var gid, sid, vid string
		if err := rows.Scan(&r.ID, &gid, &sid, &vid, &r.OnAttr, &r.OnToggle,
			&r.OnEmpty, &r.OnNonEmpty, &r.Amount, &r.RemoveDupes, &r.RemoveUndo, &r.TimeFormat); err != nil {
			return nil, err
		}
		r.GuildID, _ = snowflake.Parse(gid)
		r.SendChannelID, _ = snowflake.Parse(sid)
		r.VoiceChannelID, _ = snowflake.Parse(vid)
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// fireTriggers fans a change event out to every matching rule. Each rule's
// digest is fetched and rendered synchronously, so the caller may prune an
// emptied channel's log the moment fireTriggers returns; only the delivery
// runs on its own goroutine, keeping a slow or failing target from blocking
// its siblings or the event pipeline.
func (e *Engine) fireTriggers(ctx context.Context, guildID, channelID snowflake.ID, change Change, isEmpty bool) {
	rules, err := e.store.MatchRules(ctx, guildID, channelID, change, isEmpty)
	if err != nil {
		e.warnf("Failed to match notification rules: %v", err)
		return
	}

	for _, rule := range rules {
		events, err := e.store.Fetch(ctx, Query{
			GuildIDs:    []snowflake.ID{rule.GuildID},
			ChannelIDs:  []snowflake.ID{channelID},
			Changes:     rule.Changes(change),
			RemoveDupes: rule.RemoveDupes,
			RemoveUndo:  rule.RemoveUndo,
			Limit:       rule.Amount,
		})
		if err != nil {
			e.warnf("Failed to fetch events for rule %d: %v", rule.ID, err)
			continue
		}
		content := FormatDigest(events, rule.TimeFormat, DigestHeader(channelID))

		e.fanout.Add(1)
		go func(rule Rule, content string) {
			defer e.fanout.Done()
			defer func() {
				if r := recover(); r != nil {
					e.warnf("Recovered delivering rule %d: %v", rule.ID, r)
				}
			}()
			e.deliverDigest(ctx, rule, content)
		}(rule, content)
	}
}

func (e *Engine) deliverDigest(ctx context.Context, rule Rule, content string) {
	if err := e.limiter.Wait(ctx); err != nil {
		return
	}
	if err := e.sink.Deliver(ctx, rule.SendChannelID, content); err != nil {
		e.warnf("Failed to deliver digest for rule %d to channel %s: %v", rule.ID, rule.SendChannelID, err)
	}
}
