// Package vclog records voice-state transitions and answers historical
// queries about them. The engine is constructed with explicit dependencies
// (database handle, event source, delivery sink) so it can be exercised
// against an in-memory store.
package vclog

import (
	"github.com/disgoorg/snowflake/v2"
)

// Attribute identifies one tracked voice-state attribute. The set is closed:
// adding an attribute means adding it here, to Snapshot, and to the registry
// below.
type Attribute string

const (
	AttrDeaf         Attribute = "deaf"
	AttrMute         Attribute = "mute"
	AttrSelfDeaf     Attribute = "self_deaf"
	AttrSelfMute     Attribute = "self_mute"
	AttrStream       Attribute = "self_stream"
	AttrVideo        Attribute = "self_video"
	AttrSuppress     Attribute = "suppress"
	AttrSpeakRequest Attribute = "requested_to_speak"
	AttrAFK          Attribute = "afk"
	AttrChannel      Attribute = "channel"
)

// Snapshot is a point-in-time read of one user's voice attributes.
// ChannelID 0 means the user is in no voice channel. Snapshots are never
// persisted; only diffs between two snapshots are.
type Snapshot struct {
	ChannelID    snowflake.ID
	Deaf         bool
	Mute         bool
	SelfDeaf     bool
	SelfMute     bool
	SelfStream   bool
	SelfVideo    bool
	Suppress     bool
	SpeakRequest bool
	AFK          bool
}

// boolAttributes is the fixed (attribute, accessor) registry shared by the
// diffing function and the tests. Declaration order is the emission order of
// FindChanges; consumers re-sort by time, so the order carries no meaning.
var boolAttributes = []struct {
	Attr Attribute
	Get  func(Snapshot) bool
}{
	{AttrDeaf, func(s Snapshot) bool { return s.Deaf }},
	{AttrMute, func(s Snapshot) bool { return s.Mute }},
	{AttrSelfDeaf, func(s Snapshot) bool { return s.SelfDeaf }},
	{AttrSelfMute, func(s Snapshot) bool { return s.SelfMute }},
	{AttrStream, func(s Snapshot) bool { return s.SelfStream }},
	{AttrVideo, func(s Snapshot) bool { return s.SelfVideo }},
	{AttrSuppress, func(s Snapshot) bool { return s.Suppress }},
	{AttrSpeakRequest, func(s Snapshot) bool { return s.SpeakRequest }},
	{AttrAFK, func(s Snapshot) bool { return s.AFK }},
}

// Change is one discrete observable transition: an attribute plus the
// direction it toggled.
type Change struct {
	Attr   Attribute
	Toggle bool
}

// Opposite returns the change that would undo this one. It is an involution:
// c.Opposite().Opposite() == c.
func (c Change) Opposite() Change {
	return Change{Attr: c.Attr, Toggle: !c.Toggle}
}

// The full taxonomy, mirroring the attribute registry.
var (
	ServerDeafen      = Change{AttrDeaf, true}
	ServerUndeafen    = Change{AttrDeaf, false}
	ServerMute        = Change{AttrMute, true}
	ServerUnmute      = Change{AttrMute, false}
	SelfDeafen        = Change{AttrSelfDeaf, true}
	SelfUndeafen      = Change{AttrSelfDeaf, false}
	SelfMute          = Change{AttrSelfMute, true}
	SelfUnmute        = Change{AttrSelfMute, false}
	StartStream       = Change{AttrStream, true}
	EndStream         = Change{AttrStream, false}
	StartVideo        = Change{AttrVideo, true}
	EndVideo          = Change{AttrVideo, false}
	Suppressed        = Change{AttrSuppress, true}
	Unsuppressed      = Change{AttrSuppress, false}
	SpeakRequestStart = Change{AttrSpeakRequest, true}
	SpeakRequestEnd   = Change{AttrSpeakRequest, false}
	EnterAFK          = Change{AttrAFK, true}
	ExitAFK           = Change{AttrAFK, false}
	ChannelJoin       = Change{AttrChannel, true}
	ChannelLeave      = Change{AttrChannel, false}
)

var changeNames = []struct {
	Change Change
	Name   string
}{
	{ServerDeafen, "server_deafen"},
	{ServerUndeafen, "server_undeafen"},
	{ServerMute, "server_mute"},
	{ServerUnmute, "server_unmute"},
	{SelfDeafen, "self_deafen"},
	{SelfUndeafen, "self_undeafen"},
	{SelfMute, "self_mute"},
	{SelfUnmute, "self_unmute"},
	{StartStream, "start_stream"},
	{EndStream, "end_stream"},
	{StartVideo, "start_video"},
	{EndVideo, "end_video"},
	{Suppressed, "suppressed"},
	{Unsuppressed, "unsuppressed"},
	{SpeakRequestStart, "speak_request_start"},
	{SpeakRequestEnd, "speak_request_end"},
	{EnterAFK, "enter_afk"},
	{ExitAFK, "exit_afk"},
	{ChannelJoin, "channel_join"},
	{ChannelLeave, "channel_leave"},
}

// Name returns the stable identifier used in command options and digests.
func (c Change) Name() string {
	for _, cn := range changeNames {
		if cn.Change == c {
			return cn.Name
		}
	}
	return string(c.Attr)
}

// ChangeByName resolves a command-option value back to a Change.
func ChangeByName(name string) (Change, bool) {
	for _, cn := range changeNames {
		if cn.Name == name {
			return cn.Change, true
		}
	}
	return Change{}, false
}

// ChangeNames lists every kind name in taxonomy order, for command choices.
func ChangeNames() []string {
	names := make([]string, len(changeNames))
	for i, cn := range changeNames {
		names[i] = cn.Name
	}
	return names
}

// AllChanges returns every kind, or every kind with the given toggle when
// toggle is non-nil.
func AllChanges(toggle *bool) []Change {
	var out []Change
	for _, cn := range changeNames {
		if toggle == nil || cn.Change.Toggle == *toggle {
			out = append(out, cn.Change)
		}
	}
	return out
}

// FindChanges diffs two snapshots into the list of discrete changes between
// them. A channel switch emits two changes (leave old, join new), never a
// single "moved". For boolean attributes the emitted toggle equals the new
// value.
//
// simplify drops the self_(un)mute change when the paired self_(un)deafen is
// present and exactly two changes were detected; Discord clients force mute
// on deafen. The reconciliation path never sets it.
func FindChanges(old, new Snapshot, simplify bool) []Change {
	var changes []Change
	for _, attr := range boolAttributes {
		oldValue, newValue := attr.Get(old), attr.Get(new)
		if oldValue == newValue {
			continue
		}
		changes = append(changes, Change{Attr: attr.Attr, Toggle: newValue})
	}

	if old.ChannelID != new.ChannelID {
		if old.ChannelID != 0 {
			changes = append(changes, ChannelLeave)
		}
		if new.ChannelID != 0 {
			changes = append(changes, ChannelJoin)
		}
	}

	if simplify && len(changes) == 2 {
		changes = simplifyPair(changes)
	}
	return changes
}

func simplifyPair(changes []Change) []Change {
	drop := -1
	if containsChange(changes, SelfMute) && containsChange(changes, SelfDeafen) {
		drop = indexOfChange(changes, SelfMute)
	} else if containsChange(changes, SelfUnmute) && containsChange(changes, SelfUndeafen) {
		drop = indexOfChange(changes, SelfUnmute)
	}
	if drop < 0 {
		return changes
	}
	return append(changes[:drop], changes[drop+1:]...)
}

func containsChange(changes []Change, c Change) bool {
	return indexOfChange(changes, c) >= 0
}

func indexOfChange(changes []Change, c Change) int {
	for i, ch := range changes {
		if ch == c {
			return i
		}
	}
	return -1
}
