package vclog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOppositeIsInvolution(t *testing.T) {
	for _, cn := range changeNames {
		opp := cn.Change.Opposite()
		assert.Equal(t, cn.Change.Attr, opp.Attr, "opposite of %s must keep its attribute", cn.Name)
		assert.NotEqual(t, cn.Change.Toggle, opp.Toggle, "opposite of %s must flip its toggle", cn.Name)
		assert.Equal(t, cn.Change, opp.Opposite(), "double opposite of %s must round-trip", cn.Name)
	}
}

func TestChangeNameRoundTrip(t *testing.T) {
	for _, name := range ChangeNames() {
		change, ok := ChangeByName(name)
		require.True(t, ok, "name %q must resolve", name)
		assert.Equal(t, name, change.Name())
	}

	_, ok := ChangeByName("no_such_change")
	assert.False(t, ok)
}

func TestAllChanges(t *testing.T) {
	assert.Len(t, AllChanges(nil), len(changeNames))

	on := true
	for _, c := range AllChanges(&on) {
		assert.True(t, c.Toggle)
	}
	off := false
	for _, c := range AllChanges(&off) {
		assert.False(t, c.Toggle)
	}
	assert.Len(t, AllChanges(&on), len(changeNames)/2)
}

func TestFindChangesNoop(t *testing.T) {
	s := Snapshot{ChannelID: 10, SelfMute: true, SelfVideo: true}
	assert.Empty(t, FindChanges(s, s, false))
	assert.Empty(t, FindChanges(s, s, true))
}

func TestFindChangesEveryBooleanAttribute(t *testing.T) {
	// Each accessor in the registry must produce exactly one change whose
	// toggle equals the new value.
	for _, attr := range boolAttributes {
		var old, new Snapshot
		old.ChannelID, new.ChannelID = 10, 10
		flip(&new, attr.Attr, true)

		changes := FindChanges(old, new, false)
		require.Len(t, changes, 1, "flipping %s on", attr.Attr)
		assert.Equal(t, Change{attr.Attr, true}, changes[0])

		changes = FindChanges(new, old, false)
		require.Len(t, changes, 1, "flipping %s off", attr.Attr)
		assert.Equal(t, Change{attr.Attr, false}, changes[0])
	}
}

func flip(s *Snapshot, attr Attribute, v bool) {
	switch attr {
	case AttrDeaf:
		s.Deaf = v
	case AttrMute:
		s.Mute = v
	case AttrSelfDeaf:
		s.SelfDeaf = v
	case AttrSelfMute:
		s.SelfMute = v
	case AttrStream:
		s.SelfStream = v
	case AttrVideo:
		s.SelfVideo = v
	case AttrSuppress:
		s.Suppress = v
	case AttrSpeakRequest:
		s.SpeakRequest = v
	case AttrAFK:
		s.AFK = v
	}
}

func TestFindChangesChannelTransitions(t *testing.T) {
	none := Snapshot{}
	inA := Snapshot{ChannelID: 100}
	inB := Snapshot{ChannelID: 200}

	assert.Equal(t, []Change{ChannelJoin}, FindChanges(none, inA, false))
	assert.Equal(t, []Change{ChannelLeave}, FindChanges(inA, none, false))

	// A switch is a leave plus a join, never a single "moved".
	assert.Equal(t, []Change{ChannelLeave, ChannelJoin}, FindChanges(inA, inB, false))
}

func TestFindChangesSimplify(t *testing.T) {
	base := Snapshot{ChannelID: 10}
	deafened := Snapshot{ChannelID: 10, SelfDeaf: true, SelfMute: true}

	// Clients force mute alongside deafen; simplified output keeps only the
	// deafen.
	changes := FindChanges(base, deafened, true)
	assert.Equal(t, []Change{SelfDeafen}, changes)

	changes = FindChanges(deafened, base, true)
	assert.Equal(t, []Change{SelfUndeafen}, changes)

	// Without simplify both survive.
	changes = FindChanges(base, deafened, false)
	assert.ElementsMatch(t, []Change{SelfDeafen, SelfMute}, changes)

	// A third change disables the simplification.
	three := deafened
	three.SelfVideo = true
	changes = FindChanges(base, three, true)
	assert.Len(t, changes, 3)
}
