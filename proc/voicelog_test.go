package proc

import (
	"testing"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"

	"github.com/leeineian/vigil/vclog"
)

func TestSnapshotFromMapsVoiceState(t *testing.T) {
	channel := snowflake.ID(200)
	requested := time.Now()

	vs := discord.VoiceState{
		GuildID:                 snowflake.ID(100),
		ChannelID:               &channel,
		UserID:                  snowflake.ID(300),
		GuildDeaf:               true,
		GuildMute:               true,
		SelfDeaf:                true,
		SelfMute:                true,
		SelfStream:              true,
		SelfVideo:               true,
		Suppress:                true,
		RequestToSpeakTimestamp: &requested,
	}

	got := snapshotFrom(vs, discord.Guild{})
	assert.Equal(t, vclog.Snapshot{
		ChannelID:    channel,
		Deaf:         true,
		Mute:         true,
		SelfDeaf:     true,
		SelfMute:     true,
		SelfStream:   true,
		SelfVideo:    true,
		Suppress:     true,
		SpeakRequest: true,
	}, got)
}

func TestSnapshotFromDisconnected(t *testing.T) {
	got := snapshotFrom(discord.VoiceState{UserID: snowflake.ID(300)}, discord.Guild{})
	assert.Equal(t, vclog.Snapshot{}, got)
}

func TestSnapshotFromAFKChannel(t *testing.T) {
	afk := snowflake.ID(200)
	other := snowflake.ID(201)

	guild := discord.Guild{AfkChannelID: &afk}

	inAFK := snapshotFrom(discord.VoiceState{ChannelID: &afk}, guild)
	assert.True(t, inAFK.AFK)

	elsewhere := snapshotFrom(discord.VoiceState{ChannelID: &other}, guild)
	assert.False(t, elsewhere.AFK)

	noAFKChannel := snapshotFrom(discord.VoiceState{ChannelID: &afk}, discord.Guild{})
	assert.False(t, noAFKChannel.AFK)
}
