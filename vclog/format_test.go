package vclog

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatTimestamp(t *testing.T) {
	at := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, fmt.Sprintf("<t:%d:R>", at.Unix()), FormatTimestamp(at, "R"))
	assert.Equal(t, fmt.Sprintf("<t:%d:F>", at.Unix()), FormatTimestamp(at, "F"))
}

func TestDigestHeader(t *testing.T) {
	assert.Equal(t, "## Voice Event History in <#2000>", DigestHeader(testChannel))
}

func TestFormatDigestEmpty(t *testing.T) {
	out := FormatDigest(nil, "", DigestHeader(testChannel))
	assert.Equal(t, DigestHeader(testChannel)+"\nNo logs present.", out)
}

func TestFormatDigestGroupsByKind(t *testing.T) {
	at := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	events := []Event{
		{UserID: userBob, Change: ChannelLeave, At: at.Add(2 * time.Minute)},
		{UserID: userAlice, Change: ChannelJoin, At: at.Add(time.Minute)},
		{UserID: userBob, Change: ChannelJoin, At: at},
	}

	out := FormatDigest(events, "R", DigestHeader(testChannel))

	assert.Contains(t, out, "**Channel Joins**")
	assert.Contains(t, out, "**Channel Leaves**")
	assert.Contains(t, out, fmt.Sprintf("- <@%s> %s", userAlice, FormatTimestamp(at.Add(time.Minute), "R")))

	// Taxonomy order: joins before leaves regardless of event order.
	joins := strings.Index(out, "**Channel Joins**")
	leaves := strings.Index(out, "**Channel Leaves**")
	require.NotEqual(t, -1, joins)
	require.NotEqual(t, -1, leaves)
	assert.Less(t, joins, leaves)

	// Two join lines, one leave line.
	assert.Equal(t, 3, strings.Count(out, "- <@"))
}

func TestFormatDigestDefaultsToRelative(t *testing.T) {
	at := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	events := []Event{{UserID: userAlice, Change: SelfMute, At: at}}

	out := FormatDigest(events, "", DigestHeader(testChannel))
	assert.Contains(t, out, FormatTimestamp(at, "R"))
}

func TestFormatDigestOverflowMarker(t *testing.T) {
	at := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	var events []Event
	for i := 0; i < 100; i++ {
		events = append(events, Event{
			UserID: snowflake.ID(100000000000000000 + i),
			Change: ChannelJoin,
			At:     at.Add(time.Duration(i) * time.Second),
		})
	}

	out := FormatDigest(events, "R", DigestHeader(testChannel))

	// The section is capped and closed with the overflow marker instead of
	// growing without bound.
	assert.Less(t, len(out), 1500)
	assert.True(t, strings.HasSuffix(out, "+"), "capped section ends with the overflow marker")
	assert.Less(t, strings.Count(out, "- <@"), 100)
}

func TestKindTitle(t *testing.T) {
	assert.Equal(t, "Channel Joins", kindTitle("channel_join"))
	assert.Equal(t, "Self Mutes", kindTitle("self_mute"))
	assert.Equal(t, "Server Deafens", kindTitle("server_deafen"))
}
