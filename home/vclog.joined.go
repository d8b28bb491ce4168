package home

import (
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/leeineian/vigil/vclog"
)

// joined answers "who is in this channel and since when": join events of
// users still present.
func handleVcLogJoined(event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData) {
	runVcLogHistory(event, data, []vclog.Change{vclog.ChannelJoin}, scopePresent)
}
