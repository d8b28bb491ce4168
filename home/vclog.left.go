package home

import (
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/leeineian/vigil/vclog"
)

// left answers "who left this channel and when": leave events of users no
// longer present.
func handleVcLogLeft(event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData) {
	runVcLogHistory(event, data, []vclog.Change{vclog.ChannelLeave}, scopeAbsent)
}
