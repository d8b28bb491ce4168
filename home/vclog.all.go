package home

import (
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
)

func handleVcLogAll(event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData) {
	// No kind filter: every recorded event in the channel.
	runVcLogHistory(event, data, nil, scopeEveryone)
}
