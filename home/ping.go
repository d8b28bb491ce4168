package home

import (
	"fmt"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/omit"
	"github.com/disgoorg/snowflake/v2"
	"github.com/leeineian/vigil/sys"
)

func init() {
	adminPerm := discord.PermissionAdministrator

	sys.RegisterCommand(discord.SlashCommandCreate{
		Name:                     "ping",
		Description:              "Check bot latency (Admin Only)",
		DefaultMemberPermissions: omit.New(&adminPerm),
		Contexts: []discord.InteractionContextType{
			discord.InteractionContextTypeGuild,
		},
	}, handlePing)

	sys.RegisterComponentHandler("ping_refresh", handlePingRefresh)
}

// pingContent measures latency from the interaction snowflake's creation
// time to now.
func pingContent(interactionID snowflake.ID) string {
	latency := time.Since(interactionID.Time()).Milliseconds()
	return fmt.Sprintf("# Pong! 🏓\n\n> **Latency:** %dms", latency)
}

func pingMessage(interactionID snowflake.ID) discord.ContainerComponent {
	return discord.NewContainer(
		discord.NewTextDisplay(pingContent(interactionID)),
		discord.NewActionRow(
			discord.NewSuccessButton("🔄 Refresh", "ping_refresh"),
		),
	)
}

func handlePing(event *events.ApplicationCommandInteractionCreate) {
	err := event.CreateMessage(discord.NewMessageCreateV2(pingMessage(event.ID())).WithEphemeral(true))
	if err != nil {
		sys.LogDebug("Failed to send ping: %v", err)
	}
}

func handlePingRefresh(event *events.ComponentInteractionCreate) {
	_ = event.UpdateMessage(discord.NewMessageUpdateV2([]discord.LayoutComponent{pingMessage(event.ID())}))
}
