// Package proc wires background processing onto the Discord client: the
// voice-log watcher that feeds gateway voice-state updates into the vclog
// engine and reconciles the log on every READY.
package proc

import (
	"context"
	"sync"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"github.com/leeineian/vigil/sys"
	"github.com/leeineian/vigil/vclog"
)

var (
	voiceLogEngine *vclog.Engine
	voiceLogMu     sync.RWMutex
)

// VoiceLog returns the shared engine, or nil before the first READY.
func VoiceLog() *vclog.Engine {
	voiceLogMu.RLock()
	defer voiceLogMu.RUnlock()
	return voiceLogEngine
}

func init() {
	sys.RegisterVoiceStateUpdateHandler(onVoiceLogUpdate)

	sys.OnClientReady(func(ctx context.Context, client *bot.Client) {
		voiceLogMu.Lock()
		if voiceLogEngine == nil {
			store := vclog.NewStore(sys.DB)
			if err := store.Init(ctx); err != nil {
				voiceLogMu.Unlock()
				sys.LogError("Failed to initialize voice log store: %v", err)
				return
			}
			voiceLogEngine = vclog.NewEngine(
				store,
				&gatewaySource{client: client},
				&gatewaySink{client: client},
				sys.LogVoiceLog,
				sys.LogError,
			)
		}
		engine := voiceLogEngine
		voiceLogMu.Unlock()

		// READY fires on every reconnect; the log is rebuilt from live
		// occupancy each time so gaps in observation never leave stale
		// history behind.
		if err := engine.Reconcile(ctx); err != nil {
			sys.LogError(sys.MsgVcLogReconcileFail, err)
		}
	})
}

func onVoiceLogUpdate(event *events.GuildVoiceStateUpdate) {
	engine := VoiceLog()
	if engine == nil {
		return
	}

	guildID := event.VoiceState.GuildID
	guild, _ := event.Client().Caches.Guild(guildID)
	old := snapshotFrom(event.OldVoiceState, guild)
	new := snapshotFrom(event.VoiceState, guild)

	if err := engine.HandleUpdate(sys.AppContext, guildID, event.VoiceState.UserID, old, new); err != nil {
		sys.LogError(sys.MsgVcLogAppendFail, err)
	}
}

// snapshotFrom maps a gateway voice state onto the engine's snapshot type.
// AFK is derived from the guild's AFK channel; a pending speak request is
// any non-nil request timestamp.
func snapshotFrom(vs discord.VoiceState, guild discord.Guild) vclog.Snapshot {
	s := vclog.Snapshot{
		Deaf:         vs.GuildDeaf,
		Mute:         vs.GuildMute,
		SelfDeaf:     vs.SelfDeaf,
		SelfMute:     vs.SelfMute,
		SelfStream:   vs.SelfStream,
		SelfVideo:    vs.SelfVideo,
		Suppress:     vs.Suppress,
		SpeakRequest: vs.RequestToSpeakTimestamp != nil,
	}
	if vs.ChannelID != nil {
		s.ChannelID = *vs.ChannelID
		s.AFK = guild.AfkChannelID != nil && *guild.AfkChannelID == s.ChannelID
	}
	return s
}

// gatewaySource reads live occupancy from the client's voice-state cache.
type gatewaySource struct {
	client *bot.Client
}

func (g *gatewaySource) ChannelEmpty(guildID, channelID snowflake.ID) bool {
	for state := range g.client.Caches.VoiceStates(guildID) {
		if state.ChannelID != nil && *state.ChannelID == channelID {
			return false
		}
	}
	return true
}

func (g *gatewaySource) VisitVoiceStates(fn func(guildID, userID snowflake.ID, live vclog.Snapshot)) {
	for guild := range g.client.Caches.Guilds() {
		for state := range g.client.Caches.VoiceStates(guild.ID) {
			if state.ChannelID == nil {
				continue
			}
			fn(guild.ID, state.UserID, snapshotFrom(state, guild))
		}
	}
}

// gatewaySink posts digests as ComponentsV2 containers.
type gatewaySink struct {
	client *bot.Client
}

func (g *gatewaySink) Deliver(ctx context.Context, channelID snowflake.ID, content string) error {
	_, err := g.client.Rest.CreateMessage(channelID, discord.NewMessageCreateV2(
		discord.NewContainer(
			discord.NewTextDisplay(content),
		),
	), rest.WithCtx(ctx))
	return err
}
