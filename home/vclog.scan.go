package home

import (
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/leeineian/vigil/proc"
	"github.com/leeineian/vigil/sys"
)

// scan wipes the event log and rebuilds it from live voice states. It is
// destructive, so it stays behind the owner allowlist on top of the group's
// admin permission.
func handleVcLogScan(event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData) {
	if !sys.GlobalConfig.IsOwner(event.User().ID) {
		vclogRespond(event, sys.ErrVcLogOwnerOnly, true)
		return
	}

	engine := proc.VoiceLog()
	if engine == nil {
		vclogRespond(event, sys.ErrVcLogFetchFailed, true)
		return
	}

	if err := event.DeferCreateMessage(true); err != nil {
		return
	}

	sys.LogVoiceLog("Rescan commanded by %s (%s)", event.User().Username, event.User().ID)
	if err := engine.Reconcile(sys.AppContext); err != nil {
		sys.LogError(sys.MsgVcLogReconcileFail, err)
		vclogUpdate(event, sys.ErrVcLogFetchFailed)
		return
	}

	vclogUpdate(event, sys.MsgVcLogRescanDone)
}
