package home

import (
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/leeineian/vigil/sys"
	"github.com/leeineian/vigil/vclog"
)

func handleVcLogGet(event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData) {
	name, _ := data.OptString("include")
	change, ok := vclog.ChangeByName(name)
	if !ok {
		vclogRespond(event, sys.ErrVcLogUnknownChange, true)
		return
	}

	changes := []vclog.Change{change}
	includeAlt := true
	if v, ok := data.OptBool("include_alt"); ok {
		includeAlt = v
	}
	if includeAlt {
		changes = append(changes, change.Opposite())
	}

	includePresent := true
	if v, ok := data.OptBool("include_present"); ok {
		includePresent = v
	}
	includeAbsent := true
	if v, ok := data.OptBool("include_absent"); ok {
		includeAbsent = v
	}

	scope := scopeEveryone
	switch {
	case includePresent && includeAbsent:
		scope = scopeEveryone
	case includePresent:
		scope = scopePresent
	case includeAbsent:
		scope = scopeAbsent
	default:
		scope = scopeNobody
	}

	runVcLogHistory(event, data, changes, scope)
}
