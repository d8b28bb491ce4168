package home

import (
	"fmt"
	"strings"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/leeineian/vigil/proc"
	"github.com/leeineian/vigil/sys"
	"github.com/leeineian/vigil/vclog"
)

func handleVcLogNotifyAdd(event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData) {
	engine := proc.VoiceLog()
	if engine == nil || event.GuildID() == nil {
		vclogRespond(event, sys.ErrVcLogRuleSaveFailed, true)
		return
	}

	sendChannel, ok := data.OptChannel("send_channel")
	if !ok {
		vclogRespond(event, sys.ErrVcLogRuleSaveFailed, true)
		return
	}

	rule := vclog.Rule{
		GuildID:       *event.GuildID(),
		SendChannelID: sendChannel.ID,
		OnAttr:        vclog.OnAttrAll,
		OnToggle:      vclog.ToggleBoth,
		OnNonEmpty:    true,
		Amount:        -1,
		RemoveDupes:   true,
		TimeFormat:    "R",
	}
	if vc, ok := data.OptChannel("voice_channel"); ok {
		rule.VoiceChannelID = vc.ID
	}
	if attr, ok := data.OptString("attribute"); ok {
		rule.OnAttr = attr
	}
	if toggle, ok := data.OptInt("toggle"); ok {
		rule.OnToggle = toggle
	}
	if v, ok := data.OptBool("on_empty"); ok {
		rule.OnEmpty = v
	}
	if v, ok := data.OptBool("on_non_empty"); ok {
		rule.OnNonEmpty = v
	}
	if v, ok := data.OptInt("amount"); ok {
		rule.Amount = v
	}
	if v, ok := data.OptBool("dupes"); ok {
		rule.RemoveDupes = v
	}
	if v, ok := data.OptBool("undo"); ok {
		rule.RemoveUndo = v
	}
	if rule.RemoveUndo && !rule.RemoveDupes {
		vclogRespond(event, sys.ErrVcLogInvalidFilter, true)
		return
	}
	if v, ok := data.OptString("time_format"); ok {
		rule.TimeFormat = v
	}

	if err := engine.Store().AddRule(sys.AppContext, &rule); err != nil {
		sys.LogError("Failed to save notification rule: %v", err)
		vclogRespond(event, sys.ErrVcLogRuleSaveFailed, true)
		return
	}

	sys.LogNotify("Rule %d added in guild %s by %s", rule.ID, rule.GuildID, event.User().Username)
	vclogRespond(event, fmt.Sprintf("%s (ID: %d)", sys.MsgVcLogRuleAdded, rule.ID), true)
}

func handleVcLogNotifyRemove(event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData) {
	engine := proc.VoiceLog()
	if engine == nil || event.GuildID() == nil {
		vclogRespond(event, sys.ErrVcLogRuleListFailed, true)
		return
	}

	id, _ := data.OptInt("id")
	found, err := engine.Store().DeleteRule(sys.AppContext, *event.GuildID(), int64(id))
	if err != nil {
		sys.LogError("Failed to remove notification rule %d: %v", id, err)
		vclogRespond(event, sys.ErrVcLogRuleListFailed, true)
		return
	}
	if !found {
		vclogRespond(event, sys.MsgVcLogRuleNotFound, true)
		return
	}

	sys.LogNotify("Rule %d removed in guild %s by %s", id, *event.GuildID(), event.User().Username)
	vclogRespond(event, sys.MsgVcLogRuleRemoved, true)
}

func handleVcLogNotifyList(event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData) {
	engine := proc.VoiceLog()
	if engine == nil || event.GuildID() == nil {
		vclogRespond(event, sys.ErrVcLogRuleListFailed, true)
		return
	}

	rules, err := engine.Store().RulesForGuild(sys.AppContext, *event.GuildID())
	if err != nil {
		sys.LogError("Failed to list notification rules: %v", err)
		vclogRespond(event, sys.ErrVcLogRuleListFailed, true)
		return
	}
	if len(rules) == 0 {
		vclogRespond(event, sys.MsgVcLogNoRules, true)
		return
	}

	var sb strings.Builder
	sb.WriteString("## Notification Rules\n")
	for _, rule := range rules {
		sb.WriteString(formatRule(rule))
		sb.WriteString("\n")
	}
	vclogRespond(event, vclogTruncate(strings.TrimSuffix(sb.String(), "\n"), 3900), true)
}

func formatRule(rule vclog.Rule) string {
	watched := "all voice channels"
	if rule.VoiceChannelID != 0 {
		watched = fmt.Sprintf("<#%s>", rule.VoiceChannelID)
	}

	var conditions []string
	if rule.OnEmpty {
		conditions = append(conditions, "on empty")
	}
	if rule.OnNonEmpty {
		conditions = append(conditions, "while occupied")
	}

	return fmt.Sprintf("- **#%d** → <#%s> watches %s (%s %s, %s)",
		rule.ID, rule.SendChannelID, watched, rule.OnAttr, toggleLabel(rule.OnToggle), strings.Join(conditions, ", "))
}

func toggleLabel(toggle int) string {
	switch toggle {
	case vclog.ToggleOn:
		return "on"
	case vclog.ToggleOff:
		return "off"
	case vclog.ToggleTrigger:
		return "trigger"
	default:
		return "both"
	}
}
