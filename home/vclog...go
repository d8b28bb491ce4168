// Package home holds the slash-command surface. Each command registers
// itself in init(); one file per subcommand, following the group dispatch
// layout.
package home

import (
	"errors"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/omit"
	"github.com/disgoorg/snowflake/v2"
	"github.com/leeineian/vigil/proc"
	"github.com/leeineian/vigil/sys"
	"github.com/leeineian/vigil/vclog"
	"github.com/sho0pi/naturaltime"
)

var timeParser *naturaltime.Parser

func initTimeParser() {
	var err error
	timeParser, err = naturaltime.New()
	if err != nil {
		sys.LogFatal("Failed to initialize natural time parser: %v", err)
	}
}

var timeFormatChoices = []discord.ApplicationCommandOptionChoiceString{
	{Name: "Relative (2 hours ago)", Value: "R"},
	{Name: "Short Time (16:20)", Value: "t"},
	{Name: "Long Time (16:20:30)", Value: "T"},
	{Name: "Short Date (20/04/2021)", Value: "d"},
	{Name: "Long Date (20 April 2021)", Value: "D"},
	{Name: "Short Date/Time (20 April 2021 16:20)", Value: "f"},
	{Name: "Long Date/Time (Tuesday, 20 April 2021 16:20)", Value: "F"},
}

// historyOptions is the filter set shared by every history subcommand. The
// change-specific subcommands (joined, left) take it as-is; all and get
// prepend their own options.
func historyOptions() []discord.ApplicationCommandOption {
	return []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionChannel{
			Name:        "channel",
			Description: "Voice channel to inspect (default: your current channel)",
			Required:    false,
			ChannelTypes: []discord.ChannelType{
				discord.ChannelTypeGuildVoice,
				discord.ChannelTypeGuildStageVoice,
			},
		},
		discord.ApplicationCommandOptionInt{
			Name:        "amount",
			Description: "Maximum number of entries to show (default: all)",
			Required:    false,
			MinValue:    intPtr(1),
		},
		discord.ApplicationCommandOptionBool{
			Name:        "dupes",
			Description: "Collapse repeated events to the most recent per user (default: true)",
			Required:    false,
		},
		discord.ApplicationCommandOptionString{
			Name:        "since",
			Description: "Only show events after this time (e.g. '2 hours ago')",
			Required:    false,
		},
		discord.ApplicationCommandOptionString{
			Name:        "time_format",
			Description: "Timestamp style in the digest (default: relative)",
			Required:    false,
			Choices:     timeFormatChoices,
		},
		discord.ApplicationCommandOptionBool{
			Name:        "ephemeral",
			Description: "Whether the response should be ephemeral (default: true)",
			Required:    false,
		},
	}
}

func intPtr(v int) *int { return &v }

func init() {
	initTimeParser()

	adminPerm := discord.PermissionAdministrator

	changeChoices := make([]discord.ApplicationCommandOptionChoiceString, 0, len(vclog.ChangeNames()))
	for _, name := range vclog.ChangeNames() {
		changeChoices = append(changeChoices, discord.ApplicationCommandOptionChoiceString{Name: name, Value: name})
	}

	attrChoices := []discord.ApplicationCommandOptionChoiceString{
		{Name: "all attributes", Value: vclog.OnAttrAll},
		{Name: "the triggering attribute", Value: vclog.OnAttrTrigger},
		{Name: "deaf", Value: string(vclog.AttrDeaf)},
		{Name: "mute", Value: string(vclog.AttrMute)},
		{Name: "self_deaf", Value: string(vclog.AttrSelfDeaf)},
		{Name: "self_mute", Value: string(vclog.AttrSelfMute)},
		{Name: "self_stream", Value: string(vclog.AttrStream)},
		{Name: "self_video", Value: string(vclog.AttrVideo)},
		{Name: "suppress", Value: string(vclog.AttrSuppress)},
		{Name: "requested_to_speak", Value: string(vclog.AttrSpeakRequest)},
		{Name: "afk", Value: string(vclog.AttrAFK)},
		{Name: "channel", Value: string(vclog.AttrChannel)},
	}

	toggleChoices := []discord.ApplicationCommandOptionChoiceInt{
		{Name: "on only", Value: vclog.ToggleOn},
		{Name: "off only", Value: vclog.ToggleOff},
		{Name: "both", Value: vclog.ToggleBoth},
		{Name: "the triggering direction", Value: vclog.ToggleTrigger},
	}

	sys.RegisterCommand(discord.SlashCommandCreate{
		Name:                     "vclog",
		Description:              "Voice channel event history (Admin Only)",
		DefaultMemberPermissions: omit.New(&adminPerm),
		Contexts: []discord.InteractionContextType{
			discord.InteractionContextTypeGuild,
		},
		Options: []discord.ApplicationCommandOption{
			discord.ApplicationCommandOptionSubCommand{
				Name:        "joined",
				Description: "Show who joined a voice channel",
				Options:     historyOptions(),
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "left",
				Description: "Show who left a voice channel",
				Options:     historyOptions(),
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "all",
				Description: "Show every recorded event in a voice channel",
				Options: append([]discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionBool{
						Name:        "undo",
						Description: "Also cancel out events undone by a later opposite (requires dupes)",
						Required:    false,
					},
					discord.ApplicationCommandOptionUser{
						Name:        "user",
						Description: "Only show events from this user",
						Required:    false,
					},
					discord.ApplicationCommandOptionUser{
						Name:        "exclude_user",
						Description: "Hide events from this user",
						Required:    false,
					},
				}, historyOptions()...),
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "get",
				Description: "Show events of one specific kind in a voice channel",
				Options: append([]discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionString{
						Name:        "include",
						Description: "The change kind to show",
						Required:    true,
						Choices:     changeChoices,
					},
					discord.ApplicationCommandOptionBool{
						Name:        "include_alt",
						Description: "Also show the opposite change kind (default: true)",
						Required:    false,
					},
					discord.ApplicationCommandOptionBool{
						Name:        "include_present",
						Description: "Include users currently in the channel (default: true)",
						Required:    false,
					},
					discord.ApplicationCommandOptionBool{
						Name:        "include_absent",
						Description: "Include users no longer in the channel (default: true)",
						Required:    false,
					},
					discord.ApplicationCommandOptionBool{
						Name:        "undo",
						Description: "Also cancel out events undone by a later opposite (requires dupes)",
						Required:    false,
					},
				}, historyOptions()...),
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "scan",
				Description: "Rebuild the voice log from live voice states (Owner Only)",
			},
			discord.ApplicationCommandOptionSubCommandGroup{
				Name:        "notify",
				Description: "Automatic digest notifications",
				Options: []discord.ApplicationCommandOptionSubCommand{
					{
						Name:        "add",
						Description: "Post a digest to a channel whenever a matching event occurs",
						Options: []discord.ApplicationCommandOption{
							discord.ApplicationCommandOptionChannel{
								Name:        "send_channel",
								Description: "Text channel that receives the digests",
								Required:    true,
								ChannelTypes: []discord.ChannelType{
									discord.ChannelTypeGuildText,
								},
							},
							discord.ApplicationCommandOptionChannel{
								Name:        "voice_channel",
								Description: "Voice channel to watch (default: all of them)",
								Required:    false,
								ChannelTypes: []discord.ChannelType{
									discord.ChannelTypeGuildVoice,
									discord.ChannelTypeGuildStageVoice,
								},
							},
							discord.ApplicationCommandOptionString{
								Name:        "attribute",
								Description: "Attribute that fires the rule (default: all)",
								Required:    false,
								Choices:     attrChoices,
							},
							discord.ApplicationCommandOptionInt{
								Name:        "toggle",
								Description: "Toggle direction that fires the rule (default: both)",
								Required:    false,
								Choices:     toggleChoices,
							},
							discord.ApplicationCommandOptionBool{
								Name:        "on_empty",
								Description: "Fire when the channel just became empty (default: false)",
								Required:    false,
							},
							discord.ApplicationCommandOptionBool{
								Name:        "on_non_empty",
								Description: "Fire while the channel still has occupants (default: true)",
								Required:    false,
							},
							discord.ApplicationCommandOptionInt{
								Name:        "amount",
								Description: "Maximum number of entries per digest (default: all)",
								Required:    false,
								MinValue:    intPtr(1),
							},
							discord.ApplicationCommandOptionBool{
								Name:        "dupes",
								Description: "Collapse repeated events in the digest (default: true)",
								Required:    false,
							},
							discord.ApplicationCommandOptionBool{
								Name:        "undo",
								Description: "Cancel out undone events in the digest (default: false)",
								Required:    false,
							},
							discord.ApplicationCommandOptionString{
								Name:        "time_format",
								Description: "Timestamp style in the digest (default: relative)",
								Required:    false,
								Choices:     timeFormatChoices,
							},
						},
					},
					{
						Name:        "remove",
						Description: "Remove a notification rule by its ID",
						Options: []discord.ApplicationCommandOption{
							discord.ApplicationCommandOptionInt{
								Name:        "id",
								Description: "Rule ID as shown by /vclog notify list",
								Required:    true,
								MinValue:    intPtr(1),
							},
						},
					},
					{
						Name:        "list",
						Description: "List the notification rules in this guild",
					},
				},
			},
		},
	}, handleVcLog)
}

func handleVcLog(event *events.ApplicationCommandInteractionCreate) {
	data := event.SlashCommandInteractionData()

	if data.SubCommandGroupName != nil && *data.SubCommandGroupName == "notify" {
		if data.SubCommandName == nil {
			return
		}
		switch *data.SubCommandName {
		case "add":
			handleVcLogNotifyAdd(event, data)
		case "remove":
			handleVcLogNotifyRemove(event, data)
		case "list":
			handleVcLogNotifyList(event, data)
		}
		return
	}

	if data.SubCommandName == nil {
		return
	}
	switch *data.SubCommandName {
	case "joined":
		handleVcLogJoined(event, data)
	case "left":
		handleVcLogLeft(event, data)
	case "all":
		handleVcLogAll(event, data)
	case "get":
		handleVcLogGet(event, data)
	case "scan":
		handleVcLogScan(event, data)
	}
}

// vclogRespond sends an immediate one-container reply.
func vclogRespond(event *events.ApplicationCommandInteractionCreate, content string, ephemeral bool) {
	_ = event.CreateMessage(discord.NewMessageCreateV2(
		discord.NewContainer(
			discord.NewTextDisplay(content),
		),
	).WithEphemeral(ephemeral))
}

// vclogUpdate replaces a deferred response with a one-container message.
func vclogUpdate(event *events.ApplicationCommandInteractionCreate, content string) {
	_, _ = event.Client().Rest.UpdateInteractionResponse(event.ApplicationID(), event.Token(),
		discord.NewMessageUpdateV2([]discord.LayoutComponent{
			discord.NewContainer(
				discord.NewTextDisplay(vclogTruncate(content, 3900)),
			),
		}))
}

func vclogTruncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

// vclogTargetChannel resolves the voice channel a history subcommand should
// inspect: the channel option if given, otherwise the invoker's current
// voice channel.
func vclogTargetChannel(event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData) (snowflake.ID, bool) {
	if ch, ok := data.OptChannel("channel"); ok {
		return ch.ID, true
	}
	if event.GuildID() != nil {
		if vs, ok := event.Client().Caches.VoiceState(*event.GuildID(), event.User().ID); ok && vs.ChannelID != nil {
			return *vs.ChannelID, true
		}
	}
	return 0, false
}

// vclogParseSince reads the optional since filter. The zero time means no
// filter; ok is false only when the option was given but unparseable.
func vclogParseSince(data discord.SlashCommandInteractionData) (time.Time, bool) {
	text, present := data.OptString("since")
	if !present || text == "" {
		return time.Time{}, true
	}
	result, err := timeParser.ParseDate(text, time.Now())
	if err != nil || result == nil {
		return time.Time{}, false
	}
	return *result, true
}

// occupancyScope restricts a history query by current channel membership,
// matching the verbs: "joined" reads as "who is here", "left" as "who is
// gone".
type occupancyScope int

const (
	scopeEveryone occupancyScope = iota
	scopePresent
	scopeAbsent
	scopeNobody
)

// channelOccupants reads the live member set of a voice channel from the
// gateway cache.
func channelOccupants(event *events.ApplicationCommandInteractionCreate, channelID snowflake.ID) []snowflake.ID {
	var ids []snowflake.ID
	if event.GuildID() == nil {
		return ids
	}
	for state := range event.Client().Caches.VoiceStates(*event.GuildID()) {
		if state.ChannelID != nil && *state.ChannelID == channelID {
			ids = append(ids, state.UserID)
		}
	}
	return ids
}

// runVcLogHistory is the shared fetch-and-respond flow behind joined, left,
// all and get. A nil changes slice means every kind.
func runVcLogHistory(event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData, changes []vclog.Change, scope occupancyScope) {
	engine := proc.VoiceLog()
	if engine == nil {
		vclogRespond(event, sys.ErrVcLogFetchFailed, true)
		return
	}

	channelID, ok := vclogTargetChannel(event, data)
	if !ok {
		vclogRespond(event, sys.ErrVcLogNoVoiceChannel, true)
		return
	}

	since, ok := vclogParseSince(data)
	if !ok {
		vclogRespond(event, sys.ErrVcLogBadSince, true)
		return
	}

	amount := -1
	if v, ok := data.OptInt("amount"); ok {
		amount = v
	}
	dupes := true
	if v, ok := data.OptBool("dupes"); ok {
		dupes = v
	}
	undo, _ := data.OptBool("undo")
	if undo && !dupes {
		vclogRespond(event, sys.ErrVcLogInvalidFilter, true)
		return
	}
	timeFormat, _ := data.OptString("time_format")
	ephemeral := true
	if v, ok := data.OptBool("ephemeral"); ok {
		ephemeral = v
	}

	query := vclog.Query{
		ChannelIDs:  []snowflake.ID{channelID},
		Changes:     changes,
		RemoveDupes: dupes,
		RemoveUndo:  undo,
		Since:       since,
		Limit:       amount,
	}
	if event.GuildID() != nil {
		query.GuildIDs = []snowflake.ID{*event.GuildID()}
	}

	switch scope {
	case scopePresent:
		occupants := channelOccupants(event, channelID)
		if len(occupants) == 0 {
			// An empty channel has no log either; skip the round-trip.
			vclogRespond(event, vclog.FormatDigest(nil, timeFormat, vclog.DigestHeader(channelID)), ephemeral)
			return
		}
		query.Users.Include = occupants
	case scopeAbsent:
		if occupants := channelOccupants(event, channelID); len(occupants) > 0 {
			query.Users.Exclude = occupants
		}
	case scopeNobody:
		vclogRespond(event, vclog.FormatDigest(nil, timeFormat, vclog.DigestHeader(channelID)), ephemeral)
		return
	default:
		if user, ok := data.OptUser("user"); ok {
			query.Users.Include = []snowflake.ID{user.ID}
		}
		if user, ok := data.OptUser("exclude_user"); ok {
			query.Users.Exclude = []snowflake.ID{user.ID}
		}
	}

	if err := event.DeferCreateMessage(ephemeral); err != nil {
		return
	}

	records, err := engine.Fetch(sys.AppContext, query)
	if err != nil {
		msg := sys.ErrVcLogFetchFailed
		if errors.Is(err, vclog.ErrInvalidFilter) {
			msg = sys.ErrVcLogInvalidFilter
		} else {
			sys.LogError("Failed to fetch voice logs: %v", err)
		}
		vclogUpdate(event, msg)
		return
	}

	vclogUpdate(event, vclog.FormatDigest(records, timeFormat, vclog.DigestHeader(channelID)))
}
