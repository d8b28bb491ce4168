package home

import (
	"fmt"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/leeineian/vigil/sys"
	"github.com/leeineian/vigil/vclog"
)

func init() {
	formatOption := discord.ApplicationCommandOptionString{
		Name:        "format",
		Description: "Timestamp style (default: show all styles)",
		Required:    false,
		Choices:     timeFormatChoices,
	}

	sys.RegisterCommand(discord.SlashCommandCreate{
		Name:        "timestamp",
		Description: "Generate Discord timestamp tokens",
		Options: []discord.ApplicationCommandOption{
			discord.ApplicationCommandOptionSubCommand{
				Name:        "now",
				Description: "A timestamp for the current moment",
				Options:     []discord.ApplicationCommandOption{formatOption},
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "in",
				Description: "A timestamp some duration from now",
				Options: []discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionString{
						Name:        "duration",
						Description: "How far ahead (e.g. '2 hours', '45 minutes')",
						Required:    true,
					},
					formatOption,
				},
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "at",
				Description: "A timestamp for a described moment",
				Options: []discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionString{
						Name:        "when",
						Description: "The moment (e.g. 'next friday at 3pm', 'tomorrow noon')",
						Required:    true,
					},
					formatOption,
				},
			},
		},
	}, handleTimestamp)
}

func handleTimestamp(event *events.ApplicationCommandInteractionCreate) {
	data := event.SlashCommandInteractionData()
	if data.SubCommandName == nil {
		return
	}

	now := time.Now()
	at := now

	switch *data.SubCommandName {
	case "now":
		// at stays now
	case "in":
		duration, _ := data.OptString("duration")
		text := duration
		if !strings.HasPrefix(strings.ToLower(text), "in ") {
			text = "in " + text
		}
		result, err := timeParser.ParseDate(text, now)
		if err != nil || result == nil {
			vclogRespond(event, sys.ErrTimestampParseFailed, true)
			return
		}
		at = *result
	case "at":
		when, _ := data.OptString("when")
		result, err := timeParser.ParseDate(when, now)
		if err != nil || result == nil {
			vclogRespond(event, sys.ErrTimestampParseFailed, true)
			return
		}
		at = *result
	}

	style, _ := data.OptString("format")
	if style != "" {
		token := vclog.FormatTimestamp(at, style)
		vclogRespond(event, fmt.Sprintf("%s\n`%s`", token, token), true)
		return
	}

	// No style picked: show all seven, rendered next to the copyable token.
	var sb strings.Builder
	for _, choice := range timeFormatChoices {
		token := vclog.FormatTimestamp(at, choice.Value)
		sb.WriteString(fmt.Sprintf("%s `%s`\n", token, token))
	}
	vclogRespond(event, strings.TrimSuffix(sb.String(), "\n"), true)
}
