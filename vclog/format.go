package vclog

import (
	"fmt"
	"strings"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// fieldCap matches Discord's embed-field limit; a group that would overflow
// it is closed with a "+" marker instead of dropping events silently.
const fieldCap = 1023

// DigestHeader builds the standard digest title for a voice channel.
func DigestHeader(channelID snowflake.ID) string {
	return fmt.Sprintf("## Voice Event History in <#%s>", channelID)
}

// FormatTimestamp renders a Discord timestamp token in the given style
// (t, T, d, D, f, F or R).
func FormatTimestamp(at time.Time, style string) string {
	return fmt.Sprintf("<t:%d:%s>", at.Unix(), style)
}

// FormatDigest renders a flat, newest-first result set as user-visible text:
// one section per change kind, one mention+timestamp line per event. The
// engine returns flat lists; grouping happens only here.
func FormatDigest(events []Event, timeFormat string, header string) string {
	if timeFormat == "" {
		timeFormat = "R"
	}

	sections := map[string]string{}
	for _, event := range events {
		name := event.Change.Name()
		existing := sections[name]
		if strings.HasSuffix(existing, "+") {
			continue
		}
		line := fmt.Sprintf("- <@%s> %s\n", event.UserID, FormatTimestamp(event.At, timeFormat))
		if len(existing)+len(line) > fieldCap {
			sections[name] = existing + "+"
		} else {
			sections[name] = existing + line
		}
	}

	var sb strings.Builder
	sb.WriteString(header)
	sb.WriteString("\n")
	if len(sections) == 0 {
		sb.WriteString("No logs present.")
		return sb.String()
	}

	// Taxonomy order keeps digests stable between runs.
	for _, cn := range changeNames {
		body, ok := sections[cn.Name]
		if !ok {
			continue
		}
		sb.WriteString("**")
		sb.WriteString(kindTitle(cn.Name))
		sb.WriteString("**\n")
		sb.WriteString(strings.TrimSuffix(body, "\n"))
		sb.WriteString("\n")
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

// kindTitle turns "channel_join" into "Channel Joins".
func kindTitle(name string) string {
	words := strings.Split(name, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ") + "s"
}
