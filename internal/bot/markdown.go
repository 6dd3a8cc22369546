package bot

import (
	"strings"
)

var markdownV2Replacer = func() *strings.Replacer {
	const special = "\\_*[]()~`>#+-=|{}.!"
	pairs := make([]string, 0, len(special)*2)
	for _, c := range special {
		pairs = append(pairs, string(c), "\\"+string(c))
	}
	return strings.NewReplacer(pairs...)
}()

// EscapeMarkdownV2 escapes every character Telegram reserves in MarkdownV2.
func EscapeMarkdownV2(s string) string {
	return markdownV2Replacer.Replace(s)
}

func helpText(agentURL, environment string) string {
	return "🤖 *OpenClaw/Agent Zero Bot Help*\n\n" +
		"*Commands:*\n" +
		"/new \\- Start a new session \\(clear conversation history\\)\\.\n" +
		"/stop \\- Stop the current conversation and clear session\\.\n" +
		"/restart \\- Restart the session \\(same as /new and /stop\\)\\.\n" +
		"/schedule \\<name\\> \\<seconds\\> \\<prompt\\> \\- Schedule a recurring task\\.\n" +
		"  _Example: /schedule btc 600 Check the price of Bitcoin_\n" +
		"/stopschedule \\[name\\] \\- Stop a specific schedule by name, or all if no name provided\\.\n" +
		"/schedules \\- List all running schedules\\.\n" +
		"/help \\- Show this information\\.\n\n" +
		"*Features:*\n" +
		"• *Chatting:* Simply send any text message to get a response from the agent \\(`" + EscapeMarkdownV2(agentURL) + "`\\)\\.\n" +
		"• *Storing Photos:* Send a photo to the bot to save it\\. If you provide a caption, the photo will be saved with that name \\(e\\.g\\., `my_document`\\)\\.\n" +
		"• *Retrieving Photos:* Type `get pic \\<filename\\>` to have the bot send a saved photo back to you\\.\n\n" +
		"Current Mode: `" + EscapeMarkdownV2(environment) + "`"
}
