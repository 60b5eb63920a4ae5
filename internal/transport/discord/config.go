package discord

import (
	"time"

	"github.com/bwmarrin/discordgo"
)

// DefaultIntents are the gateway intents the bot needs: guild metadata for
// channel resolution, the member list for the roster, message events with
// their content, and DM events.
const DefaultIntents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMembers |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsMessageContent |
	discordgo.IntentsDirectMessages

type Config struct {
	// Token is the bot token without the "Bot " prefix.
	Token string

	// Intents defaults to DefaultIntents.
	Intents discordgo.Intent

	// HTTPTimeout bounds every REST call (default 20s).
	HTTPTimeout time.Duration
}
