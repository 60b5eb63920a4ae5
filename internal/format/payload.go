// Package format builds the displays the bot posts: the announcement itself,
// the live progress message and the final report.
//
// Everything here is plain data. Transports translate a Payload into whatever
// their client library expects (Discord: *discordgo.MessageEmbed).
package format

import "time"

// Colors used by the displays (0xRRGGBB).
const (
	ColorInfo    = 0x0099ff
	ColorSuccess = 0x2ecc71
	ColorAlert   = 0xe74c3c
)

// Payload is a single outbound message: optional plain content plus one embed.
type Payload struct {
	Content string
	Embed   *Embed
}

type Embed struct {
	Title       string
	Description string
	Color       int
	Author      *EmbedAuthor
	Footer      *EmbedFooter
	Fields      []Field
	Timestamp   time.Time
}

type EmbedAuthor struct {
	Name    string
	IconURL string
}

type EmbedFooter struct {
	Text    string
	IconURL string
}

type Field struct {
	Name   string
	Value  string
	Inline bool
}

// Author identifies who triggered an announcement.
type Author struct {
	ID        string
	Username  string
	AvatarURL string
}

// Branding is the fixed footer attached to every announcement.
type Branding struct {
	FooterText    string
	FooterIconURL string
}

// DefaultBranding is used when the config does not override it.
var DefaultBranding = Branding{
	FooterText:    "saguard.com.tr",
	FooterIconURL: "https://cdn.discordapp.com/attachments/1353807223565979670/1353819110567448646/logo.jpg",
}
