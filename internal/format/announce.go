package format

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	announcementContent = "ANNOUNCEMENT!"
	announcementTitle   = "📢 Announcement"

	progressTitle       = "📡 Announcement Transmission"
	progressDescription = "Sending announcement to server members..."
	completedTitle      = "✅ Announcement Completed"

	summaryTitle = "📊 Announcement Report"
)

// Announcement is the payload delivered to every member.
func Announcement(text string, author Author, b Branding, now time.Time) Payload {
	e := &Embed{
		Title:       announcementTitle,
		Description: text,
		Color:       ColorInfo,
		Timestamp:   now,
	}
	if name := strings.TrimSpace(author.Username); name != "" {
		e.Author = &EmbedAuthor{Name: name, IconURL: author.AvatarURL}
	}
	if b.FooterText != "" || b.FooterIconURL != "" {
		e.Footer = &EmbedFooter{Text: b.FooterText, IconURL: b.FooterIconURL}
	}
	return Payload{Content: announcementContent, Embed: e}
}

// Progress is the live status display. The color flips to alert as soon as
// a single delivery has failed.
func Progress(total, successful, failed int, now time.Time) Payload {
	color := ColorSuccess
	if failed > 0 {
		color = ColorAlert
	}
	return Payload{Embed: &Embed{
		Title:       progressTitle,
		Description: progressDescription,
		Color:       color,
		Fields: []Field{
			{Name: "📊 Total Members", Value: strconv.Itoa(total), Inline: true},
			{Name: "✅ Successful", Value: strconv.Itoa(successful), Inline: true},
			{Name: "❌ Failed", Value: strconv.Itoa(failed), Inline: true},
		},
		Timestamp: now,
	}}
}

// Completed is the terminal form of the progress display.
func Completed(total, successful, failed int, now time.Time) Payload {
	p := Progress(total, successful, failed, now)
	p.Embed.Title = completedTitle
	return p
}

// Summary is the report posted to the target channel after a run.
func Summary(total, successful, failed int, now time.Time) Payload {
	return Payload{Embed: &Embed{
		Title: summaryTitle,
		Description: fmt.Sprintf(
			"**Total Members:** %d\n**Successful Transmissions:** %d\n**Failed Transmissions:** %d",
			total, successful, failed,
		),
		Color:     ColorSuccess,
		Timestamp: now,
	}}
}
