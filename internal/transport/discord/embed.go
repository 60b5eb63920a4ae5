package discord

import (
	"time"

	"github.com/bwmarrin/discordgo"

	"announcebot/internal/format"
	kit "announcebot/internal/transport"
)

func toMessageEmbed(e *format.Embed) *discordgo.MessageEmbed {
	if e == nil {
		return nil
	}
	me := &discordgo.MessageEmbed{
		Title:       e.Title,
		Description: e.Description,
		Color:       e.Color,
	}
	if !e.Timestamp.IsZero() {
		me.Timestamp = e.Timestamp.UTC().Format(time.RFC3339)
	}
	if e.Author != nil {
		me.Author = &discordgo.MessageEmbedAuthor{Name: e.Author.Name, IconURL: e.Author.IconURL}
	}
	if e.Footer != nil {
		me.Footer = &discordgo.MessageEmbedFooter{Text: e.Footer.Text, IconURL: e.Footer.IconURL}
	}
	for _, f := range e.Fields {
		me.Fields = append(me.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}
	return me
}

func toMessageSend(p format.Payload) *discordgo.MessageSend {
	ms := &discordgo.MessageSend{Content: p.Content}
	if me := toMessageEmbed(p.Embed); me != nil {
		ms.Embeds = []*discordgo.MessageEmbed{me}
	}
	return ms
}

func toMessageEdit(ref kit.MessageRef, p format.Payload) *discordgo.MessageEdit {
	me := discordgo.NewMessageEdit(ref.ChannelID, ref.MessageID)
	if p.Content != "" {
		me.SetContent(p.Content)
	}
	if e := toMessageEmbed(p.Embed); e != nil {
		me.SetEmbed(e)
	}
	return me
}
