// Package command recognizes the announce command in inbound chat messages,
// authorizes and validates it, and hands accepted invocations to the
// broadcast queue.
package command

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	"announcebot/internal/broadcast"
	"announcebot/internal/format"
	kit "announcebot/internal/transport"
	logx "announcebot/pkg/logx"
)

const DefaultTrigger = "!announce"

const (
	replyDenied         = "❌ You do not have permission to use this command."
	replyUsage          = "!announce #channel [message]"
	replyInvalidChannel = "You must specify a valid channel."
	replyGuildOnly      = "This command can only be used in a server."
	replyBusy           = "⏳ Another announcement is in progress; try again later."
)

// Outcome classifies how a request ended; used for request logging.
type Outcome string

const (
	OutcomeAccepted Outcome = "accepted"
	OutcomeDenied   Outcome = "denied"
	OutcomeUsage    Outcome = "usage"
	OutcomeChannel  Outcome = "invalid_channel"
	OutcomeBusy     Outcome = "busy"
)

type Request struct {
	Message *kit.Message
	Args    []string
	Logger  logx.Logger

	Outcome Outcome
	RunID   string
}

// Replier posts a reply to the triggering message.
type Replier interface {
	Reply(ctx context.Context, to *kit.Message, p format.Payload) (kit.MessageRef, error)
}

// Enqueuer accepts broadcast jobs. *broadcast.Service implements it.
type Enqueuer interface {
	Enqueue(j broadcast.Job) (int, error)
}

type Config struct {
	// Trigger is the command token; DefaultTrigger when empty.
	Trigger string
	// AuthorizedUserID is the only sender allowed to announce.
	AuthorizedUserID string
}

type Dispatcher struct {
	cfg  Config
	self func() string
	rep  Replier
	q    Enqueuer
	log  logx.Logger

	handle HandlerFunc
}

// New builds a Dispatcher. self reports the bot's own user ID; it is called
// per message because the ID is only known once the gateway session is ready.
func New(cfg Config, self func() string, rep Replier, q Enqueuer, log logx.Logger) *Dispatcher {
	if log.IsZero() {
		log = logx.Nop()
	}
	if strings.TrimSpace(cfg.Trigger) == "" {
		cfg.Trigger = DefaultTrigger
	}
	if self == nil {
		self = func() string { return "" }
	}
	d := &Dispatcher{cfg: cfg, self: self, rep: rep, q: q, log: log}
	d.handle = Chain(d.announce, MWPanicRecover(log), MWRequestLog(log))
	return d
}

// Handle inspects one inbound message. Messages that are not announce
// commands, and the bot's own messages, are ignored without a reply.
// Rejections are answered with a reply and return nil; the returned error
// only reports a failed reply or an unexpected enqueue failure.
func (d *Dispatcher) Handle(ctx context.Context, m *kit.Message) error {
	if m == nil {
		return nil
	}
	args := strings.Fields(m.Content)
	if len(args) == 0 || args[0] != d.cfg.Trigger {
		return nil
	}
	if self := d.self(); self != "" && m.Author.ID == self {
		return nil
	}

	req := &Request{
		Message: m,
		Args:    args,
		Logger:  d.log.With(logx.String("msg_id", m.ID)),
	}
	return d.handle(ctx, req)
}

func (d *Dispatcher) announce(ctx context.Context, req *Request) error {
	m := req.Message

	if m.Author.ID != d.cfg.AuthorizedUserID {
		req.Outcome = OutcomeDenied
		return d.reply(ctx, m, replyDenied)
	}
	if len(req.Args) < 3 {
		req.Outcome = OutcomeUsage
		return d.reply(ctx, m, usageFor(d.cfg.Trigger))
	}
	channelID, ok := ParseChannelMention(req.Args[1])
	if !ok || !slices.Contains(m.ChannelMentions, channelID) {
		req.Outcome = OutcomeChannel
		return d.reply(ctx, m, replyInvalidChannel)
	}
	if m.GuildID == "" {
		req.Outcome = OutcomeChannel
		return d.reply(ctx, m, replyGuildOnly)
	}

	job := broadcast.Job{
		ID:              uuid.NewString(),
		Trigger:         m,
		GuildID:         m.GuildID,
		TargetChannelID: channelID,
		Text:            strings.Join(req.Args[2:], " "),
		Author: format.Author{
			ID:        m.Author.ID,
			Username:  m.Author.Username,
			AvatarURL: m.Author.AvatarURL,
		},
	}
	req.RunID = job.ID
	ahead, err := d.q.Enqueue(job)
	switch {
	case errors.Is(err, broadcast.ErrQueueFull):
		req.Outcome = OutcomeBusy
		return d.reply(ctx, m, replyBusy)
	case err != nil:
		req.Outcome = OutcomeBusy
		if rerr := d.reply(ctx, m, replyBusy); rerr != nil {
			return errors.Join(err, rerr)
		}
		return err
	}

	req.Outcome = OutcomeAccepted
	if ahead > 0 {
		return d.reply(ctx, m, fmt.Sprintf("⏳ Announcement queued; %d ahead of it.", ahead))
	}
	return nil
}

func (d *Dispatcher) reply(ctx context.Context, m *kit.Message, text string) error {
	if d.rep == nil {
		return nil
	}
	if _, err := d.rep.Reply(ctx, m, format.Payload{Content: text}); err != nil {
		return fmt.Errorf("reply: %w", err)
	}
	return nil
}

func usageFor(trigger string) string {
	if trigger == DefaultTrigger {
		return replyUsage
	}
	return trigger + " #channel [message]"
}

// ParseChannelMention extracts the channel ID from a "<#id>" token.
func ParseChannelMention(tok string) (string, bool) {
	if !strings.HasPrefix(tok, "<#") || !strings.HasSuffix(tok, ">") {
		return "", false
	}
	id := tok[2 : len(tok)-1]
	if id == "" {
		return "", false
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	return id, true
}
