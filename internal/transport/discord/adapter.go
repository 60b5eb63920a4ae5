// Package discord implements the transport Adapter on top of discordgo.
package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"

	"announcebot/internal/format"
	rtsup "announcebot/internal/runtime/supervisor"
	kit "announcebot/internal/transport"
	logx "announcebot/pkg/logx"
)

// membersPageSize is the largest page the member list endpoint returns.
const membersPageSize = 1000

var channelMentionRe = regexp.MustCompile(`<#(\d+)>`)

type Adapter struct {
	cfg Config
	log logx.Logger

	s *discordgo.Session

	out     atomic.Value // chan<- kit.Update
	self    atomic.Value // string
	runMu   sync.Mutex
	running bool
	sup     *rtsup.Supervisor

	// droppedUpdates counts updates dropped because the consumer was slower
	// than the gateway. Reported periodically rather than per update.
	droppedUpdates uint64

	// dmChannels caches user ID -> DM channel ID.
	dmChannels sync.Map
}

var _ kit.Adapter = (*Adapter)(nil)

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("discord token is empty")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.Intents == 0 {
		cfg.Intents = DefaultIntents
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 20 * time.Second
	}

	s, err := discordgo.New("Bot " + strings.TrimPrefix(token, "Bot "))
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	s.Identify.Intents = cfg.Intents
	s.Client = &http.Client{Timeout: cfg.HTTPTimeout}
	s.ShouldReconnectOnError = true

	a := &Adapter{cfg: cfg, log: log, s: s}
	var nilOut chan<- kit.Update
	a.out.Store(nilOut)
	a.self.Store("")
	a.registerHandlers()
	return a, nil
}

func (a *Adapter) registerHandlers() {
	a.s.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		if r.User == nil {
			return
		}
		a.self.Store(r.User.ID)
		a.sendUpdate(kit.Update{Kind: kit.UpdateReady, Self: toAuthor(r.User)})
	})

	a.s.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		if m == nil || m.Message == nil || m.Author == nil {
			return
		}
		a.sendUpdate(kit.Update{
			Kind: kit.UpdateMessage,
			Message: &kit.Message{
				ID:              m.ID,
				ChannelID:       m.ChannelID,
				GuildID:         m.GuildID,
				Author:          *toAuthor(m.Author),
				Content:         m.Content,
				ChannelMentions: a.resolveChannelMentions(m.Content),
			},
		})
	})
}

func (a *Adapter) sendUpdate(up kit.Update) {
	out, _ := a.out.Load().(chan<- kit.Update)
	if out == nil {
		return
	}
	select {
	case out <- up:
	default:
		atomic.AddUint64(&a.droppedUpdates, 1)
	}
}

// resolveChannelMentions returns the IDs of "<#id>" tokens in content that
// refer to channels the bot can see, in mention order.
func (a *Adapter) resolveChannelMentions(content string) []string {
	matches := channelMentionRe.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		return nil
	}
	out := make([]string, 0, len(matches))
	seen := map[string]bool{}
	for _, m := range matches {
		id := m[1]
		if seen[id] {
			continue
		}
		seen[id] = true
		if _, err := a.s.State.Channel(id); err == nil {
			out = append(out, id)
			continue
		}
		if _, err := a.s.Channel(id); err == nil {
			out = append(out, id)
		} else {
			a.log.Debug("channel mention not resolvable", logx.String("channel_id", id), logx.Err(err))
		}
	}
	return out
}

func (a *Adapter) Start(ctx context.Context, out chan<- kit.Update) error {
	if ctx == nil {
		ctx = context.Background()
	}
	a.runMu.Lock()
	if a.running {
		a.runMu.Unlock()
		return nil
	}
	a.out.Store(out)
	if err := a.s.Open(); err != nil {
		var nilOut chan<- kit.Update
		a.out.Store(nilOut)
		a.runMu.Unlock()
		return fmt.Errorf("open discord gateway: %w", err)
	}
	a.running = true
	a.sup = rtsup.New(ctx,
		rtsup.WithLogger(a.log.With(logx.String("comp", "discord.adapter"))),
		// adapter errors should not take down the whole app
		rtsup.WithCancelOnError(false),
	)
	sup := a.sup
	a.runMu.Unlock()

	sup.Go0("updates.drop_report", func(c context.Context) {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-c.Done():
				a.reportDropped(cap(out))
				return
			case <-ticker.C:
				a.reportDropped(cap(out))
			}
		}
	})

	a.log.Info("gateway connected", logx.Int("intents", int(a.cfg.Intents)))
	return nil
}

func (a *Adapter) reportDropped(capacity int) {
	if n := atomic.SwapUint64(&a.droppedUpdates, 0); n > 0 {
		a.log.Warn("incoming updates dropped (channel full)", logx.Uint64("count", n), logx.Int("chan_cap", capacity))
	}
}

func (a *Adapter) Stop(ctx context.Context) error {
	a.runMu.Lock()
	sup := a.sup
	a.sup = nil
	wasRunning := a.running
	a.running = false
	var nilOut chan<- kit.Update
	a.out.Store(nilOut)
	a.runMu.Unlock()

	if !wasRunning {
		a.log.Debug("discord stop called but not running")
		return nil
	}

	if err := a.s.Close(); err != nil {
		a.log.Warn("discord gateway close failed", logx.Err(err))
	}
	if sup != nil {
		if err := sup.Stop(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
			a.log.Warn("discord stop error", logx.Err(err))
		}
	}
	a.log.Info("gateway closed")
	return nil
}

func (a *Adapter) Self() string {
	v, _ := a.self.Load().(string)
	return v
}

func (a *Adapter) Reply(ctx context.Context, to *kit.Message, p format.Payload) (kit.MessageRef, error) {
	if to == nil {
		return kit.MessageRef{}, errors.New("reply target is nil")
	}
	ms := toMessageSend(p)
	ms.Reference = &discordgo.MessageReference{
		MessageID: to.ID,
		ChannelID: to.ChannelID,
		GuildID:   to.GuildID,
	}
	m, err := a.s.ChannelMessageSendComplex(to.ChannelID, ms, discordgo.WithContext(ctx))
	if err != nil {
		return kit.MessageRef{}, err
	}
	return kit.MessageRef{ChannelID: m.ChannelID, MessageID: m.ID}, nil
}

func (a *Adapter) Edit(ctx context.Context, ref kit.MessageRef, p format.Payload) error {
	if ref.ChannelID == "" || ref.MessageID == "" {
		return errors.New("edit target is empty")
	}
	_, err := a.s.ChannelMessageEditComplex(toMessageEdit(ref, p), discordgo.WithContext(ctx))
	return err
}

func (a *Adapter) SendChannel(ctx context.Context, channelID string, p format.Payload) (kit.MessageRef, error) {
	m, err := a.s.ChannelMessageSendComplex(channelID, toMessageSend(p), discordgo.WithContext(ctx))
	if err != nil {
		return kit.MessageRef{}, err
	}
	return kit.MessageRef{ChannelID: m.ChannelID, MessageID: m.ID}, nil
}

func (a *Adapter) SendDirect(ctx context.Context, userID string, p format.Payload) error {
	channelID, err := a.dmChannel(ctx, userID)
	if err != nil {
		return fmt.Errorf("open dm channel: %w", err)
	}
	_, err = a.s.ChannelMessageSendComplex(channelID, toMessageSend(p), discordgo.WithContext(ctx))
	return err
}

func (a *Adapter) dmChannel(ctx context.Context, userID string) (string, error) {
	if v, ok := a.dmChannels.Load(userID); ok {
		return v.(string), nil
	}
	ch, err := a.s.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return "", err
	}
	a.dmChannels.Store(userID, ch.ID)
	return ch.ID, nil
}

// Members returns the full member list of a guild, paging through the REST
// endpoint. Requires the GuildMembers privileged intent.
func (a *Adapter) Members(ctx context.Context, guildID string) ([]kit.Member, error) {
	var (
		out   []kit.Member
		after string
	)
	for {
		page, err := a.s.GuildMembers(guildID, after, membersPageSize, discordgo.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("guild members: %w", err)
		}
		for _, m := range page {
			if m == nil || m.User == nil {
				continue
			}
			out = append(out, kit.Member{ID: m.User.ID, Username: m.User.Username, Bot: m.User.Bot})
		}
		if len(page) < membersPageSize || page[len(page)-1].User == nil {
			return out, nil
		}
		after = page[len(page)-1].User.ID
	}
}

func toAuthor(u *discordgo.User) *kit.Author {
	return &kit.Author{
		ID:        u.ID,
		Username:  u.Username,
		Tag:       u.String(),
		AvatarURL: u.AvatarURL(""),
		Bot:       u.Bot,
	}
}
