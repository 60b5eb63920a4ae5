package command

import (
	"context"
	"errors"
	"strings"
	"testing"

	"announcebot/internal/broadcast"
	"announcebot/internal/format"
	kit "announcebot/internal/transport"
	logx "announcebot/pkg/logx"
)

const (
	ownerID = "100"
	botID   = "900"
)

type fakeReplier struct {
	replies []string
	err     error
}

func (f *fakeReplier) Reply(_ context.Context, _ *kit.Message, p format.Payload) (kit.MessageRef, error) {
	if f.err != nil {
		return kit.MessageRef{}, f.err
	}
	f.replies = append(f.replies, p.Content)
	return kit.MessageRef{MessageID: "r"}, nil
}

type fakeQueue struct {
	jobs  []broadcast.Job
	ahead int
	err   error
}

func (f *fakeQueue) Enqueue(j broadcast.Job) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.jobs = append(f.jobs, j)
	return f.ahead, nil
}

func newTestDispatcher() (*Dispatcher, *fakeReplier, *fakeQueue) {
	rep := &fakeReplier{}
	q := &fakeQueue{}
	d := New(Config{AuthorizedUserID: ownerID}, func() string { return botID }, rep, q, logx.Nop())
	return d, rep, q
}

func msg(from, content string, mentions ...string) *kit.Message {
	return &kit.Message{
		ID:              "m1",
		ChannelID:       "cmd",
		GuildID:         "g1",
		Author:          kit.Author{ID: from, Username: "user" + from, AvatarURL: "https://cdn/avatar.png"},
		Content:         content,
		ChannelMentions: mentions,
	}
}

func TestHandleRejections(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		m         *kit.Message
		wantReply string
	}{
		{name: "unauthorized", m: msg("200", "!announce <#42> hi", "42"), wantReply: replyDenied},
		{name: "unauthorized bare", m: msg("200", "!announce"), wantReply: replyDenied},
		{name: "trigger only", m: msg(ownerID, "!announce"), wantReply: replyUsage},
		{name: "no text", m: msg(ownerID, "!announce <#42>", "42"), wantReply: replyUsage},
		{name: "not a mention", m: msg(ownerID, "!announce general hello"), wantReply: replyInvalidChannel},
		{name: "unresolved mention", m: msg(ownerID, "!announce <#42> hello"), wantReply: replyInvalidChannel},
		{name: "other channel resolved", m: msg(ownerID, "!announce <#42> hello", "43"), wantReply: replyInvalidChannel},
		{name: "user mention", m: msg(ownerID, "!announce <@42> hello", "42"), wantReply: replyInvalidChannel},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d, rep, q := newTestDispatcher()
			if err := d.Handle(context.Background(), tt.m); err != nil {
				t.Fatalf("Handle: %v", err)
			}
			if len(q.jobs) != 0 {
				t.Fatalf("enqueued %d jobs, want 0", len(q.jobs))
			}
			if len(rep.replies) != 1 || rep.replies[0] != tt.wantReply {
				t.Fatalf("replies = %q, want [%q]", rep.replies, tt.wantReply)
			}
		})
	}
}

func TestHandleIgnores(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		m    *kit.Message
	}{
		{name: "plain chat", m: msg(ownerID, "hello there")},
		{name: "empty", m: msg(ownerID, "   ")},
		{name: "longer word", m: msg(ownerID, "!announcement <#42> hi", "42")},
		{name: "own message", m: msg(botID, "!announce <#42> hi", "42")},
		{name: "nil", m: nil},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d, rep, q := newTestDispatcher()
			if err := d.Handle(context.Background(), tt.m); err != nil {
				t.Fatalf("Handle: %v", err)
			}
			if len(rep.replies) != 0 || len(q.jobs) != 0 {
				t.Fatalf("replies=%q jobs=%d, want none", rep.replies, len(q.jobs))
			}
		})
	}
}

func TestHandleAccepted(t *testing.T) {
	t.Parallel()
	d, rep, q := newTestDispatcher()
	m := msg(ownerID, "!announce   <#42>  Server   maintenance tonight", "42")

	if err := d.Handle(context.Background(), m); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(rep.replies) != 0 {
		t.Fatalf("replies = %q, want none", rep.replies)
	}
	if len(q.jobs) != 1 {
		t.Fatalf("jobs = %d, want 1", len(q.jobs))
	}
	j := q.jobs[0]
	if j.Text != "Server maintenance tonight" {
		t.Fatalf("text = %q", j.Text)
	}
	if j.TargetChannelID != "42" || j.GuildID != "g1" || j.Trigger != m {
		t.Fatalf("job = %+v", j)
	}
	if j.Author.ID != ownerID || j.Author.Username != "user"+ownerID || j.Author.AvatarURL == "" {
		t.Fatalf("author = %+v", j.Author)
	}
	if j.ID == "" {
		t.Fatal("job id should be set")
	}
}

func TestHandleQueued(t *testing.T) {
	t.Parallel()
	d, rep, q := newTestDispatcher()
	q.ahead = 2

	if err := d.Handle(context.Background(), msg(ownerID, "!announce <#42> hi", "42")); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(rep.replies) != 1 || !strings.Contains(rep.replies[0], "2 ahead") {
		t.Fatalf("replies = %q", rep.replies)
	}
}

func TestHandleQueueFull(t *testing.T) {
	t.Parallel()
	d, rep, q := newTestDispatcher()
	q.err = broadcast.ErrQueueFull

	if err := d.Handle(context.Background(), msg(ownerID, "!announce <#42> hi", "42")); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(rep.replies) != 1 || rep.replies[0] != replyBusy {
		t.Fatalf("replies = %q", rep.replies)
	}
}

func TestHandleNotRunning(t *testing.T) {
	t.Parallel()
	d, _, q := newTestDispatcher()
	q.err = broadcast.ErrNotRunning

	err := d.Handle(context.Background(), msg(ownerID, "!announce <#42> hi", "42"))
	if !errors.Is(err, broadcast.ErrNotRunning) {
		t.Fatalf("Handle err = %v, want ErrNotRunning", err)
	}
}

func TestHandleReplyFailure(t *testing.T) {
	t.Parallel()
	d, rep, _ := newTestDispatcher()
	rep.err = errors.New("missing access")

	if err := d.Handle(context.Background(), msg("200", "!announce")); err == nil {
		t.Fatal("expected reply error")
	}
}

func TestHandleDirectMessage(t *testing.T) {
	t.Parallel()
	d, rep, q := newTestDispatcher()
	m := msg(ownerID, "!announce <#42> hi", "42")
	m.GuildID = ""

	if err := d.Handle(context.Background(), m); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(q.jobs) != 0 || len(rep.replies) != 1 || rep.replies[0] != replyGuildOnly {
		t.Fatalf("replies=%q jobs=%d", rep.replies, len(q.jobs))
	}
}

func TestCustomTrigger(t *testing.T) {
	t.Parallel()
	rep := &fakeReplier{}
	q := &fakeQueue{}
	d := New(Config{Trigger: "!say", AuthorizedUserID: ownerID}, nil, rep, q, logx.Nop())

	_ = d.Handle(context.Background(), msg(ownerID, "!announce <#42> hi", "42"))
	_ = d.Handle(context.Background(), msg(ownerID, "!say"))
	_ = d.Handle(context.Background(), msg(ownerID, "!say <#42> hi", "42"))

	if len(q.jobs) != 1 {
		t.Fatalf("jobs = %d, want 1", len(q.jobs))
	}
	if len(rep.replies) != 1 || rep.replies[0] != "!say #channel [message]" {
		t.Fatalf("replies = %q", rep.replies)
	}
}

func TestPanicIsRecovered(t *testing.T) {
	t.Parallel()
	d := New(Config{AuthorizedUserID: ownerID}, nil, &fakeReplier{}, nil, logx.Nop())

	err := d.Handle(context.Background(), msg(ownerID, "!announce <#42> hi", "42"))
	if err == nil || !strings.Contains(err.Error(), "panic") {
		t.Fatalf("Handle err = %v, want recovered panic", err)
	}
}

func TestParseChannelMention(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"<#123456789>", "123456789", true},
		{"<#>", "", false},
		{"<#12a>", "", false},
		{"<@123>", "", false},
		{"#general", "", false},
		{"<#123", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseChannelMention(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Fatalf("ParseChannelMention(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestTriggerIsFirstToken(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		content string
		want    bool
	}{
		{name: "leading whitespace", content: "   !announce <#42> hello", want: true},
		{name: "newline separated", content: "!announce\n<#42>\nhello", want: true},
		{name: "trailing punctuation", content: "!announce, <#42> hello"},
		{name: "not first", content: "hey !announce <#42> hello"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d, rep, q := newTestDispatcher()
			if err := d.Handle(context.Background(), msg(ownerID, tt.content, "42")); err != nil {
				t.Fatalf("Handle: %v", err)
			}
			if got := len(q.jobs) == 1; got != tt.want {
				t.Fatalf("enqueued = %v, want %v (replies %q)", got, tt.want, rep.replies)
			}
			if tt.want && q.jobs[0].Text != "hello" {
				t.Fatalf("text = %q", q.jobs[0].Text)
			}
		})
	}
}
