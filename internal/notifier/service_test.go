package notifier

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uptimeninja/internal/eventbus"
	kit "uptimeninja/internal/transport"
	logx "uptimeninja/pkg/logx"
)

type fakeAdapter struct {
	mu    sync.Mutex
	calls int
	sent  []string
	opts  []*kit.SendOptions
	err   error
}

func (f *fakeAdapter) Start(context.Context, chan<- kit.Update) error { return nil }
func (f *fakeAdapter) Stop(context.Context) error                     { return nil }
func (f *fakeAdapter) EditText(context.Context, kit.MessageRef, string, *kit.SendOptions) error {
	return nil
}
func (f *fakeAdapter) AnswerCallback(context.Context, string, string) error { return nil }

func (f *fakeAdapter) SendText(_ context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return kit.MessageRef{}, f.err
	}
	f.sent = append(f.sent, text)
	f.opts = append(f.opts, opt)
	return kit.MessageRef{ChatID: to.ChatID, MessageID: len(f.sent)}, nil
}

func (f *fakeAdapter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeMail struct {
	mu   sync.Mutex
	to   []string
	fail bool
}

func (m *fakeMail) Send(_ context.Context, to, _, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("smtp down")
	}
	m.to = append(m.to, to)
	return nil
}

func stopNow(t *testing.T, s *Service) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s.Stop(ctx)
}

func TestChatAndEmailDelivered(t *testing.T) {
	ad := &fakeAdapter{}
	mail := &fakeMail{}
	s := New(Config{Enabled: true, Workers: 1}, ad, mail, logx.Nop(), nil, nil)
	s.Start(context.Background())

	require.NoError(t, s.Chat(context.Background(), 10, "<b>hi</b>"))
	require.NoError(t, s.Email(context.Background(), "a@b.io", "subj", "<p>x</p>"))
	stopNow(t, s)

	require.Equal(t, []string{"<b>hi</b>"}, ad.sent)
	assert.Equal(t, "HTML", ad.opts[0].ParseMode)
	assert.True(t, ad.opts[0].DisablePreview)
	assert.Equal(t, []string{"a@b.io"}, mail.to)
}

func TestFailedSendIsNotRetried(t *testing.T) {
	ad := &fakeAdapter{err: errors.New("telegram 502")}
	bus := eventbus.New()
	events, unsub := bus.Subscribe(16)
	defer unsub()

	s := New(Config{Enabled: true, Workers: 1}, ad, nil, logx.Nop(), bus, nil)
	s.Start(context.Background())
	require.NoError(t, s.Chat(context.Background(), 1, "x"))
	stopNow(t, s)

	assert.Equal(t, 1, ad.callCount())
	var types []string
	for len(events) > 0 {
		types = append(types, (<-events).Type)
	}
	assert.ElementsMatch(t, []string{"notifier.queued", "notifier.failed"}, types)
}

func TestDisabledAndStopped(t *testing.T) {
	s := New(Config{Enabled: false}, &fakeAdapter{}, nil, logx.Nop(), nil, nil)
	s.Start(context.Background())
	assert.ErrorIs(t, s.Chat(context.Background(), 1, "x"), ErrDisabled)

	s = New(Config{Enabled: true}, &fakeAdapter{}, nil, logx.Nop(), nil, nil)
	assert.ErrorIs(t, s.Chat(context.Background(), 1, "x"), ErrStopped)
	assert.ErrorIs(t, s.Email(context.Background(), "a@b.io", "s", "b"), ErrNoProvider)
}

func TestQueueFullDrops(t *testing.T) {
	s := New(Config{Enabled: true, QueueSize: 1}, &fakeAdapter{}, nil, logx.Nop(), nil, nil)
	// Accept without workers so the queue cannot drain.
	s.mu.Lock()
	s.queue = make(chan job, 1)
	s.accepting = true
	s.mu.Unlock()

	require.NoError(t, s.Chat(context.Background(), 1, "a"))
	assert.ErrorIs(t, s.Chat(context.Background(), 1, "b"), ErrQueueFull)
}

func TestRestartAfterStop(t *testing.T) {
	ad := &fakeAdapter{}
	s := New(Config{Enabled: true}, ad, nil, logx.Nop(), nil, nil)
	s.Start(context.Background())
	stopNow(t, s)
	s.Start(context.Background())
	require.NoError(t, s.Chat(context.Background(), 1, "again"))
	stopNow(t, s)
	assert.Equal(t, 1, ad.callCount())
}
