package bubbletea_test

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fwojciec/ragchat"
	bt "github.com/fwojciec/ragchat/bubbletea"
	"github.com/fwojciec/ragchat/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// answerProvider streams a fixed answer with citations.
func answerProvider(text string, citations ...ragchat.Citation) ragchat.Provider {
	return &mock.Provider{StreamFn: func(ctx context.Context, req ragchat.Request) (ragchat.Stream, error) {
		frames := []ragchat.Frame{ragchat.FrameConversationID{ID: "conv-1"}, ragchat.FrameTextDelta{Text: text}}
		if len(citations) > 0 {
			frames = append(frames, ragchat.FrameCitations{Citations: citations})
		}
		frames = append(frames, ragchat.FrameDone{})
		return ragchat.NewSliceStream(frames...), nil
	}}
}

// chanProvider streams whatever frames the test sends. The stream fails
// with "request cancelled" when the request context ends.
func chanProvider() (ragchat.Provider, chan<- ragchat.Frame) {
	ch := make(chan ragchat.Frame)
	p := &mock.Provider{StreamFn: func(ctx context.Context, req ragchat.Request) (ragchat.Stream, error) {
		return &mock.Stream{NextFn: func() (ragchat.Frame, error) {
			select {
			case f := <-ch:
				return f, nil
			case <-ctx.Done():
				return ragchat.FrameError{Message: "request cancelled"}, nil
			}
		}}, nil
	}}
	return p, ch
}

func newConversation(p ragchat.Provider) (*ragchat.Reducer, *bt.Notifier) {
	n := bt.NewNotifier()
	r := ragchat.NewReducer(p,
		ragchat.WithObserver(n.Observe),
		ragchat.WithClock(func() time.Time { return fixedTime }),
	)
	return r, n
}

// initModel creates a model and sends a WindowSizeMsg to initialize the viewport.
func initModel(t *testing.T, conv bt.Conversation, n *bt.Notifier) bt.Model {
	t.Helper()
	return updateModel(t, bt.New(conv, n, ragchat.DefaultTheme()), tea.WindowSizeMsg{Width: 80, Height: 24})
}

// updateModel sends a message and returns the updated Model.
func updateModel(t *testing.T, m bt.Model, msg tea.Msg) bt.Model {
	t.Helper()
	updated, _ := m.Update(msg)
	model, ok := updated.(bt.Model)
	require.True(t, ok)
	return model
}

// submitQuery types query, presses Enter and returns the model with the
// batched submit and listen commands.
func submitQuery(t *testing.T, m bt.Model, query string) (bt.Model, tea.Cmd, tea.Cmd) {
	t.Helper()
	m.Input.SetValue(query)
	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	model, ok := updated.(bt.Model)
	require.True(t, ok)
	require.NotNil(t, cmd)
	batch, ok := cmd().(tea.BatchMsg)
	require.True(t, ok)
	require.Len(t, batch, 2)
	return model, batch[0], batch[1]
}

// fakeConversation is a Conversation whose Submit result is fixed.
type fakeConversation struct {
	err error
}

func (f *fakeConversation) Submit(ctx context.Context, query string) (ragchat.Message, error) {
	return ragchat.Message{}, f.err
}

func (f *fakeConversation) Reset() {}

func (f *fakeConversation) Snapshot() ragchat.Transcript {
	return ragchat.Transcript{Messages: []ragchat.Message{{Role: ragchat.RoleAssistant, Content: "hi"}}}
}

func TestNotifier(t *testing.T) {
	t.Parallel()

	n := bt.NewNotifier()
	// Repeated changes coalesce without blocking.
	for range 5 {
		n.Observe(ragchat.Change{Kind: ragchat.ChangeUpdated})
	}
	select {
	case <-n.C():
	default:
		t.Fatal("expected a pending notification")
	}
	select {
	case <-n.C():
		t.Fatal("notifications should coalesce")
	default:
	}
	assert.NotNil(t, n.C())
}
