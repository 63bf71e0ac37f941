package mock_test

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/fwojciec/ragchat"
	"github.com/fwojciec/ragchat/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvider_Stream(t *testing.T) {
	t.Parallel()
	t.Run("delegates to StreamFn", func(t *testing.T) {
		t.Parallel()
		var s mock.Stream
		p := mock.Provider{
			StreamFn: func(ctx context.Context, req ragchat.Request) (ragchat.Stream, error) {
				assert.Equal(t, "hi", req.Query)
				return &s, nil
			},
		}
		got, err := p.Stream(context.Background(), ragchat.Request{Query: "hi"})
		require.NoError(t, err)
		assert.Equal(t, &s, got)
	})

	t.Run("returns error", func(t *testing.T) {
		t.Parallel()
		wantErr := errors.New("api error")
		p := mock.Provider{
			StreamFn: func(ctx context.Context, req ragchat.Request) (ragchat.Stream, error) {
				return nil, wantErr
			},
		}
		_, err := p.Stream(context.Background(), ragchat.Request{})
		assert.ErrorIs(t, err, wantErr)
	})

	t.Run("panics when StreamFn not set", func(t *testing.T) {
		t.Parallel()
		p := mock.Provider{}
		assert.Panics(t, func() {
			_, _ = p.Stream(context.Background(), ragchat.Request{})
		})
	})
}

func TestStream(t *testing.T) {
	t.Parallel()
	t.Run("next delegates to NextFn", func(t *testing.T) {
		t.Parallel()
		want := ragchat.FrameTextDelta{Text: "hello"}
		s := mock.Stream{
			NextFn: func() (ragchat.Frame, error) { return want, nil },
		}
		got, err := s.Next()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("next returns EOF", func(t *testing.T) {
		t.Parallel()
		s := mock.Stream{
			NextFn: func() (ragchat.Frame, error) { return nil, io.EOF },
		}
		_, err := s.Next()
		assert.ErrorIs(t, err, io.EOF)
	})

	t.Run("next panics when NextFn not set", func(t *testing.T) {
		t.Parallel()
		s := mock.Stream{}
		assert.Panics(t, func() { _, _ = s.Next() })
	})

	t.Run("state defaults to new", func(t *testing.T) {
		t.Parallel()
		s := mock.Stream{}
		assert.Equal(t, ragchat.StreamStateNew, s.State())
	})

	t.Run("close is nil-safe", func(t *testing.T) {
		t.Parallel()
		s := mock.Stream{}
		assert.NoError(t, s.Close())
	})

	t.Run("close delegates to CloseFn", func(t *testing.T) {
		t.Parallel()
		wantErr := errors.New("close error")
		s := mock.Stream{CloseFn: func() error { return wantErr }}
		assert.ErrorIs(t, s.Close(), wantErr)
	})
}

func TestAnswerer_Chat(t *testing.T) {
	t.Parallel()
	a := mock.Answerer{
		ChatFn: func(ctx context.Context, req ragchat.Request) (ragchat.Answer, error) {
			return ragchat.Answer{Text: "42"}, nil
		},
	}
	got, err := a.Chat(context.Background(), ragchat.Request{})
	require.NoError(t, err)
	assert.Equal(t, "42", got.Text)
}

func TestHistoryReader_History(t *testing.T) {
	t.Parallel()
	h := mock.HistoryReader{
		HistoryFn: func(ctx context.Context, id string) ([]ragchat.Message, error) {
			assert.Equal(t, "conv-1", id)
			return nil, ragchat.ErrNotFound
		},
	}
	_, err := h.History(context.Background(), "conv-1")
	assert.ErrorIs(t, err, ragchat.ErrNotFound)
}

func TestIdentity(t *testing.T) {
	t.Parallel()
	t.Run("zero value is anonymous", func(t *testing.T) {
		t.Parallel()
		var id mock.Identity
		assert.False(t, id.Authenticated())
		assert.False(t, id.Admin())
		tok, err := id.Token(context.Background())
		require.NoError(t, err)
		assert.Empty(t, tok)
	})

	t.Run("delegates to TokenFn", func(t *testing.T) {
		t.Parallel()
		id := mock.Identity{
			TokenFn: func(ctx context.Context) (string, error) { return "tok", nil },
		}
		tok, err := id.Token(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "tok", tok)
	})
}
