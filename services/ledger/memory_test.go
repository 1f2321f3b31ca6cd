package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLedger(t *testing.T) {
	ctx := context.Background()
	key := Key{LogID: "log-1", Version: 1}

	t.Run("write once", func(t *testing.T) {
		l := NewMemoryLedger()
		ref, err := l.Submit(ctx, key, "0xabc")
		require.NoError(t, err)
		assert.Equal(t, "mem-tx-1", ref)

		_, err = l.Submit(ctx, key, "0xdef")
		assert.ErrorIs(t, err, ErrAlreadyAnchored)

		r, err := l.Fetch(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "0xabc", r.Hash)
		assert.Equal(t, ref, r.Reference)
		assert.Equal(t, 1, l.Writes())
	})

	t.Run("fetch missing key", func(t *testing.T) {
		l := NewMemoryLedger()
		_, err := l.Fetch(ctx, key)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("injected faults are consumed in order", func(t *testing.T) {
		l := NewMemoryLedger()
		l.FailNext(ErrUnavailable, nil)

		_, err := l.Submit(ctx, key, "0xabc")
		assert.ErrorIs(t, err, ErrUnavailable)

		_, err = l.Submit(ctx, key, "0xabc")
		assert.NoError(t, err)
		assert.Equal(t, 1, l.Writes())
	})

	t.Run("latency honours deadlines", func(t *testing.T) {
		l := NewMemoryLedger()
		l.SetLatency(200 * time.Millisecond)

		tctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
		defer cancel()
		_, err := l.Submit(tctx, key, "0xabc")
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Equal(t, 0, l.Writes())
	})

	t.Run("keys are distinct per version", func(t *testing.T) {
		l := NewMemoryLedger()
		_, err := l.Submit(ctx, Key{LogID: "log-1", Version: 1}, "0x1")
		require.NoError(t, err)
		_, err = l.Submit(ctx, Key{LogID: "log-1", Version: 2}, "0x2")
		require.NoError(t, err)
		assert.Equal(t, 2, l.Writes())
	})
}

func TestKeyString(t *testing.T) {
	assert.Equal(t, "log-9:v3", Key{LogID: "log-9", Version: 3}.String())
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(ErrUnavailable))
	assert.True(t, IsTransient(context.DeadlineExceeded))
	assert.False(t, IsTransient(ErrRejected))
	assert.False(t, IsTransient(ErrAlreadyAnchored))
	assert.False(t, IsTransient(nil))
}
