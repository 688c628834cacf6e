package hero

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCarousel_Advance(t *testing.T) {
	c := New([]string{"a", "b", "c"}, 0)
	assert.Equal(t, 0, c.Current())
	assert.Equal(t, 1, c.Advance())
	assert.Equal(t, 2, c.Advance())
	assert.Equal(t, 0, c.Advance())
	assert.Equal(t, DefaultInterval, c.interval)
}

func TestCarousel_Run(t *testing.T) {
	c := New([]string{"a", "b"}, 5*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	require.Eventually(t, func() bool { return c.Current() == 1 }, time.Second, time.Millisecond)

	c.Pause()
	assert.True(t, c.Paused())
	c.Resume()
	assert.False(t, c.Paused())

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("carousel did not stop")
	}
}

func TestCarousel_PausedDoesNotAdvance(t *testing.T) {
	c := New([]string{"a", "b"}, 2*time.Millisecond)
	c.Pause()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	require.NoError(t, c.Run(ctx))
	assert.Equal(t, 0, c.Current())
}

func TestCarousel_NoSlides(t *testing.T) {
	c := New(nil, time.Millisecond)
	require.NoError(t, c.Run(context.Background()))
	assert.Equal(t, 0, c.Advance())
}
