package notify

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
)

func TestShowDefaults(t *testing.T) {
	c := NewCenter(nil)

	id := c.Show(Success, "Saved")
	require.NotEmpty(t, id)

	pending := c.Pending()
	require.Len(t, pending, 1)
	require.Equal(t, Success, pending[0].Kind)
	require.Equal(t, "Success", pending[0].Title())
	require.Equal(t, DefaultDuration, pending[0].Duration)
	require.EqualValues(t, 3000, pending[0].DurationMillis())
}

func TestUnknownKindFallsBackToInfo(t *testing.T) {
	c := NewCenter(nil)
	c.Show(Kind("shout"), "hey", 0)

	toast := c.Pending()[0]
	require.Equal(t, Info, toast.Kind)
	require.Equal(t, "Info", toast.Title())
	require.Zero(t, toast.Duration, "explicit zero keeps the toast sticky")
}

func TestDrainKeepsSeededToastsFirst(t *testing.T) {
	c := NewCenter([]Toast{{ID: "a", Kind: Error, Message: "first"}})

	id := c.Show(Warning, "second", time.Second)

	drained := c.Drain()
	require.Len(t, drained, 2)
	require.Equal(t, "a", drained[0].ID)
	require.Equal(t, id, drained[1].ID)
	require.Equal(t, time.Second, drained[1].Duration)
	require.Empty(t, c.Pending())
	require.Empty(t, c.Drain())
}

func TestLongMessagesAreTruncated(t *testing.T) {
	c := NewCenter(nil)
	c.Show(Info, strings.Repeat("a", MaxMessageBytes))
	c.Show(Error, strings.Repeat("a", MaxMessageBytes+1))
	c.Show(Error, strings.Repeat("é", MaxMessageBytes))

	pending := c.Pending()
	require.Len(t, pending[0].Message, MaxMessageBytes, "a message at the cap is kept whole")
	for _, toast := range pending[1:] {
		require.LessOrEqual(t, len(toast.Message), MaxMessageBytes)
		require.True(t, utf8.ValidString(toast.Message))
		require.True(t, strings.HasSuffix(toast.Message, "…"))
	}
	require.Equal(t, strings.Repeat("a", MaxMessageBytes-3)+"…", pending[1].Message)
}

func TestQueueIsBounded(t *testing.T) {
	c := NewCenter(nil)
	for i := 0; i < MaxPending+3; i++ {
		c.Show(Info, string(rune('a'+i)))
	}
	pending := c.Pending()
	require.Len(t, pending, MaxPending)
	require.Equal(t, "d", pending[0].Message)
}

func TestContextRoundTrip(t *testing.T) {
	c := NewCenter(nil)
	ctx := WithCenter(context.Background(), c)
	require.Same(t, c, FromContext(ctx))

	detached := FromContext(context.Background())
	require.NotNil(t, detached)
	detached.Show(Info, "ignored")
	require.Empty(t, c.Pending())
}
