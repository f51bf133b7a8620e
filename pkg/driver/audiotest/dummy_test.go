package audiotest

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pion/cameraview/pkg/prop"
)

func TestMicrophone(t *testing.T) {
	m := NewMicrophone("mic", "Mic")
	s, err := m.Open(context.Background(), prop.Audio{ChannelCount: 2, SampleRate: 48000, Latency: 10 * time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, 1, m.Sessions())

	chunk, release, err := s.Read()
	require.NoError(t, err)
	release()
	assert.Equal(t, 480, chunk.Frames())
	assert.Equal(t, 10*time.Millisecond, chunk.Duration())

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	_, _, err = s.Read()
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 0, m.Sessions())
}

func TestBackend(t *testing.T) {
	b := NewBackend("test", NewMicrophone("a", "A"))
	cams, err := b.Cameras()
	require.NoError(t, err)
	assert.Empty(t, cams)

	mics, err := b.Microphones()
	require.NoError(t, err)
	require.Len(t, mics, 1)
	assert.Equal(t, "A", mics[0].Info().Name)
}
