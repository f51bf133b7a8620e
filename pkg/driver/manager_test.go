package driver

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCamera CameraInfo

func (c stubCamera) Info() CameraInfo { return CameraInfo(c) }

func (c stubCamera) Open(context.Context) (Device, error) { return nil, errors.New("stub") }

type stubBackend struct {
	name    string
	cameras []Camera
	err     error
}

func (b *stubBackend) Name() string { return b.name }

func (b *stubBackend) Cameras() ([]Camera, error) { return b.cameras, b.err }

func (b *stubBackend) Microphones() ([]Microphone, error) { return nil, b.err }

func filterTrue(Camera) bool  { return true }
func filterFalse(Camera) bool { return false }

func TestFilterNot(t *testing.T) {
	if FilterNot(filterTrue)(nil) != false {
		t.Error("FilterNot(filterTrue)() must be false")
	}
	if FilterNot(filterFalse)(nil) != true {
		t.Error("FilterNot(filterFalse)() must be true")
	}
}

func TestFilterAnd(t *testing.T) {
	if FilterAnd(filterTrue, filterTrue)(nil) != true {
		t.Error("FilterAnd(filterTrue, filterTrue)() must be true")
	}
	if FilterAnd(filterTrue, filterFalse)(nil) != false {
		t.Error("FilterAnd(filterTrue, filterFalse)() must be false")
	}
	if FilterAnd(filterFalse, filterTrue, filterTrue)(nil) != false {
		t.Error("FilterAnd(filterFalse, filterTrue, filterTrue)() must be false")
	}
	if FilterAnd()(nil) != true {
		t.Error("FilterAnd()() must be true")
	}
}

func TestEnumerate(t *testing.T) {
	front := stubCamera{ID: "a", Position: PositionFront}
	back := stubCamera{ID: "b", Position: PositionBack}

	m := NewManager()
	m.Register(&stubBackend{name: "one", cameras: []Camera{front}})
	m.Register(&stubBackend{name: "two", cameras: []Camera{back}})
	m.Register(&stubBackend{name: "broken", err: errors.New("denied")})

	inv, err := m.Enumerate()
	require.NoError(t, err)
	assert.Len(t, inv.Cameras, 2)

	assert.Equal(t, back, inv.Camera(FilterPosition(PositionBack)))
	assert.Equal(t, front, inv.Camera(FilterID("a")))
	assert.Nil(t, inv.Camera(FilterAnd(FilterID("a"), FilterPosition(PositionBack))))
	assert.Nil(t, inv.Microphone("none"))
}

func TestEnumerateAllFailed(t *testing.T) {
	m := NewManager()
	_, err := m.Enumerate()
	assert.ErrorIs(t, err, ErrNoBackend)

	denied := errors.New("denied")
	m.Register(&stubBackend{name: "broken", err: denied})
	_, err = m.Enumerate()
	assert.ErrorIs(t, err, denied)
}

func TestRegisterReplacesByName(t *testing.T) {
	m := NewManager()
	m.Register(&stubBackend{name: "one"})
	replacement := &stubBackend{name: "one", cameras: []Camera{stubCamera{ID: "x"}}}
	m.Register(replacement)

	backends := m.Backends()
	require.Len(t, backends, 1)
	assert.Same(t, replacement, backends[0])
}
