// Package audio contains the pull based sample source used by microphone drivers.
package audio

import "time"

// Chunk is a run of interleaved signed 16 bit PCM samples.
type Chunk struct {
	Samples      []int16
	SampleRate   int
	ChannelCount int
}

// Frames returns the number of sample frames, i.e. samples per channel.
func (c Chunk) Frames() int {
	if c.ChannelCount <= 0 {
		return 0
	}
	return len(c.Samples) / c.ChannelCount
}

// Duration returns the play time of the chunk.
func (c Chunk) Duration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(c.Frames()) * time.Second / time.Duration(c.SampleRate)
}

// Reader produces chunks. release must be called once the caller is done with chunk.
type Reader interface {
	Read() (chunk Chunk, release func(), err error)
}

// ReaderFunc adapts a function to Reader.
type ReaderFunc func() (chunk Chunk, release func(), err error)

func (rf ReaderFunc) Read() (Chunk, func(), error) {
	return rf()
}
