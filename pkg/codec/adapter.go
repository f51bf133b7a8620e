package codec

import (
	"math/rand"

	"github.com/pion/rtp"
)

const (
	defaultMTU = 1200
)

// Packetizer splits encoded samples into RTP packets, the unit the media
// writers consume.
type Packetizer struct {
	packetizer rtp.Packetizer
	sample     SamplerFunc
}

// NewPacketizer creates a packetizer for mimeType. sample gives the
// duration, in clock rate units, of each sample.
func NewPacketizer(mimeType string, sample SamplerFunc) (*Packetizer, error) {
	clockRate, err := ClockRate(mimeType)
	if err != nil {
		return nil, err
	}
	payloader, payloadType, err := payloader(mimeType)
	if err != nil {
		return nil, err
	}

	return &Packetizer{
		packetizer: rtp.NewPacketizer(
			defaultMTU,
			payloadType,
			rand.Uint32(),
			payloader,
			rtp.NewRandomSequencer(),
			clockRate,
		),
		sample: sample,
	}, nil
}

// Packetize packetizes one encoded sample.
func (p *Packetizer) Packetize(payload []byte) []*rtp.Packet {
	if len(payload) == 0 {
		return nil
	}
	return p.packetizer.Packetize(payload, p.sample())
}

// PacketizeSamples packetizes one encoded sample lasting samples clock
// rate units, bypassing the sampler.
func (p *Packetizer) PacketizeSamples(payload []byte, samples uint32) []*rtp.Packet {
	if len(payload) == 0 {
		return nil
	}
	return p.packetizer.Packetize(payload, samples)
}
