package codec

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	mu            sync.RWMutex
	videoEncoders = make(map[string]VideoEncoderBuilder)
	audioEncoders = make(map[string]AudioEncoderBuilder)
)

// Register adds builder, a VideoEncoderBuilder or an AudioEncoderBuilder,
// under mimeType. Registering again replaces the previous builder.
func Register(mimeType string, builder interface{}) {
	mu.Lock()
	defer mu.Unlock()

	key := strings.ToLower(mimeType)
	switch b := builder.(type) {
	case VideoEncoderBuilder:
		videoEncoders[key] = b
	case AudioEncoderBuilder:
		audioEncoders[key] = b
	default:
		panic(fmt.Sprintf("codec: unsupported builder %T", builder))
	}
}

// Unregister removes every builder registered under mimeType.
func Unregister(mimeType string) {
	mu.Lock()
	defer mu.Unlock()

	key := strings.ToLower(mimeType)
	delete(videoEncoders, key)
	delete(audioEncoders, key)
}

func BuildVideoEncoder(mimeType string, s VideoSetting) (VideoEncoder, error) {
	mu.RLock()
	b, ok := videoEncoders[strings.ToLower(mimeType)]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("codec: can't find %s video encoder", mimeType)
	}

	return b(s)
}

func BuildAudioEncoder(mimeType string, s AudioSetting) (AudioEncoder, error) {
	mu.RLock()
	b, ok := audioEncoders[strings.ToLower(mimeType)]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("codec: can't find %s audio encoder", mimeType)
	}

	return b(s)
}

// HasAudioEncoder reports whether an audio encoder is registered for mimeType.
func HasAudioEncoder(mimeType string) bool {
	mu.RLock()
	defer mu.RUnlock()
	_, ok := audioEncoders[strings.ToLower(mimeType)]
	return ok
}

// VideoCodecs lists the mime types with a registered video encoder.
func VideoCodecs() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(videoEncoders))
	for name := range videoEncoders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
