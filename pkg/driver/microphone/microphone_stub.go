//go:build nomicrophone

// Package microphone provides the host microphones through miniaudio.
//
// This stub file is used when building with the 'nomicrophone' build tag.
// Use this when cross-compiling or when malgo (miniaudio) dependencies are not available.
//
// To build without microphone support:
//
//	go build -tags nomicrophone
package microphone
