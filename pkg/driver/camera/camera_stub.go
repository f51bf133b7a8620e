//go:build !linux

package camera

// V4L2 is Linux only. Other platforms register no camera backend and rely
// on the screen and test backends.
