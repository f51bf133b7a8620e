/*
Package camera provides a video camera backend.

Device Label Generation Rules

On Linux, the device label will be in the format of:
	pci-0000:00:00.0-usb-0:0:0.0-video-index0;video0
If /dev/v4l/by-path/* is not available (for example in a docker container without
bindings in /dev/v4l/by-path/), it will be:
	video0;video0

Device ids are derived from the resolved device node, so they stay stable for as
long as the device keeps its node.
*/
package camera

import (
	"math"
	"path/filepath"
	"sort"

	"github.com/google/uuid"

	"github.com/pion/cameraview/internal/logging"
)

// LabelSeparator is used to separate labels for a driver that
// is found from multiple locations on a host.
const LabelSeparator = ";"

var logger = logging.NewLogger("cameraview/camera")

// node is one discovered device node.
type node struct {
	label string
	path  string
	id    string
}

// discover resolves every path matching patterns, in order, and merges the
// entries pointing to the same device node.
func discover(patterns ...string) []node {
	var nodes []node
	seen := make(map[string]bool)

	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			continue
		}
		sort.Strings(matches)

		for _, match := range matches {
			resolved, err := filepath.EvalSymlinks(match)
			if err != nil {
				logger.Debugf("skip %s: %v", match, err)
				continue
			}
			if seen[resolved] {
				continue
			}
			seen[resolved] = true

			nodes = append(nodes, node{
				label: filepath.Base(match) + LabelSeparator + filepath.Base(resolved),
				path:  resolved,
				id:    uuid.NewSHA1(uuid.NameSpaceURL, []byte("v4l2://"+resolved)).String(),
			})
		}
	}
	return nodes
}

// zoomRange maps an absolute zoom control range onto zoom factors. Devices
// report the optical zoom in arbitrary units, minimum being 1x.
func zoomRange(min, max int32) (float64, float64) {
	if max <= min {
		return 1, 1
	}
	if min > 0 {
		return 1, float64(max) / float64(min)
	}
	return 1, 1 + float64(max-min)/100
}

// zoomValue is the inverse of zoomRange for one factor.
func zoomValue(factor float64, min, max int32) int32 {
	lo, hi := zoomRange(min, max)
	if hi == lo {
		return min
	}
	factor = math.Max(lo, math.Min(factor, hi))
	return min + int32(math.Round((factor-lo)/(hi-lo)*float64(max-min)))
}
