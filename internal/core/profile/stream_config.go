// If you are AI: This file defines the stream configuration payload used by the server binary.

package profile

import "fmt"

// StreamConfig is one encoder operating point.
// CSV column order follows field order: width, height, frame_rate, bitrate.
type StreamConfig struct {
	Width     int `json:"width"`
	Height    int `json:"height"`
	FrameRate int `json:"frame_rate"` // Frames per second
	Bitrate   int `json:"bitrate"`    // Target bits per second
}

// FrameSize returns the payload bytes per frame that meets Bitrate at FrameRate.
// Returns 0 when FrameRate is not positive.
func (c StreamConfig) FrameSize() int {
	if c.FrameRate <= 0 {
		return 0
	}
	return c.Bitrate / 8 / c.FrameRate
}

// String returns a compact representation, e.g. "1280x720@30 2000000bps".
func (c StreamConfig) String() string {
	return fmt.Sprintf("%dx%d@%d %dbps", c.Width, c.Height, c.FrameRate, c.Bitrate)
}
