// Package feed defines the configuration record for a single video source.
package feed

import (
	"encoding/json"

	"github.com/google/uuid"
)

const (
	// DefaultVideoQuality is used by editors when a feed has no quality set.
	// Range is 2-31, lower is better.
	DefaultVideoQuality = 24
	// DefaultMaxFPS is used by editors when a feed has no frame rate cap.
	DefaultMaxFPS = 16
)

// MotionRegion is an x, y, width, height rectangle.
type MotionRegion [4]float64

// Feed describes one video source and how it should be processed.
type Feed struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	// Stream processing.
	StreamURL    string   `json:"streamUrl"`
	MaxFPS       *float64 `json:"maxFps,omitempty"`
	ScaleFactor  *float64 `json:"scaleFactor,omitempty"` // multiplied by video width and height
	VideoQuality *int     `json:"videoQuality,omitempty"`

	// Storage.
	SaveVideo *bool  `json:"saveVideo,omitempty"`
	SavePath  string `json:"savePath,omitempty"`

	// Motion detection.
	DetectMotion        *bool          `json:"detectMotion,omitempty"`
	MotionDiffThreshold *float64       `json:"motionDiffThreshold,omitempty"`
	MotionRegions       []MotionRegion `json:"motionRegions,omitempty"`
}

// New returns an empty feed with a freshly generated id.
func New(name, streamURL string) Feed {
	return Feed{
		ID:        uuid.NewString(),
		Name:      name,
		StreamURL: streamURL,
	}
}

// Clone returns a deep copy of f.
func (f Feed) Clone() Feed {
	c := f
	c.MaxFPS = clonePtr(f.MaxFPS)
	c.ScaleFactor = clonePtr(f.ScaleFactor)
	c.VideoQuality = clonePtr(f.VideoQuality)
	c.SaveVideo = clonePtr(f.SaveVideo)
	c.DetectMotion = clonePtr(f.DetectMotion)
	c.MotionDiffThreshold = clonePtr(f.MotionDiffThreshold)
	if f.MotionRegions != nil {
		c.MotionRegions = append([]MotionRegion(nil), f.MotionRegions...)
	}
	return c
}

// Merge returns a new feed made of f with the fields present in the JSON
// object partial laid over it. f itself is left untouched.
func (f Feed) Merge(partial []byte) (Feed, error) {
	c := f.Clone()
	if err := json.Unmarshal(partial, &c); err != nil {
		return f, err
	}
	return c, nil
}

// WithDefaults returns a copy with the editor defaults filled in where unset.
func (f Feed) WithDefaults() Feed {
	c := f.Clone()
	if c.MaxFPS == nil {
		c.MaxFPS = Float(DefaultMaxFPS)
	}
	if c.VideoQuality == nil {
		c.VideoQuality = Int(DefaultVideoQuality)
	}
	return c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// Bool returns a pointer to v.
func Bool(v bool) *bool { return &v }
