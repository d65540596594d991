package feed

import (
	"hastycam/validate"
)

// Field names as they appear on the wire.
const (
	FieldID                  = "id"
	FieldName                = "name"
	FieldStreamURL           = "streamUrl"
	FieldMaxFPS              = "maxFps"
	FieldScaleFactor         = "scaleFactor"
	FieldVideoQuality        = "videoQuality"
	FieldSaveVideo           = "saveVideo"
	FieldSavePath            = "savePath"
	FieldDetectMotion        = "detectMotion"
	FieldMotionDiffThreshold = "motionDiffThreshold"
	FieldMotionRegions       = "motionRegions"
)

var lookups = map[string]func(f *Feed) (interface{}, bool){
	FieldID:                  func(f *Feed) (interface{}, bool) { return f.ID, true },
	FieldName:                func(f *Feed) (interface{}, bool) { return f.Name, true },
	FieldStreamURL:           func(f *Feed) (interface{}, bool) { return f.StreamURL, true },
	FieldMaxFPS:              func(f *Feed) (interface{}, bool) { return deref(f.MaxFPS) },
	FieldScaleFactor:         func(f *Feed) (interface{}, bool) { return deref(f.ScaleFactor) },
	FieldVideoQuality:        func(f *Feed) (interface{}, bool) { return deref(f.VideoQuality) },
	FieldSaveVideo:           func(f *Feed) (interface{}, bool) { return deref(f.SaveVideo) },
	FieldSavePath:            func(f *Feed) (interface{}, bool) { return f.SavePath, f.SavePath != "" },
	FieldDetectMotion:        func(f *Feed) (interface{}, bool) { return deref(f.DetectMotion) },
	FieldMotionDiffThreshold: func(f *Feed) (interface{}, bool) { return deref(f.MotionDiffThreshold) },
	FieldMotionRegions:       func(f *Feed) (interface{}, bool) { return f.MotionRegions, f.MotionRegions != nil },
}

func deref[T any](p *T) (interface{}, bool) {
	if p == nil {
		return nil, false
	}
	return *p, true
}

// Lookup implements validate.Record.
func (f Feed) Lookup(field string) (interface{}, bool) {
	l, ok := lookups[field]
	if !ok {
		return nil, false
	}
	return l(&f)
}

// Validate checks a feed, or a partial one decoded into a validate.Map, and
// returns every violation in declaration order. An empty result means the
// feed may be saved.
func Validate(r validate.Record) validate.Errors {
	return validate.Merge(
		validate.NotEmpty(r, FieldID),
		validate.String(r, FieldID),
		validate.NotEmpty(r, FieldName, "Feed name"),
		validate.String(r, FieldName, "Feed name"),
		validate.NotEmpty(r, FieldStreamURL, "Stream URL"),
		validate.String(r, FieldStreamURL, "Stream URL"),
		validate.Numeric(r, FieldMaxFPS, "Max FPS"),
		validate.Numeric(r, FieldScaleFactor, "Scale factor"),
		validate.If(
			validate.Passed(validate.NotEmpty(r, FieldVideoQuality)),
			validate.Numeric(r, FieldVideoQuality, "Video quality"),
			validate.Integer(r, FieldVideoQuality, "Video quality"),
			validate.NumberGreaterThanOrEqual(r, FieldVideoQuality, 2, "Video quality"),
			validate.NumberLessThanOrEqual(r, FieldVideoQuality, 31, "Video quality"),
		),
		validate.Bool(r, FieldSaveVideo, "Save video"),
		validate.String(r, FieldSavePath, "Storage path"),
		validate.If(
			isTrue(r, FieldSaveVideo),
			validate.NotEmpty(r, FieldSavePath, "Storage path"),
		),
		validate.Bool(r, FieldDetectMotion, "Detect motion"),
		validateThreshold(r),
		validate.Tuples(r, FieldMotionRegions, 4, "Motion regions"),
	)
}

// validateThreshold always checks the threshold is a number, but only
// bounds it when motion detection is on.
func validateThreshold(r validate.Record) validate.Errors {
	const label = "Motion detection threshold"
	numeric := validate.Numeric(r, FieldMotionDiffThreshold, label)
	return validate.Merge(
		numeric,
		validate.If(
			isTrue(r, FieldDetectMotion) && validate.Passed(numeric),
			validate.NumberLessThanOrEqual(r, FieldMotionDiffThreshold, 1, label),
			validate.NumberGreaterThanOrEqual(r, FieldMotionDiffThreshold, 0, label),
		),
	)
}

// isTrue matches only a boolean true, not other truthy values.
func isTrue(r validate.Record, field string) bool {
	v, ok := r.Lookup(field)
	if !ok {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}
