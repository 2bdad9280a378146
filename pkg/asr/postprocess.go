package asr

import (
	"regexp"
	"strings"
)

// SenseVoice emits rich-transcription markers inline with the text, e.g.
// <|zh|><|NEUTRAL|><|Speech|><|woitn|>. Markers always follow the <|...|>
// shape.
var markerRE = regexp.MustCompile(`<\|[^|]*\|>`)

var spaceRE = regexp.MustCompile(`\s+`)

// Event and emotion markers that carry no text of their own. Language and
// itn markers are dropped wholesale by Postprocess as well, so this set only
// matters if a marker should ever map to replacement text.
var markerReplacements = map[string]string{
	"<|nospeech|>": "",
	"<|BGM|>":      "",
	"<|Speech|>":   "",
	"<|Applause|>": "",
	"<|Laughter|>": "",
	"<|Cry|>":      "",
	"<|Sneeze|>":   "",
	"<|Breath|>":   "",
	"<|Cough|>":    "",
}

// StripMarkers removes every rich-transcription marker from s, leaving the
// bare transcript.
func StripMarkers(s string) string {
	return strings.TrimSpace(markerRE.ReplaceAllString(s, ""))
}

// Postprocess converts raw model output into display text: known event
// markers are mapped to their replacements, all remaining markers are
// dropped, and whitespace is collapsed.
func Postprocess(s string) string {
	for marker, repl := range markerReplacements {
		s = strings.ReplaceAll(s, marker, repl)
	}
	s = markerRE.ReplaceAllString(s, "")
	return strings.TrimSpace(spaceRE.ReplaceAllString(s, " "))
}
