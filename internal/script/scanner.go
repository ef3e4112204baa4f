// Package script parses speaker-tagged podcast scripts into ordered dialogue
// segments and assigns them stable positions within a conversation.
//
// A script is the raw text of one LLM response. Spoken lines are wrapped in
// voice tags of the form <voice3>dialogue</voice3>, where the number selects
// the synthesis voice. Everything outside a well-formed tag pair is ignored.
package script

import (
	"strconv"
	"strings"
)

// Segment is one matched (voice, dialogue) unit extracted from a script,
// destined for a single synthesized audio clip.
type Segment struct {
	// Voice is the numeric voice identifier from the tag pair.
	Voice int

	// Text is the dialogue body, trimmed of surrounding whitespace.
	// It may be empty; an empty body is still a valid segment.
	Text string
}

const openTagPrefix = "<voice"

// Extract scans text left to right and returns every well-formed voice
// segment in order of appearance. A segment is an opening tag <voiceN>, a
// dialogue body, and the nearest closing tag </voiceN> with the same number.
//
// Mismatched pairs never form a segment: an open tag whose matching close tag
// does not appear later in the text is treated as plain text, and scanning
// resumes immediately after it. Text outside any pair is skipped. A script
// with no segments yields an empty slice, which is not an error.
func Extract(text string) []Segment {
	var segs []Segment

	rest := text
	for {
		open := strings.Index(rest, openTagPrefix)
		if open < 0 {
			return segs
		}

		voice, tagLen, ok := parseOpenTag(rest[open:])
		if !ok {
			// "<voice" not followed by digits and ">"; skip the prefix.
			rest = rest[open+len(openTagPrefix):]
			continue
		}

		bodyStart := open + tagLen
		closeTag := "</voice" + strconv.Itoa(voice) + ">"
		closeAt := strings.Index(rest[bodyStart:], closeTag)
		if closeAt < 0 {
			// No matching close for this number; the open tag is inert.
			rest = rest[bodyStart:]
			continue
		}

		segs = append(segs, Segment{
			Voice: voice,
			Text:  strings.TrimSpace(rest[bodyStart : bodyStart+closeAt]),
		})
		rest = rest[bodyStart+closeAt+len(closeTag):]
	}
}

// parseOpenTag reads "<voice", one or more digits, and ">" from the start of
// s. It returns the voice number, the tag length in bytes, and whether the
// tag is well formed.
func parseOpenTag(s string) (voice, length int, ok bool) {
	i := len(openTagPrefix)
	start := i
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == start || i >= len(s) || s[i] != '>' {
		return 0, 0, false
	}
	n, err := strconv.Atoi(s[start:i])
	if err != nil {
		return 0, 0, false
	}
	return n, i + 1, true
}
