package script

import "fmt"

// Cue is a Segment that has been assigned its permanent position in the
// conversation: a session-scoped index and the audio filename derived from it.
type Cue struct {
	Segment

	// Index is the 1-based position of this cue within the session. Indices
	// are strictly increasing for the life of a session and never reused.
	Index int

	// Filename is the audio file name for this cue, voice{voice}-{index}.mp3.
	Filename string
}

// Sequence assigns each segment the next index after prev, in order. It is a
// pure function: persistence of the advanced counter is the session store's
// responsibility. Voice identifiers are carried through unmodified; whether
// an unknown voice can be synthesized is the synthesis adapter's decision.
func Sequence(prev int, segs []Segment) []Cue {
	cues := make([]Cue, 0, len(segs))
	for i, seg := range segs {
		idx := prev + 1 + i
		cues = append(cues, Cue{
			Segment:  seg,
			Index:    idx,
			Filename: Filename(seg.Voice, idx),
		})
	}
	return cues
}

// Filename returns the canonical audio file name for a voice and index.
func Filename(voice, index int) string {
	return fmt.Sprintf("voice%d-%d.mp3", voice, index)
}

// SpeakerLabel returns the display label for a voice identifier, as stored in
// session metadata and shown to the listener.
func SpeakerLabel(voice int) string {
	return fmt.Sprintf("Voice %d", voice)
}
