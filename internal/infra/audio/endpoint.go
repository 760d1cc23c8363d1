package audio

import "time"

const (
	defaultSilenceThreshold = int16(500)
	defaultSilence          = time.Second
	defaultMaxUtterance     = 30 * time.Second
)

// endpointer decides when a dictation has naturally ended: after a run of
// silence that follows at least one second of audio, or at the length cap.
type endpointer struct {
	threshold    int16
	silenceLimit int
	minSamples   int
	maxSamples   int

	silent int
	total  int
}

func newEndpointer(sampleRate int, silence, maxUtterance time.Duration) *endpointer {
	if silence <= 0 {
		silence = defaultSilence
	}
	if maxUtterance <= 0 {
		maxUtterance = defaultMaxUtterance
	}
	return &endpointer{
		threshold:    defaultSilenceThreshold,
		silenceLimit: int(silence.Seconds() * float64(sampleRate)),
		minSamples:   sampleRate,
		maxSamples:   int(maxUtterance.Seconds() * float64(sampleRate)),
	}
}

// feed consumes one frame and reports whether capture should end.
func (e *endpointer) feed(frame []int16) bool {
	e.total += len(frame)

	isSilent := true
	for _, sample := range frame {
		if sample > e.threshold || sample < -e.threshold {
			isSilent = false
			break
		}
	}

	if isSilent {
		e.silent += len(frame)
	} else {
		e.silent = 0
	}

	if e.silent > e.silenceLimit && e.total > e.minSamples {
		return true
	}
	return e.total >= e.maxSamples
}
