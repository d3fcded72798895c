package models

// AudioChunk is one fixed-length block of mono signed 16-bit samples.
type AudioChunk struct {
	Samples []int16
}

// Volume is the mean absolute amplitude of the chunk.
func (c AudioChunk) Volume() float64 {
	if len(c.Samples) == 0 {
		return 0
	}
	var sum int64
	for _, s := range c.Samples {
		v := int64(s)
		if v < 0 {
			v = -v
		}
		sum += v
	}
	return float64(sum) / float64(len(c.Samples))
}

// Utterance is the finalized buffer of one recording session.
type Utterance struct {
	Samples    []int16
	SampleRate int
	Chunks     int
}

func (u Utterance) DurationSeconds() float64 {
	if u.SampleRate <= 0 {
		return 0
	}
	return float64(len(u.Samples)) / float64(u.SampleRate)
}
