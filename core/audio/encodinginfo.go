package audio

import "time"

const (
	DefaultSampleRate = 16000
	DefaultFormat     = "linear16"
)

// Format identifies a raw audio sample encoding.
type Format string

const (
	FormatMulaw    Format = "mulaw"
	FormatALaw     Format = "alaw"
	FormatLinear16 Format = "linear16"
)

func (f Format) Name() string {
	return string(f)
}

// ByteSize returns the size of one sample in bytes, or -1 for unknown
// formats.
func (f Format) ByteSize() int {
	switch f {
	case FormatMulaw, FormatALaw:
		return 1
	case FormatLinear16:
		return 2
	}
	return -1
}

// EncodingInfo describes the raw audio a device or service consumes or
// produces. Audio is single-channel throughout.
type EncodingInfo struct {
	SampleRate int
	Format     Format
}

func DefaultEncodingInfo() EncodingInfo {
	return EncodingInfo{SampleRate: DefaultSampleRate, Format: Format(DefaultFormat)}
}

func (e EncodingInfo) IsZero() bool {
	return e.SampleRate == 0 || e.Format.Name() == ""
}

// BytesPerSecond returns the raw data rate, used to pace playback writes to
// real time.
func (e EncodingInfo) BytesPerSecond() int {
	return e.SampleRate * e.Format.ByteSize()
}

// Duration returns the playback time of n bytes of audio.
func (e EncodingInfo) Duration(n int) time.Duration {
	bps := e.BytesPerSecond()
	if bps <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(bps)
}

// SilenceValue returns the byte encoding silence in this format.
func (e EncodingInfo) SilenceValue() byte {
	switch e.Format {
	case FormatALaw:
		return 0x55
	case FormatMulaw:
		return 0xFF
	case FormatLinear16:
		return 0
	}
	return 0
}

// Silence returns a buffer of silence lasting approximately d, aligned to
// whole samples.
func (e EncodingInfo) Silence(d time.Duration) []byte {
	n := int(d * time.Duration(e.BytesPerSecond()) / time.Second)
	if sampleSize := e.Format.ByteSize(); sampleSize > 1 {
		n -= n % sampleSize
	}
	if n <= 0 {
		return nil
	}
	buf := make([]byte, n)
	if v := e.SilenceValue(); v != 0 {
		for i := range buf {
			buf[i] = v
		}
	}
	return buf
}
