package audio

import (
	"encoding/binary"
	"errors"
	"time"
)

const (
	DefaultSampleRate = 16000
	DefaultChannels   = 1

	// MIMETypeWAV is the declared type of finalized recordings.
	MIMETypeWAV = "audio/wav"

	wavHeaderSize = 44
	bitsPerSample = 16
)

// ErrOddPCM is returned when 16-bit PCM data has a dangling byte.
var ErrOddPCM = errors.New("pcm data is not sample aligned")

// EncodeWAV wraps 16-bit little-endian PCM in a RIFF/WAVE container with
// exact chunk sizes.
func EncodeWAV(pcm []byte, sampleRate, channels int) ([]byte, error) {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	if channels <= 0 {
		channels = DefaultChannels
	}
	blockAlign := channels * bitsPerSample / 8
	if len(pcm)%blockAlign != 0 {
		pcm = pcm[:len(pcm)-len(pcm)%blockAlign]
		if len(pcm) == 0 {
			return nil, ErrOddPCM
		}
	}

	out := make([]byte, wavHeaderSize+len(pcm))
	putHeader(out[:wavHeaderSize], len(pcm), sampleRate, channels)
	copy(out[wavHeaderSize:], pcm)
	return out, nil
}

func putHeader(dst []byte, dataSize, sampleRate, channels int) {
	blockAlign := channels * bitsPerSample / 8
	byteRate := sampleRate * blockAlign

	copy(dst[0:4], "RIFF")
	binary.LittleEndian.PutUint32(dst[4:8], uint32(36+dataSize))
	copy(dst[8:12], "WAVE")

	copy(dst[12:16], "fmt ")
	binary.LittleEndian.PutUint32(dst[16:20], 16)
	binary.LittleEndian.PutUint16(dst[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(dst[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(dst[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(dst[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(dst[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(dst[34:36], bitsPerSample)

	copy(dst[36:40], "data")
	binary.LittleEndian.PutUint32(dst[40:44], uint32(dataSize))
}

// ErrNotWAV is returned when data does not start with a canonical PCM header.
var ErrNotWAV = errors.New("not a pcm wav file")

// WAVHeader is the decoded form of a canonical 44-byte PCM header.
type WAVHeader struct {
	Channels      int
	SampleRate    int
	ByteRate      int
	BitsPerSample int
	DataSize      int
}

// Duration reports the playback length of the data chunk.
func (h WAVHeader) Duration() time.Duration {
	if h.ByteRate <= 0 {
		return 0
	}
	return time.Duration(float64(h.DataSize) / float64(h.ByteRate) * float64(time.Second))
}

// ParseWAVHeader decodes the header written by EncodeWAV.
func ParseWAVHeader(data []byte) (WAVHeader, error) {
	if len(data) < wavHeaderSize ||
		string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" ||
		string(data[12:16]) != "fmt " || string(data[36:40]) != "data" {
		return WAVHeader{}, ErrNotWAV
	}
	if binary.LittleEndian.Uint16(data[20:22]) != 1 {
		return WAVHeader{}, ErrNotWAV
	}
	return WAVHeader{
		Channels:      int(binary.LittleEndian.Uint16(data[22:24])),
		SampleRate:    int(binary.LittleEndian.Uint32(data[24:28])),
		ByteRate:      int(binary.LittleEndian.Uint32(data[28:32])),
		BitsPerSample: int(binary.LittleEndian.Uint16(data[34:36])),
		DataSize:      int(binary.LittleEndian.Uint32(data[40:44])),
	}, nil
}
