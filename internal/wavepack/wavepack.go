// Package wavepack wraps raw PCM samples in a minimal WAV container so the
// speech provider's headerless output plays in standard tools.
package wavepack

import "encoding/binary"

const (
	headerSize     = 44
	numChannels    = 1
	bitsPerSample  = 16
	bytesPerSample = bitsPerSample / 8
)

// DefaultSampleRate is assumed when the provider response names no rate.
const DefaultSampleRate = 24000

// Pack prepends a 44-byte RIFF/WAVE header to pcm. The container is always
// mono 16-bit little-endian; sampleRate zero or negative falls back to
// DefaultSampleRate.
func Pack(pcm []byte, sampleRate int) []byte {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	byteRate := sampleRate * numChannels * bytesPerSample
	blockAlign := numChannels * bytesPerSample

	out := make([]byte, headerSize+len(pcm))
	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(36+len(pcm)))
	copy(out[8:12], "WAVE")
	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16)
	binary.LittleEndian.PutUint16(out[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(out[22:24], numChannels)
	binary.LittleEndian.PutUint32(out[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:36], bitsPerSample)
	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], uint32(len(pcm)))
	copy(out[headerSize:], pcm)
	return out
}
