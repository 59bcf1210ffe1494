package wavepack

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestPackHeaderLayout(t *testing.T) {
	pcm := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06}
	wav := Pack(pcm, 24000)

	if len(wav) != 44+len(pcm) {
		t.Fatalf("unexpected container size %d", len(wav))
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		t.Fatal("missing RIFF/WAVE markers")
	}
	if got := binary.LittleEndian.Uint32(wav[4:8]); got != uint32(36+len(pcm)) {
		t.Fatalf("chunk size %d", got)
	}
	if string(wav[12:16]) != "fmt " {
		t.Fatal("missing fmt chunk")
	}
	if got := binary.LittleEndian.Uint16(wav[20:22]); got != 1 {
		t.Fatalf("audio format %d, want PCM", got)
	}
	if got := binary.LittleEndian.Uint16(wav[22:24]); got != 1 {
		t.Fatalf("channels %d, want mono", got)
	}
	if got := binary.LittleEndian.Uint32(wav[24:28]); got != 24000 {
		t.Fatalf("sample rate %d", got)
	}
	if got := binary.LittleEndian.Uint32(wav[28:32]); got != 48000 {
		t.Fatalf("byte rate %d", got)
	}
	if got := binary.LittleEndian.Uint16(wav[32:34]); got != 2 {
		t.Fatalf("block align %d", got)
	}
	if got := binary.LittleEndian.Uint16(wav[34:36]); got != 16 {
		t.Fatalf("bits per sample %d", got)
	}
	if string(wav[36:40]) != "data" {
		t.Fatal("missing data chunk")
	}
	if got := binary.LittleEndian.Uint32(wav[40:44]); got != uint32(len(pcm)) {
		t.Fatalf("data size %d", got)
	}
	if !bytes.Equal(wav[44:], pcm) {
		t.Fatal("payload not copied verbatim")
	}
}

func TestPackDefaultsSampleRate(t *testing.T) {
	wav := Pack([]byte{0, 0}, 0)
	if got := binary.LittleEndian.Uint32(wav[24:28]); got != DefaultSampleRate {
		t.Fatalf("sample rate %d, want %d", got, DefaultSampleRate)
	}
}

func TestPackEmptyPayload(t *testing.T) {
	wav := Pack(nil, 16000)
	if len(wav) != 44 {
		t.Fatalf("expected bare header, got %d bytes", len(wav))
	}
	if got := binary.LittleEndian.Uint32(wav[40:44]); got != 0 {
		t.Fatalf("data size %d", got)
	}
}
