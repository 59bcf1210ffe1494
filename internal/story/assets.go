package story

// ImageAsset owns a generated image buffer. The seed that produced it is
// kept so a re-roll of the same slot stays reproducible.
type ImageAsset struct {
	data     []byte
	MimeType string
	Seed     int64
}

// NewImageAsset takes ownership of data.
func NewImageAsset(data []byte, mimeType string, seed int64) *ImageAsset {
	return &ImageAsset{data: data, MimeType: mimeType, Seed: seed}
}

// Bytes returns the image buffer, or nil after Release.
func (a *ImageAsset) Bytes() []byte {
	if a == nil {
		return nil
	}
	return a.data
}

// Release frees the buffer. Safe on nil and safe to call twice.
func (a *ImageAsset) Release() {
	if a != nil {
		a.data = nil
	}
}

// AudioAsset owns one narration chunk as a complete WAV buffer.
type AudioAsset struct {
	data       []byte
	SampleRate int
}

// NewAudioAsset takes ownership of data.
func NewAudioAsset(data []byte, sampleRate int) *AudioAsset {
	return &AudioAsset{data: data, SampleRate: sampleRate}
}

// Bytes returns the WAV buffer, or nil after Release.
func (a *AudioAsset) Bytes() []byte {
	if a == nil {
		return nil
	}
	return a.data
}

// Release frees the buffer. Safe on nil and safe to call twice.
func (a *AudioAsset) Release() {
	if a != nil {
		a.data = nil
	}
}

// VideoAsset owns one rendered clip.
type VideoAsset struct {
	data     []byte
	MimeType string
}

// NewVideoAsset takes ownership of data.
func NewVideoAsset(data []byte, mimeType string) *VideoAsset {
	return &VideoAsset{data: data, MimeType: mimeType}
}

// Bytes returns the clip buffer, or nil after Release.
func (a *VideoAsset) Bytes() []byte {
	if a == nil {
		return nil
	}
	return a.data
}

// Release frees the buffer. Safe on nil and safe to call twice.
func (a *VideoAsset) Release() {
	if a != nil {
		a.data = nil
	}
}
