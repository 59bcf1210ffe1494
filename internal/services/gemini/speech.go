package gemini

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"storyforge/internal/services"
	"storyforge/internal/story"
	"storyforge/internal/wavepack"
)

// VoiceMode selects between one narrator voice and a two-speaker reading.
type VoiceMode string

const (
	VoiceModeSingle VoiceMode = "single"
	VoiceModeMulti  VoiceMode = "multi"
)

// SpeechRequest describes one synthesis call. Multi mode needs at least two
// distinct speakers in the text and a second voice; otherwise the request
// falls back to the single narrator voice.
type SpeechRequest struct {
	Text             string
	Mode             VoiceMode
	Voice1           string
	Voice2           string
	StyleInstruction string
}

// SpeechClient issues speech synthesis requests.
type SpeechClient struct {
	*Client
}

// NewSpeechClient wraps a shared client.
func NewSpeechClient(c *Client) *SpeechClient {
	return &SpeechClient{Client: c}
}

type speechConfig struct {
	VoiceConfig           *voiceConfig           `json:"voiceConfig,omitempty"`
	MultiSpeakerVoiceConf *multiSpeakerVoiceConf `json:"multiSpeakerVoiceConfig,omitempty"`
}

type voiceConfig struct {
	PrebuiltVoiceConfig prebuiltVoice `json:"prebuiltVoiceConfig"`
}

type prebuiltVoice struct {
	VoiceName string `json:"voiceName"`
}

type multiSpeakerVoiceConf struct {
	SpeakerVoiceConfigs []speakerVoice `json:"speakerVoiceConfigs"`
}

type speakerVoice struct {
	Speaker     string      `json:"speaker"`
	VoiceConfig voiceConfig `json:"voiceConfig"`
}

// Synthesize returns raw PCM samples plus the sample rate the provider
// reported in the response mime type.
func (c *SpeechClient) Synthesize(ctx context.Context, req SpeechRequest) ([]byte, int, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, 0, errors.New("gemini speech: text required")
	}

	dialogue := story.ParseDialogue(text)
	speakers := story.Speakers(dialogue)

	promptText := text
	var speech speechConfig
	if req.Mode == VoiceModeMulti && len(speakers) >= 2 && req.Voice2 != "" {
		promptText = fmt.Sprintf("TTS the following conversation between %s and %s:\n%s", speakers[0], speakers[1], text)
		speech.MultiSpeakerVoiceConf = &multiSpeakerVoiceConf{
			SpeakerVoiceConfigs: []speakerVoice{
				{Speaker: speakers[0], VoiceConfig: voiceConfig{PrebuiltVoiceConfig: prebuiltVoice{VoiceName: req.Voice1}}},
				{Speaker: speakers[1], VoiceConfig: voiceConfig{PrebuiltVoiceConfig: prebuiltVoice{VoiceName: req.Voice2}}},
			},
		}
	} else {
		speech.VoiceConfig = &voiceConfig{PrebuiltVoiceConfig: prebuiltVoice{VoiceName: req.Voice1}}
	}

	if style := strings.TrimSpace(req.StyleInstruction); style != "" {
		promptText = style + ": " + promptText
	}

	payload := generateRequest{
		Contents: textContents(promptText),
		GenerationConfig: &generationConfig{
			ResponseModalities: []string{"AUDIO"},
			SpeechConfig:       &speech,
		},
	}

	var resp generateResponse
	if err := c.postJSON(ctx, "/models/"+c.cfg.SpeechModel+":generateContent", payload, &resp); err != nil {
		return nil, 0, err
	}
	first, ok := resp.firstPart()
	if !ok || first.InlineData == nil || first.InlineData.Data == "" {
		return nil, 0, services.Wrap(services.ErrMalformedResponse, "narration", "read candidates", "missing audio data", nil)
	}
	if !strings.HasPrefix(first.InlineData.MimeType, "audio/L16") {
		return nil, 0, services.Wrap(services.ErrMalformedResponse, "narration", "read candidates",
			fmt.Sprintf("unexpected audio mime type %q", first.InlineData.MimeType), nil)
	}
	pcm, err := base64.StdEncoding.DecodeString(first.InlineData.Data)
	if err != nil {
		return nil, 0, services.Wrap(services.ErrMalformedResponse, "narration", "decode payload", "invalid base64 audio data", err)
	}
	return pcm, ParseSampleRate(first.InlineData.MimeType), nil
}

var rateParam = regexp.MustCompile(`rate=(\d+)`)

// ParseSampleRate extracts the rate parameter from an audio mime type such
// as "audio/L16;codec=pcm;rate=24000", defaulting when absent.
func ParseSampleRate(mimeType string) int {
	match := rateParam.FindStringSubmatch(mimeType)
	if match == nil {
		return wavepack.DefaultSampleRate
	}
	rate, err := strconv.Atoi(match[1])
	if err != nil || rate <= 0 {
		return wavepack.DefaultSampleRate
	}
	return rate
}
