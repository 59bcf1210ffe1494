package story

import "strings"

// DialogueLine is one attributed line of script. Speaker is empty for
// narration that carries no name prefix.
type DialogueLine struct {
	Speaker string
	Line    string
}

// ParseDialogue splits script text into attributed lines. A line is
// attributed when it starts with a name followed by a colon; everything else
// is unattributed narration.
func ParseDialogue(text string) []DialogueLine {
	var lines []DialogueLine
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		speaker, rest, ok := splitSpeaker(line)
		if !ok {
			lines = append(lines, DialogueLine{Line: line})
			continue
		}
		lines = append(lines, DialogueLine{Speaker: speaker, Line: rest})
	}
	return lines
}

// Speakers returns the distinct attributed speakers in order of first
// appearance.
func Speakers(lines []DialogueLine) []string {
	seen := make(map[string]struct{}, 2)
	var speakers []string
	for _, line := range lines {
		if line.Speaker == "" {
			continue
		}
		if _, ok := seen[line.Speaker]; ok {
			continue
		}
		seen[line.Speaker] = struct{}{}
		speakers = append(speakers, line.Speaker)
	}
	return speakers
}

// MultiVoice reports whether the script has enough distinct speakers for a
// two-voice reading. Below two speakers the caller falls back to a single
// narrator voice.
func MultiVoice(lines []DialogueLine) bool {
	return len(Speakers(lines)) >= 2
}

const maxSpeakerNameLength = 40

func splitSpeaker(line string) (speaker, rest string, ok bool) {
	idx := strings.Index(line, ":")
	if idx <= 0 || idx > maxSpeakerNameLength {
		return "", "", false
	}
	speaker = strings.TrimSpace(line[:idx])
	if speaker == "" || strings.ContainsAny(speaker, ".!?\"") {
		return "", "", false
	}
	return speaker, strings.TrimSpace(line[idx+1:]), true
}
