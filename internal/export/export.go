// Package export packages a story as a zip archive or writes individual
// episode scripts to plain text files.
package export

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"strings"

	"storyforge/internal/story"
)

const safeFilenameLimit = 50

// SafeFilename derives a filesystem-safe base name from the story title,
// falling back to the prompt and finally a generic name.
func SafeFilename(s *story.Story) string {
	title := ""
	if s != nil {
		if len(s.Episodes) > 0 && s.Episodes[0].SEO != nil {
			title = s.Episodes[0].SEO.Title
		}
		if title == "" {
			prompt := strings.TrimSpace(s.Prompt)
			if len(prompt) > 30 {
				prompt = prompt[:30]
			}
			title = prompt
		}
	}
	if title == "" {
		title = "story_project"
	}
	var b strings.Builder
	for _, r := range title {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '_', r == ' ', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	name := b.String()
	if len(name) > safeFilenameLimit {
		name = name[:safeFilenameLimit]
	}
	return name
}

// WriteZip streams the story's text and media into w as a zip archive. Each
// episode gets text/, audio/, images/, and videos/ subfolders; empty
// folders are still created so the structure stays uniform. Released or
// missing asset buffers are skipped.
func WriteZip(w io.Writer, s *story.Story) error {
	if s == nil {
		return fmt.Errorf("export: no story")
	}
	zw := zip.NewWriter(w)

	for i := range s.Episodes {
		episode := &s.Episodes[i]
		base := fmt.Sprintf("episode_%d/", i+1)

		for _, folder := range []string{"text/", "audio/", "images/", "videos/"} {
			if _, err := zw.Create(base + folder); err != nil {
				return fmt.Errorf("export: create folder: %w", err)
			}
		}

		if err := writeZipFile(zw, base+"text/episode_script.txt", []byte(episode.Text)); err != nil {
			return err
		}
		if err := writeZipFile(zw, base+"text/seo_and_metadata.txt", []byte(FormatSEO(episode.SEO))); err != nil {
			return err
		}

		for j, audio := range episode.Narration {
			data := audio.Bytes()
			if data == nil {
				continue
			}
			name := base + "audio/voiceover.wav"
			if j > 0 {
				name = fmt.Sprintf("%saudio/voiceover_%02d.wav", base, j+1)
			}
			if err := writeZipFile(zw, name, data); err != nil {
				return err
			}
		}
		for j, image := range episode.Images {
			data := image.Bytes()
			if data == nil {
				continue
			}
			name := fmt.Sprintf("%simages/image_%02d.png", base, j+1)
			if err := writeZipFile(zw, name, data); err != nil {
				return err
			}
		}
		for j, video := range episode.Videos {
			data := video.Bytes()
			if data == nil {
				continue
			}
			name := fmt.Sprintf("%svideos/clip_%02d.mp4", base, j+1)
			if err := writeZipFile(zw, name, data); err != nil {
				return err
			}
		}
	}
	return zw.Close()
}

func writeZipFile(zw *zip.Writer, name string, data []byte) error {
	f, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("export: create %s: %w", name, err)
	}
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("export: write %s: %w", name, err)
	}
	return nil
}

// FormatSEO renders metadata as readable text for the export bundle.
func FormatSEO(seo *story.SEOData) string {
	if seo == nil {
		return "No publishing metadata available."
	}
	return fmt.Sprintf("Title: %s\n\nDescription: %s\n\nTags: %s",
		seo.Title, seo.Description, strings.Join(seo.Tags, ", "))
}

// WriteEpisodeText saves one episode's script to path as plain text.
func WriteEpisodeText(path string, episode *story.Episode) error {
	if episode == nil {
		return fmt.Errorf("export: no episode")
	}
	return os.WriteFile(path, []byte(episode.Text), 0o644)
}
