// Package pipeline drives one mission through the full synthesis chain:
// parse, script, speech, duration gate, images, video, sync planning,
// overlay validation, and composition. Every run works inside its own
// session directory so concurrent runs never share artifacts.
package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Session directory names. Artifact paths are index-fixed so parallel
// generation can write results in any order without renaming.
const (
	audioDir    = "audio"
	clipsDir    = "clips"
	imagesDir   = "images"
	overlaysDir = "overlays"
)

// Session is one run's workspace on disk. All paths are derived from Root;
// the struct is immutable after construction.
type Session struct {
	// ID is the session identifier, also the directory name under the
	// output root.
	ID string

	// Root is the absolute or relative session directory.
	Root string
}

// NewSession creates a fresh session directory under outputRoot with the
// standard subdirectory layout.
func NewSession(outputRoot string) (*Session, error) {
	id := uuid.NewString()
	root := filepath.Join(outputRoot, id)
	for _, dir := range []string{audioDir, clipsDir, imagesDir, overlaysDir} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			return nil, fmt.Errorf("session %s: create %s: %w", id, dir, err)
		}
	}
	return &Session{ID: id, Root: root}, nil
}

// AudioSegmentPath returns the path for narration segment i. ext carries the
// leading dot, as returned by [speech.Format.Ext].
func (s *Session) AudioSegmentPath(i int, ext string) string {
	return filepath.Join(s.Root, audioDir, fmt.Sprintf("audio_segment_%d%s", i, ext))
}

// CombinedAudioPath returns the path of the concatenated narration track.
func (s *Session) CombinedAudioPath() string {
	return filepath.Join(s.Root, audioDir, "combined.wav")
}

// AudioDir returns the narration directory.
func (s *Session) AudioDir() string {
	return filepath.Join(s.Root, audioDir)
}

// ClipPath returns the path for video clip i.
func (s *Session) ClipPath(i int) string {
	return filepath.Join(s.Root, clipsDir, fmt.Sprintf("clip_%d.mp4", i))
}

// ImagePath returns the path for conditioning image i.
func (s *Session) ImagePath(i int) string {
	return filepath.Join(s.Root, imagesDir, fmt.Sprintf("image_%d.png", i))
}

// OverlaySpecsPath returns the path of the validated overlay spec dump.
func (s *Session) OverlaySpecsPath() string {
	return filepath.Join(s.Root, overlaysDir, "overlays.json")
}

// FinalPath returns the path of the composed video.
func (s *Session) FinalPath() string {
	return filepath.Join(s.Root, "final.mp4")
}

// MetadataPath returns the path of the session metadata document.
func (s *Session) MetadataPath() string {
	return filepath.Join(s.Root, "metadata.json")
}

// WriteJSON marshals v with indentation and writes it to path. Used for the
// metadata document and the overlay spec dump.
func (s *Session) WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("session %s: marshal %s: %w", s.ID, filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("session %s: write %s: %w", s.ID, filepath.Base(path), err)
	}
	return nil
}

// Cleanup removes the whole session directory. Safe to call on a partially
// populated session.
func (s *Session) Cleanup() error {
	return os.RemoveAll(s.Root)
}
