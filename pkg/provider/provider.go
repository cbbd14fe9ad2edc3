// Package provider defines the service kinds the synthesis pipeline
// multiplexes across. Each kind has its own subpackage declaring the typed
// request/response contracts and the Provider interface for that kind:
//
//   - [github.com/MrWong99/reelforge/pkg/provider/text]: text generation
//   - [github.com/MrWong99/reelforge/pkg/provider/image]: image generation
//   - [github.com/MrWong99/reelforge/pkg/provider/speech]: speech synthesis
//   - [github.com/MrWong99/reelforge/pkg/provider/video]: video generation
//
// Concrete backends register factories for a (kind, name) pair with the
// configuration registry at the composition root; the service manager hands
// out cached handles per pair.
package provider

// Kind identifies one of the four generation service families.
type Kind string

const (
	// KindText is prompt-in, text-out generation (script writing, parsing).
	KindText Kind = "text"

	// KindImage is prompt-in, image-artifact-out generation.
	KindImage Kind = "image"

	// KindSpeech is text-in, audio-artifact-out synthesis.
	KindSpeech Kind = "speech"

	// KindVideo is prompt-in, video-artifact-out generation. Video backends
	// may complete asynchronously via job polling.
	KindVideo Kind = "video"
)

// Kinds lists every valid kind in a stable order.
func Kinds() []Kind {
	return []Kind{KindText, KindImage, KindSpeech, KindVideo}
}

// IsValid reports whether k is one of the defined service kinds.
func (k Kind) IsValid() bool {
	switch k {
	case KindText, KindImage, KindSpeech, KindVideo:
		return true
	}
	return false
}

// String returns the kind's wire name.
func (k Kind) String() string {
	return string(k)
}
