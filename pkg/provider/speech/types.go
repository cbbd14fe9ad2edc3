package speech

// Format identifies an audio container for synthesized speech.
type Format string

const (
	FormatWAV Format = "wav"
	FormatMP3 Format = "mp3"
)

// Ext returns the file extension for the format, including the dot.
// Unknown formats default to WAV, the pipeline's working format.
func (f Format) Ext() string {
	if f == FormatMP3 {
		return ".mp3"
	}
	return ".wav"
}

// Request describes one synthesis job.
type Request struct {
	// Text is the content to speak. Must be non-empty.
	Text string

	// VoiceID selects a voice from the provider's catalogue. Empty means
	// the provider's default voice.
	VoiceID string

	// Language is a BCP 47 tag such as "en-US" or "he-IL". Providers that
	// infer language from the voice may ignore it.
	Language string

	// Rate is a speaking-rate multiplier. 0 means 1.0 (normal speed).
	Rate float64

	// Pitch shifts the voice in semitones. 0 means no shift.
	Pitch float64

	// OutputFormat selects the artifact container. Zero value means WAV.
	OutputFormat Format

	// OutputPath is where the provider writes the artifact. The parent
	// directory must already exist.
	OutputPath string
}

// Response reports a completed synthesis.
type Response struct {
	// AudioPath is the artifact location, normally equal to the request's
	// OutputPath.
	AudioPath string

	// Duration is the spoken length in seconds as measured from the
	// artifact, not estimated from the text.
	Duration float64

	// SampleRate and Channels describe the artifact's PCM layout.
	SampleRate int
	Channels   int

	// Provider identifies which backend produced the audio.
	Provider string

	// CostEstimate is the advisory cost of the call in USD.
	CostEstimate float64
}

// Voice is one entry in a provider's voice catalogue.
type Voice struct {
	// ID is the provider-scoped identifier passed back in Request.VoiceID.
	ID string

	// Name is the human-readable voice name.
	Name string

	// Language is the voice's primary BCP 47 tag.
	Language string

	// Gender is the provider-reported voice gender, if any.
	Gender string

	// Styles lists delivery styles the voice supports, such as
	// "narration" or "excited".
	Styles []string

	// Provider identifies the backend that owns the voice.
	Provider string
}
