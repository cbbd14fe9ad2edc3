package overlay

// Style describes how a validated fragment is drawn onto the video. The
// fields map onto ffmpeg drawtext parameters.
type Style struct {
	FontFamily  string  `json:"font_family"`
	FontSize    int     `json:"font_size"`
	FontColor   string  `json:"font_color"`
	StrokeColor string  `json:"stroke_color"`
	StrokeWidth int     `json:"stroke_width"`
	Position    string  `json:"position"`
	MarginRatio float64 `json:"margin_ratio"`
	Direction   string  `json:"direction"`
}

// rtlFontScale and rtlStrokeScale size up the RTL preset so Hebrew and
// Arabic glyphs stay legible at vertical-video resolutions.
const (
	rtlFontScale   = 1.25
	rtlStrokeScale = 2
)

var platformStyles = map[string]Style{
	"youtube": {
		FontFamily:  "Noto Sans",
		FontSize:    56,
		FontColor:   "white",
		StrokeColor: "black",
		StrokeWidth: 2,
		Position:    "bottom",
		MarginRatio: 0.12,
		Direction:   "ltr",
	},
	"tiktok": {
		FontFamily:  "Noto Sans",
		FontSize:    64,
		FontColor:   "white",
		StrokeColor: "black",
		StrokeWidth: 3,
		Position:    "center",
		MarginRatio: 0.10,
		Direction:   "ltr",
	},
	"instagram": {
		FontFamily:  "Noto Sans",
		FontSize:    60,
		FontColor:   "white",
		StrokeColor: "black",
		StrokeWidth: 3,
		Position:    "bottom",
		MarginRatio: 0.15,
		Direction:   "ltr",
	},
}

// StyleFor selects the subtitle style for a validated fragment. RTL results
// get a larger font, a thicker stroke, and an RTL draw direction on top of
// the platform preset.
func StyleFor(res Result, platform string) Style {
	s, ok := platformStyles[platform]
	if !ok {
		s = platformStyles["youtube"]
	}
	if res.IsRTL {
		s.FontSize = int(float64(s.FontSize) * rtlFontScale)
		s.StrokeWidth *= rtlStrokeScale
		s.Direction = "rtl"
		switch res.Language {
		case "he":
			s.FontFamily = "Noto Sans Hebrew"
		case "ar":
			s.FontFamily = "Noto Naskh Arabic"
		}
	}
	return s
}

// Spec pairs a cleaned fragment with its style and on-screen window. The
// compositor consumes these directly.
type Spec struct {
	Text  string  `json:"text"`
	Style Style   `json:"style"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}
