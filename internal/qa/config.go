package qa

// Config holds the pairing windows and edge strengths. The defaults are
// empirically tuned and kept configurable.
type Config struct {
	MinCandidateChars int     // shortest text chunk considered
	RegionMargin      float64 // block-to-candidate proximity, in page units

	ChapterZoneWindow    int // same chapter, compatible zone
	ChapterSuffixWindow  int // same chapter, matching numeral suffix
	ChapterQNumWindow    int // same chapter, suffix match, wide window
	ZoneSuffixWindow     int // compatible zone, matching suffix
	ChapterNearestWindow int // same chapter, nearest page
	ChapterHintWindow    int // question chapter borrowed by an unkeyed segment

	ExactStrength     float64 // ANSWER_OF from an exact key match
	HeuristicStrength float64 // every other ANSWER_OF
	StubStrength      float64 // REFERENCES to a reference stub

	DefaultPageWidth  float64
	DefaultPageHeight float64
}

func DefaultConfig() Config {
	return Config{
		MinCandidateChars:    8,
		RegionMargin:         140,
		ChapterZoneWindow:    25,
		ChapterSuffixWindow:  80,
		ChapterQNumWindow:    160,
		ZoneSuffixWindow:     120,
		ChapterNearestWindow: 80,
		ChapterHintWindow:    120,
		ExactStrength:        1.0,
		HeuristicStrength:    0.85,
		StubStrength:         0.8,
		DefaultPageWidth:     1000,
		DefaultPageHeight:    1400,
	}
}

// RunConfig is echoed into the sidecar.
type RunConfig struct {
	TriggerMode   string `json:"trigger_mode"`
	LanguageRules string `json:"language_rules"`
	LLMMode       string `json:"llm_mode"`
}
