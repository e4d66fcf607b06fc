// Package segment splits chapter bodies into paragraphs and sentences.
package segment

// Config controls segmentation behavior.
type Config struct {
	WordDuration        float64             // Narration time units per word.
	Locale              string              // Selects the sentence terminator set.
	Abbreviations       []string            // Tokens that never end a sentence; defaults to DefaultAbbreviations.
	LocaleAbbreviations map[string][]string // Extra abbreviations keyed by base locale ("de", "fr").

	// AmbiguousAbbreviations only hold a sentence open before a word that
	// does not start with a capital. Defaults to DefaultAmbiguousAbbreviations.
	AmbiguousAbbreviations []string
	NoInitials             bool // Let a single capital letter before a period end the sentence.
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		WordDuration:           0.5,
		Locale:                 "en",
		Abbreviations:          DefaultAbbreviations,
		AmbiguousAbbreviations: DefaultAmbiguousAbbreviations,
	}
}

func (c Config) withDefaults() Config {
	if c.WordDuration <= 0 {
		c.WordDuration = 0.5
	}
	if c.Locale == "" {
		c.Locale = "en"
	}
	if c.Abbreviations == nil {
		c.Abbreviations = DefaultAbbreviations
	}
	if c.AmbiguousAbbreviations == nil {
		c.AmbiguousAbbreviations = DefaultAmbiguousAbbreviations
	}
	return c
}
