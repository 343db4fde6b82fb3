package llms

// ChatOptions collects the per-call knobs shared by chat providers.
type ChatOptions struct {
	Temperature *float64
	MaxTokens   *int

	// SegmentLanguages, when non-empty, asks the provider for structured
	// output: the response arrives as language-tagged segments drawn from
	// this set instead of plain incremental tokens.
	SegmentLanguages []string
}

// ChatOption modifies the options for a single chat call.
type ChatOption func(*ChatOptions)

// WithTemperature sets the sampling temperature for the call.
func WithTemperature(temperature float64) ChatOption {
	return func(opts *ChatOptions) {
		opts.Temperature = &temperature
	}
}

// WithMaxTokens caps the number of tokens the model may generate.
func WithMaxTokens(maxTokens int) ChatOption {
	return func(opts *ChatOptions) {
		opts.MaxTokens = &maxTokens
	}
}

// WithSegmentedOutput asks for structured multi-language output drawn from
// the passed language set. Repeating this option overwrites the previous
// set.
func WithSegmentedOutput(languages ...string) ChatOption {
	return func(opts *ChatOptions) {
		opts.SegmentLanguages = languages
	}
}
