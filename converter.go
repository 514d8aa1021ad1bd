package docindex

// Converter converts HTML to Markdown.
type Converter interface {
	// Convert transforms clean HTML (e.g. from an Extractor) into Markdown.
	// Relative links and images are made absolute using baseURL when it
	// is not empty.
	Convert(html string, baseURL string) (string, error)
}
