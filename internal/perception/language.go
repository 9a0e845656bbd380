package perception

// DetectLanguage is a lightweight Thai/English heuristic used when the
// classifier is unavailable or omits a language. Any Thai codepoint in
// the text marks it as Thai.
func DetectLanguage(text string) string {
	for _, r := range text {
		if r >= 0x0E00 && r <= 0x0E7F {
			return "th"
		}
	}
	return "en"
}
