package rules

import "unicode/utf8"

// ContextWindow returns up to windowChars characters immediately preceding
// start and immediately following end, clipped at the text boundaries.
// Offsets are byte positions; the window is measured in runes so multi-byte
// text is never split mid-character.
func ContextWindow(text string, start, end, windowChars int) (before, after string) {
	if start < 0 {
		start = 0
	}
	if end > len(text) {
		end = len(text)
	}
	if start > end {
		start = end
	}
	if windowChars <= 0 {
		return "", ""
	}

	b := start
	for i := 0; i < windowChars && b > 0; i++ {
		_, size := utf8.DecodeLastRuneInString(text[:b])
		b -= size
	}

	a := end
	for i := 0; i < windowChars && a < len(text); i++ {
		_, size := utf8.DecodeRuneInString(text[a:])
		a += size
	}

	return text[b:start], text[end:a]
}
