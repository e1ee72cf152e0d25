package recognition

import (
	"io"
	"strings"
)

func isSentenceEnd(word string) bool {
	for _, suffix := range []string{".", "!", "?", "。", "！", "？"} {
		if strings.HasSuffix(word, suffix) {
			return true
		}
	}
	return false
}

// formatConsole breaks text into one line per sentence. Text that does not end a sentence
// is followed by a space so the next utterance continues the same line.
func formatConsole(text string) string {
	words := strings.Fields(text)
	var b strings.Builder
	line := make([]string, 0, len(words))
	for i, word := range words {
		line = append(line, word)
		end := isSentenceEnd(word)
		if !end && i < len(words)-1 {
			continue
		}
		b.WriteString(strings.Join(line, " "))
		if end {
			b.WriteByte('\n')
		} else {
			b.WriteByte(' ')
		}
		line = line[:0]
	}
	return b.String()
}

func printConsole(w io.Writer, text string) error {
	_, err := io.WriteString(w, formatConsole(text))
	return err
}
