package batch

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Entry is one expression to import, with an optional example sentence
type Entry struct {
	Expression string
	Sentence   string
}

// ReadBatchFile reads import entries from a text file, one per line:
//   - expression only: "猫"
//   - with sentence: "猫 = 猫が好きです"
//
// Blank lines and lines starting with '#' are skipped, as are lines with an
// empty expression.
func ReadBatchFile(filename string) ([]Entry, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read batch file: %w", err)
	}

	var entries []Entry
	scanner := bufio.NewScanner(bytes.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		expression, sentence, _ := strings.Cut(line, "=")
		expression = normalize(expression)
		if expression == "" {
			continue
		}
		entries = append(entries, Entry{
			Expression: expression,
			Sentence:   normalize(sentence),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read batch file: %w", err)
	}

	return entries, nil
}

// normalize trims s and composes it to NFC, so a kana with a separate
// dakuten mark matches the dictionary and the collection
func normalize(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}
