package ingest

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/conorfennell/mnemo/internal/domain"
)

const (
	questionPrefix   = "Q:"
	answerPrefix     = "A:"
	difficultyPrefix = "D:"
)

// Entry is one card-to-be parsed out of a markdown source file.
type Entry struct {
	Question   string
	Answer     string
	Difficulty domain.Difficulty
}

type state int

const (
	seeking state = iota
	readingQuestion
	readingAnswer
)

// ParseFile reads a markdown file and extracts all entries.
func ParseFile(path string) ([]Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads Q:/A: blocks from r, separated by "---" lines. An optional
// single-line D: marker declares the card's difficulty tag; anything other
// than easy/medium/hard falls back to medium.
func Parse(r io.Reader) ([]Entry, error) {
	scanner := bufio.NewScanner(r)
	var entries []Entry
	var current Entry
	var block []string
	currentState := seeking

	flushBlock := func() {
		if len(block) == 0 {
			return
		}
		content := strings.Join(block, "\n")
		switch currentState {
		case readingQuestion:
			current.Question = content
		case readingAnswer:
			current.Answer = content
		}
		block = nil
	}

	finishEntry := func() {
		flushBlock()
		if current.Question != "" {
			if current.Difficulty == "" {
				current.Difficulty = domain.Medium
			}
			entries = append(entries, current)
		}
		current = Entry{}
		currentState = seeking
	}

	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case line == "---":
			finishEntry()
		case strings.HasPrefix(line, questionPrefix):
			if currentState != seeking || current.Question != "" { // a new question always starts a new entry
				finishEntry()
			}
			currentState = readingQuestion
			block = append(block, markerContent(line, questionPrefix))
		case strings.HasPrefix(line, answerPrefix):
			flushBlock()
			currentState = readingAnswer
			block = append(block, markerContent(line, answerPrefix))
		case strings.HasPrefix(line, difficultyPrefix):
			flushBlock()
			current.Difficulty = parseDifficulty(markerContent(line, difficultyPrefix))
			currentState = seeking
		case currentState != seeking:
			block = append(block, line)
		}
	}

	finishEntry() // finish the very last entry in the file

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}

func markerContent(line, prefix string) string {
	content := line[len(prefix):]
	return strings.TrimPrefix(content, " ")
}

func parseDifficulty(s string) domain.Difficulty {
	switch domain.Difficulty(strings.ToLower(strings.TrimSpace(s))) {
	case domain.Easy:
		return domain.Easy
	case domain.Hard:
		return domain.Hard
	default:
		return domain.Medium
	}
}
