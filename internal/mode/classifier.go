package mode

import (
	"regexp"
	"strings"
)

// Tag is a label produced by a Classifier
type Tag string

const (
	TagDebug    Tag = "debug"
	TagOptimize Tag = "optimize"
)

// Classifier turns outgoing text into a set of tags that drive mode detection
type Classifier interface {
	Classify(text string) []Tag
}

var (
	debugPattern    = regexp.MustCompile(`\b(debug|error|exception|fix|broken)\b`)
	optimizePattern = regexp.MustCompile(`\b(optimize|improve|refactor)\b`)
)

// KeywordClassifier tags text by matching a fixed keyword vocabulary
type KeywordClassifier struct{}

// Classify lower-cases text and reports which keyword groups it mentions
func (KeywordClassifier) Classify(text string) []Tag {
	lower := strings.ToLower(text)

	var tags []Tag
	if debugPattern.MatchString(lower) {
		tags = append(tags, TagDebug)
	}
	if optimizePattern.MatchString(lower) {
		tags = append(tags, TagOptimize)
	}
	return tags
}

// ClassifierFunc adapts a function to the Classifier interface
type ClassifierFunc func(text string) []Tag

func (f ClassifierFunc) Classify(text string) []Tag {
	return f(text)
}

func hasTag(tags []Tag, want Tag) bool {
	for _, t := range tags {
		if t == want {
			return true
		}
	}
	return false
}
