package scoring

import (
	"regexp"
	"strings"

	"github.com/jonreiter/govader"
	"github.com/russross/blackfriday/v2"
)

// DEFAULT_THRESHOLD is the toxicity score at which an item is labeled toxic.
// 0.6 corresponds to a VADER compound polarity of -0.2.
const DEFAULT_THRESHOLD = 0.6

var analyzer = govader.NewSentimentIntensityAnalyzer()

func RemoveLinks(input string) string {
	linkPattern := regexp.MustCompile(`\[(.*?)\]\((https?:\/\/[^\s\)]+)\)`)
	input = linkPattern.ReplaceAllString(input, "$1") // Keep only the text

	urlPattern := regexp.MustCompile(`https?://\S+|www\.\S+`)
	input = urlPattern.ReplaceAllString(input, "")

	return input
}

func ConvertMarkdownToText(input string) string {
	output := blackfriday.Run([]byte(input), blackfriday.WithNoExtensions())
	plainText := strings.Join(strings.Fields(string(output)), " ")

	return RemoveLinks(plainText)
}

// ScoreToxicity maps a text to a toxicity score in [0, 1] and a binary
// label. Markdown and links are stripped before analysis; the score is the
// negative polarity of the cleaned text.
func ScoreToxicity(text string) (float64, int) {
	return ScoreToxicityAt(text, DEFAULT_THRESHOLD)
}

// ScoreToxicityAt is ScoreToxicity with a caller-chosen labeling threshold.
func ScoreToxicityAt(text string, threshold float64) (float64, int) {
	plainText := ConvertMarkdownToText(text)

	sentiment := analyzer.PolarityScores(plainText)
	score := (1 - sentiment.Compound) / 2

	label := 0
	if score >= threshold {
		label = 1
	}

	return score, label
}
