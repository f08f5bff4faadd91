package training

import (
	"regexp"
	"strings"
)

// DefaultFeedback replaces model output that is empty after cleanup.
const DefaultFeedback = "I understand your response."

const maxFeedbackSentences = 3

var (
	questionHeaderRe = regexp.MustCompile(`(?i)question\s*\d+\s*/\s*\d+\s*:?`)
	listMarkerRes    = []*regexp.Regexp{
		regexp.MustCompile(`(?m)(^|\s)[a-z]\)\s+`),
		regexp.MustCompile(`(?m)(^|\s)[A-Z]\)\s+`),
		regexp.MustCompile(`(?m)^\s*\d+\.\s+`),
		regexp.MustCompile(`•\s+`),
		regexp.MustCompile(`(?m)^\s*[-*]\s+`),
	}
	progressRe    = regexp.MustCompile(`(?i)progress:\s*\d+\s*/\s*\d+\s*questions?`)
	sentenceEndRe = regexp.MustCompile(`[.!?]+\s+`)
	spaceRe       = regexp.MustCompile(`[ \t]+`)
)

// ExtractFeedback keeps only the commentary part of a model reply: anything
// from the first question header or verbatim question opening onward is
// dropped, list markers and progress lines are removed and at most three
// sentences remain. ok is false when nothing usable is left.
func ExtractFeedback(reply string, sc *Scenario) (string, bool) {
	text := cutAtQuestion(reply, sc.questionMarkers())

	text = progressRe.ReplaceAllString(text, "")
	for _, re := range listMarkerRes {
		text = re.ReplaceAllString(text, "$1")
	}
	text = strings.Join(strings.Fields(spaceRe.ReplaceAllString(text, " ")), " ")

	text = firstSentences(text, maxFeedbackSentences)
	text = strings.TrimSpace(text)
	if text == "" || questionHeaderRe.MatchString(text) {
		return "", false
	}
	return text, true
}

func cutAtQuestion(reply string, markers []string) string {
	res := make([]*regexp.Regexp, 0, len(markers))
	for _, m := range markers {
		// match on the original bytes; lower-casing can change byte offsets
		res = append(res, regexp.MustCompile(`(?i)`+regexp.QuoteMeta(m)))
	}
	for {
		cut := len(reply)
		if loc := questionHeaderRe.FindStringIndex(reply); loc != nil {
			cut = loc[0]
		}
		for _, re := range res {
			if loc := re.FindStringIndex(reply); loc != nil && loc[0] < cut {
				cut = loc[0]
			}
		}
		if cut == len(reply) {
			return reply
		}
		reply = reply[:cut]
	}
}

func firstSentences(text string, n int) string {
	ends := sentenceEndRe.FindAllStringIndex(text, -1)
	if len(ends) < n {
		return text
	}
	end := ends[n-1][1]
	return strings.TrimSpace(text[:end])
}
