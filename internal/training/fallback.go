package training

import (
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/DerMichael0408/CyberGuide/internal/ai"
)

// secretNote describes a masked answer to the model without revealing it.
func secretNote(sc *Scenario, idx int, answer string) string {
	if idx < 0 || idx >= len(sc.Questions) || !sc.Questions[idx].Secret {
		return ""
	}
	return "The user's password is not shown to you. Automated evaluation of the password they entered: " +
		EvaluatePassword(answer).Summary() +
		" Base your feedback on this evaluation and never invent the password."
}

func fallbackScore(sc *Scenario, sess *Session, finalAnswer string) *ScoreResult {
	if sc.Fallback == FallbackPassword {
		return passwordFallback(finalAnswer)
	}
	return keywordFallback(sc, sess)
}

func passwordFallback(pw string) *ScoreResult {
	r := EvaluatePassword(pw)
	res := &ScoreResult{
		FinalScore:  r.Score,
		Assessment:  fmt.Sprintf("Your final password was rated %s with an estimated crack time of %s.", r.Strength, strings.ToLower(r.CrackTime)),
		Suggestions: r.Suggestions,
		Source:      ScoreSourceFallback,
	}
	for _, f := range r.Feedback[1:] {
		if strings.HasPrefix(f, "Good") || strings.HasPrefix(f, "Excellent") || strings.HasPrefix(f, "Acceptable") {
			res.Strengths = append(res.Strengths, f)
		} else {
			res.Weaknesses = append(res.Weaknesses, f)
		}
	}
	return res
}

// keywordFallback grades the learner's answers without a model: a
// multiple-choice answer counts when its first letter is the right option, a
// free-text answer earns the share of keyword groups it touches.
func keywordFallback(sc *Scenario, sess *Session) *ScoreResult {
	answers := userAnswers(sess)
	res := &ScoreResult{Source: ScoreSourceFallback}

	var total float64
	for i, q := range sc.Questions {
		var got float64
		if i < len(answers) {
			got = gradeAnswer(q, answers[i])
		}
		total += got
		label := fmt.Sprintf("Question %d", i+1)
		switch {
		case got >= 0.99:
			res.Strengths = append(res.Strengths, label+": complete answer")
		case got <= 0.01:
			res.Weaknesses = append(res.Weaknesses, label+": key points missing")
		}
	}
	res.FinalScore = clampScore(total / float64(len(sc.Questions)) * 100)
	res.Assessment = fmt.Sprintf("Your answers were graded automatically against the key points of each question and covered about %d%% of them.", res.FinalScore)
	if len(res.Weaknesses) > 0 {
		res.Suggestions = append(res.Suggestions, "Review the questions marked as missing key points and repeat the training.")
	}
	return res
}

func userAnswers(sess *Session) []string {
	var out []string
	for _, t := range sess.Transcript {
		if t.Role == ai.RoleUser {
			out = append(out, t.Content)
		}
	}
	return out
}

func gradeAnswer(q Question, answer string) float64 {
	if q.Answer != "" {
		a := strings.TrimLeftFunc(answer, func(r rune) bool { return !unicode.IsLetter(r) })
		if a == "" {
			return 0
		}
		if strings.EqualFold(a[:1], q.Answer) && (len(a) == 1 || !unicode.IsLetter(rune(a[1]))) {
			return 1
		}
		return 0
	}
	if len(q.Keywords) == 0 {
		if strings.TrimSpace(answer) == "" {
			return 0
		}
		return 1
	}

	lower := strings.ToLower(answer)
	hits := 0
	for _, group := range q.Keywords {
		for _, kw := range group {
			if strings.Contains(lower, kw) {
				hits++
				break
			}
		}
	}
	need := int(math.Min(3, float64(len(q.Keywords))))
	return math.Min(1, float64(hits)/float64(need))
}
