package training

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/DerMichael0408/CyberGuide/internal/ai"
	"github.com/DerMichael0408/CyberGuide/internal/logger"
	"go.uber.org/zap"
)

const (
	ScoreSourceModel    = "model"
	ScoreSourceFallback = "fallback"
)

type ScoreResult struct {
	FinalScore  int      `json:"final_score"`
	Assessment  string   `json:"assessment"`
	Strengths   []string `json:"strengths"`
	Weaknesses  []string `json:"weaknesses"`
	Suggestions []string `json:"improvement_suggestions"`
	Source      string   `json:"source"`
}

var (
	errNoScore = errors.New("no score in model reply")

	fencedJSONRe = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")
	bareJSONRe   = regexp.MustCompile(`(?s)\{.*\}`)
	scoreRe      = regexp.MustCompile(`(\d{1,3})\s*/\s*100`)
	bulletRe     = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s*`)
	thankYouRe   = regexp.MustCompile(`(?i)thank you for completing[^.]*\.?`)
	finalScoreRe = regexp.MustCompile(`(?i)(?:your )?final score(?: is)?\s*:?\s*\.?`)
)

type Scorer struct {
	provider ai.Provider
	log      *zap.Logger
}

func NewScorer(provider ai.Provider, log *zap.Logger) *Scorer {
	return &Scorer{provider: provider, log: logger.OrNop(log)}
}

// Score asks the model to grade a session whose final answer is already in
// the transcript, falling back to the scenario's heuristic when the model
// fails or its reply carries no score. The session is marked completed and
// the closing message is appended.
func (s *Scorer) Score(ctx context.Context, sc *Scenario, sess *Session, finalAnswer string) (*ScoreResult, error) {
	if sess.Completed {
		return nil, ErrAlreadyScored
	}

	res, err := s.modelScore(ctx, sc, sess, finalAnswer)
	if err != nil {
		s.log.Warn("model scoring failed, using fallback",
			zap.String("scenario", sc.ID),
			zap.String("user_id", sess.UserID),
			zap.Error(err),
		)
		res = fallbackScore(sc, sess, finalAnswer)
	}

	score := res.FinalScore
	now := time.Now()
	sess.Completed = true
	sess.CompletedAt = &now
	sess.FinalScore = &score
	sess.Assessment = res.Assessment
	sess.Strengths = res.Strengths
	sess.Weaknesses = res.Weaknesses
	sess.Suggestions = res.Suggestions
	sess.ScoreSource = res.Source
	sess.append(ai.RoleAssistant, ClosingMessage(sc, res))

	s.log.Info("training scored",
		zap.String("scenario", sc.ID),
		zap.String("user_id", sess.UserID),
		zap.Int("score", score),
		zap.String("source", res.Source),
	)
	return res, nil
}

func (s *Scorer) modelScore(ctx context.Context, sc *Scenario, sess *Session, finalAnswer string) (*ScoreResult, error) {
	if s.provider == nil {
		return nil, errors.New("no model provider")
	}
	msgs := sess.messages()
	if note := secretNote(sc, len(sc.Questions)-1, finalAnswer); note != "" {
		msgs = append(msgs, ai.SystemMessage(note))
	}
	msgs = append(msgs, ai.SystemMessage(sc.Rubric))

	reply, err := s.provider.Chat(ctx, msgs)
	if err != nil {
		return nil, err
	}
	res, err := ParseScoreReply(reply)
	if err != nil {
		return nil, err
	}
	res.Source = ScoreSourceModel
	return res, nil
}

// ClosingMessage is the final assistant message of a completed session.
func ClosingMessage(sc *Scenario, res *ScoreResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Thank you for completing the %s. Your final score is: %d/100.", sc.Title, res.FinalScore)
	if res.Assessment != "" {
		b.WriteString("\n\n")
		b.WriteString(res.Assessment)
	}
	writeList(&b, "Strengths", res.Strengths)
	writeList(&b, "Areas for improvement", res.Weaknesses)
	writeList(&b, "Suggestions", res.Suggestions)
	return b.String()
}

func writeList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "\n\n%s:", title)
	for _, it := range items {
		b.WriteString("\n- ")
		b.WriteString(it)
	}
}

type scoreJSON struct {
	FinalScore  *float64 `json:"final_score"`
	Score       *float64 `json:"score"`
	Assessment  string   `json:"assessment"`
	Strengths   []string `json:"strengths"`
	Weaknesses  []string `json:"weaknesses"`
	Suggestions []string `json:"improvement_suggestions"`
	Alt         []string `json:"suggestions"`
}

// ParseScoreReply reads a grading reply. A JSON object (bare or fenced) is
// preferred; otherwise the first "X/100" is the score and labelled sections
// supply the rest.
func ParseScoreReply(reply string) (*ScoreResult, error) {
	if res, ok := parseScoreJSON(reply); ok {
		return res, nil
	}

	m := scoreRe.FindStringSubmatchIndex(reply)
	if m == nil {
		return nil, errNoScore
	}
	n, _ := strconv.Atoi(reply[m[2]:m[3]])
	res := &ScoreResult{FinalScore: clampScore(float64(n))}

	parseSections(reply, res)
	if res.Assessment == "" {
		rest := reply[:m[0]] + reply[m[1]:]
		res.Assessment = cleanAssessment(rest)
	}
	return res, nil
}

func parseScoreJSON(reply string) (*ScoreResult, bool) {
	var raw string
	if m := fencedJSONRe.FindStringSubmatch(reply); m != nil {
		raw = m[1]
	} else if m := bareJSONRe.FindString(reply); m != "" {
		raw = m
	} else {
		return nil, false
	}

	var v scoreJSON
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, false
	}
	score := v.FinalScore
	if score == nil {
		score = v.Score
	}
	if score == nil {
		return nil, false
	}
	res := &ScoreResult{
		FinalScore:  clampScore(*score),
		Assessment:  strings.TrimSpace(v.Assessment),
		Strengths:   v.Strengths,
		Weaknesses:  v.Weaknesses,
		Suggestions: v.Suggestions,
	}
	if len(res.Suggestions) == 0 {
		res.Suggestions = v.Alt
	}
	return res, true
}

type section int

const (
	sectionNone section = iota
	sectionAssessment
	sectionStrengths
	sectionWeaknesses
	sectionSuggestions
)

var sectionHeaders = []struct {
	prefix string
	sec    section
}{
	{"scientific assessment", sectionAssessment},
	{"security assessment", sectionAssessment},
	{"assessment", sectionAssessment},
	{"feedback", sectionAssessment},
	{"strengths", sectionStrengths},
	{"areas for improvement", sectionWeaknesses},
	{"weaknesses", sectionWeaknesses},
	{"improvement suggestions", sectionSuggestions},
	{"suggestions", sectionSuggestions},
	{"recommendations", sectionSuggestions},
}

// matchHeader reports the section a line opens and the text after its colon.
func matchHeader(line string) (section, string, bool) {
	l := strings.TrimLeft(line, "#*_ ")
	lower := strings.ToLower(l)
	for _, h := range sectionHeaders {
		if !strings.HasPrefix(lower, h.prefix) {
			continue
		}
		rest := strings.TrimLeft(l[len(h.prefix):], "*_ ")
		if rest != "" && rest[0] != ':' {
			continue
		}
		rest = strings.TrimSpace(strings.TrimPrefix(rest, ":"))
		return h.sec, strings.TrimSpace(strings.Trim(rest, "*_")), true
	}
	return sectionNone, "", false
}

func parseSections(reply string, res *ScoreResult) {
	var assessment []string
	cur := sectionNone
	for _, line := range strings.Split(reply, "\n") {
		if sec, rest, ok := matchHeader(line); ok {
			cur = sec
			line = rest
		}
		line = strings.TrimSpace(line)
		if line == "" || cur == sectionNone {
			continue
		}
		item := strings.TrimSpace(bulletRe.ReplaceAllString(line, ""))
		if item == "" {
			continue
		}
		switch cur {
		case sectionAssessment:
			assessment = append(assessment, item)
		case sectionStrengths:
			res.Strengths = append(res.Strengths, item)
		case sectionWeaknesses:
			res.Weaknesses = append(res.Weaknesses, item)
		case sectionSuggestions:
			res.Suggestions = append(res.Suggestions, item)
		}
	}
	res.Assessment = strings.Join(assessment, " ")
}

func cleanAssessment(s string) string {
	s = thankYouRe.ReplaceAllString(s, "")
	s = finalScoreRe.ReplaceAllString(s, "")
	var keep []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "```") {
			continue
		}
		keep = append(keep, line)
	}
	return strings.TrimLeft(strings.Join(keep, " "), ". ")
}

func clampScore(f float64) int {
	n := int(math.Round(f))
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}
