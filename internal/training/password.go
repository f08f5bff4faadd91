package training

import (
	"fmt"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"
)

var commonPasswordWords = []string{
	"password", "123456", "qwerty", "admin", "welcome", "login", "abc123",
	"letmein", "monkey", "dragon", "baseball", "football", "superman", "batman",
	"trustno1", "sunshine", "iloveyou", "princess", "master", "hello",
	"test", "company", "secret", "shadow", "hunter", "summer", "winter",
	"spring", "autumn", "january", "february", "march", "april", "june",
	"july", "august", "september", "october", "november", "december",
}

var keyboardSequences = []string{
	"qwerty", "asdfgh", "zxcvbn", "qazwsx", "1qaz2wsx", "qwertz", "poiuyt",
	"lkjhgf", "mnbvcx", "asdf", "wasd", "zxcv", "qwe",
}

var orderedRuns = []string{
	"abcdefghijklmnopqrstuvwxyz",
	"0123456789",
	"!@#$%^&*()",
}

type PasswordReport struct {
	Score       int      `json:"score"`
	Strength    string   `json:"strength"`
	CrackTime   string   `json:"crack_time"`
	Length      int      `json:"length"`
	CharTypes   int      `json:"char_types"`
	Feedback    []string `json:"feedback"`
	Suggestions []string `json:"suggestions"`
}

// Summary is a one-line description safe to show to a model; it never
// contains the password itself.
func (r PasswordReport) Summary() string {
	return fmt.Sprintf("strength %s, score %d/100, %d characters, %d character types, estimated crack time %s. %s",
		r.Strength, r.Score, r.Length, r.CharTypes, r.CrackTime, strings.Join(r.Feedback, ". "))
}

// EvaluatePassword scores a password from 0 to 100 on length, character
// variety and entropy, minus deductions for well-known words and patterns.
func EvaluatePassword(pw string) PasswordReport {
	if pw == "" {
		return PasswordReport{
			Strength:    "Very Weak",
			CrackTime:   "Instant",
			Feedback:    []string{"Empty password"},
			Suggestions: []string{"Please enter a password"},
		}
	}

	length := utf8.RuneCountInString(pw)
	var lower, upper, digit, special bool
	for _, r := range pw {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r) || unicode.IsSpace(r):
			special = true
		}
	}
	types := countTrue(lower, upper, digit, special)

	lengthScore := math.Min(float64(length*4), 40)
	varietyScore := float64(types) * 6.25

	var deduction int
	var patterns []string
	lp := strings.ToLower(pw)
	for _, w := range commonPasswordWords {
		if strings.Contains(lp, w) {
			deduction += 10
			patterns = append(patterns, fmt.Sprintf("Contains common word: '%s'", w))
			break
		}
	}
	for _, seq := range keyboardSequences {
		if strings.Contains(lp, seq) {
			deduction += 10
			patterns = append(patterns, "Contains keyboard pattern")
			break
		}
	}
	if hasOrderedRun(lp) {
		deduction += 5
		patterns = append(patterns, "Contains sequential characters")
	}
	if hasRepeat(pw, 3) {
		deduction += 5
		patterns = append(patterns, "Contains repeating characters")
	}
	if types == 1 {
		deduction += 15
		switch {
		case lower:
			patterns = append(patterns, "Only lowercase letters")
		case upper:
			patterns = append(patterns, "Only uppercase letters")
		case digit:
			patterns = append(patterns, "Only digits")
		default:
			patterns = append(patterns, "Only special characters")
		}
	}
	if deduction > 25 {
		deduction = 25
	}

	pool := 0
	if lower {
		pool += 26
	}
	if upper {
		pool += 26
	}
	if digit {
		pool += 10
	}
	if special {
		pool += 33
	}
	var entropyScore float64
	if pool > 0 {
		entropyScore = math.Min(float64(length)*math.Log2(float64(pool))/3, 35)
	}

	total := lengthScore + varietyScore + entropyScore - float64(deduction)
	total = math.Max(0, math.Min(total, 100))

	r := PasswordReport{Score: int(math.Round(total)), Length: length, CharTypes: types}
	switch {
	case total < 20:
		r.Strength, r.CrackTime = "Very Weak", "Instant"
	case total < 40:
		r.Strength, r.CrackTime = "Weak", "Minutes to Hours"
	case total < 60:
		r.Strength, r.CrackTime = "Moderate", "Days to Weeks"
	case total < 80:
		r.Strength, r.CrackTime = "Strong", "Months to Years"
	default:
		r.Strength, r.CrackTime = "Very Strong", "Many Years"
	}

	r.Feedback = append(r.Feedback, "Strength: "+r.Strength)
	switch {
	case length < 8:
		r.Feedback = append(r.Feedback, "Too short")
	case length >= 12:
		r.Feedback = append(r.Feedback, "Good length")
	default:
		r.Feedback = append(r.Feedback, "Acceptable length")
	}
	if types < 3 {
		r.Feedback = append(r.Feedback, "Limited character variety")
	} else if types == 4 {
		r.Feedback = append(r.Feedback, "Excellent character variety")
	}
	r.Feedback = append(r.Feedback, patterns...)

	if length < 12 {
		r.Suggestions = append(r.Suggestions, "Use at least 12 characters")
	}
	if types < 4 {
		var missing []string
		if !lower {
			missing = append(missing, "lowercase letters")
		}
		if !upper {
			missing = append(missing, "uppercase letters")
		}
		if !digit {
			missing = append(missing, "numbers")
		}
		if !special {
			missing = append(missing, "special characters")
		}
		r.Suggestions = append(r.Suggestions, "Add "+strings.Join(missing, ", "))
	}
	if len(patterns) > 0 {
		r.Suggestions = append(r.Suggestions, "Avoid common words, sequences, and patterns")
	}
	if len(r.Suggestions) == 0 {
		r.Suggestions = []string{"Consider using a password manager to generate and store complex passwords"}
	}
	return r
}

// MaskPassword keeps the first and last character and stars the rest.
func MaskPassword(pw string) string {
	rs := []rune(pw)
	switch n := len(rs); {
	case n == 0:
		return ""
	case n <= 2:
		return strings.Repeat("*", n)
	default:
		return string(rs[0]) + strings.Repeat("*", n-2) + string(rs[n-1])
	}
}

func countTrue(bs ...bool) int {
	n := 0
	for _, b := range bs {
		if b {
			n++
		}
	}
	return n
}

func hasOrderedRun(s string) bool {
	for _, seq := range orderedRuns {
		for i := 0; i+3 <= len(seq); i++ {
			if strings.Contains(s, seq[i:i+3]) {
				return true
			}
		}
	}
	return false
}

func hasRepeat(s string, n int) bool {
	var prev rune
	run := 0
	for _, r := range s {
		if run > 0 && r == prev {
			run++
		} else {
			prev, run = r, 1
		}
		if run >= n {
			return true
		}
	}
	return false
}
