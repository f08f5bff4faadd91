package training

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// QuestionCount is the fixed length of every scenario.
const QuestionCount = 5

var ErrUnknownScenario = errors.New("unknown scenario")

const (
	FallbackPassword = "password"
	FallbackKeywords = "keywords"
)

type Question struct {
	Text    string   `yaml:"text" json:"text"`
	Options []string `yaml:"options,omitempty" json:"options,omitempty"`
	// Answer is the correct option letter of a multiple-choice question.
	Answer string `yaml:"answer,omitempty" json:"-"`
	// Keywords are alternative groups; an answer mentioning any word of a
	// group covers that group.
	Keywords [][]string `yaml:"keywords,omitempty" json:"-"`
	// Secret answers are masked before they are written to the transcript.
	Secret bool `yaml:"secret,omitempty" json:"secret,omitempty"`
}

// Render is the canonical question text with its options, one per line.
func (q Question) Render() string {
	if len(q.Options) == 0 {
		return q.Text
	}
	var b strings.Builder
	b.WriteString(q.Text)
	for i, opt := range q.Options {
		fmt.Fprintf(&b, "\n%c) %s", 'A'+i, opt)
	}
	return b.String()
}

type Scenario struct {
	ID    string `yaml:"id" json:"id"`
	Title string `yaml:"title" json:"title"`
	// Intro precedes question 1 in the opening message.
	Intro string `yaml:"intro" json:"intro"`
	// Material is what the learner is shown alongside the chat (a sample
	// email, a visitor dialogue).
	Material     string `yaml:"material,omitempty" json:"material,omitempty"`
	SystemPrompt string `yaml:"system_prompt" json:"-"`
	// TurnInstruction, when set, is sent as an extra system message on every
	// feedback turn. {current}, {next} and {total} are substituted.
	TurnInstruction string     `yaml:"turn_instruction,omitempty" json:"-"`
	Rubric          string     `yaml:"rubric" json:"-"`
	Questions       []Question `yaml:"questions" json:"questions"`
	Fallback        string     `yaml:"fallback" json:"-"`
	// Markers are phrases that start a question in model output. Derived
	// from the questions when empty.
	Markers []string `yaml:"markers,omitempty" json:"-"`
}

func (s *Scenario) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return errors.New("scenario: id is required")
	}
	if len(s.Questions) != QuestionCount {
		return fmt.Errorf("scenario %s: want %d questions, got %d", s.ID, QuestionCount, len(s.Questions))
	}
	for i, q := range s.Questions {
		if strings.TrimSpace(q.Text) == "" {
			return fmt.Errorf("scenario %s: question %d is empty", s.ID, i+1)
		}
		if q.Answer != "" {
			idx := int(strings.ToUpper(q.Answer)[0] - 'A')
			if idx < 0 || idx >= len(q.Options) {
				return fmt.Errorf("scenario %s: question %d answer %q has no option", s.ID, i+1, q.Answer)
			}
		}
	}
	switch s.Fallback {
	case "", FallbackKeywords, FallbackPassword:
	default:
		return fmt.Errorf("scenario %s: unknown fallback %q", s.ID, s.Fallback)
	}
	return nil
}

func (s *Scenario) Len() int { return len(s.Questions) }

// QuestionLine is the canonical "Question k/N: ..." text for index i.
func (s *Scenario) QuestionLine(i int) string {
	return fmt.Sprintf("Question %d/%d: %s", i+1, s.Len(), s.Questions[i].Render())
}

// Opening is the fixed first assistant message.
func (s *Scenario) Opening() string {
	if s.Intro == "" {
		return s.QuestionLine(0)
	}
	return s.Intro + "\n\n" + s.QuestionLine(0)
}

// SystemMessage is the first transcript entry: behaviour rules, the exact
// question sequence and the learner-visible material.
func (s *Scenario) SystemMessage() string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(s.SystemPrompt))
	b.WriteString("\n\n## QUESTION SEQUENCE (MUST FOLLOW EXACTLY)\n")
	for i, q := range s.Questions {
		fmt.Fprintf(&b, "%d. %q\n", i+1, q.Render())
	}
	if s.Material != "" {
		b.WriteString("\n## MATERIAL SHOWN TO THE USER\n")
		b.WriteString(strings.TrimSpace(s.Material))
		b.WriteString("\n")
	}
	return b.String()
}

func (s *Scenario) turnInstruction(current int) string {
	if s.TurnInstruction == "" {
		return ""
	}
	return strings.NewReplacer(
		"{current}", fmt.Sprint(current+1),
		"{next}", fmt.Sprint(current+2),
		"{total}", fmt.Sprint(s.Len()),
	).Replace(s.TurnInstruction)
}

// questionMarkers are the literal phrases that begin a canonical question.
func (s *Scenario) questionMarkers() []string {
	if len(s.Markers) > 0 {
		return s.Markers
	}
	out := make([]string, 0, len(s.Questions))
	for _, q := range s.Questions {
		words := strings.Fields(q.Text)
		if len(words) > 4 {
			words = words[:4]
		}
		if p := strings.Join(words, " "); len(p) >= 12 {
			out = append(out, p)
		}
	}
	return out
}

// Catalog is the ordered set of available scenarios.
type Catalog struct {
	order []string
	byID  map[string]*Scenario
}

func NewCatalog(scenarios ...*Scenario) (*Catalog, error) {
	c := &Catalog{byID: make(map[string]*Scenario)}
	for _, s := range scenarios {
		if err := c.put(s); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Catalog) put(s *Scenario) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if _, ok := c.byID[s.ID]; !ok {
		c.order = append(c.order, s.ID)
	}
	c.byID[s.ID] = s
	return nil
}

func DefaultCatalog() *Catalog {
	c, err := NewCatalog(builtinScenarios()...)
	if err != nil {
		panic(err)
	}
	return c
}

type catalogFile struct {
	Scenarios []*Scenario `yaml:"scenarios"`
}

// LoadCatalog starts from the built-in scenarios and applies the YAML file at
// path on top: entries with a known id replace it, new ids are appended.
// An empty path returns the built-ins.
func LoadCatalog(path string) (*Catalog, error) {
	c := DefaultCatalog()
	if path == "" {
		return c, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenarios file: %w", err)
	}
	var f catalogFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse scenarios file: %w", err)
	}
	for _, s := range f.Scenarios {
		if err := c.put(s); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Catalog) Get(id string) (*Scenario, error) {
	s, ok := c.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownScenario, id)
	}
	return s, nil
}

func (c *Catalog) List() []*Scenario {
	out := make([]*Scenario, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}
