package training

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"time"

	"github.com/DerMichael0408/CyberGuide/internal/ai"
	"github.com/DerMichael0408/CyberGuide/internal/logger"
	"go.uber.org/zap"
)

type Service struct {
	catalog  *Catalog
	store    SessionStore
	seq      *Sequencer
	locker   Locker
	provider ai.Provider
	log      *zap.Logger
}

func NewService(catalog *Catalog, store SessionStore, provider ai.Provider, locker Locker, log *zap.Logger) *Service {
	log = logger.OrNop(log)
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	if locker == nil {
		locker = NewMemoryLocker(0)
	}
	return &Service{
		catalog:  catalog,
		store:    store,
		seq:      NewSequencer(provider, NewScorer(provider, log), log),
		locker:   locker,
		provider: provider,
		log:      log,
	}
}

func (s *Service) Catalog() *Catalog { return s.catalog }

func (s *Service) lock(ctx context.Context, userID, scenarioID string) (func(), error) {
	unlock, ok, err := s.locker.TryLock(ctx, lockKey(userID, scenarioID))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrTurnInFlight
	}
	return unlock, nil
}

// Start opens the scenario for the user, or resumes it. The returned message
// is the opening on first start and the latest assistant message otherwise.
func (s *Service) Start(ctx context.Context, userID, scenarioID string) (*Session, string, error) {
	sc, err := s.catalog.Get(scenarioID)
	if err != nil {
		return nil, "", err
	}
	unlock, err := s.lock(ctx, userID, scenarioID)
	if err != nil {
		return nil, "", err
	}
	defer unlock()

	sess, err := s.store.Get(ctx, userID, scenarioID)
	if errors.Is(err, ErrSessionNotFound) {
		sess = NewSession(userID, scenarioID)
	} else if err != nil {
		return nil, "", err
	}

	resumed := sess.Started
	msg := s.seq.Start(sc, sess)
	if !resumed {
		if err := s.store.Save(ctx, sess); err != nil {
			return nil, "", err
		}
		s.log.Info("training started", zap.String("scenario", sc.ID), zap.String("user_id", userID))
	}
	return sess, msg, nil
}

// Answer submits the learner's answer to the current question.
func (s *Service) Answer(ctx context.Context, userID, scenarioID, answer string) (*Reply, error) {
	if strings.TrimSpace(answer) == "" {
		return nil, ErrEmptyAnswer
	}
	sc, err := s.catalog.Get(scenarioID)
	if err != nil {
		return nil, err
	}
	unlock, err := s.lock(ctx, userID, scenarioID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	sess, err := s.store.Get(ctx, userID, scenarioID)
	if errors.Is(err, ErrSessionNotFound) {
		return nil, ErrNotStarted
	}
	if err != nil {
		return nil, err
	}

	reply, err := s.seq.Advance(ctx, sc, sess, answer)
	if err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, sess); err != nil {
		return nil, err
	}
	return reply, nil
}

func (s *Service) Get(ctx context.Context, userID, scenarioID string) (*Session, error) {
	if _, err := s.catalog.Get(scenarioID); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, userID, scenarioID)
}

// Reset discards the user's session so the scenario can be taken again.
func (s *Service) Reset(ctx context.Context, userID, scenarioID string) error {
	if _, err := s.catalog.Get(scenarioID); err != nil {
		return err
	}
	unlock, err := s.lock(ctx, userID, scenarioID)
	if err != nil {
		return err
	}
	defer unlock()
	return s.store.Reset(ctx, userID, scenarioID)
}

type ScenarioProgress struct {
	ScenarioID    string `json:"scenario_id"`
	Title         string `json:"title"`
	Started       bool   `json:"started"`
	Completed     bool   `json:"completed"`
	QuestionIndex int    `json:"question_index"`
	Score         *int   `json:"score,omitempty"`
}

type Progress struct {
	Scenarios    []ScenarioProgress `json:"scenarios"`
	Completed    int                `json:"completed"`
	Total        int                `json:"total"`
	AverageScore float64            `json:"average_score"`
	Certified    bool               `json:"certified"`
}

// Progress summarizes the user's sessions across the whole catalog. The user
// is certified once every scenario is completed.
func (s *Service) Progress(ctx context.Context, userID string) (*Progress, error) {
	sessions, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	byScenario := make(map[string]Session, len(sessions))
	for _, sess := range sessions {
		byScenario[sess.ScenarioID] = sess
	}

	scenarios := s.catalog.List()
	p := &Progress{Total: len(scenarios), Scenarios: make([]ScenarioProgress, 0, len(scenarios))}
	var sum int
	for _, sc := range scenarios {
		sp := ScenarioProgress{ScenarioID: sc.ID, Title: sc.Title}
		if sess, ok := byScenario[sc.ID]; ok {
			sp.Started = sess.Started
			sp.Completed = sess.Completed
			sp.QuestionIndex = sess.QuestionIndex
			sp.Score = sess.FinalScore
			if sess.Completed && sess.FinalScore != nil {
				p.Completed++
				sum += *sess.FinalScore
			}
		}
		p.Scenarios = append(p.Scenarios, sp)
	}
	if p.Completed > 0 {
		p.AverageScore = float64(sum) / float64(p.Completed)
	}
	p.Certified = p.Total > 0 && p.Completed == p.Total
	return p, nil
}

// Fact returns a short trivia line about the scenario's topic, generated by
// the model when available and drawn from a fixed list otherwise.
func (s *Service) Fact(ctx context.Context, scenarioID string) (string, error) {
	sc, err := s.catalog.Get(scenarioID)
	if err != nil {
		return "", err
	}
	if s.provider != nil {
		cctx, cancel := context.WithTimeout(ctx, 20*time.Second)
		defer cancel()
		reply, err := s.provider.Chat(cctx, []ai.Message{
			ai.SystemMessage("You are a cybersecurity educator. Answer with a single sentence and nothing else."),
			ai.UserMessage("Share one surprising but accurate fact related to " + strings.ToLower(sc.Title) + "."),
		})
		if err == nil {
			if fact := strings.Trim(strings.TrimSpace(reply), `"'`); fact != "" {
				return fact, nil
			}
		}
		s.log.Debug("fact generation failed, using canned fact", zap.String("scenario", sc.ID), zap.Error(err))
	}
	facts := cannedFacts[sc.ID]
	if len(facts) == 0 {
		facts = cannedFacts[ScenarioPassword]
	}
	return facts[rand.Intn(len(facts))], nil
}

var cannedFacts = map[string][]string{
	ScenarioPassword: {
		"The most common password is still '123456', used by millions of accounts.",
		"It would take a computer about 34,000 years to crack a 12-character password that uses numbers, symbols, and upper and lower-case letters.",
		"The average person has 100 passwords across different accounts.",
		"Over 80% of data breaches are caused by password-related issues.",
		"Password crackers often try substitutions like '@' for 'a' and '3' for 'E' first, because they're so common.",
		"A truly random 8-character password takes about 57 days to crack, but a 10-character one would take 12 years.",
	},
	ScenarioPhishing: {
		"Phishing is the starting point of the majority of reported cyber incidents.",
		"Attackers register look-alike domains that differ from the real one by a single letter.",
		"Many phishing emails are sent outside office hours, when recipients are less likely to check with a colleague.",
	},
	ScenarioSocialEngineering: {
		"Tailgating through a secured door is one of the cheapest ways to get into an office building.",
		"Social engineers often impersonate IT support because employees expect IT to ask for access.",
		"Claiming approval from a senior executive is a classic authority lever in pretexting attacks.",
	},
}
