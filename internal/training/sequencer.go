package training

import (
	"context"

	"github.com/DerMichael0408/CyberGuide/internal/ai"
	"github.com/DerMichael0408/CyberGuide/internal/logger"
	"go.uber.org/zap"
)

// Reply is the outcome of one learner answer.
type Reply struct {
	Message       string       `json:"message"`
	QuestionIndex int          `json:"question_index"`
	Completed     bool         `json:"completed"`
	Result        *ScoreResult `json:"result,omitempty"`
	// FeedbackFallback is set when the model's feedback was unusable.
	FeedbackFallback bool `json:"feedback_fallback,omitempty"`
}

// Sequencer drives a session through a scenario. The questions the learner
// sees always come from the scenario; the model only contributes feedback.
type Sequencer struct {
	provider ai.Provider
	scorer   *Scorer
	log      *zap.Logger
}

func NewSequencer(provider ai.Provider, scorer *Scorer, log *zap.Logger) *Sequencer {
	if scorer == nil {
		scorer = NewScorer(provider, log)
	}
	return &Sequencer{provider: provider, scorer: scorer, log: logger.OrNop(log)}
}

// Start opens a fresh session. On a started session it returns the latest
// assistant message and changes nothing.
func (q *Sequencer) Start(sc *Scenario, sess *Session) string {
	act, _ := transition(sess.State(), EventStart, sess.QuestionIndex, sc.Len())
	if act == ActionResume {
		return sess.LastAssistant()
	}

	opening := sc.Opening()
	sess.Transcript = nil
	sess.QuestionIndex = 0
	sess.append(ai.RoleSystem, sc.SystemMessage())
	sess.append(ai.RoleAssistant, opening)
	sess.Started = true
	return opening
}

// Advance records answer against the current question and produces the next
// message: feedback plus the next canonical question, or the final score.
func (q *Sequencer) Advance(ctx context.Context, sc *Scenario, sess *Session, answer string) (*Reply, error) {
	idx := sess.QuestionIndex
	act, err := transition(sess.State(), EventAnswer, idx, sc.Len())
	if err != nil {
		return nil, err
	}

	stored := answer
	if sc.Questions[idx].Secret {
		stored = "Password: " + MaskPassword(answer)
	}
	sess.append(ai.RoleUser, stored)

	if act == ActionScore {
		sess.QuestionIndex = sc.Len()
		res, err := q.scorer.Score(ctx, sc, sess, answer)
		if err != nil {
			return nil, err
		}
		return &Reply{
			Message:       sess.LastAssistant(),
			QuestionIndex: sess.QuestionIndex,
			Completed:     true,
			Result:        res,
		}, nil
	}

	feedback, ok := q.feedback(ctx, sc, sess, idx, answer)
	msg := feedback + "\n\n" + sc.QuestionLine(idx+1)
	sess.QuestionIndex = idx + 1
	sess.append(ai.RoleAssistant, msg)

	return &Reply{
		Message:          msg,
		QuestionIndex:    sess.QuestionIndex,
		FeedbackFallback: !ok,
	}, nil
}

func (q *Sequencer) feedback(ctx context.Context, sc *Scenario, sess *Session, idx int, answer string) (string, bool) {
	if q.provider == nil {
		return DefaultFeedback, false
	}

	msgs := sess.messages()
	if ti := sc.turnInstruction(idx); ti != "" {
		msgs = append(msgs, ai.SystemMessage(ti))
	}
	if note := secretNote(sc, idx, answer); note != "" {
		msgs = append(msgs, ai.SystemMessage(note))
	}

	reply, err := q.provider.Chat(ctx, msgs)
	if err != nil {
		q.log.Warn("feedback generation failed",
			zap.String("scenario", sc.ID),
			zap.Int("question", idx+1),
			zap.Error(err),
		)
		return DefaultFeedback, false
	}
	fb, ok := ExtractFeedback(reply, sc)
	if !ok {
		q.log.Debug("model feedback unusable", zap.String("scenario", sc.ID), zap.Int("question", idx+1))
		return DefaultFeedback, false
	}
	return fb, true
}
