package training

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/DerMichael0408/CyberGuide/internal/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_FullRunKeepsCanonicalQuestions(t *testing.T) {
	for _, sc := range DefaultCatalog().List() {
		t.Run(sc.ID, func(t *testing.T) {
			ctx := context.Background()
			prov := &scriptedProvider{
				// An off-script model that invents its own next question.
				feedback: "Good thinking. Question 4/5: What is your favourite colour?",
				score:    "Your final score is: 85/100.\n\nSecurity Assessment: Clear grasp of the warning signs.",
			}
			svc, repo, _ := newTestService(t, prov)

			_, opening, err := svc.Start(ctx, "alice", sc.ID)
			require.NoError(t, err)
			assert.Equal(t, sc.Opening(), opening)
			assert.True(t, strings.HasPrefix(opening, sc.Intro))

			for i := 0; i < QuestionCount-1; i++ {
				reply, err := svc.Answer(ctx, "alice", sc.ID, "answer to question")
				require.NoError(t, err)
				assert.False(t, reply.Completed)
				assert.Equal(t, i+1, reply.QuestionIndex)
				assert.Equal(t, "Good thinking.\n\n"+sc.QuestionLine(i+1), reply.Message)
				assert.NotContains(t, reply.Message, "favourite colour")

				if sc.TurnInstruction != "" {
					sent := prov.lastCall()
					assert.Contains(t, sent[len(sent)-1].Content, fmt.Sprintf("currently answering Question %d/5", i+1))
				}
			}

			reply, err := svc.Answer(ctx, "alice", sc.ID, "final answer")
			require.NoError(t, err)
			require.True(t, reply.Completed)
			require.NotNil(t, reply.Result)
			assert.Equal(t, 85, reply.Result.FinalScore)
			assert.Equal(t, ScoreSourceModel, reply.Result.Source)
			assert.Equal(t, "Clear grasp of the warning signs.", reply.Result.Assessment)
			assert.True(t, strings.HasPrefix(reply.Message,
				"Thank you for completing the "+sc.Title+". Your final score is: 85/100."))

			stored, err := repo.Get(ctx, "alice", sc.ID)
			require.NoError(t, err)
			assert.True(t, stored.Completed)
			require.NotNil(t, stored.FinalScore)
			assert.Equal(t, 85, *stored.FinalScore)
			assert.Equal(t, QuestionCount, stored.QuestionIndex)
			// system + opening + 5 answers + 4 feedback turns + closing
			require.Len(t, stored.Transcript, 12)
			assert.Equal(t, ai.RoleSystem, stored.Transcript[0].Role)
			for i, turn := range stored.Transcript {
				assert.Equal(t, i, turn.Seq)
			}

			_, err = svc.Answer(ctx, "alice", sc.ID, "one more")
			assert.ErrorIs(t, err, ErrSessionCompleted)

			_, resumed, err := svc.Start(ctx, "alice", sc.ID)
			require.NoError(t, err)
			assert.Equal(t, reply.Message, resumed)
		})
	}
}

func TestService_ModelFailureFallsBack(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newTestService(t, failingProvider{})
	sc, err := svc.Catalog().Get(ScenarioPassword)
	require.NoError(t, err)

	_, _, err = svc.Start(ctx, "bob", sc.ID)
	require.NoError(t, err)

	answers := []string{"hunter2", "B", "one breach would compromise every account", "C", "Tr0ub4dor&3xK!9q"}
	var last *Reply
	for i, a := range answers {
		last, err = svc.Answer(ctx, "bob", sc.ID, a)
		require.NoError(t, err)
		if i < len(answers)-1 {
			assert.True(t, last.FeedbackFallback)
			assert.Equal(t, DefaultFeedback+"\n\n"+sc.QuestionLine(i+1), last.Message)
		}
	}

	require.True(t, last.Completed)
	assert.Equal(t, ScoreSourceFallback, last.Result.Source)
	assert.Equal(t, EvaluatePassword("Tr0ub4dor&3xK!9q").Score, last.Result.FinalScore)

	stored, err := repo.Get(ctx, "bob", sc.ID)
	require.NoError(t, err)
	assert.Equal(t, "Password: h*****2", stored.Transcript[2].Content)
	for _, turn := range stored.Transcript {
		assert.NotContains(t, turn.Content, "hunter2")
		assert.NotContains(t, turn.Content, "Tr0ub4dor&3xK!9q")
	}
}

func TestService_SecretAnswerReachesModelOnlyAsEvaluation(t *testing.T) {
	ctx := context.Background()
	prov := &scriptedProvider{feedback: "That password is weak."}
	svc, _, _ := newTestService(t, prov)

	_, _, err := svc.Start(ctx, "carol", ScenarioPassword)
	require.NoError(t, err)
	_, err = svc.Answer(ctx, "carol", ScenarioPassword, "summer2024")
	require.NoError(t, err)

	sent := prov.lastCall()
	for _, m := range sent {
		assert.NotContains(t, m.Content, "summer2024")
	}
	assert.Contains(t, sent[len(sent)-1].Content, "Automated evaluation")
}

func TestService_Preconditions(t *testing.T) {
	ctx := context.Background()
	svc, _, locker := newTestService(t, failingProvider{})

	_, err := svc.Answer(ctx, "dave", ScenarioPhishing, "B")
	assert.ErrorIs(t, err, ErrNotStarted)

	_, err = svc.Answer(ctx, "dave", ScenarioPhishing, "   ")
	assert.ErrorIs(t, err, ErrEmptyAnswer)

	_, _, err = svc.Start(ctx, "dave", "ransomware")
	assert.ErrorIs(t, err, ErrUnknownScenario)

	_, _, err = svc.Start(ctx, "dave", ScenarioPhishing)
	require.NoError(t, err)

	unlock, ok, err := locker.TryLock(ctx, lockKey("dave", ScenarioPhishing))
	require.NoError(t, err)
	require.True(t, ok)
	_, err = svc.Answer(ctx, "dave", ScenarioPhishing, "B")
	assert.ErrorIs(t, err, ErrTurnInFlight)
	unlock()

	reply, err := svc.Answer(ctx, "dave", ScenarioPhishing, "urgency and a fake link")
	require.NoError(t, err)
	assert.Equal(t, 1, reply.QuestionIndex)
}

func TestService_ProgressAndReset(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t, failingProvider{})

	_, _, err := svc.Start(ctx, "erin", ScenarioPassword)
	require.NoError(t, err)
	var final *Reply
	for _, a := range []string{"pw", "B", "breach", "C", "Tr0ub4dor&3xK!9q"} {
		final, err = svc.Answer(ctx, "erin", ScenarioPassword, a)
		require.NoError(t, err)
	}
	_, _, err = svc.Start(ctx, "erin", ScenarioPhishing)
	require.NoError(t, err)

	p, err := svc.Progress(ctx, "erin")
	require.NoError(t, err)
	assert.Equal(t, 3, p.Total)
	assert.Equal(t, 1, p.Completed)
	assert.False(t, p.Certified)
	assert.InDelta(t, float64(final.Result.FinalScore), p.AverageScore, 0.001)
	require.Len(t, p.Scenarios, 3)
	assert.True(t, p.Scenarios[1].Started)
	assert.False(t, p.Scenarios[1].Completed)

	require.NoError(t, svc.Reset(ctx, "erin", ScenarioPassword))
	_, err = svc.Get(ctx, "erin", ScenarioPassword)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	p, err = svc.Progress(ctx, "erin")
	require.NoError(t, err)
	assert.Equal(t, 0, p.Completed)
}

func TestService_Fact(t *testing.T) {
	ctx := context.Background()

	svc, _, _ := newTestService(t, &scriptedProvider{feedback: `"Most breaches start with a stolen password."`})
	fact, err := svc.Fact(ctx, ScenarioPassword)
	require.NoError(t, err)
	assert.Equal(t, "Most breaches start with a stolen password.", fact)

	svc, _, _ = newTestService(t, failingProvider{})
	fact, err = svc.Fact(ctx, ScenarioPhishing)
	require.NoError(t, err)
	assert.Contains(t, cannedFacts[ScenarioPhishing], fact)
}
