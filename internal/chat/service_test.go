package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/DerMichael0408/CyberGuide/internal/ai"
	"github.com/DerMichael0408/CyberGuide/internal/knowledge"
	gormsqlite "github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type recordingProvider struct {
	reply string
	last  []ai.Message
}

func (p *recordingProvider) Chat(ctx context.Context, messages []ai.Message) (string, error) {
	p.last = append([]ai.Message(nil), messages...)
	if p.reply == "" {
		return "ok", nil
	}
	return p.reply, nil
}

type staticRetriever struct {
	res knowledge.Result
	err error
}

func (r staticRetriever) Retrieve(ctx context.Context, query string, k int) (knowledge.Result, error) {
	return r.res, r.err
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(Models()...))
	return db
}

func newTestService(t *testing.T, prov ai.Provider, retriever ContextRetriever, window int) (*Service, *Repo, *gorm.DB) {
	t.Helper()
	db := openTestDB(t)
	repo := NewRepo(db)

	reg := ai.NewRegistry()
	reg.Register("fake", func(ctx context.Context, model string) (ai.Provider, error) {
		return prov, nil
	})

	adapter := NewAdapter(retriever, nil, false, nil)
	return NewService(repo, reg, adapter, window, nil), repo, db
}

var grounded = staticRetriever{res: knowledge.Result{Ranked: []string{
	"Report phishing emails to the security team.",
	"Never enter credentials from an email link.",
}}}

func TestSendMessage_WritesUserAndAssistant(t *testing.T) {
	prov := &recordingProvider{}
	svc, _, db := newTestService(t, prov, grounded, 20)

	sess, err := svc.CreateSession(context.Background(), "u1", "", "")
	require.NoError(t, err)
	assert.Equal(t, "fake", sess.Provider)
	assert.Len(t, sess.SessionID, 26)

	reply, assistantID, err := svc.SendMessage(context.Background(), "u1", sess.SessionID, "How do I report phishing?")
	require.NoError(t, err)
	assert.Equal(t, "ok", reply)
	assert.NotZero(t, assistantID)

	var msgs []Message
	require.NoError(t, db.Where("session_id = ? AND user_id = ?", sess.SessionID, "u1").
		Order("id ASC").
		Find(&msgs).Error)
	require.Len(t, msgs, 2)
	assert.Equal(t, ai.RoleUser, msgs[0].Role)
	assert.Equal(t, "How do I report phishing?", msgs[0].Content)
	assert.Equal(t, ai.RoleAssistant, msgs[1].Role)
	assert.Equal(t, "ok", msgs[1].Content)

	require.Len(t, prov.last, 2)
	assert.Equal(t, ai.RoleSystem, prov.last[0].Role)
	assert.Contains(t, prov.last[0].Content, "Retrieved Knowledge:\nReport phishing emails to the security team.")
	assert.Contains(t, prov.last[0].Content, "rather than quoting it verbatim")
	assert.NotContains(t, prov.last[0].Content, "Never enter credentials")
	assert.Equal(t, ai.UserMessage("How do I report phishing?"), prov.last[1])
}

func TestSendMessage_UsesContextWindow(t *testing.T) {
	prov := &recordingProvider{}
	window := 3
	svc, repo, _ := newTestService(t, prov, grounded, window)

	sess, err := svc.CreateSession(context.Background(), "u2", "fake", "")
	require.NoError(t, err)

	// seed messages: 5 messages already in history
	for i := 0; i < 5; i++ {
		role := ai.RoleUser
		if i%2 == 1 {
			role = ai.RoleAssistant
		}
		require.NoError(t, repo.InsertMessage(context.Background(), &Message{
			SessionID: sess.SessionID,
			UserID:    "u2",
			Role:      role,
			Content:   fmt.Sprintf("seed %d", i),
		}))
	}

	_, _, err = svc.SendMessage(context.Background(), "u2", sess.SessionID, "new")
	require.NoError(t, err)

	// system + window + new user message
	require.Len(t, prov.last, window+2)
	assert.Equal(t, "seed 2", prov.last[1].Content)
	assert.Equal(t, "seed 4", prov.last[3].Content)
	assert.Equal(t, ai.UserMessage("new"), prov.last[len(prov.last)-1])
}

func TestSendMessage_RetrievalFailureStillAnswers(t *testing.T) {
	prov := &recordingProvider{reply: "general advice"}
	svc, _, _ := newTestService(t, prov, staticRetriever{err: errors.New("vector store down")}, 20)

	sess, err := svc.CreateSession(context.Background(), "u3", "", "")
	require.NoError(t, err)

	reply, _, err := svc.SendMessage(context.Background(), "u3", sess.SessionID, "What is MFA?")
	require.NoError(t, err)
	assert.Equal(t, "general advice", reply)
	assert.Contains(t, prov.last[0].Content, "No background information is available")
	assert.NotContains(t, prov.last[0].Content, "Retrieved Knowledge")
}

func TestSendMessage_RejectsForeignSession(t *testing.T) {
	svc, _, _ := newTestService(t, &recordingProvider{}, grounded, 20)

	sess, err := svc.CreateSession(context.Background(), "owner", "", "")
	require.NoError(t, err)

	_, _, err = svc.SendMessage(context.Background(), "intruder", sess.SessionID, "hi")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = svc.ListMessages(context.Background(), "intruder", sess.SessionID, 10, 0)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSendMessageStream_StoresAssembledReply(t *testing.T) {
	prov := &recordingProvider{reply: "streamed answer"}
	svc, repo, _ := newTestService(t, prov, grounded, 20)

	sess, err := svc.CreateSession(context.Background(), "u4", "", "")
	require.NoError(t, err)

	chunks, done, msgID, errs := svc.SendMessageStream(context.Background(), "u4", sess.SessionID, "stream please")
	var b strings.Builder
	for c := range chunks {
		b.WriteString(c)
	}
	<-done
	require.NoError(t, <-errs)
	id := <-msgID
	assert.NotZero(t, id)
	assert.Equal(t, "streamed answer", b.String())

	msgs, err := repo.ListMessages(context.Background(), "u4", sess.SessionID, 10, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "streamed answer", msgs[0].Content)
}

func TestAdapter_IncludeRankedContext(t *testing.T) {
	prov := &recordingProvider{}
	a := NewAdapter(grounded, prov, true, nil)

	_, err := a.Respond(context.Background(), "phishing", []ai.Message{ai.AssistantMessage("earlier")})
	require.NoError(t, err)

	require.Len(t, prov.last, 3)
	assert.Contains(t, prov.last[0].Content, "Additional Context:\n- Never enter credentials from an email link.")
	assert.Equal(t, "earlier", prov.last[1].Content)
}

func TestAdapter_EmptyKnowledgeBaseUsesSentinel(t *testing.T) {
	prov := &recordingProvider{}
	a := NewAdapter(staticRetriever{}, prov, false, nil)

	_, err := a.Respond(context.Background(), "anything", nil)
	require.NoError(t, err)
	assert.Contains(t, prov.last[0].Content, knowledge.NoInformationFound)
}

func TestAskGuidelines_TruncatesDocument(t *testing.T) {
	prov := &recordingProvider{reply: "Lock your screen."}
	svc, _, _ := newTestService(t, prov, nil, 20)

	doc := "Always lock your screen. " + strings.Repeat("x", GuidelinesCharBudget*2)
	reply, err := svc.AskGuidelines(context.Background(), doc, "What about my screen?")
	require.NoError(t, err)
	assert.Equal(t, "Lock your screen.", reply)

	require.Len(t, prov.last, 2)
	assert.Contains(t, prov.last[0].Content, "Always lock your screen.")
	assert.Less(t, len(prov.last[0].Content), GuidelinesCharBudget+500)
	assert.Equal(t, "What about my screen?", prov.last[1].Content)

	_, err = svc.AskGuidelines(context.Background(), "   ", "q")
	assert.Error(t, err)
}
