package chat

import (
	"context"
	"strings"

	"github.com/DerMichael0408/CyberGuide/internal/ai"
	"github.com/DerMichael0408/CyberGuide/internal/common"
	"github.com/DerMichael0408/CyberGuide/internal/logger"
	"go.uber.org/zap"
)

type Service struct {
	repo              *Repo
	registry          *ai.Registry
	adapter           *Adapter
	contextWindowSize int
	log               *zap.Logger
}

func NewService(repo *Repo, registry *ai.Registry, adapter *Adapter, contextWindowSize int, log *zap.Logger) *Service {
	if contextWindowSize <= 0 || contextWindowSize > 100 {
		contextWindowSize = 20
	}
	if adapter == nil {
		adapter = NewAdapter(nil, nil, false, log)
	}
	return &Service{
		repo:              repo,
		registry:          registry,
		adapter:           adapter,
		contextWindowSize: contextWindowSize,
		log:               logger.OrNop(log),
	}
}

func (s *Service) CreateSession(ctx context.Context, userID, provider, model string) (*Session, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" {
		provider = s.registry.DefaultName()
	}
	// fail early on unknown providers
	if _, err := s.registry.Get(ctx, provider, model); err != nil {
		return nil, err
	}

	sid, err := common.NewULID()
	if err != nil {
		return nil, err
	}

	session := &Session{
		SessionID: sid,
		UserID:    userID,
		Provider:  provider,
		Model:     strings.TrimSpace(model),
	}
	if err := s.repo.CreateSession(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *Service) ownedSession(ctx context.Context, userID, sessionID string) (*Session, error) {
	sess, err := s.repo.GetSessionBySessionID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.UserID != userID {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

func (s *Service) ValidateSessionOwner(ctx context.Context, userID, sessionID string) error {
	_, err := s.ownedSession(ctx, userID, sessionID)
	return err
}

// history loads the context window in ASC order (oldest -> newest).
func (s *Service) history(ctx context.Context, userID, sessionID string) ([]ai.Message, error) {
	recentDesc, err := s.repo.ListRecentMessagesDesc(ctx, userID, sessionID, s.contextWindowSize)
	if err != nil {
		return nil, err
	}
	out := make([]ai.Message, 0, len(recentDesc))
	for i := len(recentDesc) - 1; i >= 0; i-- {
		m := recentDesc[i]
		out = append(out, ai.Message{Role: m.Role, Content: m.Content})
	}
	return out, nil
}

// prepare checks ownership, resolves the session's provider, loads history
// and stores the user message.
func (s *Service) prepare(ctx context.Context, userID, sessionID, content string) (*Adapter, []ai.Message, error) {
	sess, err := s.ownedSession(ctx, userID, sessionID)
	if err != nil {
		return nil, nil, err
	}
	provider, err := s.registry.Get(ctx, sess.Provider, sess.Model)
	if err != nil {
		return nil, nil, err
	}
	history, err := s.history(ctx, userID, sessionID)
	if err != nil {
		return nil, nil, err
	}

	userMsg := &Message{
		SessionID: sessionID,
		UserID:    userID,
		Role:      ai.RoleUser,
		Content:   content,
	}
	if err := s.repo.InsertMessage(ctx, userMsg); err != nil {
		return nil, nil, err
	}
	return s.adapter.WithProvider(provider), history, nil
}

func (s *Service) SendMessage(ctx context.Context, userID, sessionID, content string) (reply string, assistantMsgID uint64, err error) {
	adapter, history, err := s.prepare(ctx, userID, sessionID, content)
	if err != nil {
		return "", 0, err
	}

	reply, err = adapter.Respond(ctx, content, history)
	if err != nil {
		return "", 0, err
	}

	assistantMsg := &Message{
		SessionID: sessionID,
		UserID:    userID,
		Role:      ai.RoleAssistant,
		Content:   reply,
	}
	if err := s.repo.InsertMessage(ctx, assistantMsg); err != nil {
		return "", 0, err
	}
	return reply, assistantMsg.ID, nil
}

// SendMessageStream stores the user message immediately, streams assistant chunks,
// and finally stores the assistant message after streaming completes.
func (s *Service) SendMessageStream(ctx context.Context, userID, sessionID, content string) (chunks <-chan string, done <-chan struct{}, assistantMsgID <-chan uint64, errs <-chan error) {
	outChunks := make(chan string, 16)
	outDone := make(chan struct{})
	outMsgID := make(chan uint64, 1)
	outErrs := make(chan error, 1)

	go func() {
		defer close(outChunks)
		defer close(outDone)
		defer close(outMsgID)
		defer close(outErrs)

		adapter, history, err := s.prepare(ctx, userID, sessionID, content)
		if err != nil {
			outErrs <- err
			return
		}

		pChunks, pErrs := adapter.Stream(ctx, content, history)

		var b strings.Builder
		for c := range pChunks {
			b.WriteString(c)
			select {
			case outChunks <- c:
			case <-ctx.Done():
				outErrs <- ctx.Err()
				return
			}
		}
		if err := <-pErrs; err != nil {
			outErrs <- err
			return
		}

		assistantMsg := &Message{
			SessionID: sessionID,
			UserID:    userID,
			Role:      ai.RoleAssistant,
			Content:   b.String(),
		}
		if err := s.repo.InsertMessage(ctx, assistantMsg); err != nil {
			outErrs <- err
			return
		}
		outMsgID <- assistantMsg.ID
	}()

	return outChunks, outDone, outMsgID, outErrs
}

func (s *Service) ListMessages(ctx context.Context, userID, sessionID string, limit int, beforeID uint64) ([]Message, error) {
	if err := s.ValidateSessionOwner(ctx, userID, sessionID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.repo.ListMessages(ctx, userID, sessionID, limit, beforeID)
}

// AskGuidelines answers a question about an uploaded policy document with the
// default provider.
func (s *Service) AskGuidelines(ctx context.Context, document, question string) (string, error) {
	provider, err := s.registry.Get(ctx, "", "")
	if err != nil {
		return "", err
	}
	return s.adapter.WithProvider(provider).AskGuidelines(ctx, document, question)
}
