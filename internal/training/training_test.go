package training

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/DerMichael0408/CyberGuide/internal/ai"
	gormsqlite "github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(Models()...))
	return db
}

// scriptedProvider answers feedback turns with feedback and rubric turns with
// score, and records every request.
type scriptedProvider struct {
	mu       sync.Mutex
	feedback string
	score    string
	calls    [][]ai.Message
}

func (p *scriptedProvider) Chat(ctx context.Context, messages []ai.Message) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, append([]ai.Message(nil), messages...))
	if last := messages[len(messages)-1]; last.Role == ai.RoleSystem && strings.Contains(last.Content, "ASSESSMENT") {
		return p.score, nil
	}
	return p.feedback, nil
}

func (p *scriptedProvider) lastCall() []ai.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[len(p.calls)-1]
}

type failingProvider struct{}

func (failingProvider) Chat(ctx context.Context, messages []ai.Message) (string, error) {
	return "", errors.New("model backend unavailable")
}

func newTestService(t *testing.T, provider ai.Provider) (*Service, *Repo, *MemoryLocker) {
	t.Helper()
	repo := NewRepo(openTestDB(t))
	locker := NewMemoryLocker(0)
	return NewService(DefaultCatalog(), repo, provider, locker, nil), repo, locker
}
