package knowledge

import (
	"context"
	"errors"
	"fmt"
	"strings"
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

type failingEmbedder struct{}

func (failingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.New("embedding backend unavailable")
}

var _ ai.Embedder = failingEmbedder{}

const threeScenarios = `{
  "scenarios": [
    {
      "title": "Phishing Email Triage",
      "description": "An employee receives an urgent email asking to verify a bank account.",
      "tasks": ["Inspect the sender domain.", "Hover over the link."],
      "solution": "Report the phishing email to the security team and delete it.",
      "learning_objectives": ["Recognize urgency cues.", "Verify sender domains."]
    },
    {
      "title": "Tailgating Visitor",
      "description": "A visitor without a badge follows staff through a secured door.",
      "tasks": ["Challenge politely.", "Escort to reception."],
      "solution": "Ask for identification and call building security.",
      "learning_objectives": ["Enforce physical access control."]
    },
    {
      "title": "Password Reuse",
      "description": "A breached forum password is reused on the corporate VPN.",
      "tasks": ["Rotate the password.", "Enable MFA."],
      "solution": "Use a password manager with unique passwords per account.",
      "learning_objectives": ["Understand credential stuffing."]
    }
  ]
}`
