package training

import (
	"time"

	"github.com/DerMichael0408/CyberGuide/internal/ai"
	"gorm.io/datatypes"
)

// Session is one learner's progress through one scenario. A user has at most
// one session per scenario; Reset deletes it.
type Session struct {
	ID            uint64                      `gorm:"primaryKey;autoIncrement" json:"-"`
	UserID        string                      `gorm:"type:varchar(64);not null;index:uniq_training_user_scenario,unique,priority:1" json:"user_id"`
	ScenarioID    string                      `gorm:"type:varchar(64);not null;index:uniq_training_user_scenario,unique,priority:2" json:"scenario_id"`
	QuestionIndex int                         `gorm:"not null;default:0" json:"question_index"`
	Started       bool                        `gorm:"not null;default:false" json:"started"`
	Completed     bool                        `gorm:"not null;default:false" json:"completed"`
	FinalScore    *int                        `json:"final_score,omitempty"`
	Assessment    string                      `gorm:"type:text" json:"assessment,omitempty"`
	Strengths     datatypes.JSONSlice[string] `json:"strengths,omitempty"`
	Weaknesses    datatypes.JSONSlice[string] `json:"weaknesses,omitempty"`
	Suggestions   datatypes.JSONSlice[string] `json:"improvement_suggestions,omitempty"`
	ScoreSource   string                      `gorm:"type:varchar(16)" json:"score_source,omitempty"`
	CompletedAt   *time.Time                  `json:"completed_at,omitempty"`
	Transcript    []Turn                      `gorm:"foreignKey:SessionRef;constraint:OnDelete:CASCADE" json:"transcript"`
	CreatedAt     time.Time                   `json:"created_at"`
	UpdatedAt     time.Time                   `json:"updated_at"`
}

func (Session) TableName() string { return "training_sessions" }

// Turn is one transcript entry. Seq orders turns within a session.
type Turn struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	SessionRef uint64    `gorm:"not null;index:idx_training_msg_session_seq,priority:1" json:"-"`
	Seq        int       `gorm:"not null;index:idx_training_msg_session_seq,priority:2" json:"seq"`
	Role       string    `gorm:"type:varchar(16);not null" json:"role"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

func (Turn) TableName() string { return "training_messages" }

func Models() []any { return []any{&Session{}, &Turn{}} }

func NewSession(userID, scenarioID string) *Session {
	return &Session{UserID: userID, ScenarioID: scenarioID}
}

func (s *Session) State() State {
	switch {
	case s.Completed:
		return StateCompleted
	case s.Started:
		return StateAwaitingAnswer
	default:
		return StateNotStarted
	}
}

func (s *Session) messages() []ai.Message {
	out := make([]ai.Message, 0, len(s.Transcript))
	for _, t := range s.Transcript {
		out = append(out, ai.Message{Role: t.Role, Content: t.Content})
	}
	return out
}

func (s *Session) append(role, content string) {
	s.Transcript = append(s.Transcript, Turn{
		Seq:     len(s.Transcript),
		Role:    role,
		Content: content,
	})
}

// LastAssistant returns the most recent assistant message, or "".
func (s *Session) LastAssistant() string {
	for i := len(s.Transcript) - 1; i >= 0; i-- {
		if s.Transcript[i].Role == ai.RoleAssistant {
			return s.Transcript[i].Content
		}
	}
	return ""
}

// Visible is the transcript without system entries.
func (s *Session) Visible() []Turn {
	out := make([]Turn, 0, len(s.Transcript))
	for _, t := range s.Transcript {
		if t.Role != ai.RoleSystem {
			out = append(out, t)
		}
	}
	return out
}
