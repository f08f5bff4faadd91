package training

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrSessionNotFound = errors.New("training session not found")

type SessionStore interface {
	Get(ctx context.Context, userID, scenarioID string) (*Session, error)
	// Save persists session state and appends transcript turns not yet stored.
	Save(ctx context.Context, s *Session) error
	Reset(ctx context.Context, userID, scenarioID string) error
	ListByUser(ctx context.Context, userID string) ([]Session, error)
}

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) Get(ctx context.Context, userID, scenarioID string) (*Session, error) {
	var s Session
	err := r.db.WithContext(ctx).
		Preload("Transcript", func(db *gorm.DB) *gorm.DB { return db.Order("seq ASC") }).
		Where("user_id = ? AND scenario_id = ?", userID, scenarioID).
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *Repo) Save(ctx context.Context, s *Session) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if s.ID == 0 {
			if err := tx.Omit(clause.Associations).Create(s).Error; err != nil {
				return err
			}
		} else if err := tx.Omit(clause.Associations).Save(s).Error; err != nil {
			return err
		}

		for i := range s.Transcript {
			t := &s.Transcript[i]
			if t.ID != 0 {
				continue
			}
			t.SessionRef = s.ID
			if err := tx.Create(t).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *Repo) Reset(ctx context.Context, userID, scenarioID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var s Session
		err := tx.Select("id").
			Where("user_id = ? AND scenario_id = ?", userID, scenarioID).
			First(&s).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := tx.Where("session_ref = ?", s.ID).Delete(&Turn{}).Error; err != nil {
			return err
		}
		return tx.Delete(&Session{}, s.ID).Error
	})
}

// ListByUser returns the user's sessions without transcripts.
func (r *Repo) ListByUser(ctx context.Context, userID string) ([]Session, error) {
	var out []Session
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
