package training

import "errors"

var (
	ErrNotStarted       = errors.New("training session not started")
	ErrSessionCompleted = errors.New("training session already completed")
	ErrAlreadyScored    = errors.New("training session already scored")
	ErrEmptyAnswer      = errors.New("answer is empty")
)

type State int

const (
	StateNotStarted State = iota
	StateAwaitingAnswer
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateAwaitingAnswer:
		return "awaiting_answer"
	case StateCompleted:
		return "completed"
	}
	return "unknown"
}

type Event int

const (
	EventStart Event = iota
	EventAnswer
)

type Action int

const (
	ActionOpen Action = iota
	ActionResume
	ActionFeedback
	ActionScore
)

// transition decides what an event does to a session with n questions whose
// current question is index.
func transition(st State, ev Event, index, n int) (Action, error) {
	switch ev {
	case EventStart:
		if st == StateNotStarted {
			return ActionOpen, nil
		}
		return ActionResume, nil
	case EventAnswer:
		switch st {
		case StateNotStarted:
			return 0, ErrNotStarted
		case StateCompleted:
			return 0, ErrSessionCompleted
		}
		if index >= n-1 {
			return ActionScore, nil
		}
		return ActionFeedback, nil
	}
	return 0, errors.New("unknown training event")
}
