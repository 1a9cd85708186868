package ledger

import "liquiditySim/internal/model"

// ActionLog is the append-only record of every ledger mutation, in execution
// order. Records are copied on the way in and on the way out, so nothing held
// by a caller or a hook aliases the log. Hooks run synchronously after each
// append.
type ActionLog struct {
	actions []model.Action
	hooks   []func(model.Action)
}

func NewActionLog(hooks ...func(model.Action)) *ActionLog {
	return &ActionLog{hooks: hooks}
}

// Subscribe registers a hook for actions appended from now on.
func (l *ActionLog) Subscribe(hook func(model.Action)) {
	if hook != nil {
		l.hooks = append(l.hooks, hook)
	}
}

// Append adds an action to the end of the log.
func (l *ActionLog) Append(action model.Action) {
	stored := action.Clone()
	l.actions = append(l.actions, stored)
	for _, hook := range l.hooks {
		if hook != nil {
			hook(stored.Clone())
		}
	}
}

// Len returns the number of actions.
func (l *ActionLog) Len() int {
	return len(l.actions)
}

// Actions returns a copy of the log.
func (l *ActionLog) Actions() []model.Action {
	return l.Since(0)
}

// Since returns a copy of the actions appended at or after index from.
func (l *ActionLog) Since(from int) []model.Action {
	if from < 0 {
		from = 0
	}
	if from >= len(l.actions) {
		return nil
	}
	out := make([]model.Action, 0, len(l.actions)-from)
	for _, a := range l.actions[from:] {
		out = append(out, a.Clone())
	}
	return out
}
