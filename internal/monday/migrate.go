package monday

import "fmt"

const legacyStateKey = "activity_logs"

// StateMigration drops the activity_logs entry that older releases kept at
// the top level of the items/boards state.
type StateMigration struct{}

func (StateMigration) ShouldMigrate(state State) bool {
	_, ok := state[legacyStateKey]
	return ok
}

// Migrate returns a copy of state without the legacy key. Callers must check
// ShouldMigrate first.
func (StateMigration) Migrate(state State) (State, error) {
	if _, ok := state[legacyStateKey]; !ok {
		return nil, fmt.Errorf("migrate state: %w", ErrNoLegacyState)
	}
	out := state.Clone()
	delete(out, legacyStateKey)
	return out, nil
}
