package dialog

import "errors"

// ErrScript indicates a malformed dialog script: unknown transition
// targets, a missing entry step, or no reachable terminal. Scripts are
// validated eagerly at load time so this never surfaces mid-turn.
var ErrScript = errors.New("invalid dialog script")
