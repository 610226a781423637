package protocol

import (
	"sort"
	"strings"

	"github.com/pkg/errors"
)

func ValidateEnvelope(e Envelope) error {
	if e.Type == "" {
		return errors.Errorf("%s: missing type", ErrInvalidEnvelope)
	}
	return nil
}

func ValidateClientMessage(m ClientMessage) error {
	switch m.Action {
	case ActionAuth:
		if m.Token == "" {
			return errors.Errorf("%s: auth without token", ErrInvalidAction)
		}
	case ActionSubscribe, ActionUnsubscribe:
		if len(m.Projects) == 0 {
			return errors.Errorf("%s: %s without projects", ErrInvalidAction, m.Action)
		}
		for i, p := range m.Projects {
			if strings.TrimSpace(p) == "" {
				return errors.Errorf("%s: %s projects[%d] is empty", ErrInvalidAction, m.Action, i)
			}
		}
	case ActionPing:
	default:
		return errors.Errorf("%s: unknown action %q", ErrInvalidAction, m.Action)
	}
	return nil
}

// NormalizeProjects trims, drops empties, de-duplicates and sorts ids, the
// same way the server normalizes subscription lists.
func NormalizeProjects(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
