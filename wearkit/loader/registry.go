package loader

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/armon/go-radix"
	"github.com/google/uuid"
)

// Participant identifies one export folder. Labfront names folders
// "<userID>_<labfrontUUID>"; both halves are kept so callers can refer
// to a participant by either the bare id or the full folder name.
type Participant struct {
	UserID     string // researcher-assigned id, e.g. "user-01"
	LabfrontID string // Labfront-assigned UUID
	FullID     string // folder name, UserID + "_" + LabfrontID
}

// Registry resolves user ids against the participant folders found in
// an export directory. Lookups accept the full folder name, the bare
// user id, or any unambiguous prefix of it.
type Registry struct {
	mu   sync.RWMutex
	tree *radix.Tree            // bare user id -> []*Participant
	full map[string]*Participant // full folder name -> *Participant
}

// NewRegistry builds a registry from participant folder names.
// Folders whose name does not end in a valid UUID are skipped, since
// Labfront never produces them. The same bare user id may appear under
// several device UUIDs; all of them are kept so Resolve can reject the
// bare id as ambiguous.
func NewRegistry(folders []string) *Registry {
	r := &Registry{
		tree: radix.New(),
		full: make(map[string]*Participant, len(folders)),
	}
	for _, name := range folders {
		p, ok := splitParticipantID(name)
		if !ok {
			slog.Debug("skipping non-participant folder", "folder", name)
			continue
		}
		ps := []*Participant{p}
		if v, found := r.tree.Get(p.UserID); found {
			ps = append(v.([]*Participant), p)
		}
		r.tree.Insert(p.UserID, ps)
		r.full[p.FullID] = p
	}
	return r
}

func splitParticipantID(name string) (*Participant, bool) {
	i := strings.LastIndex(name, "_")
	if i <= 0 || i == len(name)-1 {
		return nil, false
	}
	id, err := uuid.Parse(name[i+1:])
	if err != nil {
		return nil, false
	}
	return &Participant{
		UserID:     name[:i],
		LabfrontID: id.String(),
		FullID:     name,
	}, true
}

// Resolve maps a user reference to its participant. The reference may
// be a full folder name, a bare user id, or a unique prefix of one.
func (r *Registry) Resolve(user string) (*Participant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if p, ok := r.full[user]; ok {
		return p, nil
	}
	if v, ok := r.tree.Get(user); ok {
		ps := v.([]*Participant)
		if len(ps) == 1 {
			return ps[0], nil
		}
		return nil, ambiguousUser(user, ps)
	}

	var matches []*Participant
	r.tree.WalkPrefix(user, func(_ string, v interface{}) bool {
		matches = append(matches, v.([]*Participant)...)
		return false
	})
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: %q", ErrUnknownUser, user)
	case 1:
		return matches[0], nil
	default:
		return nil, ambiguousUser(user, matches)
	}
}

func ambiguousUser(user string, matches []*Participant) error {
	ids := make([]string, len(matches))
	for i, p := range matches {
		ids[i] = p.FullID
	}
	return fmt.Errorf("%w: %q matches %s", ErrAmbiguousUser, user, strings.Join(ids, ", "))
}

// FullID resolves a user reference to its folder name.
func (r *Registry) FullID(user string) (string, error) {
	p, err := r.Resolve(user)
	if err != nil {
		return "", err
	}
	return p.FullID, nil
}

// UserIDs returns the bare ids of all registered participants, sorted.
func (r *Registry) UserIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.full))
	r.tree.Walk(func(k string, _ interface{}) bool {
		ids = append(ids, k)
		return false
	})
	return ids
}

// FullIDs returns the folder names of all registered participants,
// sorted by bare user id.
func (r *Registry) FullIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.full))
	r.tree.Walk(func(_ string, v interface{}) bool {
		for _, p := range v.([]*Participant) {
			ids = append(ids, p.FullID)
		}
		return false
	})
	return ids
}

// Len returns the number of registered participants.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.full)
}
