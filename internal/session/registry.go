// Package session maps active session keys to account names, enforcing a
// single active session per account.
package session

// Registry is the in-process session key table. Single-threaded; owned by
// the tick loop like the rest of the master state.
type Registry struct {
	keysByName map[string]uint32
}

func NewRegistry() *Registry {
	return &Registry{keysByName: make(map[string]uint32)}
}

// SetKey installs the active key for an account. When the account already
// held a different key, that key is evicted and returned so the caller can
// broadcast the invalidation.
func (r *Registry) SetKey(account string, key uint32) (old uint32, evicted bool) {
	old, ok := r.keysByName[account]
	r.keysByName[account] = key
	if ok && old != key {
		return old, true
	}
	return 0, false
}

// LookupByName returns the active key for an account.
func (r *Registry) LookupByName(account string) (uint32, bool) {
	key, ok := r.keysByName[account]
	return key, ok
}

// Count is the number of active sessions.
func (r *Registry) Count() int {
	return len(r.keysByName)
}
