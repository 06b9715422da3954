package trust

// Registry tracks the accounts confirmed as seeds for the current round.
type Registry struct {
	store storage
}

// NewRegistry constructs a seed registry bound to the provided storage
// backend.
func NewRegistry(store storage) *Registry {
	return &Registry{store: store}
}

// IsSeed reports whether account is a confirmed seed.
func (r *Registry) IsSeed(account [20]byte) (bool, error) {
	var present bool
	ok, err := r.store.KVGet(seedKey(account), &present)
	if err != nil {
		return false, err
	}
	return ok && present, nil
}

// AddSeed marks account as a seed. Adding an existing seed is a no-op.
func (r *Registry) AddSeed(account [20]byte) error {
	if err := r.store.KVPut(seedKey(account), true); err != nil {
		return err
	}
	return r.store.KVAppend(seedListKey, account[:])
}

// Seeds returns the registered seeds in insertion order.
func (r *Registry) Seeds() ([][20]byte, error) {
	var raw [][]byte
	if err := r.store.KVGetList(seedListKey, &raw); err != nil {
		return nil, err
	}
	out := make([][20]byte, 0, len(raw))
	for _, item := range raw {
		var addr [20]byte
		copy(addr[:], item)
		out = append(out, addr)
	}
	return out, nil
}

// SeedCount returns the number of registered seeds.
func (r *Registry) SeedCount() (uint32, error) {
	seeds, err := r.Seeds()
	if err != nil {
		return 0, err
	}
	return uint32(len(seeds)), nil
}

// RemoveAll clears the registry.
func (r *Registry) RemoveAll() error {
	seeds, err := r.Seeds()
	if err != nil {
		return err
	}
	for _, seed := range seeds {
		if err := r.store.KVDelete(seedKey(seed)); err != nil {
			return err
		}
	}
	return r.store.KVDelete(seedListKey)
}
