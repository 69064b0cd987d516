package dca

import "sort"

// SetAllowedAssets toggles allow-list membership for each asset. Only the
// registry owner may call it; assets and allowed must be the same length.
// One registry event is emitted per entry and the registry version is bumped
// once per call.
func (e *Engine) SetAllowedAssets(caller [20]byte, assets []string, allowed []bool) error {
	if err := e.requireState(); err != nil {
		return err
	}
	if caller != e.registryOwner {
		return ErrUnauthorized
	}
	if len(assets) != len(allowed) {
		return ErrLengthMismatch
	}
	snapshot, err := e.state.RegistryGet()
	if err != nil {
		return err
	}
	set := make(map[string]bool, len(snapshot.Allowed))
	for _, asset := range snapshot.Allowed {
		set[asset] = true
	}
	for i, raw := range assets {
		asset := NormalizeAsset(raw)
		if allowed[i] {
			set[asset] = true
		} else {
			delete(set, asset)
		}
	}
	snapshot.Allowed = snapshot.Allowed[:0]
	for asset := range set {
		snapshot.Allowed = append(snapshot.Allowed, asset)
	}
	sort.Strings(snapshot.Allowed)
	snapshot.Version++
	if err := e.state.RegistryPut(snapshot); err != nil {
		return err
	}
	for i, raw := range assets {
		e.emit(NewAssetAllowedEvent(NormalizeAsset(raw), allowed[i], snapshot.Version))
	}
	return nil
}

// SetBlacklistedPairs toggles the pair blacklist. Pairs are unordered; the
// i-th pair is {pairsA[i], pairsB[i]}. Owner-gated with the same length rules
// as SetAllowedAssets.
func (e *Engine) SetBlacklistedPairs(caller [20]byte, pairsA, pairsB []string, blacklisted []bool) error {
	if err := e.requireState(); err != nil {
		return err
	}
	if caller != e.registryOwner {
		return ErrUnauthorized
	}
	if len(pairsA) != len(pairsB) || len(pairsA) != len(blacklisted) {
		return ErrLengthMismatch
	}
	snapshot, err := e.state.RegistryGet()
	if err != nil {
		return err
	}
	set := make(map[string]bool, len(snapshot.Blacklisted))
	for _, key := range snapshot.Blacklisted {
		set[key] = true
	}
	for i := range pairsA {
		key := PairKey(NormalizeAsset(pairsA[i]), NormalizeAsset(pairsB[i]))
		if blacklisted[i] {
			set[key] = true
		} else {
			delete(set, key)
		}
	}
	snapshot.Blacklisted = snapshot.Blacklisted[:0]
	for key := range set {
		snapshot.Blacklisted = append(snapshot.Blacklisted, key)
	}
	sort.Strings(snapshot.Blacklisted)
	snapshot.Version++
	if err := e.state.RegistryPut(snapshot); err != nil {
		return err
	}
	for i := range pairsA {
		e.emit(NewPairBlacklistedEvent(NormalizeAsset(pairsA[i]), NormalizeAsset(pairsB[i]), blacklisted[i], snapshot.Version))
	}
	return nil
}

// FetchAllowedAssets returns the sorted allow-list. Read-only and
// side-effect free.
func (e *Engine) FetchAllowedAssets() ([]string, error) {
	if err := e.requireState(); err != nil {
		return nil, err
	}
	snapshot, err := e.state.RegistryGet()
	if err != nil {
		return nil, err
	}
	out := make([]string, len(snapshot.Allowed))
	copy(out, snapshot.Allowed)
	return out, nil
}

// pairAllowed reports whether a conversion from principal to asset is
// currently permitted by the registry.
func pairAllowed(snapshot *RegistrySnapshot, principal, asset string) bool {
	return snapshot.IsAllowed(principal) &&
		snapshot.IsAllowed(asset) &&
		!snapshot.IsPairBlacklisted(principal, asset)
}
