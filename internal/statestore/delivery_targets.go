package statestore

import (
	"encoding/json"
	"sort"

	"autorunner/internal/model"
	"autorunner/pkg/herrors"
)

const deliveryTargetsRelPath = "pma/delivery_targets.json"

const currentDeliveryTargetsVersion = 1

// ReadTargets returns the configured PMA delivery targets plus the
// last-delivery dedupe map. A missing file is an empty target set, not an
// error (spec §4.E.2 step 1: "if empty → skipped").
func (s *Store) ReadTargets() (model.DeliveryTargetsFile, error) {
	data, err := s.readFile(deliveryTargetsRelPath)
	if herrors.Is(err, herrors.NotFound) {
		return model.DeliveryTargetsFile{
			Version:              currentDeliveryTargetsVersion,
			LastDeliveryByTarget: map[string]string{},
		}, nil
	}
	if err != nil {
		return model.DeliveryTargetsFile{}, err
	}
	var f model.DeliveryTargetsFile
	if err := json.Unmarshal(data, &f); err != nil {
		return model.DeliveryTargetsFile{}, herrors.Wrap(herrors.FileCorrupt, err, deliveryTargetsRelPath, "parse delivery targets")
	}
	if f.LastDeliveryByTarget == nil {
		f.LastDeliveryByTarget = map[string]string{}
	}
	return f, nil
}

func (s *Store) writeTargets(f model.DeliveryTargetsFile) error {
	f.Version = currentDeliveryTargetsVersion
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	return s.atomicWrite(deliveryTargetsRelPath, data)
}

// TargetUpsert adds target if its TargetKey is not already present, or is a
// no-op if it is (targets are coalesced by key, spec §3 DeliveryTarget).
func (s *Store) TargetUpsert(target model.DeliveryTarget) error {
	f, err := s.ReadTargets()
	if err != nil {
		return err
	}
	key := target.TargetKey()
	for _, t := range f.Targets {
		if t.TargetKey() == key {
			return nil
		}
	}
	f.Targets = append(f.Targets, target)
	sort.Slice(f.Targets, func(i, j int) bool { return f.Targets[i].TargetKey() < f.Targets[j].TargetKey() })
	return s.writeTargets(f)
}

// TargetRemove deletes the target with the given key, if present.
func (s *Store) TargetRemove(targetKey string) error {
	f, err := s.ReadTargets()
	if err != nil {
		return err
	}
	out := f.Targets[:0]
	for _, t := range f.Targets {
		if t.TargetKey() != targetKey {
			out = append(out, t)
		}
	}
	f.Targets = out
	return s.writeTargets(f)
}

// DeliveryDedupeCheck reports whether turnID has already been delivered
// successfully to targetKey (spec §4.E.2 step 3b) — only meaningful for
// non-dispatch outputs.
func (s *Store) DeliveryDedupeCheck(targetKey, turnID string) (bool, error) {
	f, err := s.ReadTargets()
	if err != nil {
		return false, err
	}
	return f.LastDeliveryByTarget[targetKey] == turnID, nil
}

// DeliveryMarkSucceeded records turnID as the last successful delivery for
// each target key in succeededKeys (spec §4.E.2 step 4: only for targets
// that succeeded).
func (s *Store) DeliveryMarkSucceeded(turnID string, succeededKeys []string) error {
	if len(succeededKeys) == 0 {
		return nil
	}
	f, err := s.ReadTargets()
	if err != nil {
		return err
	}
	for _, key := range succeededKeys {
		f.LastDeliveryByTarget[key] = turnID
	}
	return s.writeTargets(f)
}
