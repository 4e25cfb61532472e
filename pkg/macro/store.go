// Copyright (c) 2025 Paul Cager
//
// This file is part of hid-proxy.
//
// hid-proxy is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@paulcager.org for commercial licensing options.

package macro

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/paulcager/hid-proxy/pkg/logging"
	"github.com/paulcager/hid-proxy/pkg/storage"
)

const keyPrefix = "keydef."

func keyFor(trigger byte) string {
	return fmt.Sprintf("%s0x%02X", keyPrefix, trigger)
}

// Store persists KeyDefs through a storage backend, one record per trigger.
type Store struct {
	backend storage.Backend
	log     *logging.Logger
}

// NewStore creates a Store over backend.
func NewStore(backend storage.Backend, log *logging.Logger) *Store {
	if log == nil {
		log = logging.DefaultLogger()
	}
	return &Store{backend: backend, log: log}
}

// Save writes def, sealed iff the definition is confidential.
func (s *Store) Save(def *KeyDef) error {
	record, err := def.Marshal()
	if err != nil {
		return err
	}
	if err := s.backend.Put(keyFor(def.Trigger), record, def.Confidential); err != nil {
		return fmt.Errorf("macro: save keydef 0x%02X: %w", def.Trigger, err)
	}
	s.log.Debug("saved keydef",
		"trigger", fmt.Sprintf("0x%02X", def.Trigger),
		"actions", len(def.Actions),
		"confidential", def.Confidential)
	return nil
}

// Load reads and decodes the definition for trigger. It returns
// storage.ErrNotFound if none exists and storage.ErrAuthFailure if the
// record is confidential and no valid credential is installed.
func (s *Store) Load(trigger byte) (*KeyDef, error) {
	record, err := s.backend.Get(keyFor(trigger))
	if err != nil {
		return nil, err
	}
	def, err := Unmarshal(record)
	if err != nil {
		return nil, err
	}
	if def.Trigger != trigger {
		return nil, fmt.Errorf("macro: record %s holds trigger 0x%02X", keyFor(trigger), def.Trigger)
	}
	return def, nil
}

// Delete removes the definition for trigger. Deleting a missing trigger is
// not an error.
func (s *Store) Delete(trigger byte) error {
	if err := s.backend.Delete(keyFor(trigger)); err != nil {
		return fmt.Errorf("macro: delete keydef 0x%02X: %w", trigger, err)
	}
	return nil
}

// List enumerates the triggers of every stored definition, sorted. Existence
// of a trigger is not treated as a secret; confidential records appear here
// but fail to Load while sealed.
func (s *Store) List() ([]byte, error) {
	keys, err := s.backend.List(keyPrefix)
	if err != nil {
		return nil, fmt.Errorf("macro: list keydefs: %w", err)
	}
	triggers := make([]byte, 0, len(keys))
	for _, k := range keys {
		hex, ok := strings.CutPrefix(k, keyPrefix+"0x")
		if !ok {
			continue
		}
		n, err := strconv.ParseUint(hex, 16, 8)
		if err != nil {
			s.log.Warn("skipping malformed keydef key", "key", k)
			continue
		}
		triggers = append(triggers, byte(n))
	}
	sort.Slice(triggers, func(i, j int) bool { return triggers[i] < triggers[j] })
	return triggers, nil
}

// DeleteAll removes every stored definition.
func (s *Store) DeleteAll() error {
	triggers, err := s.List()
	if err != nil {
		return err
	}
	for _, t := range triggers {
		if err := s.Delete(t); err != nil {
			return err
		}
	}
	return nil
}

// LoadAll loads every stored definition. The backend must be unlocked; a
// confidential record that fails to load aborts the pass.
func (s *Store) LoadAll() ([]*KeyDef, error) {
	triggers, err := s.List()
	if err != nil {
		return nil, err
	}
	defs := make([]*KeyDef, 0, len(triggers))
	for _, t := range triggers {
		def, err := s.Load(t)
		if err != nil {
			return nil, fmt.Errorf("macro: load keydef 0x%02X: %w", t, err)
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// SaveAll writes every definition back to the backend. Together with LoadAll
// it re-seals confidential records across a credential replacement: load
// everything under the old key, replace the credential, save under the new.
func (s *Store) SaveAll(defs []*KeyDef) error {
	for _, def := range defs {
		if err := s.Save(def); err != nil {
			return err
		}
	}
	return nil
}
