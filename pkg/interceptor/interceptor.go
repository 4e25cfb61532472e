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

// Package interceptor implements the keystroke state machine sitting between
// the physical keyboard and the host. Every report either passes through,
// drives a mode transition, feeds the password buffer, records into a macro
// definition, or triggers macro playback.
package interceptor

import (
	"context"
	"errors"
	"fmt"

	"github.com/paulcager/hid-proxy/pkg/credential"
	"github.com/paulcager/hid-proxy/pkg/engine"
	"github.com/paulcager/hid-proxy/pkg/hid"
	"github.com/paulcager/hid-proxy/pkg/logging"
	"github.com/paulcager/hid-proxy/pkg/macro"
	"github.com/paulcager/hid-proxy/pkg/metrics"
	"github.com/paulcager/hid-proxy/pkg/storage"
)

// Hooks are the interceptor's outward side effects. Any hook may be nil.
type Hooks struct {
	// Reboot performs an unconditional device reset on the reboot chord.
	Reboot func()
	// WebAccess enables the external web/debug surface on the SPACE command.
	WebAccess func()
	// SealChanged observes transitions between sealed and unsealed.
	SealChanged func(sealed bool)
}

// Interceptor owns the device state and the single in-progress KeyDef
// builder. It is confined to the host-facing context; nothing here is
// safe for concurrent use.
type Interceptor struct {
	state    State
	creds    *credential.Manager
	store    *macro.Store
	engine   *engine.Engine
	gate     storage.CredentialGate
	hooks    Hooks
	log      *logging.Logger
	defining *macro.KeyDef
}

// New creates an Interceptor. The initial state is Blank when no password
// has ever been set, Sealed otherwise.
func New(creds *credential.Manager, store *macro.Store, eng *engine.Engine, gate storage.CredentialGate, hooks Hooks, log *logging.Logger) *Interceptor {
	if log == nil {
		log = logging.DefaultLogger()
	}
	i := &Interceptor{
		creds:  creds,
		store:  store,
		engine: eng,
		gate:   gate,
		hooks:  hooks,
		log:    log,
	}
	if gate.Provisioned() {
		i.setState(Sealed)
	} else {
		i.setState(Blank)
	}
	return i
}

// State returns the current device state.
func (i *Interceptor) State() State {
	return i.state
}

func (i *Interceptor) setState(s State) {
	if i.state != s {
		i.log.Debug("state transition", "from", i.state.String(), "to", s.String())
	}
	i.state = s
	metrics.SetDeviceState(s.String(), StateNames)
}

// Seal clears the credential and returns to Sealed (or Blank when never
// provisioned). Called on the END command and by the host-facing loop's
// idle timeout.
func (i *Interceptor) Seal(cause string) {
	i.creds.ClearKey()
	i.defining = nil
	if i.gate.Provisioned() {
		i.setState(Sealed)
	} else {
		i.setState(Blank)
	}
	metrics.Seals.WithLabelValues(cause).Inc()
	if i.hooks.SealChanged != nil {
		i.hooks.SealChanged(true)
	}
	i.log.Info("sealed", "cause", cause)
}

// HandleReport runs one report through the state machine. ctx bounds any
// backpressure enqueue performed by macro playback.
func (i *Interceptor) HandleReport(ctx context.Context, r hid.Report) error {
	metrics.ReportsReceived.Inc()

	// The reboot chord preempts every state.
	if r.IsRebootChord() {
		i.log.Info("reboot chord")
		if i.hooks.Reboot != nil {
			i.hooks.Reboot()
		}
		return nil
	}

	key0 := r.Key0()

	switch i.state {

	case Blank:
		if r.IsMagicChord() {
			i.setState(BlankSeenMagic)
		} else {
			i.engine.Forward(r)
		}

	case BlankSeenMagic:
		switch key0 {
		case 0:
			// Wait for a keydown.
		case hid.KeyEscape:
			i.setState(Blank)
		case hid.KeyInsert:
			i.creds.ClearPassword()
			i.setState(EnteringNewPassword)
			i.log.Info("enter new password")
		case hid.KeyDelete:
			return i.wipe()
		default:
			i.setState(Blank)
			i.engine.Forward(r)
		}

	case Sealed:
		if r.IsMagicChord() {
			i.setState(SealedSeenMagic)
		} else {
			i.engine.Forward(r)
		}

	case SealedSeenMagic:
		if r.IsReleaseAll() {
			i.setState(SealedExpectingCommand)
		}

	case SealedExpectingCommand:
		switch key0 {
		case 0:
			// Wait for a keydown.
		case hid.KeyEscape:
			i.setState(Sealed)
		case hid.KeyEnter:
			i.creds.ClearPassword()
			i.setState(EnteringPassword)
			i.log.Info("enter password")
		case hid.KeyInsert:
			i.creds.ClearPassword()
			i.setState(EnteringNewPassword)
			i.log.Info("enter new password")
		case hid.KeyDelete:
			return i.wipe()
		default:
			// Only public definitions can play while sealed; a
			// confidential one passes through like an unknown key.
			i.setState(Sealed)
			return i.engine.Evaluate(ctx, key0, r)
		}

	case EnteringPassword, EnteringNewPassword:
		if key0 == 0 {
			return nil // ignore keyups
		}
		if key0 != hid.KeyEnter {
			i.creds.AddPasswordByte(key0)
			return nil
		}
		return i.finishPasswordEntry()

	case Unsealed:
		if r.IsMagicChord() {
			i.setState(SeenMagic)
		} else {
			i.engine.Forward(r)
		}

	case SeenMagic:
		if r.IsReleaseAll() {
			i.setState(ExpectingCommand)
		}

	case ExpectingCommand:
		switch key0 {
		case 0:
			// Wait for a keydown.
		case hid.KeyEscape, hid.KeyEnter:
			i.setState(Unsealed)
		case hid.KeyEqual:
			i.setState(SeenAssign)
		case hid.KeySpace:
			i.setState(Unsealed)
			i.listMacros()
			if i.hooks.WebAccess != nil {
				i.hooks.WebAccess()
			}
		case hid.KeyInsert:
			i.creds.ClearPassword()
			i.setState(EnteringNewPassword)
			i.log.Info("enter new password")
		case hid.KeyDelete:
			return i.wipe()
		case hid.KeyEnd:
			i.Seal(metrics.SealCommand)
		default:
			i.setState(Unsealed)
			return i.engine.Evaluate(ctx, key0, r)
		}

	case SeenAssign:
		if key0 == 0 {
			return nil // ignore keyups
		}
		i.startDefine(key0)

	case Defining:
		if r.IsMagicChord() {
			return i.finishDefine()
		}
		if !i.defining.AppendReport(r) {
			i.log.Warn("macro at maximum length, dropping report",
				"trigger", fmt.Sprintf("0x%02X", i.defining.Trigger),
				"max", macro.MaxActions)
		}
	}

	return nil
}

// finishPasswordEntry derives the credential from the accumulated buffer and
// installs it. A wrong password always lands back in Sealed.
func (i *Interceptor) finishPasswordEntry() error {
	changing := i.state == EnteringNewPassword
	key := i.creds.DeriveKey()
	defer credential.Zeroize(key)

	if !changing {
		_, err := i.creds.InstallOrValidate(key)
		if err != nil {
			if errors.Is(err, storage.ErrAuthFailure) {
				metrics.AuthFailures.Inc()
			}
			i.log.Warn("password rejected", "error", err)
			i.Seal(metrics.SealFailure)
			return nil
		}
		i.unsealed()
		return nil
	}

	// New password. Three cases by prior state of the gate:
	// first-use provisioning, change while unsealed (re-seal all
	// confidential records), change while sealed (re-provision; existing
	// confidential records become unreadable).
	switch {
	case i.gate.Unlocked():
		// Load everything under the old key before the backend forgets
		// it; only then replace the credential and write back.
		defs, err := i.store.LoadAll()
		if err != nil {
			i.log.Error("loading macros for re-seal failed", "error", err)
			i.Seal(metrics.SealFailure)
			return err
		}
		if err := i.creds.Replace(key); err != nil {
			i.log.Error("password change failed", "error", err)
			i.Seal(metrics.SealFailure)
			return err
		}
		if err := i.store.SaveAll(defs); err != nil {
			i.log.Error("re-sealing macros failed", "error", err)
			i.Seal(metrics.SealFailure)
			return err
		}
		i.log.Info("password changed, macros re-sealed", "count", len(defs))
	case i.gate.Provisioned():
		if err := i.gate.DestroyCredential(); err != nil {
			i.log.Error("password change failed", "error", err)
			i.Seal(metrics.SealFailure)
			return err
		}
		i.log.Warn("password replaced while sealed; previous confidential macros are unreadable")
		fallthrough
	default:
		if _, err := i.creds.InstallOrValidate(key); err != nil {
			if errors.Is(err, storage.ErrAuthFailure) {
				metrics.AuthFailures.Inc()
			}
			i.Seal(metrics.SealFailure)
			return nil
		}
		i.log.Info("password set")
	}
	i.unsealed()
	return nil
}

func (i *Interceptor) unsealed() {
	i.setState(Unsealed)
	if i.hooks.SealChanged != nil {
		i.hooks.SealChanged(false)
	}
	i.log.Info("unsealed")
}

// wipe erases every macro and the credential check, returning the device to
// the blank state.
func (i *Interceptor) wipe() error {
	i.log.Info("wiping device")
	if err := i.store.DeleteAll(); err != nil {
		i.log.Error("wipe: deleting macros failed", "error", err)
		return err
	}
	if err := i.gate.DestroyCredential(); err != nil {
		i.log.Error("wipe: destroying credential failed", "error", err)
		return err
	}
	i.creds.ClearPassword()
	i.defining = nil
	i.setState(Blank)
	return nil
}

// startDefine begins recording a macro for trigger, replacing any existing
// definition.
func (i *Interceptor) startDefine(trigger byte) {
	if err := i.store.Delete(trigger); err != nil && !errors.Is(err, storage.ErrNotFound) {
		i.log.Warn("could not delete previous definition", "trigger", fmt.Sprintf("0x%02X", trigger), "error", err)
	}
	i.defining = macro.NewKeyDef(trigger)
	i.setState(Defining)
	i.log.Info("defining macro", "trigger", fmt.Sprintf("0x%02X", trigger))
}

func (i *Interceptor) finishDefine() error {
	def := i.defining
	i.defining = nil
	i.setState(Unsealed)
	if def == nil {
		return nil
	}
	if err := i.store.Save(def); err != nil {
		i.log.Error("saving macro failed", "trigger", fmt.Sprintf("0x%02X", def.Trigger), "error", err)
		return err
	}
	i.log.Info("saved macro", "trigger", fmt.Sprintf("0x%02X", def.Trigger), "actions", len(def.Actions))
	return nil
}

func (i *Interceptor) listMacros() {
	triggers, err := i.store.List()
	if err != nil {
		i.log.Error("listing macros failed", "error", err)
		return
	}
	if len(triggers) == 0 {
		i.log.Info("no macros defined")
		return
	}
	for _, t := range triggers {
		def, err := i.store.Load(t)
		if err != nil {
			i.log.Info("macro", "trigger", fmt.Sprintf("0x%02X", t), "status", "sealed")
			continue
		}
		i.log.Info("macro", "trigger", fmt.Sprintf("0x%02X", t), "actions", len(def.Actions), "confidential", def.Confidential)
	}
}
