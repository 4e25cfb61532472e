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

package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/paulcager/hid-proxy/internal/config"
	"github.com/paulcager/hid-proxy/pkg/credential"
	"github.com/paulcager/hid-proxy/pkg/hid"
	"github.com/paulcager/hid-proxy/pkg/logging"
	"github.com/paulcager/hid-proxy/pkg/macro"
	"github.com/paulcager/hid-proxy/pkg/storage"
)

// macrosCmd represents the macros command group
var macrosCmd = &cobra.Command{
	Use:   "macros",
	Short: "Manage stored macros",
	Long: `Inspect, import and export the macro store. Confidential macros
require the device password; without it only public macros are
readable.`,
}

var macrosListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored macro triggers",
	Run: func(cmd *cobra.Command, args []string) {
		if err := withStore(func(store *macro.Store, _ storage.CredentialGate) error {
			triggers, err := store.List()
			if err != nil {
				return err
			}
			for _, trigger := range triggers {
				def, err := store.Load(trigger)
				switch {
				case errors.Is(err, storage.ErrAuthFailure):
					fmt.Printf("0x%02X  (sealed)\n", trigger)
				case err != nil:
					fmt.Printf("0x%02X  (unreadable: %v)\n", trigger, err)
				case def.Confidential:
					fmt.Printf("0x%02X  private  %d actions\n", trigger, len(def.Actions))
				default:
					fmt.Printf("0x%02X  public   %d actions\n", trigger, len(def.Actions))
				}
			}
			return nil
		}); err != nil {
			handleError(err)
		}
	},
}

var macrosExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export macros as text to stdout",
	Run: func(cmd *cobra.Command, args []string) {
		if err := withStore(func(store *macro.Store, _ storage.CredentialGate) error {
			text, err := store.ExportText()
			if err != nil {
				return err
			}
			fmt.Print(text)
			return nil
		}); err != nil {
			handleError(err)
		}
	},
}

var macrosImportCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Import macros from a text file, replacing the current set",
	Long: `Import macros from a text file (or stdin when no file is given).
Existing macros are removed first. Lines whose trigger cannot be
resolved are skipped with a warning.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := withStore(func(store *macro.Store, _ storage.CredentialGate) error {
			var (
				data []byte
				err  error
			)
			if len(args) == 1 {
				// #nosec G304 - Import path is provided by admin/user
				data, err = os.ReadFile(args[0])
			} else {
				data, err = io.ReadAll(os.Stdin)
			}
			if err != nil {
				return err
			}
			n, err := store.ImportText(string(data))
			if err != nil {
				return err
			}
			fmt.Printf("Imported %d macros\n", n)
			return nil
		}); err != nil {
			handleError(err)
		}
	},
}

// wipeCmd represents the wipe command
var wipeCmd = &cobra.Command{
	Use:   "wipe",
	Short: "Delete all macros and the device credential",
	Long: `Delete every stored macro and destroy the device credential,
returning the store to its factory state. No password is required;
this is the same operation as the DELETE wipe chord on the keyboard.`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := wipeStore(); err != nil {
			handleError(err)
		}
	},
}

func init() {
	macrosCmd.AddCommand(macrosListCmd)
	macrosCmd.AddCommand(macrosExportCmd)
	macrosCmd.AddCommand(macrosImportCmd)
}

// withStore opens the configured backend, unseals it if the user supplies
// the device password, and runs fn against the macro store.
func withStore(fn func(*macro.Store, storage.CredentialGate) error) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	backend, gate, err := openBackend(cfg)
	if err != nil {
		return err
	}
	defer backend.Close()

	if err := unseal(cfg, gate, log); err != nil {
		return err
	}
	return fn(macro.NewStore(backend, log), gate)
}

func wipeStore() error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	backend, gate, err := openBackend(cfg)
	if err != nil {
		return err
	}
	defer backend.Close()

	store := macro.NewStore(backend, log)
	if err := store.DeleteAll(); err != nil {
		return err
	}
	if err := gate.DestroyCredential(); err != nil {
		return err
	}
	fmt.Println("Store wiped")
	return nil
}

// unseal prompts for the device password and validates it against the
// stored credential. An empty password leaves the store sealed, so only
// public macros are readable.
func unseal(cfg *config.Config, gate storage.CredentialGate, log *logging.Logger) error {
	if !gate.Provisioned() {
		return nil
	}

	fmt.Fprint(os.Stderr, "Device password (empty to skip): ")
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}
	if len(password) == 0 {
		log.Warn("no password given, confidential macros stay sealed")
		return nil
	}
	defer credential.Zeroize(password)

	creds := credential.NewManager(gate, []byte(cfg.Device.ID), cfg.Device.KeySize, log)
	for _, ch := range string(password) {
		m, ok := hid.MapChar(ch)
		if !ok {
			return fmt.Errorf("password contains untypeable character %q", ch)
		}
		creds.AddPasswordByte(m.Key)
	}
	key := creds.DeriveKey()
	defer credential.Zeroize(key)

	if _, err := creds.InstallOrValidate(key); err != nil {
		return fmt.Errorf("unseal failed: %w", err)
	}
	return nil
}
