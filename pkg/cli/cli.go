/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package cli implements the devmirror command line.
package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/carverauto/devmirror/pkg/config"
)

// SubcommandHandler defines the interface for parsing subcommand flags.
type SubcommandHandler interface {
	Parse(args []string, cfg *CmdConfig) error
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	return fs
}

func positional(fs *flag.FlagSet, n int, usage string) ([]string, error) {
	if fs.NArg() < n {
		return nil, fmt.Errorf("%w: usage: devmirror %s", errMissingArgs, usage)
	}

	return fs.Args(), nil
}

// NoArgsHandler handles subcommands without options.
type NoArgsHandler struct {
	Name string
}

// Parse processes the command-line arguments for a subcommand without options.
func (h NoArgsHandler) Parse(args []string, _ *CmdConfig) error {
	fs := newFlagSet(h.Name)

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parsing %s flags: %w", h.Name, err)
	}

	return nil
}

// DeviceHandler handles subcommands that take a single device id.
type DeviceHandler struct {
	Name string
}

// Parse processes the command-line arguments for a single-device subcommand.
func (h DeviceHandler) Parse(args []string, cfg *CmdConfig) error {
	fs := newFlagSet(h.Name)

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parsing %s flags: %w", h.Name, err)
	}

	rest, err := positional(fs, 1, h.Name+" <id>")
	if err != nil {
		return err
	}

	cfg.DeviceID = rest[0]

	return nil
}

// ScanHandler handles flags for the scan subcommand.
type ScanHandler struct{}

// Parse processes the command-line arguments for the scan subcommand.
func (ScanHandler) Parse(args []string, cfg *CmdConfig) error {
	fs := newFlagSet("scan")
	prefix := fs.String("prefix", "", "first three octets of the /24 to scan")
	port := fs.Int("port", 0, "port to probe")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parsing scan flags: %w", err)
	}

	cfg.Prefix = *prefix
	cfg.Port = *port

	return nil
}

// ConnectHandler handles flags for the connect subcommand.
type ConnectHandler struct{}

// Parse processes the command-line arguments for the connect subcommand.
func (ConnectHandler) Parse(args []string, cfg *CmdConfig) error {
	fs := newFlagSet("connect")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parsing connect flags: %w", err)
	}

	rest, err := positional(fs, 1, "connect <host[:port]>")
	if err != nil {
		return err
	}

	cfg.Address = rest[0]

	return nil
}

// ReconnectHandler handles flags for the reconnect subcommand.
type ReconnectHandler struct{}

// Parse processes the command-line arguments for the reconnect subcommand.
func (ReconnectHandler) Parse(args []string, cfg *CmdConfig) error {
	fs := newFlagSet("reconnect")
	all := fs.Bool("all", false, "reconnect every known device")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parsing reconnect flags: %w", err)
	}

	cfg.All = *all

	if cfg.All {
		return nil
	}

	rest, err := positional(fs, 1, "reconnect [-all] <id>")
	if err != nil {
		return err
	}

	cfg.DeviceID = rest[0]

	return nil
}

// LaunchHandler handles flags for the launch subcommand.
type LaunchHandler struct{}

// Parse processes the command-line arguments for the launch subcommand.
func (LaunchHandler) Parse(args []string, cfg *CmdConfig) error {
	fs := newFlagSet("launch")
	profile := fs.String("profile", "", "saved profile to launch with")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parsing launch flags: %w", err)
	}

	rest, err := positional(fs, 1, "launch [-profile name] <id>")
	if err != nil {
		return err
	}

	cfg.Profile = *profile
	cfg.DeviceID = rest[0]

	return nil
}

// LaunchAllHandler handles flags for the launch-all subcommand.
type LaunchAllHandler struct{}

// Parse processes the command-line arguments for the launch-all subcommand.
func (LaunchAllHandler) Parse(args []string, cfg *CmdConfig) error {
	fs := newFlagSet("launch-all")
	profile := fs.String("profile", "", "saved profile to launch with")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parsing launch-all flags: %w", err)
	}

	cfg.Profile = *profile

	return nil
}

// RecordHandler handles flags for the record subcommand.
type RecordHandler struct{}

// Parse processes the command-line arguments for the record subcommand.
func (RecordHandler) Parse(args []string, cfg *CmdConfig) error {
	fs := newFlagSet("record")
	out := fs.String("out", "", "recording file (defaults to the configured record path)")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parsing record flags: %w", err)
	}

	rest, err := positional(fs, 1, "record [-out file] <id>")
	if err != nil {
		return err
	}

	cfg.Path = *out
	cfg.DeviceID = rest[0]

	return nil
}

// AdbHandler handles the adb passthrough subcommand.
type AdbHandler struct{}

// Parse processes the command-line arguments for the adb subcommand.
func (AdbHandler) Parse(args []string, cfg *CmdConfig) error {
	fs := newFlagSet("adb")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parsing adb flags: %w", err)
	}

	rest, err := positional(fs, 2, "adb <id> <args...>")
	if err != nil {
		return err
	}

	cfg.DeviceID = rest[0]
	cfg.Args = rest[1:]

	return nil
}

// ConfigHandler handles the config get and config set subcommands.
type ConfigHandler struct{}

// Parse processes the command-line arguments for the config subcommand.
func (ConfigHandler) Parse(args []string, cfg *CmdConfig) error {
	fs := newFlagSet("config")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parsing config flags: %w", err)
	}

	rest, err := positional(fs, 1, "config get [key] | config set <key> <value>")
	if err != nil {
		return err
	}

	cfg.Action = rest[0]

	switch cfg.Action {
	case "get":
		if len(rest) > 1 {
			cfg.Key = rest[1]
		}
	case "set":
		if len(rest) < 3 {
			return fmt.Errorf("%w: usage: devmirror config set <key> <value>", errMissingArgs)
		}

		cfg.Key = rest[1]
		cfg.Value = rest[2]
	default:
		return fmt.Errorf("%w: config %s", errUnknownAction, cfg.Action)
	}

	return nil
}

// ProfileHandler handles the profile subcommands.
type ProfileHandler struct{}

// Parse processes the command-line arguments for the profile subcommand.
func (ProfileHandler) Parse(args []string, cfg *CmdConfig) error {
	fs := newFlagSet("profile")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parsing profile flags: %w", err)
	}

	rest, err := positional(fs, 1, "profile list | profile save <name> | profile delete <name>")
	if err != nil {
		return err
	}

	cfg.Action = rest[0]

	switch cfg.Action {
	case "list":
	case "save", "delete":
		if len(rest) < 2 {
			return fmt.Errorf("%w: usage: devmirror profile %s <name>", errMissingArgs, cfg.Action)
		}

		cfg.Name = rest[1]
	default:
		return fmt.Errorf("%w: profile %s", errUnknownAction, cfg.Action)
	}

	return nil
}

// RenameHandler handles the rename subcommand.
type RenameHandler struct{}

// Parse processes the command-line arguments for the rename subcommand.
func (RenameHandler) Parse(args []string, cfg *CmdConfig) error {
	fs := newFlagSet("rename")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parsing rename flags: %w", err)
	}

	rest, err := positional(fs, 2, "rename <id> <name>")
	if err != nil {
		return err
	}

	cfg.DeviceID = rest[0]
	cfg.Name = rest[1]

	return nil
}

// ExportHandler handles the export subcommand.
type ExportHandler struct{}

// Parse processes the command-line arguments for the export subcommand.
func (ExportHandler) Parse(args []string, cfg *CmdConfig) error {
	fs := newFlagSet("export")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parsing export flags: %w", err)
	}

	rest, err := positional(fs, 1, "export <file>")
	if err != nil {
		return err
	}

	cfg.Path = rest[0]

	return nil
}

func subcommands() map[string]SubcommandHandler {
	return map[string]SubcommandHandler{
		"devices":    NoArgsHandler{Name: "devices"},
		"scan":       ScanHandler{},
		"connect":    ConnectHandler{},
		"disconnect": DeviceHandler{Name: "disconnect"},
		"reconnect":  ReconnectHandler{},
		"launch":     LaunchHandler{},
		"launch-all": LaunchAllHandler{},
		"stop":       DeviceHandler{Name: "stop"},
		"record":     RecordHandler{},
		"adb":        AdbHandler{},
		"config":     ConfigHandler{},
		"profile":    ProfileHandler{},
		"rename":     RenameHandler{},
		"remove":     DeviceHandler{Name: "remove"},
		"export":     ExportHandler{},
		"run":        NoArgsHandler{Name: "run"},
		"version":    NoArgsHandler{Name: "version"},
		"watch":      NoArgsHandler{Name: "watch"},
	}
}

// ParseFlags parses the global flags, the subcommand and its flags.
func ParseFlags(args []string) (*CmdConfig, error) {
	fs := newFlagSet("devmirror")
	help := fs.Bool("help", false, "show help message")
	configFile := fs.String("config", config.DefaultSettingsPath, "settings file")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return &CmdConfig{Help: true}, nil
		}

		return nil, fmt.Errorf("parsing flags: %w", err)
	}

	cfg := &CmdConfig{
		Help:       *help,
		ConfigFile: *configFile,
	}

	rest := fs.Args()
	if cfg.Help {
		return cfg, nil
	}

	if len(rest) == 0 {
		return cfg, errMissingCommand
	}

	cfg.SubCmd = rest[0]

	if cfg.SubCmd == "help" {
		cfg.Help = true

		return cfg, nil
	}

	handler, ok := subcommands()[cfg.SubCmd]
	if !ok {
		return cfg, fmt.Errorf("%w: %s", errUnknownCommand, cfg.SubCmd)
	}

	if err := handler.Parse(rest[1:], cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}
