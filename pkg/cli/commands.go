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

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"

	"github.com/carverauto/devmirror/pkg/app"
	"github.com/carverauto/devmirror/pkg/config"
	"github.com/carverauto/devmirror/pkg/models"
	"github.com/carverauto/devmirror/pkg/session"
)

// Run builds the application from cfg.ConfigFile and executes the subcommand.
func Run(ctx context.Context, cfg *CmdConfig, out io.Writer, opts ...app.Option) error {
	a, err := app.New(ctx, cfg.ConfigFile, opts...)
	if err != nil {
		return err
	}

	defer func() { _ = a.Close() }()

	return Execute(ctx, a, cfg, out)
}

// Execute runs one subcommand against an application.
func Execute(ctx context.Context, a *app.App, cfg *CmdConfig, out io.Writer) error {
	switch cfg.SubCmd {
	case "config":
		return runConfig(a, cfg, out)
	case "profile":
		return runProfile(a, cfg, out)
	case "export":
		return runExport(a, cfg, out)
	case "stop":
		return runStop(ctx, a, cfg, out)
	case "adb":
		return runAdb(ctx, a, cfg, out)
	}

	cmd, ok := controllerCommands()[cfg.SubCmd]
	if !ok {
		return fmt.Errorf("%w: %s", errUnknownCommand, cfg.SubCmd)
	}

	return a.Run(ctx, func(ctx context.Context) error {
		return cmd(ctx, a, cfg, out)
	})
}

type controllerCommand func(ctx context.Context, a *app.App, cfg *CmdConfig, out io.Writer) error

// controllerCommands need the reconcile loop running.
func controllerCommands() map[string]controllerCommand {
	return map[string]controllerCommand{
		"devices":    runDevices,
		"scan":       runScan,
		"connect":    runConnect,
		"disconnect": runDisconnect,
		"reconnect":  runReconnect,
		"launch":     runLaunch,
		"launch-all": runLaunchAll,
		"record":     runRecord,
		"rename":     runRename,
		"remove":     runRemove,
		"run":        runController,
		"watch":      runWatch,
	}
}

func runDevices(ctx context.Context, a *app.App, _ *CmdConfig, out io.Writer) error {
	if err := a.Reconciler.Reconcile(ctx); err != nil {
		return err
	}

	renderDevices(out, a.Reconciler.Devices(), a.Launcher.Sessions())

	return nil
}

func runScan(ctx context.Context, a *app.App, cfg *CmdConfig, out io.Writer) error {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = a.Settings.Scan.Prefix
	}

	port := cfg.Port
	if port <= 0 {
		port = a.Settings.Scan.Port
	}

	found, err := a.Scanner.Scan(ctx, prefix, port)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Scanning %s.1-254 on port %d\n", strings.TrimSuffix(prefix, "."), port)

	count := 0

	for d := range found {
		if err := a.Reconciler.Discover(ctx, d); err != nil {
			return err
		}

		count++

		printOK(out, "found %s", d.ID)
	}

	fmt.Fprintf(out, "%d device(s) found\n", count)

	return ctx.Err()
}

func runConnect(ctx context.Context, a *app.App, cfg *CmdConfig, out io.Writer) error {
	host, port, err := splitAddress(cfg.Address, a.Settings.Port)
	if err != nil {
		return err
	}

	id, err := a.Reconciler.ConnectAddress(ctx, host, port)
	if err != nil {
		return err
	}

	printOK(out, "connected %s", id)

	return nil
}

// splitAddress accepts host or host:port.
func splitAddress(addr string, defaultPort int) (string, int, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return "", 0, fmt.Errorf("%w: empty", errBadAddress)
	}

	if !strings.Contains(addr, ":") {
		return addr, defaultPort, nil
	}

	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %w", errBadAddress, err)
	}

	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return "", 0, fmt.Errorf("%w: port %q", errBadAddress, portStr)
	}

	return host, port, nil
}

func runDisconnect(ctx context.Context, a *app.App, cfg *CmdConfig, out io.Writer) error {
	if err := a.Reconciler.Disconnect(ctx, cfg.DeviceID); err != nil {
		return err
	}

	printOK(out, "disconnected %s", cfg.DeviceID)

	return nil
}

func runReconnect(ctx context.Context, a *app.App, cfg *CmdConfig, out io.Writer) error {
	if cfg.All {
		printResults(out, "reconnected", a.Reconciler.ReconnectAll(ctx))
		return nil
	}

	if err := a.Reconciler.Reconnect(ctx, cfg.DeviceID); err != nil {
		return err
	}

	printOK(out, "reconnected %s", cfg.DeviceID)

	return nil
}

// sessionOptions returns the configured mirror options or a named profile.
func sessionOptions(a *app.App, profile string) (models.SessionOptions, error) {
	if profile == "" {
		return a.Settings.MirrorOptions(), nil
	}

	opts, ok := a.Store.Profile(profile)
	if !ok {
		return models.SessionOptions{}, fmt.Errorf("%w: %s", config.ErrProfileNotFound, profile)
	}

	return opts, nil
}

func runLaunch(ctx context.Context, a *app.App, cfg *CmdConfig, out io.Writer) error {
	opts, err := sessionOptions(a, cfg.Profile)
	if err != nil {
		return err
	}

	s, err := a.Launcher.Launch(ctx, cfg.DeviceID, opts)
	if err != nil {
		return err
	}

	printOK(out, "mirroring %s (pid %d), press Ctrl+C to stop", cfg.DeviceID, s.PID())

	return waitSessions(ctx, s)
}

func runRecord(ctx context.Context, a *app.App, cfg *CmdConfig, out io.Writer) error {
	s, err := a.Launcher.Record(ctx, cfg.DeviceID, cfg.Path)
	if err != nil {
		return err
	}

	printOK(out, "recording %s to %s, press Ctrl+C to stop", cfg.DeviceID, s.Options.RecordPath)

	return waitSessions(ctx, s)
}

func runLaunchAll(ctx context.Context, a *app.App, cfg *CmdConfig, out io.Writer) error {
	opts, err := sessionOptions(a, cfg.Profile)
	if err != nil {
		return err
	}

	if err := a.Reconciler.Reconcile(ctx); err != nil {
		return err
	}

	results := a.Launcher.LaunchAll(ctx, opts)
	printResults(out, "launched", results)

	var running []*session.Session

	for _, info := range a.Launcher.Sessions() {
		if s, ok := a.Launcher.Handle(info.DeviceID); ok {
			running = append(running, s)
		}
	}

	if len(running) == 0 {
		return nil
	}

	fmt.Fprintln(out, "Press Ctrl+C to stop all sessions")

	return waitSessions(ctx, running...)
}

// waitSessions blocks until every session has ended or ctx is cancelled.
// Cancellation is a normal way to end and is not reported as an error.
func waitSessions(ctx context.Context, sessions ...*session.Session) error {
	for _, s := range sessions {
		select {
		case <-s.Done():
		case <-ctx.Done():
			return nil
		}
	}

	return nil
}

func runStop(ctx context.Context, a *app.App, cfg *CmdConfig, out io.Writer) error {
	if err := a.Launcher.Stop(ctx, cfg.DeviceID); err != nil {
		return err
	}

	printOK(out, "stopped %s", cfg.DeviceID)

	return nil
}

func runAdb(ctx context.Context, a *app.App, cfg *CmdConfig, out io.Writer) error {
	output, err := a.Bridge.Exec(ctx, cfg.DeviceID, cfg.Args...)
	if output != "" {
		fmt.Fprintln(out, output)
	}

	return err
}

func runRename(ctx context.Context, a *app.App, cfg *CmdConfig, out io.Writer) error {
	if err := a.Reconciler.Rename(ctx, cfg.DeviceID, cfg.Name); err != nil {
		return err
	}

	printOK(out, "renamed %s to %s", cfg.DeviceID, cfg.Name)

	return nil
}

func runRemove(ctx context.Context, a *app.App, cfg *CmdConfig, out io.Writer) error {
	if err := a.Reconciler.Remove(ctx, cfg.DeviceID); err != nil {
		return err
	}

	printOK(out, "removed %s", cfg.DeviceID)

	return nil
}

func runExport(a *app.App, cfg *CmdConfig, out io.Writer) error {
	if err := a.Registry.Export(cfg.Path); err != nil {
		return err
	}

	printOK(out, "exported %d device(s) to %s", a.Registry.Len(), cfg.Path)

	return nil
}

func runController(ctx context.Context, a *app.App, _ *CmdConfig, out io.Writer) error {
	fmt.Fprintln(out, "Keeping devices connected, press Ctrl+C to stop")

	<-ctx.Done()

	return nil
}

func runConfig(a *app.App, cfg *CmdConfig, out io.Writer) error {
	switch cfg.Action {
	case "get":
		var (
			v   interface{}
			err error
		)

		if cfg.Key == "" {
			v = a.Store.Get()
		} else if v, err = a.Store.Lookup(cfg.Key); err != nil {
			return err
		}

		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}

		fmt.Fprintln(out, string(data))

		return nil
	case "set":
		if err := a.Store.Set(cfg.Key, cfg.Value); err != nil {
			return err
		}

		printOK(out, "%s = %s", cfg.Key, cfg.Value)

		return nil
	}

	return fmt.Errorf("%w: config %s", errUnknownAction, cfg.Action)
}

func runProfile(a *app.App, cfg *CmdConfig, out io.Writer) error {
	switch cfg.Action {
	case "list":
		names := a.Store.ProfileNames()
		if len(names) == 0 {
			fmt.Fprintln(out, newStyles().help.Render("No profiles saved"))
			return nil
		}

		for _, name := range names {
			fmt.Fprintln(out, name)
		}

		return nil
	case "save":
		if err := a.Store.SaveProfile(cfg.Name, a.Store.Get().MirrorOptions()); err != nil {
			return err
		}

		printOK(out, "saved profile %s", cfg.Name)

		return nil
	case "delete":
		if err := a.Store.DeleteProfile(cfg.Name); err != nil {
			return err
		}

		printOK(out, "deleted profile %s", cfg.Name)

		return nil
	}

	return fmt.Errorf("%w: profile %s", errUnknownAction, cfg.Action)
}
