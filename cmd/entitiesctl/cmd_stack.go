// Copyright (C) 2025 Entities AI (ops@entitiesai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/EntitiesAI/EntitiesOps/cmd/entitiesctl/internal/envfile"
	"github.com/EntitiesAI/EntitiesOps/cmd/entitiesctl/internal/envgen"
	"github.com/EntitiesAI/EntitiesOps/cmd/entitiesctl/internal/infra/compose"
	"github.com/EntitiesAI/EntitiesOps/cmd/entitiesctl/internal/infra/docker"
	"github.com/EntitiesAI/EntitiesOps/cmd/entitiesctl/internal/infra/process"
	"github.com/EntitiesAI/EntitiesOps/cmd/entitiesctl/internal/sharedpath"
)

// nukeConfirmPhrase must be typed verbatim before a nuke proceeds.
const nukeConfirmPhrase = "confirm nuke"

// stackMode is the resolved lifecycle action for a start invocation.
type stackMode int

const (
	modeUp stackMode = iota
	modeDownOnly
	modeDownThenUp
	modeNuke
)

// resolveStackMode applies the flag-implication rules.
//
// --nuke is exclusive and overrides everything else. --clear-volumes
// implies a down. A down requested without --attached or
// --force-recreate is a down only; with either of those the operator
// clearly wants the stack back up afterwards.
func resolveStackMode(down, clearVolumes, nuke, attached, forceRecreate bool) stackMode {
	if nuke {
		return modeNuke
	}
	if clearVolumes {
		down = true
	}
	if down {
		if attached || forceRecreate {
			return modeDownThenUp
		}
		return modeDownOnly
	}
	return modeUp
}

func runStart(cmd *cobra.Command, args []string) error {
	lock := process.NewProcessLock(process.DefaultProcessLockConfig())
	if err := lock.Acquire(); err != nil {
		return err
	}
	defer lock.Release()

	mode := resolveStackMode(flagDown, flagClearVolumes, flagNuke, flagAttached, flagForceRecreate)

	projectDir := filepath.Dir(flagComposeFile)
	exec, err := docker.NewDefaultExecutor(docker.Config{
		ProjectDir:  projectDir,
		ComposeFile: filepath.Base(flagComposeFile),
	}, process.NewDefaultManager(), appLogger)
	if err != nil {
		return err
	}

	if mode == modeNuke {
		return runNuke(exec)
	}

	// Shared path first: compose mounts it, so it must exist before up.
	shared, err := sharedpath.Resolve(runtime.GOOS, os.Getenv)
	if err != nil {
		return err
	}
	if err := sharedpath.Ensure(shared); err != nil {
		return err
	}
	fmt.Printf("Shared path: %s\n", shared)

	cfg := loadComposeLenient(flagComposeFile)

	vars, err := synthesizeEnv(cfg, shared)
	if err != nil {
		return err
	}

	if !flagNoEnvFile {
		wrote, err := envfile.WriteIfAbsent(flagEnvFile, vars)
		if err != nil {
			return err
		}
		if wrote {
			fmt.Printf("Wrote %s (%d variables)\n", flagEnvFile, vars.Len())
		} else {
			fmt.Printf("%s already exists, leaving it untouched\n", flagEnvFile)
		}
	}

	if mode == modeDownOnly || mode == modeDownThenUp {
		if err := doDown(exec); err != nil {
			return err
		}
		if mode == modeDownOnly {
			fmt.Println("\nEntities stack stopped.")
			return nil
		}
	}

	if flagWithOllama {
		fmt.Println("Ensuring Ollama sidecar is running...")
		res, err := exec.EnsureOllama(rootCtx, docker.OllamaOptions{UseGPU: flagOllamaGPU})
		if err != nil {
			return fmt.Errorf("ollama sidecar: %w", err)
		}
		switch {
		case res.AlreadyRunning:
			fmt.Println("    Ollama already running.")
		case res.GPU:
			fmt.Println("    Ollama started with GPU passthrough.")
		default:
			fmt.Println("    Ollama started (CPU mode).")
		}
	}

	upOpts := docker.UpOptions{
		Attached:      flagAttached,
		ForceRecreate: flagForceRecreate,
		Services:      flagServices,
		Env:           vars,
		Output:        os.Stdout,
	}

	if flagAttached {
		fmt.Println("Starting stack attached. Ctrl-C stops it.")
		result, err := exec.Up(rootCtx, upOpts)
		if err != nil && result != nil && result.ExitCode > 0 {
			// Propagate the compose exit code as our own. Returning it as
			// an error keeps the deferred lock release on the way out.
			return exitCodeError{code: result.ExitCode}
		}
		return err
	}

	if _, err := exec.Up(rootCtx, upOpts); err != nil {
		return err
	}

	fmt.Println("\nEntities stack started.")
	fmt.Printf("API base URL inside the network: %s\n", vars.Get("ASSISTANTS_BASE_URL"))
	fmt.Println("Run 'entitiesctl bootstrap-admin' next if this is a fresh database.")
	return nil
}

func runDown(cmd *cobra.Command, args []string) error {
	projectDir := filepath.Dir(flagComposeFile)
	exec, err := docker.NewDefaultExecutor(docker.Config{
		ProjectDir:  projectDir,
		ComposeFile: filepath.Base(flagComposeFile),
	}, process.NewDefaultManager(), appLogger)
	if err != nil {
		return err
	}

	if err := doDown(exec); err != nil {
		return err
	}
	fmt.Println("\nEntities stack stopped.")
	return nil
}

// doDown stops the stack, confirming first when volumes are at stake.
func doDown(exec docker.Executor) error {
	if flagClearVolumes {
		fmt.Println("WARNING: --clear-volumes permanently deletes the database and all named volumes.")
		if !confirmYes("Are you sure you want to continue? (yes/no): ") {
			fmt.Println("Aborted. No changes were made.")
			return errors.New("volume clearing not confirmed")
		}
	}

	fmt.Println("Stopping Entities services...")
	_, err := exec.Down(rootCtx, docker.DownOptions{ClearVolumes: flagClearVolumes})
	return err
}

// runNuke performs the full teardown after the verbatim confirmation.
//
// A non-interactive stdin always aborts before any docker command runs:
// scripted environments must not be able to nuke a host by accident.
func runNuke(exec docker.Executor) error {
	if !stdinIsInteractive() {
		fmt.Fprintln(os.Stderr, "Refusing to nuke: stdin is not a terminal and --nuke requires interactive confirmation.")
		return errors.New("nuke requires an interactive terminal")
	}

	fmt.Println("WARNING: --nuke stops the stack, deletes ALL volumes, and runs")
	fmt.Println("'docker system prune -a --volumes --force'. This removes every unused")
	fmt.Println("image, container, network, and volume on this machine, not just this stack's.")
	fmt.Printf("Type '%s' to proceed: ", nukeConfirmPhrase)

	reader := bufio.NewReader(os.Stdin)
	input, _ := reader.ReadString('\n')
	if strings.TrimSpace(input) != nukeConfirmPhrase {
		fmt.Println("Aborted. No changes were made.")
		return errors.New("nuke not confirmed")
	}

	fmt.Println("Nuking the local Entities stack and pruning docker...")
	results, err := exec.Nuke(rootCtx)
	for _, r := range results {
		appLogger.Debug("nuke step finished", "command", r.Command, "exit_code", r.ExitCode)
	}
	if err != nil {
		return err
	}

	fmt.Println("\nNuke complete. The docker host is clean.")
	return nil
}

// loadComposeLenient reads the compose file for env synthesis.
//
// A missing or unparseable file degrades to a warning and a nil config:
// the provider chain falls back to defaults and the actual compose up
// fails on its own terms later if the file really is required.
func loadComposeLenient(path string) *compose.File {
	cfg, err := compose.Load(path)
	if err != nil {
		fmt.Printf("WARNING: could not read %s (%v), continuing with default values\n", path, err)
		return nil
	}
	return cfg
}

// synthesizeEnv runs the standard provider chain plus the shared path.
func synthesizeEnv(cfg *compose.File, shared string) (*envgen.EnvVars, error) {
	sharedVars := envgen.EmptyEnvVars()
	sharedVars.MustAdd(sharedpath.EnvKey, shared, false)

	synth := envgen.NewSynthesizer(appLogger,
		&envgen.StaticProvider{ProviderName: "shared-path", Vars: sharedVars},
		&envgen.ComposeProvider{File: cfg},
		&envgen.DefaultsProvider{},
		&envgen.SecretsProvider{Tokens: envgen.NewCryptoTokenSource()},
		&envgen.DerivedProvider{File: cfg},
	)
	return synth.Synthesize(rootCtx)
}

// confirmYes reads a yes/no answer from stdin.
func confirmYes(prompt string) bool {
	if !stdinIsInteractive() {
		return false
	}
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(strings.ToLower(input))
	return input == "yes" || input == "y"
}

// stdinIsInteractive reports whether stdin is a terminal. A variable so
// tests can script non-interactive invocations.
var stdinIsInteractive = func() bool {
	info, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
