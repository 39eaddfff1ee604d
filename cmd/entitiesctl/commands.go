// Copyright (C) 2025 Entities AI (ops@entitiesai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/EntitiesAI/EntitiesOps/pkg/logging"
)

// --- Global Command Variables ---
var (
	// start flags
	flagDown          bool
	flagClearVolumes  bool
	flagNuke          bool
	flagAttached      bool
	flagForceRecreate bool
	flagServices      []string
	flagWithOllama    bool
	flagOllamaGPU     bool
	flagComposeFile   string
	flagEnvFile       string
	flagNoEnvFile     bool

	// bootstrap-admin flags
	flagDBURL      string
	flagAdminEmail string
	flagAdminName  string
	flagCredsFile  string

	// provisioning flags
	flagAPIKey   string
	flagBaseURL  string
	flagEmail    string
	flagFullName string
	flagUserID   string
	flagKeyName  string

	// global flags
	verbose bool

	rootCmd = &cobra.Command{
		Use:   "entitiesctl",
		Short: "A cli to prepare, launch, and bootstrap the local Entities API stack",
		Long: `entitiesctl manages the local Entities API development stack:
				it synthesizes the .env from the compose file, drives docker compose,
				bootstraps the first admin directly in the database, and provisions
				users, the default assistant, and its tool set over the API.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := logging.LevelInfo
			if verbose {
				level = logging.LevelDebug
			}
			appLogger = logging.New(logging.Config{
				Level:   level,
				Service: "entitiesctl",
			})
		},
	}

	// --- Stack Management ---
	startCmd = &cobra.Command{
		Use:   "start",
		Short: "Prepare the environment and start the local Entities stack",
		RunE:  runStart, // Defined in cmd_stack.go
	}

	downCmd = &cobra.Command{
		Use:   "down",
		Short: "Stop the local Entities stack",
		RunE:  runDown, // Defined in cmd_stack.go
	}

	// --- Admin Bootstrap ---
	bootstrapAdminCmd = &cobra.Command{
		Use:   "bootstrap-admin",
		Short: "Create the first admin user and API key directly in the database",
		RunE:  runBootstrapAdmin, // Defined in cmd_bootstrap.go
	}

	// --- Provisioning ---
	createUserCmd = &cobra.Command{
		Use:   "create-user",
		Short: "Create a regular user and mint their first API key",
		RunE:  runCreateUser, // Defined in cmd_provision.go
	}

	setupAssistantCmd = &cobra.Command{
		Use:   "setup-assistant",
		Short: "Ensure the default assistant exists and attach the standard tools",
		RunE:  runSetupAssistant, // Defined in cmd_provision.go
	}
)

// init runs when the Go program starts
func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(startCmd)
	startCmd.Flags().BoolVar(&flagDown, "down", false, "Stop the stack instead of (or before) starting it")
	startCmd.Flags().BoolVar(&flagClearVolumes, "clear-volumes", false, "Also remove named volumes when stopping (implies --down, asks for confirmation)")
	startCmd.Flags().BoolVar(&flagNuke, "nuke", false, "DANGER: full teardown plus docker system prune. Requires typing 'confirm nuke'")
	startCmd.Flags().BoolVar(&flagAttached, "attached", false, "Run the stack in the foreground, streaming output")
	startCmd.Flags().BoolVar(&flagForceRecreate, "force-recreate", false, "Pass --force-recreate to docker compose up")
	startCmd.Flags().StringSliceVar(&flagServices, "services", nil, "Limit the operation to these services")
	startCmd.Flags().BoolVar(&flagWithOllama, "with-ollama", false, "Also start the Ollama sidecar container")
	startCmd.Flags().BoolVar(&flagOllamaGPU, "ollama-gpu", false, "With --with-ollama, start it with GPU passthrough (needs nvidia-smi)")
	startCmd.Flags().StringVar(&flagComposeFile, "compose-file", "docker-compose.yaml", "Compose file to use")
	startCmd.Flags().StringVar(&flagEnvFile, "env-file", ".env", "Env file to synthesize")
	startCmd.Flags().BoolVar(&flagNoEnvFile, "no-env-file", false, "Skip .env synthesis")

	rootCmd.AddCommand(downCmd)
	downCmd.Flags().BoolVar(&flagClearVolumes, "clear-volumes", false, "Also remove named volumes (asks for confirmation)")
	downCmd.Flags().StringVar(&flagComposeFile, "compose-file", "docker-compose.yaml", "Compose file to use")

	rootCmd.AddCommand(bootstrapAdminCmd)
	bootstrapAdminCmd.Flags().StringVar(&flagDBURL, "db-url", "", "Database URL (overrides DATABASE_URL and SPECIAL_DB_URL)")
	bootstrapAdminCmd.Flags().StringVar(&flagAdminEmail, "email", "", "Admin account email (falls back to ADMIN_EMAIL, then admin@entities.local)")
	bootstrapAdminCmd.Flags().StringVar(&flagAdminName, "name", "", "Admin account full name (default Admin User)")
	bootstrapAdminCmd.Flags().StringVar(&flagKeyName, "key-name", "", "Name for the minted admin key (default Admin Bootstrap Key)")
	bootstrapAdminCmd.Flags().StringVar(&flagCredsFile, "creds-file", "admin_credentials.txt", "Where to write the minted credentials")
	bootstrapAdminCmd.Flags().StringVar(&flagEnvFile, "env-file", ".env", "Env file to update with the credentials")

	rootCmd.AddCommand(createUserCmd)
	createUserCmd.Flags().StringVar(&flagAPIKey, "api-key", "", "Admin API key (falls back to ADMIN_API_KEY, then the creds file)")
	createUserCmd.Flags().StringVar(&flagBaseURL, "base-url", "", "Entities API base URL (default http://localhost:9000)")
	createUserCmd.Flags().StringVar(&flagEmail, "email", "", "Email for the new user (default test_user_<timestamp>@example.com)")
	createUserCmd.Flags().StringVar(&flagFullName, "name", "", "Full name for the new user")
	createUserCmd.Flags().StringVar(&flagKeyName, "key-name", "", "Name for the user's first key (default Default Initial Key)")
	createUserCmd.Flags().StringVar(&flagUserID, "admin-user-id", "", "Admin user ID used to validate credentials first")
	createUserCmd.Flags().StringVar(&flagCredsFile, "creds-file", "admin_credentials.txt", "Credentials file to read the admin key from")

	rootCmd.AddCommand(setupAssistantCmd)
	setupAssistantCmd.Flags().StringVar(&flagAPIKey, "api-key", "", "Admin API key (falls back to ADMIN_API_KEY, then the creds file)")
	setupAssistantCmd.Flags().StringVar(&flagBaseURL, "base-url", "", "Entities API base URL (default http://localhost:9000)")
	setupAssistantCmd.Flags().StringVar(&flagUserID, "user-id", "", "User ID the assistant is provisioned for (required)")
	setupAssistantCmd.MarkFlagRequired("user-id")
}

// joinNonEmpty joins parts with sep, skipping empties. Small helper for
// human-readable summaries.
func joinNonEmpty(sep string, parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}
