// Copyright (C) 2025 Entities AI (ops@entitiesai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/EntitiesAI/EntitiesOps/cmd/entitiesctl/internal/bootstrap"
	"github.com/EntitiesAI/EntitiesOps/cmd/entitiesctl/internal/config"
	"github.com/EntitiesAI/EntitiesOps/cmd/entitiesctl/internal/provision"
)

// newProvisionService resolves credentials and builds the API client.
//
// Key priority: --api-key flag, then ADMIN_API_KEY from the environment,
// then the credentials file written by bootstrap-admin.
func newProvisionService() (*provision.Service, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	key := flagAPIKey
	keySource := "--api-key flag"
	if key == "" {
		key = cfg.AdminAPIKey
		keySource = "ADMIN_API_KEY"
	}
	if key == "" {
		key = bootstrap.LoadAdminKey(flagCredsFile)
		keySource = flagCredsFile
	}
	if key == "" {
		return nil, fmt.Errorf("no admin API key found: pass --api-key, set ADMIN_API_KEY, or run 'entitiesctl bootstrap-admin' first")
	}

	baseURL := flagBaseURL
	if baseURL == "" {
		baseURL = cfg.AssistantsBaseURL
	}

	fmt.Printf("Using admin key %s (from %s) against %s\n",
		bootstrap.MaskKey(key), keySource, baseURL)

	client, err := provision.NewClient(baseURL, key)
	if err != nil {
		return nil, err
	}
	return provision.NewService(client, appLogger), nil
}

func runCreateUser(cmd *cobra.Command, args []string) error {
	svc, err := newProvisionService()
	if err != nil {
		return err
	}

	result, err := svc.ProvisionUser(rootCtx, provision.UserOptions{
		Email:       flagEmail,
		FullName:    flagFullName,
		KeyName:     flagKeyName,
		AdminUserID: flagUserID,
	})
	if err != nil {
		return err
	}

	fmt.Println("\nUser created:")
	fmt.Printf("    ID:     %s\n", result.User.ID)
	fmt.Printf("    Email:  %s\n", result.User.Email)
	fmt.Printf("    Name:   %s\n", result.User.FullName)
	fmt.Println("\n==================================================================")
	fmt.Printf(" API KEY for %s (shown once):\n", result.User.Email)
	fmt.Printf("    %s\n", result.Key.PlainKey)
	fmt.Println("==================================================================")
	fmt.Printf("Key name: %s, prefix: %s\n", result.Key.KeyName, result.Key.Prefix)

	return nil
}

func runSetupAssistant(cmd *cobra.Command, args []string) error {
	svc, err := newProvisionService()
	if err != nil {
		return err
	}

	fmt.Printf("Ensuring the default assistant exists for user %s...\n", flagUserID)
	assistant, err := svc.EnsureAssistant(rootCtx)
	if err != nil {
		return err
	}
	if assistant.Created {
		fmt.Printf("Created assistant %q (%s).\n", assistant.Assistant.Name, assistant.Assistant.ID)
	} else {
		fmt.Printf("Assistant %q already exists.\n", assistant.Assistant.ID)
	}

	fmt.Println("Attaching the standard tool set...")
	tools := svc.ProvisionTools(rootCtx, assistant.Assistant.ID)

	fmt.Printf("\nTools: %d created, %d associated", tools.Created, tools.Associated)
	if len(tools.Failed) > 0 {
		fmt.Printf(", %d failed (%s)", len(tools.Failed), strings.Join(tools.Failed, ", "))
	}
	fmt.Println()

	// The assistant being present is the contract; tool gaps are repairable
	// by re-running, so they do not fail the command.
	if len(tools.Failed) > 0 {
		fmt.Println("Re-run this command to retry the failed tools.")
	}
	fmt.Println("Setup complete.")
	return nil
}
