// Copyright (C) 2025 Entities AI (ops@entitiesai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/EntitiesAI/EntitiesOps/cmd/entitiesctl/internal/bootstrap"
	"github.com/EntitiesAI/EntitiesOps/cmd/entitiesctl/internal/config"
	"github.com/EntitiesAI/EntitiesOps/cmd/entitiesctl/internal/envgen"
)

func runBootstrapAdmin(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	rawURL, source, err := bootstrap.ResolveDBURL(flagDBURL, cfg.DatabaseURL, cfg.SpecialDBURL)
	if errors.Is(err, bootstrap.ErrNoDatabaseURL) {
		return fmt.Errorf("%w: pass --db-url or set DATABASE_URL / SPECIAL_DB_URL (run 'entitiesctl start' first to synthesize the .env)", err)
	}
	if err != nil {
		return err
	}

	fmt.Printf("Connecting to %s (from %s)...\n", bootstrap.Redacted(rawURL), source)
	store, err := bootstrap.Connect(rootCtx, rawURL)
	if err != nil {
		return fmt.Errorf("database %s: %w", bootstrap.Redacted(rawURL), err)
	}
	defer store.Close()

	b := bootstrap.New(store, envgen.NewCryptoTokenSource(), &bootstrap.UUIDGenerator{}, appLogger)
	outcome, err := b.Run(rootCtx, bootstrap.Options{
		Email:     resolveAdminEmail(flagAdminEmail, cfg.AdminEmail),
		FullName:  flagAdminName,
		KeyName:   flagKeyName,
		CredsPath: flagCredsFile,
		EnvPath:   flagEnvFile,
	})
	if err != nil {
		return err
	}

	summary := joinNonEmpty(", ",
		noteIf(outcome.UserCreated, "user created"),
		noteIf(outcome.UserPromoted, "user promoted to admin"),
		noteIf(!outcome.UserCreated && !outcome.UserPromoted, "admin user already present"),
		noteIf(outcome.KeyCreated, "api key minted"),
		noteIf(!outcome.KeyCreated, "active api key already present"),
	)

	fmt.Println("\nBootstrap complete:", summary)
	fmt.Printf("    Admin user:  %s (%s)\n", outcome.User.Email, outcome.User.ID)
	fmt.Printf("    Key prefix:  %s\n", outcome.KeyPrefix)

	if outcome.KeyCreated {
		fmt.Println("\n==================================================================")
		fmt.Println(" ADMIN API KEY (shown once, never stored in plaintext again):")
		fmt.Printf("    %s\n", outcome.KeyPlaintext)
		fmt.Println("==================================================================")
		fmt.Printf("Also written to %s and %s.\n", flagCredsFile, flagEnvFile)
	} else {
		fmt.Println("\nThe existing key's plaintext cannot be recovered. To rotate it,")
		fmt.Println("deactivate the key in the api_keys table and re-run this command.")
	}

	return nil
}

// defaultAdminEmail is used when neither the flag nor ADMIN_EMAIL is set.
const defaultAdminEmail = "admin@entities.local"

// resolveAdminEmail picks the admin email: flag, then ADMIN_EMAIL from
// the environment, then the default.
func resolveAdminEmail(flagVal, envVal string) string {
	if flagVal != "" {
		return flagVal
	}
	if envVal != "" {
		return envVal
	}
	return defaultAdminEmail
}

// noteIf returns the note when cond holds, "" otherwise.
func noteIf(cond bool, note string) string {
	if cond {
		return note
	}
	return ""
}
