package bootstrap

import (
	"fmt"
	"os"
	"strings"

	"github.com/EntitiesAI/EntitiesOps/cmd/entitiesctl/internal/envfile"
)

// Credentials is the material persisted after a successful key mint.
type Credentials struct {
	AdminUserEmail string
	AdminUserID    string
	AdminKeyPrefix string
	AdminAPIKey    string
}

// credentialKeys are written, in this order, to both destinations.
// ENTITIES_API_KEY duplicates the admin key for tooling that reads the
// generic name.
func (c Credentials) pairs() [][2]string {
	return [][2]string{
		{"ADMIN_USER_EMAIL", c.AdminUserEmail},
		{"ADMIN_USER_ID", c.AdminUserID},
		{"ADMIN_KEY_PREFIX", c.AdminKeyPrefix},
		{"ADMIN_API_KEY", c.AdminAPIKey},
		{"ENTITIES_API_KEY", c.AdminAPIKey},
	}
}

// SaveCredentials writes the creds file and updates the .env.
//
// # Description
//
// The creds file is a small KEY=VALUE file holding the plaintext admin
// key; it is written with 0600 and is the only durable copy. The same
// five keys are upserted into the .env (always quoted) so containers
// restarted later pick them up. Either destination may be skipped by
// passing an empty path.
//
// # Outputs
//
//   - error: First write failure; a creds-file failure prevents the .env
//     update so the plaintext is never persisted to .env alone
func SaveCredentials(credsPath, envPath string, creds Credentials) error {
	if credsPath != "" {
		var b strings.Builder
		b.WriteString("# Admin credentials minted by entitiesctl bootstrap-admin.\n")
		b.WriteString("# The API key below is shown nowhere else. Keep this file private.\n")
		for _, kv := range creds.pairs() {
			fmt.Fprintf(&b, "%s=%s\n", kv[0], kv[1])
		}
		if err := os.WriteFile(credsPath, []byte(b.String()), 0600); err != nil {
			return fmt.Errorf("write credentials file %s: %w", credsPath, err)
		}
	}

	if envPath != "" {
		for _, kv := range creds.pairs() {
			if err := envfile.SetKey(envPath, kv[0], kv[1]); err != nil {
				return fmt.Errorf("update %s: %w", envPath, err)
			}
		}
	}

	return nil
}

// LoadAdminKey reads an admin API key from a credentials file.
//
// # Description
//
// Fallback used by provisioning commands when neither the --api-key flag
// nor ADMIN_API_KEY is set. Accepts both the ADMIN_API_KEY and
// ENTITIES_API_KEY lines.
//
// # Outputs
//
//   - string: The key, or "" when the file or lines are absent
func LoadAdminKey(credsPath string) string {
	data, err := os.ReadFile(credsPath)
	if err != nil {
		return ""
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		for _, prefix := range []string{"ADMIN_API_KEY=", "ENTITIES_API_KEY="} {
			if strings.HasPrefix(line, prefix) {
				if key := strings.TrimSpace(strings.TrimPrefix(line, prefix)); key != "" {
					return key
				}
			}
		}
	}
	return ""
}

// MaskKey renders a key as first4...last4 for display.
func MaskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
