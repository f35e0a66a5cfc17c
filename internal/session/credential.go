package session

import (
	"os"
	"strings"
)

// Credential is the optional username/secret pair used only when no valid
// session exists. The secret never leaves this package except through the
// login form.
type Credential struct {
	Username string
	Secret   string
}

// IsSet reports whether both halves of the credential are present.
func (c Credential) IsSet() bool {
	return c.Username != "" && c.Secret != ""
}

// CredentialFromEnv reads the non-interactive fallback credential from
// CASEWATCH_USERNAME / CASEWATCH_PASSWORD. The scheduled-task wrapper decrypts
// the OS-protected credential into these variables before invoking the run.
func CredentialFromEnv() Credential {
	return Credential{
		Username: strings.TrimSpace(os.Getenv("CASEWATCH_USERNAME")),
		Secret:   os.Getenv("CASEWATCH_PASSWORD"),
	}
}
