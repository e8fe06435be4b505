// Package social unifies the Google, Facebook, Twitter and Apple logins behind
// one callback-based facade.
package social

import (
	"fmt"
	"strings"

	apperrors "github.com/carlossalguero/socialauth/services/shared/errors"
)

// ProviderKind identifies a login provider.
type ProviderKind string

const (
	Google   ProviderKind = "GOOGLE"
	Facebook ProviderKind = "FACEBOOK"
	Twitter  ProviderKind = "TWITTER"
	Apple    ProviderKind = "APPLE"
)

// AllProviders returns every provider kind in a stable order.
func AllProviders() []ProviderKind {
	return []ProviderKind{Google, Facebook, Twitter, Apple}
}

// ParseProviderKind parses a provider name in any letter case.
func ParseProviderKind(s string) (ProviderKind, error) {
	kind := ProviderKind(strings.ToUpper(strings.TrimSpace(s)))
	if !kind.Valid() {
		return "", apperrors.InvalidInput(fmt.Sprintf("unknown provider %q", s))
	}
	return kind, nil
}

// Valid reports whether k is one of the known providers.
func (k ProviderKind) Valid() bool {
	switch k {
	case Google, Facebook, Twitter, Apple:
		return true
	}
	return false
}

func (k ProviderKind) String() string {
	return string(k)
}

// User is the provider-agnostic authenticated user. Name and Email are empty
// when the provider does not supply them.
type User struct {
	ID       string       `json:"id"`
	Provider ProviderKind `json:"type"`
	Name     string       `json:"name"`
	Email    string       `json:"email"`
}
