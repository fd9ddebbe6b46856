/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package session keeps the signed-in user's session blob and turns it into
// an explicit bearer credential for network calls.
//
// The blob is a JSON object stored under a fixed key in the OS keychain; its
// "token" field is the bearer token. Callers resolve a Credential once per
// operation and pass it on explicitly.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	// KeyringService is the keychain service the blob is filed under.
	KeyringService = "MattyDesign"
	// StorageKey is the fixed key of the session blob.
	StorageKey = "chat-user"
)

// ErrUnauthenticated reports a missing or unusable session credential.
var ErrUnauthenticated = errors.New("not authorized")

// Credential is a bearer token resolved for one operation.
type Credential struct {
	Token string
}

// Valid reports whether the credential carries a token.
func (c Credential) Valid() bool { return strings.TrimSpace(c.Token) != "" }

// Header returns the Authorization header value.
func (c Credential) Header() string { return "Bearer " + c.Token }

// KeyValue abstracts the keychain so it can be stubbed in tests.
type KeyValue interface {
	Get(service, key string) (string, error)
	Set(service, key, value string) error
	Delete(service, key string) error
}

type osKeyring struct{}

func (osKeyring) Get(service, key string) (string, error) { return keyring.Get(service, key) }
func (osKeyring) Set(service, key, value string) error    { return keyring.Set(service, key, value) }
func (osKeyring) Delete(service, key string) error        { return keyring.Delete(service, key) }

// User is the persisted session blob. Unknown fields written by other
// clients are kept in Extra and written back untouched.
type User struct {
	Token    string         `json:"token"`
	Username string         `json:"username,omitempty"`
	Extra    map[string]any `json:"-"`
}

// Store reads and writes the session blob.
type Store struct {
	kv KeyValue
}

// NewStore returns a Store backed by the OS keychain.
func NewStore() *Store { return &Store{kv: osKeyring{}} }

// NewStoreWith returns a Store backed by kv.
func NewStoreWith(kv KeyValue) *Store { return &Store{kv: kv} }

// Credential resolves the bearer credential from the stored blob. A missing
// entry, an unparsable blob or an empty token yield ErrUnauthenticated.
func (s *Store) Credential() (Credential, error) {
	u, err := s.User()
	if err != nil {
		return Credential{}, err
	}
	c := Credential{Token: strings.TrimSpace(u.Token)}
	if !c.Valid() {
		return Credential{}, ErrUnauthenticated
	}
	return c, nil
}

// User returns the decoded session blob.
func (s *Store) User() (User, error) {
	raw, err := s.kv.Get(KeyringService, StorageKey)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return User{}, ErrUnauthenticated
		}
		return User{}, fmt.Errorf("%w: read session: %v", ErrUnauthenticated, err)
	}
	return decodeUser(raw)
}

// SignIn stores a blob carrying token, preserving other fields of an existing blob.
func (s *Store) SignIn(token, username string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("token is required")
	}
	u, err := s.User()
	if err != nil {
		u = User{}
	}
	u.Token = token
	if username != "" {
		u.Username = username
	}
	raw, err := encodeUser(u)
	if err != nil {
		return err
	}
	if err := s.kv.Set(KeyringService, StorageKey, raw); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

// SignOut removes the blob. Signing out twice is not an error.
func (s *Store) SignOut() error {
	if err := s.kv.Delete(KeyringService, StorageKey); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}

func decodeUser(raw string) (User, error) {
	var fields map[string]any
	if err := json.Unmarshal([]byte(raw), &fields); err != nil || fields == nil {
		return User{}, ErrUnauthenticated
	}
	var u User
	if tok, ok := fields["token"].(string); ok {
		u.Token = tok
	}
	if name, ok := fields["username"].(string); ok {
		u.Username = name
	}
	delete(fields, "token")
	delete(fields, "username")
	if len(fields) > 0 {
		u.Extra = fields
	}
	return u, nil
}

func encodeUser(u User) (string, error) {
	fields := make(map[string]any, len(u.Extra)+2)
	for k, v := range u.Extra {
		fields[k] = v
	}
	fields["token"] = u.Token
	if u.Username != "" {
		fields["username"] = u.Username
	}
	b, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("encode session: %w", err)
	}
	return string(b), nil
}
