package core

import (
	"encoding/json"
	"errors"
	"fmt"
)

var errNotArray = errors.New("employees payload is not an array")

// EncodeEmployees serializes the ordered collection to its durable JSON form.
// An empty collection encodes as "[]".
func EncodeEmployees(list []Employee) (string, error) {
	if list == nil {
		list = []Employee{}
	}
	raw, err := json.Marshal(list)
	if err != nil {
		return "", fmt.Errorf("encode employees: %w", err)
	}
	return string(raw), nil
}

// DecodeEmployees parses a durable employees payload. Anything other than a
// JSON array of records with unique identities is rejected.
func DecodeEmployees(payload string) ([]Employee, error) {
	var list []Employee
	if err := json.Unmarshal([]byte(payload), &list); err != nil {
		return nil, fmt.Errorf("decode employees: %w", err)
	}
	if list == nil {
		return nil, fmt.Errorf("decode employees: %w", errNotArray)
	}
	seen := make(map[string]struct{}, len(list))
	for _, e := range list {
		if _, dup := seen[e.ID]; dup {
			return nil, fmt.Errorf("decode employees: duplicate id %q", e.ID)
		}
		seen[e.ID] = struct{}{}
	}
	return list, nil
}

// EncodeUser serializes a session payload.
func EncodeUser(u User) (string, error) {
	raw, err := json.Marshal(u)
	if err != nil {
		return "", fmt.Errorf("encode user: %w", err)
	}
	return string(raw), nil
}

// DecodeUser parses a persisted session. A payload without a username is rejected.
func DecodeUser(payload string) (User, error) {
	var u User
	if err := json.Unmarshal([]byte(payload), &u); err != nil {
		return User{}, fmt.Errorf("decode user: %w", err)
	}
	if u.Username == "" {
		return User{}, errors.New("decode user: missing username")
	}
	return u, nil
}
