// Package secretstore implements the versioned secret store facade (C7):
// sealing and unsealing SecretVersion payloads as blocks, and projecting
// them through the index engine for search.
package secretstore

import "github.com/occlock/vault/index"

// Property is one named field of a secret version. Masked properties (the
// password field, typically) are never written to logs or included in the
// fuzzy-match haystack.
type Property struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Masked bool   `json:"masked"`
}

// SecretVersion is the plaintext payload sealed as a block's content.
type SecretVersion struct {
	SecretID   string     `json:"secret_id"`
	Timestamp  int64      `json:"timestamp"`
	Name       string     `json:"name"`
	Type       string     `json:"type"`
	Tags       []string   `json:"tags"`
	Urls       []string   `json:"urls"`
	Deleted    bool       `json:"deleted"`
	Properties []Property `json:"properties"`
}

// Filter selects which index entries list returns.
type Filter struct {
	URL     string
	Tag     string
	Type    string
	Name    *string
	Deleted bool
}

// ListEntry is one entry in a list() response: the projection plus its
// fuzzy-match score and the offsets of matched characters in entry.Name.
type ListEntry struct {
	Entry      index.SecretEntry
	NameScore  int
	Highlights []int
}

// ListResult is the full response to list().
type ListResult struct {
	AllTags []string
	Entries []ListEntry
}

// Secret is the response to get(): the current version plus its history.
type Secret struct {
	ID                string
	Type              string
	Current           SecretVersion
	CurrentBlockID    string
	Versions          []index.VersionRef
	PasswordStrengths map[string]int
}
