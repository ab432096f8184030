// Package config defines the per-store configuration record: the
// persistent settings a store needs to open its block-store transport and
// identify itself among a process's other stores.
package config

// StoreConfig is one store's configuration, as the process registry (see
// the registry package) persists and looks up by name.
type StoreConfig struct {
	Name                string  `json:"name"`
	StoreURL            string  `json:"store_url"`
	ClientID            string  `json:"client_id"`
	AutolockTimeoutSecs int64   `json:"autolock_timeout_secs"`
	DefaultIdentityID   *string `json:"default_identity_id,omitempty"`
}
