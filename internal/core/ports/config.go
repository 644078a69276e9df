package ports

import "context"

// ConfigReader is the bootstrap dependency for the database-table
// configuration loading mode of spec §4.7: the store handle itself is an
// input to config loading, so this interface is deliberately narrower than
// the full Store to keep that bootstrap order explicit.
type ConfigReader interface {
	// LoadConfigTable returns every key/value pair configured for tenantID,
	// keyed by the same dotted path Load's file-plus-environment mode uses
	// (e.g. "x402.rpc_url").
	LoadConfigTable(ctx context.Context, tenantID string) (map[string]string, error)
}
