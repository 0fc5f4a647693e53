package sqlite

import (
	"strings"

	"csvsniff/internal/storage"
)

// DefaultPath is the catalog file used when DSN_SQLITE is unset.
const DefaultPath = "csvsniff.db"

// BuildDSN always yields a DSN. DSN_SQLITE containing ':' is taken as a
// full DSN, anything else as a file path. DSN_PARAMS is appended verbatim.
func BuildDSN(env storage.DSNEnv) (string, bool, error) {
	base := env.SQLite
	if base == "" {
		base = DefaultPath
	}
	if !strings.Contains(base, ":") {
		base = "file:" + base
	}
	if env.Params == "" {
		return base, true, nil
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + env.Params, true, nil
}
