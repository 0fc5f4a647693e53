package storage

import (
	"fmt"
	"net/url"
	"strings"
	"sync"
)

// DSNEnv holds the DSN_* component variables a backend can assemble a DSN
// from when no full DSN is given.
type DSNEnv struct {
	Host     string // DSN_HOST
	Port     string // DSN_PORT
	User     string // DSN_USER
	Password string // DSN_PASSWORD, not trimmed
	DB       string // DSN_DB
	Params   string // DSN_PARAMS, "k=v&k2=v2" without a leading '?'
	SSLMode  string // DSN_SSLMODE (postgres)
	Encrypt  string // DSN_ENCRYPT (mssql)
	SQLite   string // DSN_SQLITE, a path or a full sqlite DSN
}

// ReadDSNEnv collects DSNEnv through getenv.
func ReadDSNEnv(getenv func(string) string) DSNEnv {
	get := func(k string) string { return strings.TrimSpace(getenv(k)) }
	return DSNEnv{
		Host:     get("DSN_HOST"),
		Port:     get("DSN_PORT"),
		User:     get("DSN_USER"),
		Password: getenv("DSN_PASSWORD"),
		DB:       get("DSN_DB"),
		Params:   get("DSN_PARAMS"),
		SSLMode:  get("DSN_SSLMODE"),
		Encrypt:  get("DSN_ENCRYPT"),
		SQLite:   get("DSN_SQLITE"),
	}
}

// HasServerParts reports whether any network-server component is set.
func (e DSNEnv) HasServerParts() bool {
	return e.Host != "" || e.Port != "" || e.User != "" || e.Password != "" ||
		e.DB != "" || e.Params != "" || e.SSLMode != "" || e.Encrypt != ""
}

// MergeParams adds the DSN_PARAMS query string to q.
func (e DSNEnv) MergeParams(q url.Values) error {
	if e.Params == "" {
		return nil
	}
	parsed, err := url.ParseQuery(e.Params)
	if err != nil {
		return fmt.Errorf("storage: DSN_PARAMS: %w", err)
	}
	for k, vals := range parsed {
		if strings.TrimSpace(k) == "" {
			continue
		}
		for _, v := range vals {
			q.Add(k, v)
		}
	}
	return nil
}

// DSNBuilder assembles a DSN from component variables. ok is false when env
// carries nothing the backend can use.
type DSNBuilder func(env DSNEnv) (dsn string, ok bool, err error)

var (
	dsnMu       sync.RWMutex
	dsnBuilders = map[string]DSNBuilder{}
)

// RegisterDSN makes b the component builder for kind. Like Register it is
// meant for init functions and panics on misuse.
func RegisterDSN(kind string, b DSNBuilder) {
	dsnMu.Lock()
	defer dsnMu.Unlock()

	if kind == "" || b == nil {
		panic("storage: RegisterDSN called with empty kind or nil builder")
	}
	if _, exists := dsnBuilders[kind]; exists {
		panic(fmt.Sprintf("storage: DSN builder already registered for kind=%q", kind))
	}
	dsnBuilders[kind] = b
}

// ResolveDSN picks the catalog DSN for kind. Precedence:
//
//  1. explicit (flag, config file or SNIFF_CATALOG_DSN)
//  2. DSN
//  3. the backend's builder over DSN_* components
//
// ok is false when nothing applies.
func ResolveDSN(kind, explicit string, getenv func(string) string) (dsn string, ok bool, err error) {
	if v := strings.TrimSpace(explicit); v != "" {
		return v, true, nil
	}
	if v := strings.TrimSpace(getenv("DSN")); v != "" {
		return v, true, nil
	}

	dsnMu.RLock()
	b := dsnBuilders[kind]
	dsnMu.RUnlock()
	if b == nil {
		return "", false, nil
	}
	return b(ReadDSNEnv(getenv))
}
