package env

import (
	"os"
	"sort"
	"strings"
	"sync"
)

type Var map[string]string

// Env is a name lookup over a cached snapshot of the process environment
// plus shell-level overrides. Overrides win over the snapshot.
type Env struct {
	mu   sync.RWMutex
	Var  Var // overrides (K->V)
	base Var // cached base from OS environment
}

func New() *Env {
	return &Env{
		Var: make(Var),
	}
}

// FromOS returns an Env whose base is the current process environment.
func FromOS() *Env {
	e := New()
	e.Refresh()
	return e
}

// FromList returns an Env built from "K=V" pairs only, ignoring the OS.
func FromList(kvs []string) *Env {
	e := New()
	e.base = parse(kvs)
	return e
}

// Refresh re-reads the process environment into the cached base.
func (e *Env) Refresh() {
	base := parse(os.Environ())
	e.mu.Lock()
	e.base = base
	e.mu.Unlock()
}

func parse(kvs []string) Var {
	out := make(Var, len(kvs))
	for _, kv := range kvs {
		if i := strings.IndexByte(kv, '='); i > 0 {
			out[kv[:i]] = kv[i+1:]
		}
	}
	return out
}

// Set sets an override K=V.
func (e *Env) Set(k, v string) {
	if k == "" {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Var == nil {
		e.Var = make(Var)
	}
	e.Var[k] = v
}

// Unset removes an override. The base value, if any, becomes visible again.
func (e *Env) Unset(k string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.Var, k)
}

// Lookup reports the value bound to name. A name bound to the empty string
// is reported as present.
func (e *Env) Lookup(name string) (string, bool) {
	if name == "" {
		return "", false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if v, ok := e.Var[name]; ok {
		return v, true
	}
	if e.base == nil {
		return os.LookupEnv(name)
	}
	v, ok := e.base[name]
	return v, ok
}

// Merge composes the child environment: base, then overrides, then perProc
// ("K=V") entries. The result is sorted by key.
func (e *Env) Merge(perProc []string) []string {
	e.mu.RLock()
	base := e.base
	if base == nil {
		base = parse(os.Environ())
	}
	m := make(Var, len(base)+len(e.Var))
	for k, v := range base {
		m[k] = v
	}
	for k, v := range e.Var {
		if k != "" {
			m[k] = v
		}
	}
	e.mu.RUnlock()
	for k, v := range parse(perProc) {
		m[k] = v
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+m[k])
	}
	return out
}
