package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// GlobalScope is the reserved key for shared scripts loaded via LoadGlobal.
// CallHook falls back to this VM when a scope has none of its own.
const GlobalScope = "__global__"

type vm struct {
	mu     sync.Mutex
	L      *lua.LState
	budget *Budget
	closed bool
}

func (v *vm) close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.closed {
		v.closed = true
		v.L.Close()
	}
}

// Manager owns one sandboxed LState per scope and exposes hook dispatch.
// Scopes are team names; a team without scripts uses the global VM.
//
// Manager is safe for concurrent use. Calls into one VM are serialized;
// different VMs run concurrently.
type Manager struct {
	mu     sync.RWMutex
	states map[string]*vm
	logger *zap.Logger
}

// NewManager creates a Manager.
//
// Precondition: logger must be non-nil.
// Postcondition: Returns a non-nil Manager with no VMs.
func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		panic("scripting.NewManager: logger must not be nil")
	}
	return &Manager{
		states: make(map[string]*vm),
		logger: logger,
	}
}

// LoadScope creates a sandboxed VM for scope, registers the engine module,
// then executes every *.lua file in scriptDir in lexicographic order.
//
// Precondition: scope must be non-empty; scriptDir must be a readable directory.
// Postcondition: The scope VM replaces any previous one; returns error on Lua load failure.
func (m *Manager) LoadScope(scope, scriptDir string, instLimit int) error {
	if scope == "" {
		return fmt.Errorf("scripting.LoadScope: scope must not be empty")
	}
	return m.loadInto(scope, scriptDir, instLimit)
}

// LoadGlobal loads the shared scripts used by every scope without its own VM.
func (m *Manager) LoadGlobal(scriptDir string, instLimit int) error {
	return m.loadInto(GlobalScope, scriptDir, instLimit)
}

// LoadTree loads scriptDir as the global VM and each of its subdirectories as
// the scope of the same name. A scope VM replaces, rather than extends, the
// global one.
//
// Postcondition: Returns the loaded scope names, global first.
func (m *Manager) LoadTree(scriptDir string, instLimit int) ([]string, error) {
	if err := m.LoadGlobal(scriptDir, instLimit); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(scriptDir)
	if err != nil {
		return nil, fmt.Errorf("scripting: reading script dir %q: %w", scriptDir, err)
	}
	scopes := []string{GlobalScope}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if err := m.LoadScope(e.Name(), filepath.Join(scriptDir, e.Name()), instLimit); err != nil {
			return nil, err
		}
		scopes = append(scopes, e.Name())
	}
	return scopes, nil
}

func (m *Manager) loadInto(key, scriptDir string, instLimit int) error {
	L, budget := NewSandboxedState(instLimit)
	m.RegisterModules(L)

	entries, err := os.ReadDir(scriptDir)
	if err != nil {
		L.Close()
		return fmt.Errorf("scripting: reading script dir %q for %q: %w", scriptDir, key, err)
	}

	var luaFiles []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".lua" {
			luaFiles = append(luaFiles, filepath.Join(scriptDir, e.Name()))
		}
	}
	sort.Strings(luaFiles)

	for _, path := range luaFiles {
		budget.Reset()
		if err := L.DoFile(path); err != nil {
			L.Close()
			return fmt.Errorf("scripting: loading %q for %q: %w", path, key, err)
		}
	}

	m.mu.Lock()
	old := m.states[key]
	m.states[key] = &vm{L: L, budget: budget}
	m.mu.Unlock()
	if old != nil {
		old.close()
	}
	m.logger.Debug("scripts loaded", zap.String("scope", key), zap.Int("files", len(luaFiles)))
	return nil
}

// Has reports whether any VM defines hook for scope, directly or through the
// global fallback.
func (m *Manager) Has(scope, hook string) bool {
	v := m.lookup(scope)
	if v == nil {
		return false
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	return !v.closed && v.L.GetGlobal(hook) != lua.LNil
}

func (m *Manager) lookup(scope string) *vm {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if v, ok := m.states[scope]; ok {
		return v
	}
	return m.states[GlobalScope]
}

// CallHook calls the named Lua global function in scope's VM, falling back to
// the global VM. Returns LNil if the hook is not defined or no VM exists. Lua
// runtime errors, including an exhausted instruction budget, are logged at
// Warn level and never propagated.
//
// Precondition: args must be valid lua.LValue instances.
// Postcondition: Returns the first return value of the hook, or LNil.
func (m *Manager) CallHook(scope, hook string, args ...lua.LValue) lua.LValue {
	return m.Invoke(scope, hook, func(*lua.LState) []lua.LValue { return args })
}

// Invoke is CallHook with arguments built by build while the VM is locked.
// build is not called when the hook is undefined.
func (m *Manager) Invoke(scope, hook string, build func(L *lua.LState) []lua.LValue) lua.LValue {
	v := m.lookup(scope)
	if v == nil {
		return lua.LNil
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return lua.LNil
	}

	fn := v.L.GetGlobal(hook)
	if fn == lua.LNil {
		return lua.LNil
	}
	v.budget.Reset()
	if err := v.L.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, build(v.L)...); err != nil {
		m.logger.Warn("scripting: Lua runtime error",
			zap.String("scope", scope),
			zap.String("hook", hook),
			zap.Error(err),
		)
		return lua.LNil
	}
	ret := v.L.Get(-1)
	v.L.Pop(1)
	return ret
}

// Close releases every VM.
func (m *Manager) Close() {
	m.mu.Lock()
	states := m.states
	m.states = make(map[string]*vm)
	m.mu.Unlock()
	for _, v := range states {
		v.close()
	}
}
