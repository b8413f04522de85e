package engine

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// wasmMagic is the preamble of every WebAssembly binary module.
var wasmMagic = []byte{0x00, 'a', 's', 'm'}

// Register makes a native engine available to NativeLoader under name.
// It panics if name is empty, f is nil, or name is already registered.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if name == "" || f == nil {
		panic("engine: Register with empty name or nil factory")
	}
	if _, dup := registry[name]; dup {
		panic("engine: Register called twice for " + name)
	}
	registry[name] = f
}

// Registered returns the sorted names of all native engines.
func Registered() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NativeLoader resolves module bytes as the name of a registered engine.
type NativeLoader struct{}

// Load implements Loader.
func (NativeLoader) Load(ctx context.Context, module []byte) (Factory, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(string(module))
	registryMu.RLock()
	f, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("engine: no native engine %q (registered: %s)", name, strings.Join(Registered(), ", "))
	}
	return f, nil
}

// DetectLoader routes WebAssembly binaries to wasm and everything else to
// native. A nil wasm loader rejects WebAssembly input.
func DetectLoader(native, wasm Loader) Loader {
	return LoaderFunc(func(ctx context.Context, module []byte) (Factory, error) {
		if bytes.HasPrefix(module, wasmMagic) {
			if wasm == nil {
				return nil, fmt.Errorf("engine: wasm module given but no wasm loader configured")
			}
			return wasm.Load(ctx, module)
		}
		return native.Load(ctx, module)
	})
}
