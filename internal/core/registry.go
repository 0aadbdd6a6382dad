package core

import (
	"cmp"
	"fmt"
	"slices"
	"sync"
)

var registry = struct {
	sync.RWMutex
	modules map[ModuleID]ModuleInfo
}{modules: make(map[ModuleID]ModuleInfo)}

// RegisterModule records a module so configuration can refer to it by ID.
// It panics on an empty ID, a nil constructor or a duplicate, and is meant
// to be called from init().
func RegisterModule(instance Module) {
	info := instance.ModuleInfo()
	switch {
	case info.ID == "":
		panic("core: module ID must not be empty")
	case info.New == nil:
		panic(fmt.Sprintf("core: module %s: New must not be nil", info.ID))
	}

	registry.Lock()
	defer registry.Unlock()
	if _, dup := registry.modules[info.ID]; dup {
		panic(fmt.Sprintf("core: module already registered: %s", info.ID))
	}
	registry.modules[info.ID] = info
}

// GetModule looks up a registered module.
func GetModule(id string) (ModuleInfo, bool) {
	registry.RLock()
	defer registry.RUnlock()
	info, ok := registry.modules[ModuleID(id)]
	return info, ok
}

// GetModules returns every registered module sorted by ID.
func GetModules() []ModuleInfo {
	registry.RLock()
	defer registry.RUnlock()

	out := make([]ModuleInfo, 0, len(registry.modules))
	for _, info := range registry.modules {
		out = append(out, info)
	}
	slices.SortFunc(out, func(a, b ModuleInfo) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// resetRegistry clears the registry. Tests only.
func resetRegistry() {
	registry.Lock()
	defer registry.Unlock()
	registry.modules = make(map[ModuleID]ModuleInfo)
}
