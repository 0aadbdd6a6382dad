package core

import "strings"

// ModuleID is a dotted module identifier, e.g. "bot.telegram".
type ModuleID string

// Namespace returns the segment before the first dot, or the whole ID.
func (id ModuleID) Namespace() string {
	ns, _, _ := strings.Cut(string(id), ".")
	return ns
}

// ModuleInfo describes a registered module.
type ModuleInfo struct {
	ID  ModuleID
	New func() Module
}

// Module is the interface every module implements. Optional lifecycle
// behaviour is discovered through the interfaces in lifecycle.go.
type Module interface {
	ModuleInfo() ModuleInfo
}
