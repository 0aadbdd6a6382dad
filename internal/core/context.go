// Package core provides the module system the tgram host is built from:
// a global module registry, the Configure/Provision/Validate/Start/Stop
// lifecycle and an AppContext through which modules share services.
package core

import (
	"fmt"
	"log/slog"
	"sync"

	"gopkg.in/yaml.v3"
)

// AppContext carries what modules share during provisioning and at runtime.
// Scoped copies made by ForModule share the same service registry and fatal
// channel.
type AppContext struct {
	// Logger is scoped with module=<id> inside a module.
	Logger *slog.Logger

	parentLogger  *slog.Logger
	moduleConfigs map[string]yaml.Node
	shared        *shared
}

type shared struct {
	mu       sync.RWMutex
	services map[string]any
	fatal    chan error
}

// NewAppContext creates a root context. A nil logger falls back to
// slog.Default().
func NewAppContext(logger *slog.Logger) *AppContext {
	if logger == nil {
		logger = slog.Default()
	}
	return &AppContext{
		Logger:       logger,
		parentLogger: logger,
		shared: &shared{
			services: make(map[string]any),
			fatal:    make(chan error, 1),
		},
	}
}

// WithModuleConfigs returns a copy carrying the raw config node of each
// module, keyed by module ID.
func (ctx *AppContext) WithModuleConfigs(configs map[string]yaml.Node) *AppContext {
	cp := *ctx
	cp.moduleConfigs = configs
	return &cp
}

// ForModule returns a context whose logger is tagged with the module ID.
func (ctx *AppContext) ForModule(id ModuleID) *AppContext {
	return &AppContext{
		Logger:        ctx.parentLogger.With("module", string(id)),
		parentLogger:  ctx.parentLogger,
		moduleConfigs: ctx.moduleConfigs,
		shared:        ctx.shared,
	}
}

// RegisterService publishes a value under name for other modules. A later
// registration under the same name replaces the earlier one.
func (ctx *AppContext) RegisterService(name string, svc any) {
	ctx.shared.mu.Lock()
	defer ctx.shared.mu.Unlock()
	if _, exists := ctx.shared.services[name]; exists {
		ctx.Logger.Warn("service replaced", "service", name)
	}
	ctx.shared.services[name] = svc
}

// Service returns the value registered under name.
func (ctx *AppContext) Service(name string) (any, bool) {
	ctx.shared.mu.RLock()
	defer ctx.shared.mu.RUnlock()
	svc, ok := ctx.shared.services[name]
	return svc, ok
}

// ReportFatal tells the running App that a module can no longer work. Only
// the first report is kept.
func (ctx *AppContext) ReportFatal(err error) {
	select {
	case ctx.shared.fatal <- err:
	default:
	}
}

// Fatal yields the first error passed to ReportFatal.
func (ctx *AppContext) Fatal() <-chan error {
	return ctx.shared.fatal
}

// LoadModule instantiates a registered module and runs it through
//
//	New() → Configure() → Provision() → Validate()
//
// skipping the steps the module does not implement.
func (ctx *AppContext) LoadModule(id string) (Module, error) {
	info, ok := GetModule(id)
	if !ok {
		return nil, fmt.Errorf("unknown module: %s", id)
	}

	mod := info.New()

	if c, ok := mod.(Configurable); ok {
		if node, exists := ctx.moduleConfigs[id]; exists {
			if err := c.Configure(&node); err != nil {
				return nil, fmt.Errorf("configuring module %s: %w", id, err)
			}
		}
	}
	if p, ok := mod.(Provisioner); ok {
		if err := p.Provision(ctx.ForModule(info.ID)); err != nil {
			return nil, fmt.Errorf("provisioning module %s: %w", id, err)
		}
	}
	if v, ok := mod.(Validator); ok {
		if err := v.Validate(); err != nil {
			return nil, fmt.Errorf("validating module %s: %w", id, err)
		}
	}
	return mod, nil
}
