package core

import (
	"context"

	"gopkg.in/yaml.v3"
)

// Configurable modules receive their raw YAML node before Provision.
type Configurable interface {
	Configure(node *yaml.Node) error
}

// Provisioner modules apply defaults, resolve services and register their
// own. Called once per load, after Configure.
type Provisioner interface {
	Provision(ctx *AppContext) error
}

// Validator modules check their configuration after Provision. Validate must
// not have side effects.
type Validator interface {
	Validate() error
}

// Starter modules launch background work. Start must not block: long-running
// loops belong in goroutines, which report unrecoverable failures through
// AppContext.ReportFatal.
type Starter interface {
	Start() error
}

// Stopper modules release resources. Stop runs in reverse start order.
type Stopper interface {
	Stop(ctx context.Context) error
}
