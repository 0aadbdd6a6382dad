package core

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"
)

// lifecycleModule records Start and Stop calls into a shared log.
type lifecycleModule struct {
	id       ModuleID
	log      *[]string
	startErr error
	fatal    error
	appCtx   *AppContext
}

func (m *lifecycleModule) ModuleInfo() ModuleInfo {
	proto := *m
	return ModuleInfo{ID: m.id, New: func() Module { cp := proto; return &cp }}
}

func (m *lifecycleModule) Provision(ctx *AppContext) error {
	m.appCtx = ctx
	return nil
}

func (m *lifecycleModule) Start() error {
	if m.startErr != nil {
		return m.startErr
	}
	*m.log = append(*m.log, "start "+string(m.id))
	if m.fatal != nil {
		go m.appCtx.ReportFatal(m.fatal)
	}
	return nil
}

func (m *lifecycleModule) Stop(context.Context) error {
	*m.log = append(*m.log, "stop "+string(m.id))
	return nil
}

func TestApp_StartStopOrder(t *testing.T) {
	t.Cleanup(resetRegistry)

	var log []string
	RegisterModule(&lifecycleModule{id: "test.a", log: &log})
	RegisterModule(&lifecycleModule{id: "test.b", log: &log})

	app := NewApp(NewAppContext(nil))
	if err := app.LoadModules([]string{"test.a", "test.b"}); err != nil {
		t.Fatal(err)
	}
	if got := app.Modules(); !slices.Equal(got, []ModuleID{"test.a", "test.b"}) {
		t.Errorf("Modules() = %v", got)
	}
	if err := app.Start(); err != nil {
		t.Fatal(err)
	}
	app.Stop()

	want := []string{"start test.a", "start test.b", "stop test.b", "stop test.a"}
	if !slices.Equal(log, want) {
		t.Errorf("lifecycle = %v, want %v", log, want)
	}
}

func TestApp_StartFailureRollsBack(t *testing.T) {
	t.Cleanup(resetRegistry)

	var log []string
	boom := errors.New("boom")
	RegisterModule(&lifecycleModule{id: "test.ok", log: &log})
	RegisterModule(&lifecycleModule{id: "test.fail", log: &log, startErr: boom})

	app := NewApp(NewAppContext(nil))
	if err := app.LoadModules([]string{"test.ok", "test.fail"}); err != nil {
		t.Fatal(err)
	}
	err := app.Start()
	if !errors.Is(err, boom) {
		t.Fatalf("Start() error = %v, want %v", err, boom)
	}

	want := []string{"start test.ok", "stop test.ok"}
	if !slices.Equal(log, want) {
		t.Errorf("lifecycle = %v, want %v", log, want)
	}
}

func TestApp_RunReturnsFatalError(t *testing.T) {
	t.Cleanup(resetRegistry)

	var log []string
	boom := errors.New("token revoked")
	RegisterModule(&lifecycleModule{id: "test.bot", log: &log, fatal: boom})

	app := NewApp(NewAppContext(nil))
	if err := app.LoadModules([]string{"test.bot"}); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() { done <- app.Run(context.Background()) }()

	select {
	case err := <-done:
		if !errors.Is(err, boom) {
			t.Errorf("Run() error = %v, want %v", err, boom)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after a fatal error")
	}
	if !slices.Contains(log, "stop test.bot") {
		t.Errorf("module not stopped: %v", log)
	}
}

func TestApp_RunStopsOnContextCancel(t *testing.T) {
	t.Cleanup(resetRegistry)

	var log []string
	RegisterModule(&lifecycleModule{id: "test.idle", log: &log})

	app := NewApp(NewAppContext(nil))
	if err := app.LoadModules([]string{"test.idle"}); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := app.Run(ctx); err != nil {
		t.Errorf("Run() error = %v, want nil", err)
	}
	want := []string{"start test.idle", "stop test.idle"}
	if !slices.Equal(log, want) {
		t.Errorf("lifecycle = %v, want %v", log, want)
	}
}

func TestApp_LoadFailureStopsLoaded(t *testing.T) {
	t.Cleanup(resetRegistry)

	var log []string
	RegisterModule(&lifecycleModule{id: "test.first", log: &log})

	app := NewApp(NewAppContext(nil))
	if err := app.LoadModules([]string{"test.first", "test.missing"}); err == nil {
		t.Fatal("expected error for unknown module")
	}
	if len(app.Modules()) != 0 {
		t.Errorf("Modules() = %v, want none", app.Modules())
	}
	if !slices.Equal(log, []string{"stop test.first"}) {
		t.Errorf("lifecycle = %v", log)
	}
}
