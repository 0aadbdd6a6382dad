package core

import "testing"

func TestRegisterModule_Sorted(t *testing.T) {
	t.Cleanup(resetRegistry)

	RegisterModule(&provisionOnly{id: "scheduler"})
	RegisterModule(&provisionOnly{id: "bot.telegram"})
	RegisterModule(&provisionOnly{id: "gateway.http"})

	var got []ModuleID
	for _, info := range GetModules() {
		got = append(got, info.ID)
	}
	want := []ModuleID{"bot.telegram", "gateway.http", "scheduler"}
	if len(got) != len(want) {
		t.Fatalf("GetModules() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("GetModules() = %v, want %v", got, want)
		}
	}

	if _, ok := GetModule("gateway.http"); !ok {
		t.Error("GetModule(gateway.http) not found")
	}
}

func TestRegisterModule_Panics(t *testing.T) {
	tests := []struct {
		name   string
		module Module
	}{
		{"empty id", &provisionOnly{}},
		{"nil constructor", nilNewModule{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Cleanup(resetRegistry)
			defer func() {
				if recover() == nil {
					t.Error("expected panic")
				}
			}()
			RegisterModule(tt.module)
		})
	}
}

func TestRegisterModule_DuplicatePanics(t *testing.T) {
	t.Cleanup(resetRegistry)

	RegisterModule(&provisionOnly{id: "test.dup"})
	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	RegisterModule(&provisionOnly{id: "test.dup"})
}

func TestModuleID_Namespace(t *testing.T) {
	tests := map[ModuleID]string{
		"bot.telegram": "bot",
		"gateway.http": "gateway",
		"scheduler":    "scheduler",
		"a.b.c":        "a",
	}
	for id, want := range tests {
		if got := id.Namespace(); got != want {
			t.Errorf("%q.Namespace() = %q, want %q", id, got, want)
		}
	}
}

type nilNewModule struct{}

func (nilNewModule) ModuleInfo() ModuleInfo { return ModuleInfo{ID: "test.nil"} }
