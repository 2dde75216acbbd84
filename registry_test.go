package kovi

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestRegistry() *pluginRegistry {
	tm := newTaskManager(testLogger())
	return newPluginRegistry(tm)
}

func TestRegistryMountRejectsDuplicates(t *testing.T) {
	r := newTestRegistry()
	p1 := newPlugin("dup", "1.0", nil)
	p2 := newPlugin("dup", "2.0", nil)

	if err := r.mount(p1); err != nil {
		t.Fatalf("first mount should succeed: %v", err)
	}
	err := r.mount(p2)
	if err == nil {
		t.Fatal("expected duplicate mount to fail")
	}
	if _, ok := err.(*DuplicatePlugin); !ok {
		t.Fatalf("expected *DuplicatePlugin, got %T", err)
	}
}

func TestRegistryDisableNoopWhenAlreadyDisabled(t *testing.T) {
	r := newTestRegistry()
	p := newPlugin("p", "1.0", func(ctx context.Context, rb *RuntimeBot) {})
	if err := r.mount(p); err != nil {
		t.Fatalf("mount: %v", err)
	}

	// Already enabled: disabling then disabling again must be a no-op on the
	// second call.
	if _, err := r.disable(context.Background(), "p"); err != nil {
		t.Fatalf("disable: %v", err)
	}
	done, err := r.disable(context.Background(), "p")
	if err != nil {
		t.Fatalf("second disable: %v", err)
	}
	select {
	case <-done:
	default:
		t.Fatal("expected a no-op disable to return an already-closed channel")
	}
}

func TestRegistryEnableUnknownPlugin(t *testing.T) {
	r := newTestRegistry()
	if err := r.enable(context.Background(), "ghost"); err == nil {
		t.Fatal("expected PluginNotFound for an unmounted plugin")
	}
}

func TestRegistrySnapshotPreservesMountOrder(t *testing.T) {
	r := newTestRegistry()
	for _, name := range []string{"a", "b", "c"} {
		if err := r.mount(newPlugin(name, "1.0", nil)); err != nil {
			t.Fatalf("mount %s: %v", name, err)
		}
	}
	snap := r.snapshot()
	if len(snap) != 3 {
		t.Fatalf("expected 3 plugins, got %d", len(snap))
	}
	for i, name := range []string{"a", "b", "c"} {
		if snap[i].Name != name {
			t.Fatalf("expected mount order preserved, got %v", snap)
		}
	}
}

func TestPluginStatusRoundTrip(t *testing.T) {
	r := newTestRegistry()
	p := newPlugin("p", "1.0", nil)
	p.enableOnStartup = false
	p.accessControl = true
	p.listMode = Blacklist
	p.accessList.Groups[42] = struct{}{}
	if err := r.mount(p); err != nil {
		t.Fatalf("mount: %v", err)
	}

	path := filepath.Join(t.TempDir(), "kovi.plugins.json")
	if err := savePluginStatus(path, "instance-1", r); err != nil {
		t.Fatalf("savePluginStatus: %v", err)
	}

	loaded, instanceID, err := loadPluginStatus(path)
	if err != nil {
		t.Fatalf("loadPluginStatus: %v", err)
	}
	if instanceID != "instance-1" {
		t.Fatalf("expected instance id to round trip, got %q", instanceID)
	}
	cfg, ok := loaded["p"]
	if !ok {
		t.Fatal("expected plugin p's status to be present")
	}
	if cfg.EnableOnStartup {
		t.Fatal("expected EnableOnStartup=false to round trip")
	}
	if cfg.ListMode != string(Blacklist) {
		t.Fatalf("expected ListMode blacklist to round trip, got %q", cfg.ListMode)
	}
	if len(cfg.AccessList.Groups) != 1 || cfg.AccessList.Groups[0] != 42 {
		t.Fatalf("expected group 42 to round trip, got %+v", cfg.AccessList.Groups)
	}
}

func TestLoadPluginStatusMissingFileGeneratesFreshInstanceID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.json")
	loaded, instanceID, err := loadPluginStatus(path)
	if err != nil {
		t.Fatalf("loadPluginStatus: %v", err)
	}
	if len(loaded) != 0 {
		t.Fatalf("expected empty status map, got %+v", loaded)
	}
	if instanceID == "" {
		t.Fatal("expected a freshly generated instance id")
	}
}

func TestApplyStatusAppliesListModeAndAccessList(t *testing.T) {
	p := newPlugin("p", "1.0", nil)
	applyStatus(p, PluginConfig{
		EnableOnStartup: false,
		AccessControl:   true,
		ListMode:        string(Blacklist),
		AccessList:      PluginConfigAccessList{Groups: []int64{1, 2}, Friends: []int64{3}},
	})
	if p.enableOnStartup {
		t.Fatal("expected enableOnStartup false after applyStatus")
	}
	if p.listMode != Blacklist {
		t.Fatalf("expected list mode blacklist, got %v", p.listMode)
	}
	if _, ok := p.accessList.Groups[1]; !ok {
		t.Fatal("expected group 1 in access list")
	}
	if _, ok := p.accessList.Friends[3]; !ok {
		t.Fatal("expected friend 3 in access list")
	}
}

func TestRegistryEnableReRunsMain(t *testing.T) {
	r := newTestRegistry()
	ran := make(chan struct{}, 2)
	p := newPlugin("p", "1.0", func(ctx context.Context, rb *RuntimeBot) {
		ran <- struct{}{}
	})
	p.rb = newRuntimeBot("p", make(chan apiRequest, 1), newCorrelator(testLogger()), r, testLogger(), r.tm, p)
	if err := r.mount(p); err != nil {
		t.Fatalf("mount: %v", err)
	}
	p.run(context.Background(), r.tm)

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("expected main to run once after p.run")
	}

	if _, err := r.disable(context.Background(), "p"); err != nil {
		t.Fatalf("disable: %v", err)
	}
	if err := r.enable(context.Background(), "p"); err != nil {
		t.Fatalf("enable: %v", err)
	}

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("expected main to re-run after enable")
	}
}
