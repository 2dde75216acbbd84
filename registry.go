package kovi

import (
	"context"
	"encoding/json"
	"os"
	"sync"

	"github.com/google/uuid"
)

// pluginRegistry is the named collection of Plugin records (distilled spec
// §3's PluginRegistry). Mutations occur only through mount/enable/disable;
// dispatch holds the read lock, mutation holds the write lock.
type pluginRegistry struct {
	mu      sync.RWMutex
	plugins map[string]*Plugin
	order   []string
	tm      *taskManager
}

func newPluginRegistry(tm *taskManager) *pluginRegistry {
	return &pluginRegistry{plugins: make(map[string]*Plugin), tm: tm}
}

// mount registers a new plugin before Run. Duplicate names are rejected.
func (r *pluginRegistry) mount(p *Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.plugins[p.Name]; exists {
		return &DuplicatePlugin{Name: p.Name}
	}
	r.plugins[p.Name] = p
	r.order = append(r.order, p.Name)
	return nil
}

func (r *pluginRegistry) get(name string) (*Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plugins[name]
	return p, ok
}

// snapshot returns the current plugins in mount order, safe to range over
// without holding the registry lock (used by the dispatcher, which must not
// block mutation for the duration of a potentially slow fan-out).
func (r *pluginRegistry) snapshot() []*Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Plugin, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.plugins[name])
	}
	return out
}

// enable is a no-op if the plugin is already enabled; otherwise it flips the
// watched flag and re-runs main under ambient context (distilled spec
// §4.6(b)).
func (r *pluginRegistry) enable(ctx context.Context, name string) error {
	r.mu.Lock()
	p, ok := r.plugins[name]
	r.mu.Unlock()
	if !ok {
		return &PluginNotFound{Name: name}
	}
	if p.Enabled() {
		return nil
	}
	p.enabled.Set(true)
	p.run(ctx, r.tm)
	return nil
}

// disable is a no-op if already disabled; otherwise it starts every drop
// callback, aborts all tracked tasks without waiting for those callbacks,
// flips the flag false, and clears the listen tables (see Plugin.shutdown).
// disable does not block on drop-callback completion — it returns
// immediately with a channel that closes when they have all returned, matching
// original_source's Plugin::shutdown returning a JoinHandle the caller may
// await rather than awaiting inline.
func (r *pluginRegistry) disable(ctx context.Context, name string) (<-chan struct{}, error) {
	r.mu.Lock()
	p, ok := r.plugins[name]
	r.mu.Unlock()
	if !ok {
		return nil, &PluginNotFound{Name: name}
	}
	if !p.Enabled() {
		done := make(chan struct{})
		close(done)
		return done, nil
	}
	return p.shutdown(ctx, r.tm), nil
}

func (r *pluginRegistry) isEnabled(name string) (bool, error) {
	p, ok := r.get(name)
	if !ok {
		return false, &PluginNotFound{Name: name}
	}
	return p.Enabled(), nil
}

func (r *pluginRegistry) list() []PluginInfo {
	snap := r.snapshot()
	out := make([]PluginInfo, 0, len(snap))
	for _, p := range snap {
		out = append(out, p.info())
	}
	return out
}

// --- C14: plugin status persistence (kovi.plugins.json) ---

// PluginConfig is the JSON shape persisted per plugin name, grounded on
// original_source/src/plugin.rs's PluginStatus.
type PluginConfig struct {
	EnableOnStartup bool                   `json:"enable_on_startup"`
	AccessControl   bool                   `json:"access_control"`
	ListMode        string                 `json:"list_mode"`
	AccessList      PluginConfigAccessList `json:"access_list"`
}

// PluginConfigAccessList is the wire shape of AccessList.
type PluginConfigAccessList struct {
	Groups  []int64 `json:"groups"`
	Friends []int64 `json:"friends"`
}

// pluginStatusFile is the on-disk shape of kovi.plugins.json: per-plugin
// status keyed by name, plus an InstanceID tagging which bot process instance
// last wrote the file — useful when several bot processes share a data
// directory and need to tell their own persisted status apart (e.g. during a
// blue/green restart). Generated once with google/uuid and carried forward
// on every subsequent save.
type pluginStatusFile struct {
	InstanceID string                  `json:"instance_id"`
	Plugins    map[string]PluginConfig `json:"plugins"`
}

// loadPluginStatus reads kovi.plugins.json, returning an empty map and a
// freshly generated instance ID if the file does not exist (first run: every
// plugin keeps its code defaults).
func loadPluginStatus(path string) (map[string]PluginConfig, string, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return map[string]PluginConfig{}, uuid.NewString(), nil
	}
	if err != nil {
		return nil, "", err
	}
	var f pluginStatusFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, "", err
	}
	if f.InstanceID == "" {
		f.InstanceID = uuid.NewString()
	}
	if f.Plugins == nil {
		f.Plugins = map[string]PluginConfig{}
	}
	return f.Plugins, f.InstanceID, nil
}

// savePluginStatus persists the registry's current per-plugin status under
// instanceID, pretty-printed to match the teacher's kovi.conf.json convention.
func savePluginStatus(path string, instanceID string, r *pluginRegistry) error {
	plugins := map[string]PluginConfig{}
	for _, p := range r.snapshot() {
		groups := make([]int64, 0, len(p.accessList.Groups))
		for g := range p.accessList.Groups {
			groups = append(groups, g)
		}
		friends := make([]int64, 0, len(p.accessList.Friends))
		for f := range p.accessList.Friends {
			friends = append(friends, f)
		}
		plugins[p.Name] = PluginConfig{
			EnableOnStartup: p.enableOnStartup,
			AccessControl:   p.accessControl,
			ListMode:        string(p.listMode),
			AccessList:      PluginConfigAccessList{Groups: groups, Friends: friends},
		}
	}
	data, err := json.MarshalIndent(pluginStatusFile{InstanceID: instanceID, Plugins: plugins}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// applyStatus overlays persisted status onto a freshly-mounted plugin before
// startup (distilled spec §4.6: "recognized plugins inherit their stored
// status").
func applyStatus(p *Plugin, cfg PluginConfig) {
	p.enableOnStartup = cfg.EnableOnStartup
	p.accessControl = cfg.AccessControl
	if cfg.ListMode == string(Blacklist) {
		p.listMode = Blacklist
	} else {
		p.listMode = Whitelist
	}
	al := newAccessList()
	for _, g := range cfg.AccessList.Groups {
		al.Groups[g] = struct{}{}
	}
	for _, f := range cfg.AccessList.Friends {
		al.Friends[f] = struct{}{}
	}
	p.accessList = al
}
