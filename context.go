package kovi

import "context"

// Ambient per-task context (distilled spec §3/§9). Rust carries the current
// plugin name and RuntimeBot handle via tokio::task_local!; Go has no
// task-local storage, so these are carried as context.Context values
// instead. The framework's spawn (task.go) is the single place that reads
// the parent goroutine's ambient values and re-attaches them to the child's
// context — every framework-spawned goroutine observes a consistent
// (pluginName, runtimeBot) pair for its whole lifetime.
type ambientKey struct{}

type ambientValue struct {
	pluginName string
	rb         *RuntimeBot
}

// withAmbient attaches the plugin name and RuntimeBot handle to ctx.
func withAmbient(ctx context.Context, pluginName string, rb *RuntimeBot) context.Context {
	return context.WithValue(ctx, ambientKey{}, ambientValue{pluginName: pluginName, rb: rb})
}

func ambientFrom(ctx context.Context) (ambientValue, bool) {
	v, ok := ctx.Value(ambientKey{}).(ambientValue)
	return v, ok
}

// PluginNameFromContext returns the ambient plugin name, the Go analogue of
// original_source's PLUGIN_NAME.with(|name| ...). ok is false outside any
// framework-spawned task.
func PluginNameFromContext(ctx context.Context) (string, bool) {
	v, ok := ambientFrom(ctx)
	if !ok {
		return "", false
	}
	return v.pluginName, true
}

// RuntimeBotFromContext returns the ambient RuntimeBot handle, the Go
// analogue of original_source's PLUGIN_BUILDER.with(|b| ...). ok is false
// outside any framework-spawned task.
func RuntimeBotFromContext(ctx context.Context) (*RuntimeBot, bool) {
	v, ok := ambientFrom(ctx)
	if !ok || v.rb == nil {
		return nil, false
	}
	return v.rb, true
}

// mustAmbient panics if ctx carries no ambient plugin context. Grounded on
// the Rust task-local's panic-on-empty-scope behavior (distilled spec §4.7
// invariant (b): "spawn called outside any ambient plugin context fails
// loudly — this is a programming error, not a runtime condition").
func mustAmbient(ctx context.Context) ambientValue {
	v, ok := ambientFrom(ctx)
	if !ok {
		panic("kovi: spawn called outside any ambient plugin context")
	}
	return v
}
