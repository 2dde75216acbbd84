package kovi

import (
	"context"
	"strings"
	"time"

	"github.com/robfig/cron"
)

// CronHandlerFunc is a plugin's cron callback, invoked with no arguments at
// each fire time (distilled spec §4.8).
type CronHandlerFunc func(ctx context.Context)

// parseCronSchedule parses spec using robfig/cron's standard 5-field
// grammar, or its 6-field grammar with a leading seconds field when spec has
// six fields, used here purely as a parser/next-fire calculator — the run loop
// itself (runCronTask) is hand-written, since robfig/cron's own Cron
// scheduler type has no notion of per-plugin cancellation. Grounded on
// original_source/src/bot/plugin_builder.rs's `Cron::new(cron)
// .with_seconds_optional().parse()`.
func parseCronSchedule(spec string) (cron.Schedule, error) {
	parse := cron.ParseStandard
	if len(strings.Fields(spec)) == 6 {
		parse = cron.Parse
	}
	sched, err := parse(spec)
	if err != nil {
		return nil, &CronExprInvalid{Expr: spec, Cause: err}
	}
	return sched, nil
}

// runCronTask computes the next fire time from the schedule, sleeps until
// it, invokes handler, and repeats — racing the sleep against the plugin's
// enabled flag flipping false, exactly like original_source's
// run_cron_task's tokio::select!. Either wake-up (timer fire or flag
// change) is a legitimate iteration outcome (distilled spec §9).
func runCronTask(ctx context.Context, sched cron.Schedule, enabled *watchBool, handler CronHandlerFunc) {
	for {
		changed := enabled.Changed()
		if !enabled.Get() {
			return
		}
		now := time.Now()
		next := sched.Next(now)
		timer := time.NewTimer(next.Sub(now))

		select {
		case <-timer.C:
			handler(ctx)
		case <-changed:
			timer.Stop()
			if !enabled.Get() {
				return
			}
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

// Cron registers a cron-scheduled handler on this plugin. Must be called
// with a context carrying ambient plugin context (i.e. from inside
// PluginMainFunc). Returns CronExprInvalid without spawning a task if spec
// cannot be parsed.
func (rb *RuntimeBot) Cron(ctx context.Context, spec string, handler CronHandlerFunc) error {
	sched, err := parseCronSchedule(spec)
	if err != nil {
		return err
	}
	rb.tm.spawn(ctx, func(taskCtx context.Context) {
		runCronTask(taskCtx, sched, rb.plugin.enabled, handler)
	})
	return nil
}
