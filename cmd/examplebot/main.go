// Command examplebot is a minimal, actually-running kovi bot: it connects to
// a OneBot v11-compatible server, echoes private messages back to their
// sender, and logs group-member join notices. Grounded on the teacher's
// bridges/discord/main.go minimal-main shape.
package main

import (
	"context"
	"log"
	"log/slog"

	"github.com/Threkork/kovi"
)

func main() {
	cfg, err := kovi.LoadConfig("kovi.conf.json")
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	bot := kovi.NewBot(cfg, "kovi.conf.json", "kovi.plugins.json")

	if err := bot.Mount("echo", "0.1.0", echoPlugin); err != nil {
		log.Fatalf("mounting echo plugin: %v", err)
	}

	if err := bot.Run(context.Background()); err != nil {
		log.Fatalf("bot exited: %v", err)
	}
}

func echoPlugin(ctx context.Context, rb *kovi.RuntimeBot) {
	rb.OnPrivateMsg(func(ctx context.Context, ev *kovi.MsgEvent) {
		if err := ev.ReplyText(ev.GetText()); err != nil {
			slog.Error("echo reply failed", slog.String("error", err.Error()))
		}
	})

	rb.OnNotice(func(ctx context.Context, ev *kovi.NoticeEvent) {
		if ev.NoticeType != "group_increase" {
			return
		}
		groupID, _ := ev.Get("group_id")
		userID, _ := ev.Get("user_id")
		slog.Info("member joined group", slog.Any("group_id", groupID), slog.Any("user_id", userID))
	})

	rb.OnDrop(func(ctx context.Context) {
		slog.Info("echo plugin shutting down")
	})
}
