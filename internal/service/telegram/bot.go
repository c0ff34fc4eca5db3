package telegram

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"TrendSentry/internal/domain/models"
	domrepo "TrendSentry/internal/domain/repository"
	"TrendSentry/internal/engine"
	"TrendSentry/pkg/logger"
)

// CommandBot answers /status, /signals and /today in the configured chat
// using long polling. It is read-only over the engine state.
type CommandBot struct {
	notifier *Notifier
	manager  *engine.Manager
	store    domrepo.SignalStore
	log      *logger.Logger
	cancel   context.CancelFunc
}

func NewCommandBot(notifier *Notifier, manager *engine.Manager, store domrepo.SignalStore, log *logger.Logger) *CommandBot {
	return &CommandBot{notifier: notifier, manager: manager, store: store, log: log}
}

// Start launches the polling loop. No-op when the bot is log-only.
func (b *CommandBot) Start(ctx context.Context) {
	if b.notifier.Bot() == nil {
		return
	}
	ctx, b.cancel = context.WithCancel(ctx)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.notifier.Bot().GetUpdatesChan(u)

	go func() {
		for {
			select {
			case <-ctx.Done():
				b.notifier.Bot().StopReceivingUpdates()
				return
			case update := <-updates:
				if update.Message == nil || !update.Message.IsCommand() {
					continue
				}
				b.handle(ctx, update.Message)
			}
		}
	}()
}

func (b *CommandBot) Stop() {
	if b.cancel != nil {
		b.cancel()
	}
}

func (b *CommandBot) handle(ctx context.Context, msg *tgbotapi.Message) {
	var reply string
	switch msg.Command() {
	case "status":
		reply = b.statusText()
	case "signals":
		reply = b.signalsText(ctx)
	case "today":
		reply = b.todayText(ctx)
	default:
		reply = "Commands: /status /signals /today"
	}
	if err := b.notifier.send(reply); err != nil {
		b.log.Warn("command reply failed", logger.String("command", msg.Command()), logger.Error(err))
	}
}

func (b *CommandBot) statusText() string {
	st := b.manager.Status()
	health := "healthy"
	if st.Degraded {
		health = "degraded"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Pool: %s\nAnalyzers: %d | Monitors: %d\n", health, st.Analyzers, st.Monitors)
	for _, w := range st.Workers {
		mark := "✅"
		if w.Removed {
			mark = "❌"
		} else if w.Stale {
			mark = "⏳"
		}
		fmt.Fprintf(&sb, "%s %s restarts=%d\n", mark, w.ID, w.Restarts)
	}
	return sb.String()
}

func (b *CommandBot) signalsText(ctx context.Context) string {
	open, err := b.store.OpenSignals(ctx)
	if err != nil {
		return "store unavailable: " + err.Error()
	}
	if len(open) == 0 {
		return "No open signals."
	}
	var sb strings.Builder
	for _, s := range open {
		fmt.Fprintf(&sb, "%s %s %s entry=%s status=%s\n",
			s.Symbol, s.Direction, s.Tier, fmtPrice(s.Entry), s.Status)
	}
	return sb.String()
}

func (b *CommandBot) todayText(ctx context.Context) string {
	since := time.Now().Truncate(24 * time.Hour)
	sigs, err := b.store.SignalsSince(ctx, since, 200)
	if err != nil {
		return "store unavailable: " + err.Error()
	}
	if len(sigs) == 0 {
		return "No signals today."
	}
	counts := map[models.SignalStatus]int{}
	for _, s := range sigs {
		counts[s.Status]++
	}
	return fmt.Sprintf("Today: %d signals\nOpen: %d | TP1: %d | TP2: %d | SL: %d | Early: %d | EOD: %d",
		len(sigs), counts[models.StatusOpen], counts[models.StatusHitTP1], counts[models.StatusHitTP2],
		counts[models.StatusHitSL], counts[models.StatusEarlyExit], counts[models.StatusClosedEOD])
}
