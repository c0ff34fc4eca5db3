package telegram

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"TrendSentry/internal/domain/models"
	domsvc "TrendSentry/internal/domain/service"
	"TrendSentry/pkg/logger"
)

// Notifier pushes formatted signal events to a Telegram chat. A nil bot
// (token not configured) degrades to log-only delivery so the engine can
// run without an outbound channel.
type Notifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	log    *logger.Logger
}

func NewNotifier(token string, chatID int64, log *logger.Logger) (*Notifier, error) {
	n := &Notifier{chatID: chatID, log: log}
	if token == "" {
		log.Warn("telegram token empty, notifications are log-only")
		return n, nil
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram init: %w", err)
	}
	n.bot = bot
	return n, nil
}

// Bot exposes the underlying API for the command listener.
func (n *Notifier) Bot() *tgbotapi.BotAPI { return n.bot }

func (n *Notifier) NotifySignal(_ context.Context, s *models.Signal) error {
	arrow := "📈"
	if s.Direction == models.Short {
		arrow = "📉"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s *%s* %s (%s)\n", arrow, s.Symbol, s.Direction, s.Tier)
	fmt.Fprintf(&b, "Entry: %s\n", fmtPrice(s.Entry))
	fmt.Fprintf(&b, "SL: %s\n", fmtPrice(s.StopLoss))
	fmt.Fprintf(&b, "TP1: %s", fmtPrice(s.TakeProfit))
	if s.TakeProfit2 != 0 {
		fmt.Fprintf(&b, " | TP2: %s", fmtPrice(s.TakeProfit2))
	}
	fmt.Fprintf(&b, "\nScore: %.0f", s.Score)
	if s.Rationale != "" {
		fmt.Fprintf(&b, " (%s)", s.Rationale)
	}
	fmt.Fprintf(&b, "\nRegime: %s | ADX %.0f | RSI %.0f", s.Context.Regime, s.Context.TrendStrength, s.Context.RSI)
	return n.send(b.String())
}

func (n *Notifier) NotifyTransition(_ context.Context, t *models.Transition) error {
	emoji := map[models.SignalStatus]string{
		models.StatusHitTP1:    "🎯",
		models.StatusHitTP2:    "🏆",
		models.StatusHitSL:     "🛑",
		models.StatusEarlyExit: "⚠️",
		models.StatusClosedEOD: "🌙",
	}[t.To]
	msg := fmt.Sprintf("%s *%s* %s → %s\nPrice: %s | PnL: %+.2f%%\nReason: %s",
		emoji, t.Symbol, t.From, t.To, fmtPrice(t.ExitPrice), t.PnLPercent, t.ExitReason)
	return n.send(msg)
}

func (n *Notifier) NotifyRiskWarning(_ context.Context, w *models.RiskWarning) error {
	msg := fmt.Sprintf("⚡ *%s* approaching stop\nPrice: %s | PnL: %+.2f%% | %.0f%% of the way to SL",
		w.Symbol, fmtPrice(w.Price), w.PnLPercent, w.RiskFraction*100)
	return n.send(msg)
}

func (n *Notifier) NotifyDigest(_ context.Context, d *models.DailyDigest) error {
	msg := fmt.Sprintf("🗓 Session digest %s\nOpened: %d | TP: %d | SL: %d | Force-closed: %d\nNet PnL: %+.2f%%",
		d.Date.Format("2006-01-02"), d.Opened, d.HitTP, d.HitSL, d.ForceClosed, d.NetPnL)
	return n.send(msg)
}

func (n *Notifier) send(text string) error {
	if n.bot == nil {
		n.log.Info("notification (log-only)", logger.String("text", text))
		return nil
	}
	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

// fmtPrice trims trailing zeros so BTC and low-cap prices both read well.
func fmtPrice(p float64) string {
	s := strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.8f", p), "0"), ".")
	if s == "" {
		s = "0"
	}
	return s
}

var _ domsvc.Notifier = (*Notifier)(nil)
