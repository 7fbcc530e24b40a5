// Package notify defines the narrow alerting boundary the decision
// pipeline and supervisor talk to: a small TradeNotifier-shaped
// interface generalized from a single notify-trade method to the
// handful of events this system raises.
//
// The concrete Telegram implementation is intentionally thin: message
// shipping internals are out of scope, only the data contract is
// carried.
package notify

import (
	"fmt"
	"os"
	"strconv"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/mt5bridge/engine/internal/decision"
)

// Notifier is the alerting boundary. Every method must be safe to call
// from any goroutine and must never block on network I/O for longer
// than a send attempt — callers (decision pipeline, supervisor) do not
// wait on delivery.
type Notifier interface {
	NotifyTradeOpened(account int64, symbol, direction string, volume, entry, sl, tp decimal.Decimal)
	NotifyTradeClosed(account int64, symbol string, profit decimal.Decimal, reason string)
	NotifyDecisionRejected(account int64, symbol string, reason decision.Reason, detail string)
	NotifyCircuitBreakerTripped(account int64, detail string)
}

// NopNotifier discards every event. Used when no Telegram credentials
// are configured; the decision pipeline and supervisor depend only on
// the Notifier interface so nothing else has to special-case this.
type NopNotifier struct{}

func (NopNotifier) NotifyTradeOpened(int64, string, string, decimal.Decimal, decimal.Decimal, decimal.Decimal, decimal.Decimal) {
}
func (NopNotifier) NotifyTradeClosed(int64, string, decimal.Decimal, string)         {}
func (NopNotifier) NotifyDecisionRejected(int64, string, decision.Reason, string)    {}
func (NopNotifier) NotifyCircuitBreakerTripped(int64, string)                        {}

// TelegramNotifier sends each event as a single Markdown message to a
// fixed chat, dialing the bot API from TELEGRAM_BOT_TOKEN /
// TELEGRAM_CHAT_ID in the environment.
type TelegramNotifier struct {
	mu     sync.Mutex
	api    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegramNotifier dials the Telegram Bot API. Returns an error if
// the token/chat ID env vars are missing or the API handshake fails —
// callers should fall back to NopNotifier rather than block startup.
func NewTelegramNotifier() (*TelegramNotifier, error) {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN not set")
	}
	chatIDStr := os.Getenv("TELEGRAM_CHAT_ID")
	if chatIDStr == "" {
		return nil, fmt.Errorf("TELEGRAM_CHAT_ID not set")
	}
	chatID, err := strconv.ParseInt(chatIDStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err)
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	log.Info().Str("username", api.Self.UserName).Msg("🤖 telegram notifier initialized")
	return &TelegramNotifier{api: api, chatID: chatID}, nil
}

func (t *TelegramNotifier) NotifyTradeOpened(account int64, symbol, direction string, volume, entry, sl, tp decimal.Decimal) {
	msg := fmt.Sprintf(`✅ *TRADE OPENED*

📊 %s — %s
💵 Entry: *%s*
📦 Volume: *%s*
🛑 SL: *%s*  🎯 TP: *%s*
👤 Account: %d`,
		symbol, direction, entry.String(), volume.String(), sl.String(), tp.String(), account)
	t.send(msg)
}

func (t *TelegramNotifier) NotifyTradeClosed(account int64, symbol string, profit decimal.Decimal, reason string) {
	emoji := "📈"
	if profit.IsNegative() {
		emoji = "📉"
	}
	sign := "+"
	if profit.IsNegative() {
		sign = ""
	}
	msg := fmt.Sprintf(`%s *TRADE CLOSED*

📊 %s
💵 P&L: *%s%s*
📝 Reason: %s
👤 Account: %d`,
		emoji, symbol, sign, profit.StringFixed(2), reason, account)
	t.send(msg)
}

func (t *TelegramNotifier) NotifyDecisionRejected(account int64, symbol string, reason decision.Reason, detail string) {
	msg := fmt.Sprintf("🚫 *SIGNAL REJECTED*\n\n📊 %s\n📝 %s\n%s\n👤 Account: %d", symbol, reason, detail, account)
	t.send(msg)
}

func (t *TelegramNotifier) NotifyCircuitBreakerTripped(account int64, detail string) {
	msg := fmt.Sprintf("🛑 *CIRCUIT BREAKER TRIPPED*\n\n%s\n👤 Account: %d", detail, account)
	t.send(msg)
}

func (t *TelegramNotifier) send(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.ParseMode = "Markdown"
	if _, err := t.api.Send(msg); err != nil {
		log.Error().Err(err).Msg("failed to send telegram message")
	}
}
