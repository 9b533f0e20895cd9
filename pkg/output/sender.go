// Package output delivers signal records to the downstream execution bot
// over an authenticated messaging transport, consuming the Signal Engine's
// outbound queue serially and at-most-once.
package output

import (
	"fmt"
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	basesniper "github.com/web3guy0/basesniper"
)

// Sender delivers one signal. Implementations never retry: a send failure
// is logged and dropped, since a retried duplicate risks a double buy on
// the downstream executor if the first send actually landed.
type Sender interface {
	Send(basesniper.SignalRecord) error
}

// Consume drains the queue serially until it's closed, handing every
// record to sender and logging (never retrying) on error.
func Consume(signals <-chan basesniper.SignalRecord, sender Sender) {
	for record := range signals {
		if err := sender.Send(record); err != nil {
			log.Printf("[output] send failed for %s, dropping: %v", record.TokenAddress, err)
		}
	}
}

// TelegramSender delivers the signal as a plain-text chat message to one
// recipient, the execution bot's chat id, over a bot-API session. This
// approximates the spec's MTProto-style authenticated user session — no
// user-session (non-bot) Telegram client exists in the available library
// set, so the bot API is used instead; see DESIGN.md.
type TelegramSender struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

func NewTelegramSender(bot *tgbotapi.BotAPI, chatID int64) *TelegramSender {
	return &TelegramSender{bot: bot, chatID: chatID}
}

func (t *TelegramSender) Send(record basesniper.SignalRecord) error {
	msg := tgbotapi.NewMessage(t.chatID, record.TokenAddress.Hex())
	_, err := t.bot.Send(msg)
	if err != nil {
		return fmt.Errorf("output: telegram send: %w", err)
	}
	return nil
}

// DryRunSender substitutes a log line for the outbound send, per spec.md's
// dry-run configuration option (default true).
type DryRunSender struct{}

func (DryRunSender) Send(record basesniper.SignalRecord) error {
	log.Printf("[output] dry-run signal: %s (emitted_at=%s)", record.TokenAddress.Hex(), record.EmittedAt.Format("15:04:05"))
	return nil
}
