package notify

import (
	"fmt"
	"strings"

	"rebalance_bot/internal/modules/config"
	"rebalance_bot/pkg/logger"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Telegram posts notifications to a single chat. Delivery is
// fire-and-forget: a failed send is logged and dropped, never retried,
// never surfaced to the orchestrator.
type Telegram struct {
	bot    *tgbot.BotAPI
	chatID int64
	cfg    *config.Config
}

func NewTelegram(cfg *config.Config) (*Telegram, error) {
	b, err := tgbot.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return nil, err
	}
	return &Telegram{
		bot:    b,
		chatID: cfg.Telegram.ChatID,
		cfg:    cfg,
	}, nil
}

func (t *Telegram) enabled(kind MessageKind) bool {
	post := t.cfg.Telegram.Post
	switch kind {
	case KindInvest:
		return post.Invest
	case KindRebalanceMarketCap:
		return post.RebalanceMarketCap
	case KindRebalanceOverperformers:
		return post.RebalanceOverperformers
	case KindRebalanceUnderperformers:
		return post.RebalanceUnderperformers
	case KindTrailingStop:
		return post.TrailingStop
	case KindArmed:
		return post.Armed
	case KindContinue:
		return post.Continue
	}
	return false
}

func (t *Telegram) Notify(event Event) {
	if t == nil || t.bot == nil || t.chatID == 0 {
		return
	}
	if !t.enabled(event.Kind) {
		return
	}

	text := FormatEvent(event, t.cfg.Quote)
	if text == "" {
		return
	}

	go func() {
		if _, err := t.bot.Send(tgbot.NewMessage(t.chatID, text)); err != nil {
			logger.Error("telegram send failed: %v", err)
		}
	}()
}

// FormatEvent renders an event as the chat message text.
func FormatEvent(event Event, quote string) string {
	switch event.Kind {
	case KindInvest:
		if event.Invest == nil {
			return ""
		}
		inv := event.Invest
		return fmt.Sprintf(
			"💰 Invested %s %s over %d coins\nRemaining funds: %s %s\nPortfolio worth: %s %s",
			FormatAmount(inv.Investment, quote), quote,
			inv.CoinAmount,
			FormatAmount(inv.RemainingFunds, quote), quote,
			FormatAmount(inv.PortfolioWorth, quote), quote,
		)
	case KindRebalanceMarketCap, KindRebalanceOverperformers, KindRebalanceUnderperformers:
		if event.Rebalance == nil {
			return ""
		}
		return formatRebalance(event.Kind, event.Rebalance, quote)
	case KindArmed:
		return "🔒 The trailing stop has been armed"
	case KindTrailingStop:
		return "🛑 Trailing stop hit, the portfolio has been sold"
	case KindContinue:
		return "▶️ Trading resumed after trailing stop"
	}
	return ""
}

func formatRebalance(kind MessageKind, ev *RebalanceEvent, quote string) string {
	var b strings.Builder

	switch kind {
	case KindRebalanceMarketCap:
		b.WriteString("⚖️ Market cap rebalance\n")
	case KindRebalanceOverperformers:
		b.WriteString("⚖️ Overperformer rebalance\n")
	case KindRebalanceUnderperformers:
		b.WriteString("⚖️ Underperformer rebalance\n")
	}

	fmt.Fprintf(&b, "Portfolio worth: %s %s\n", FormatAmount(ev.PortfolioWorth, quote), quote)
	for _, coin := range ev.Coins {
		arrow := "🟢 BUY"
		if coin.Direction == DirectionSell {
			arrow = "🔴 SELL"
		}
		if coin.Percentage != 0 {
			fmt.Fprintf(&b, "%s %s for %s %s (%.2f%%)\n", arrow, coin.Currency, FormatAmount(coin.Amount, quote), quote, coin.Percentage)
		} else {
			fmt.Fprintf(&b, "%s %s for %s %s\n", arrow, coin.Currency, FormatAmount(coin.Amount, quote), quote)
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

// FormatAmount renders a quote-currency value with thousand separators
// and the fraction digits customary for that currency.
func FormatAmount(value float64, quote string) string {
	digits := 5
	switch quote {
	case "USDT", "USDC":
		digits = 2
	case "BTC":
		digits = 6
	}

	fixed := fmt.Sprintf("%.*f", digits, value)
	parts := strings.SplitN(fixed, ".", 2)

	left := parts[0]
	neg := strings.HasPrefix(left, "-")
	if neg {
		left = left[1:]
	}

	var grouped strings.Builder
	for i, r := range left {
		if i > 0 && (len(left)-i)%3 == 0 {
			grouped.WriteByte(' ')
		}
		grouped.WriteRune(r)
	}

	out := grouped.String()
	if neg {
		out = "-" + out
	}
	if len(parts) == 2 {
		out += "." + parts[1]
	}
	return out
}
