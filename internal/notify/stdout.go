package notify

import "rebalance_bot/pkg/logger"

// Stdout is the fallback notifier used when no Telegram token is
// configured: every event lands in the log and nowhere else.
type Stdout struct {
	quote string
}

func NewStdout(quote string) *Stdout {
	return &Stdout{quote: quote}
}

func (s *Stdout) Notify(event Event) {
	if text := FormatEvent(event, s.quote); text != "" {
		logger.Info("%s", text)
	}
}
