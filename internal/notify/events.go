package notify

// MessageKind tags every outgoing notification. Each kind carries its
// own payload shape; consumers switch on the kind instead of sniffing
// payload fields.
type MessageKind string

const (
	KindInvest                   MessageKind = "INVEST"
	KindRebalanceMarketCap       MessageKind = "REBALANCE_MARKET_CAP"
	KindRebalanceOverperformers  MessageKind = "REBALANCE_OVERPERFORMERS"
	KindRebalanceUnderperformers MessageKind = "REBALANCE_UNDERPERFORMERS"
	KindTrailingStop             MessageKind = "TRAILING_STOP"
	KindArmed                    MessageKind = "ARMED"
	KindContinue                 MessageKind = "CONTINUE"
)

type TradeDirection string

const (
	DirectionBuy  TradeDirection = "BUY"
	DirectionSell TradeDirection = "SELL"
)

// RebalanceTrade is one executed leg inside a rebalance phase.
type RebalanceTrade struct {
	Currency   string
	Amount     float64
	Percentage float64
	Direction  TradeDirection
}

// RebalanceEvent summarizes one rebalance phase that traded.
type RebalanceEvent struct {
	PortfolioWorth float64
	Coins          []RebalanceTrade
}

// InvestEvent summarizes one completed investment cycle.
type InvestEvent struct {
	Investment     float64
	RemainingFunds float64
	CoinAmount     int
	PortfolioWorth float64
}

// Event is the tagged union handed to the notifier: exactly the payload
// matching Kind is set, the rest stay nil. ARMED, TRAILING_STOP and
// CONTINUE carry no payload.
type Event struct {
	Kind      MessageKind
	Invest    *InvestEvent
	Rebalance *RebalanceEvent
}

// Notifier delivers events somewhere a human sees them. Implementations
// must not block the calling orchestrator and must swallow their own
// failures.
type Notifier interface {
	Notify(event Event)
}
