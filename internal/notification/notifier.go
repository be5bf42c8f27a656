// Package notification provides alert delivery to external channels
// (Telegram, webhooks) for trading events.
package notification

import (
	"context"
	"fmt"
	"log"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert represents a notification to be sent.
type Alert struct {
	Level   AlertLevel `json:"level"`
	Title   string     `json:"title"`
	Message string     `json:"message"`
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier is a simple notifier that logs alerts (useful for development).
type LogNotifier struct{}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	log.Printf("[notify] [%s] %s: %s", alert.Level, alert.Title, alert.Message)
	return nil
}

// Multi fans an alert out to several backends. Delivery failures are
// logged and do not stop delivery to the remaining backends.
type Multi struct {
	backends []Notifier
}

// NewMulti creates a fan-out notifier over the given backends.
func NewMulti(backends ...Notifier) *Multi {
	return &Multi{backends: backends}
}

func (m *Multi) Send(ctx context.Context, alert Alert) error {
	var firstErr error
	for _, b := range m.backends {
		if err := b.Send(ctx, alert); err != nil {
			log.Printf("[notify] backend %T: %v", b, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// BuyAlert formats a position-opened alert.
func BuyAlert(market string, price, amountKRW, score float64, rationale string) Alert {
	return Alert{
		Level: AlertInfo,
		Title: fmt.Sprintf("매수 %s", market),
		Message: fmt.Sprintf("가격 %.0f원, 투입 %.0f원, 점수 %.0f점\n%s",
			price, amountKRW, score, rationale),
	}
}

// SellAlert formats a position-closed alert. Losses escalate to warning.
func SellAlert(market string, price, profitKRW, profitRate float64, reason string) Alert {
	level := AlertInfo
	if profitRate < 0 {
		level = AlertWarning
	}
	return Alert{
		Level: level,
		Title: fmt.Sprintf("매도 %s", market),
		Message: fmt.Sprintf("가격 %.0f원, 손익 %+.0f원 (%+.2f%%)\n사유: %s",
			price, profitKRW, profitRate, reason),
	}
}

// ErrorAlert formats a critical failure alert.
func ErrorAlert(title string, err error) Alert {
	return Alert{Level: AlertCritical, Title: title, Message: err.Error()}
}
