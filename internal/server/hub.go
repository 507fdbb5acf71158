package server

import (
	"sync"

	"github.com/sentineltk/sentinel/internal/interfaces"
	"github.com/sentineltk/sentinel/internal/logging"
	"github.com/sentineltk/sentinel/internal/model"
)

const subscriberBuffer = 8

// ActionHub fans risk actions and danger alerts out to per-tab websocket
// subscribers. Delivery is best-effort per the TabMessenger contract: a tab
// with no subscriber yet simply misses the message, and a slow subscriber
// drops rather than blocks the coordinator.
type ActionHub struct {
	logger logging.Logger

	mu   sync.Mutex
	subs map[int64]map[chan ActionMessage]struct{}
}

var (
	_ interfaces.TabMessenger = (*ActionHub)(nil)
	_ interfaces.Notifier     = (*ActionHub)(nil)
)

// NewActionHub constructs an empty hub.
func NewActionHub(logger logging.Logger) *ActionHub {
	return &ActionHub{
		logger: logger.With(logging.Field{Key: "component", Value: "action-hub"}),
		subs:   make(map[int64]map[chan ActionMessage]struct{}),
	}
}

// Subscribe registers a listener for one tab's action stream. The returned
// cancel function must be called when the listener goes away.
func (h *ActionHub) Subscribe(tabID int64) (<-chan ActionMessage, func()) {
	ch := make(chan ActionMessage, subscriberBuffer)

	h.mu.Lock()
	if h.subs[tabID] == nil {
		h.subs[tabID] = make(map[chan ActionMessage]struct{})
	}
	h.subs[tabID][ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if set, ok := h.subs[tabID]; ok {
			delete(set, ch)
			if len(set) == 0 {
				delete(h.subs, tabID)
			}
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// SendRiskAction implements interfaces.TabMessenger.
func (h *ActionHub) SendRiskAction(tabID int64, action model.RiskAction, score int) {
	h.publish(tabID, ActionMessage{
		Type:   "risk_action",
		TabID:  tabID,
		Action: action,
		Score:  score,
	})
}

// NotifyDanger implements interfaces.Notifier.
func (h *ActionHub) NotifyDanger(tabID int64, hostname string, score int) {
	h.publish(tabID, ActionMessage{
		Type:     "danger_alert",
		TabID:    tabID,
		Score:    score,
		Hostname: hostname,
	})
}

func (h *ActionHub) publish(tabID int64, msg ActionMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[tabID] {
		select {
		case ch <- msg:
		default:
			h.logger.Warn("dropping action message, subscriber too slow",
				logging.Field{Key: "tab_id", Value: tabID},
				logging.Field{Key: "type", Value: msg.Type})
		}
	}
}
