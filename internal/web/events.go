package web

import (
	"encoding/json"

	"github.com/okgrp/groupwatch/internal/monitor"
)

// WebSocket event types
const (
	EventSummaryDelivered = "summary.delivered"
	EventDeliveryFailed   = "delivery.failed"
)

// WSEvent represents a structured WebSocket message
type WSEvent struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// DeliveryFailedPayload is the payload for EventDeliveryFailed
type DeliveryFailedPayload struct {
	Endpoint string `json:"endpoint"`
	Error    string `json:"error"`
}

// SchedulerNotifier adapts the hub to the scheduler's Notifier hook.
type SchedulerNotifier struct {
	hub *Hub
}

// NewSchedulerNotifier creates a notifier broadcasting through the hub.
func NewSchedulerNotifier(hub *Hub) *SchedulerNotifier {
	return &SchedulerNotifier{hub: hub}
}

// SummaryDelivered broadcasts a delivered report to all clients.
func (n *SchedulerNotifier) SummaryDelivered(report *monitor.SummaryReport, _ monitor.DeliveryTarget) {
	b, err := json.Marshal(WSEvent{Type: EventSummaryDelivered, Payload: report})
	if err != nil {
		return
	}
	n.hub.Broadcast(b)
}

// DeliveryFailed broadcasts a failed delivery attempt.
func (n *SchedulerNotifier) DeliveryFailed(target monitor.DeliveryTarget, deliveryErr error) {
	b, err := json.Marshal(WSEvent{
		Type: EventDeliveryFailed,
		Payload: DeliveryFailedPayload{
			Endpoint: target.URL,
			Error:    deliveryErr.Error(),
		},
	})
	if err != nil {
		return
	}
	n.hub.Broadcast(b)
}
