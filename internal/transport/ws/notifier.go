package ws

import (
	"github.com/ahis-social/server/internal/domain"
	"github.com/google/uuid"
)

// HubNotifier implements service.Notifier using the WebSocket Hub.
type HubNotifier struct {
	hub *Hub
}

func NewHubNotifier(hub *Hub) *HubNotifier {
	return &HubNotifier{hub: hub}
}

func (n *HubNotifier) DeliverMessage(recipientID uuid.UUID, msg *domain.Message) bool {
	return n.hub.Send(recipientID, NewMessageReceived(msg))
}
