package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ahis-social/server/internal/domain"
	"github.com/ahis-social/server/internal/service"
	"github.com/ahis-social/server/pkg/validator"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"nhooyr.io/websocket"
)

const (
	writeWait      = 10 * time.Second
	pingInterval   = 30 * time.Second
	// Fits 4000 runes of content even as escaped surrogate pairs (12 bytes
	// each), plus a media URL and the envelope.
	maxMessageSize = 64 << 10
	sendBufSize    = 256
)

type state int32

const (
	stateConnecting state = iota
	stateOpen
	stateClosed
)

func (s state) String() string {
	switch s {
	case stateConnecting:
		return "connecting"
	case stateOpen:
		return "open"
	}
	return "closed"
}

// Router persists a message and fans it out. *service.MessageRouter satisfies it.
type Router interface {
	Route(ctx context.Context, senderID uuid.UUID, in service.SendMessageInput) (*service.RouteResult, error)
}

// Client is one live WebSocket connection of an authenticated user.
//
// It moves connecting → open when the Hub registers it and → closed when it
// is released or closed. Events are read only while open.
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	userID  uuid.UUID
	router  Router
	limiter *rate.Limiter
	log     *zap.Logger

	state atomic.Int32

	send chan []byte
	done chan struct{}

	closeOnce   sync.Once
	closeCode   websocket.StatusCode
	closeReason string
}

func NewClient(hub *Hub, conn *websocket.Conn, userID uuid.UUID, router Router, limiter *rate.Limiter, log *zap.Logger) *Client {
	return &Client{
		hub:     hub,
		conn:    conn,
		userID:  userID,
		router:  router,
		limiter: limiter,
		log:     log.With(zap.Stringer("user_id", userID)),
		send:    make(chan []byte, sendBufSize),
		done:    make(chan struct{}),
	}
}

func (c *Client) IsOpen() bool {
	return state(c.state.Load()) == stateOpen
}

func (c *Client) setState(s state) {
	c.state.Store(int32(s))
}

// Close marks the client closed and asks the write pump to close the
// connection with code and reason. Only the first call has effect.
func (c *Client) Close(code websocket.StatusCode, reason string) {
	c.closeOnce.Do(func() {
		c.closeCode = code
		c.closeReason = reason
		c.setState(stateClosed)
		close(c.done)
	})
}

// enqueue never blocks; it reports false when the client is closed or its
// buffer is full.
func (c *Client) enqueue(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// Serve registers the client, runs both pumps and returns once the
// connection is gone and the client has been released from the Hub.
func (c *Client) Serve(ctx context.Context) {
	c.conn.SetReadLimit(maxMessageSize)
	c.hub.Register(c)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writePump(ctx)
	}()

	c.readPump(ctx)

	c.hub.Release(c)
	c.Close(websocket.StatusNormalClosure, "")
	<-writerDone
}

// readPump reads events until the connection fails or the client closes.
func (c *Client) readPump(ctx context.Context) {
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				c.log.Debug("client disconnected", zap.Int("status", int(websocket.CloseStatus(err))))
			} else if c.IsOpen() {
				c.log.Info("read error", zap.Error(err))
			} else {
				c.log.Debug("read stopped", zap.Stringer("state", state(c.state.Load())))
			}
			return
		}
		if !c.IsOpen() {
			return
		}

		c.handleEvent(ctx, data)
	}
}

// writePump owns every write to the connection.
func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case message := <-c.send:
			wctx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Write(wctx, websocket.MessageText, message)
			cancel()
			if err != nil {
				c.log.Info("write error", zap.Error(err))
				c.Close(websocket.StatusInternalError, "write failed")
				c.conn.Close(websocket.StatusInternalError, "write failed")
				return
			}

		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Ping(pctx)
			cancel()
			if err != nil {
				c.log.Info("ping error", zap.Error(err))
				c.Close(websocket.StatusGoingAway, "ping failed")
				c.conn.Close(websocket.StatusGoingAway, "ping failed")
				return
			}

		case <-c.done:
			c.conn.Close(c.closeCode, c.closeReason)
			return

		case <-ctx.Done():
			c.conn.Close(websocket.StatusGoingAway, "")
			return
		}
	}
}

// handleEvent routes one inbound frame. Bad input is reported back to the
// client; the connection stays open.
func (c *Client) handleEvent(ctx context.Context, data []byte) {
	var event InboundEvent
	if err := json.Unmarshal(data, &event); err != nil {
		c.log.Info("malformed event", zap.Error(err))
		c.sendError(CodeInvalidPayload, "event is not valid JSON")
		return
	}

	switch event.Type {
	case EventTypeNewMessage:
		if c.limiter != nil && !c.limiter.Allow() {
			c.sendError(CodeRateLimited, "too many messages, slow down")
			return
		}
		c.handleNewMessage(ctx, &event)

	case EventTypePing:
		c.enqueueEvent(PongEvent{Type: EventTypePong})

	default:
		c.log.Debug("ignoring event", zap.String("type", event.Type))
	}
}

func (c *Client) handleNewMessage(ctx context.Context, event *InboundEvent) {
	payload := NewMessagePayload{
		ConversationID: event.ConversationID,
		Content:        event.Content,
		MessageType:    event.MessageType,
		MediaURL:       event.MediaURL,
	}
	if errs := validator.Struct(payload); errs.HasErrors() {
		c.sendError(CodeInvalidPayload, firstError(errs))
		return
	}
	conversationID, _ := uuid.Parse(payload.ConversationID)

	_, err := c.router.Route(ctx, c.userID, service.SendMessageInput{
		ConversationID: conversationID,
		Content:        payload.Content,
		MediaURL:       payload.MediaURL,
		Kind:           domain.MessageKind(payload.MessageType),
	})
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, service.ErrConversationNotFound):
		c.log.Info("message to unknown conversation", zap.Stringer("conversation_id", conversationID))
		c.sendError(CodeConversationNotFound, "Conversation not found")
	case errors.Is(err, service.ErrNotParticipant):
		c.log.Warn("message from non-participant", zap.Stringer("conversation_id", conversationID))
		c.sendError(CodeForbidden, "You are not a participant of this conversation")
	case errors.Is(err, service.ErrEmptyMessage), errors.Is(err, service.ErrInvalidMessageKind):
		c.sendError(CodeInvalidPayload, err.Error())
	default:
		c.log.Error("message not sent", zap.Stringer("conversation_id", conversationID), zap.Error(err))
		c.sendError(CodeSendFailed, "Message could not be sent")
	}
}

func (c *Client) sendError(code, message string) {
	c.enqueueEvent(NewError(code, message))
}

func (c *Client) enqueueEvent(event any) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	c.enqueue(data)
}

// firstError picks a deterministic message out of validation errors.
func firstError(errs validator.ValidationErrors) string {
	for _, field := range []string{"conversationId", "content", "messageType", "mediaUrl"} {
		if msg, ok := errs[field]; ok {
			return msg
		}
	}
	for _, msg := range errs {
		return msg
	}
	return "invalid event"
}
