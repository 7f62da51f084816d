// Package sse streams staff notifications as Server-Sent Events.
package sse

import (
	"encoding/json"
	"net/http"
	"sync"

	"agency_portal_backend/platform/logger"

	"github.com/gin-gonic/gin"
)

// EventType names an event on the stream.
type EventType string

const (
	EventNotification  EventType = "notification"
	EventStageAdvanced EventType = "project_stage_advanced"
)

// Event is one message on the stream.
type Event struct {
	Type    EventType `json:"type"`
	Message string    `json:"message,omitempty"`
	Data    any       `json:"data,omitempty"`
}

type client struct {
	userID string
	events chan Event
}

// Service tracks connected staff and fans events out to them.
type Service struct {
	mu      sync.RWMutex
	clients map[string][]*client
	log     *logger.Logger
}

func New(log *logger.Logger) *Service {
	return &Service{
		clients: make(map[string][]*client),
		log:     log,
	}
}

func (s *Service) addClient(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c.userID] = append(s.clients[c.userID], c)
}

func (s *Service) removeClient(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()

	clients := s.clients[c.userID]
	for i, cl := range clients {
		if cl == c {
			s.clients[c.userID] = append(clients[:i], clients[i+1:]...)
			break
		}
	}
	if len(s.clients[c.userID]) == 0 {
		delete(s.clients, c.userID)
	}
}

// Broadcast sends event to every connected client. A client with a full
// buffer misses the event.
func (s *Service) Broadcast(event Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	delivered := 0
	for userID, clients := range s.clients {
		for _, c := range clients {
			select {
			case c.events <- event:
				delivered++
			default:
				s.log.Warn("sse buffer full", "userId", userID, "type", event.Type)
			}
		}
	}
	s.log.Debug("sse event broadcast", "type", event.Type, "clients", delivered)
}

// Connected returns how many streams are open.
func (s *Service) Connected() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, clients := range s.clients {
		n += len(clients)
	}
	return n
}

// Handler streams events to the caller until the request ends.
func (s *Service) Handler(getUserID func(*gin.Context) (string, bool)) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := getUserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		c.Writer.Header().Set("Content-Type", "text/event-stream")
		c.Writer.Header().Set("Cache-Control", "no-cache")
		c.Writer.Header().Set("Connection", "keep-alive")
		c.Writer.Header().Set("X-Accel-Buffering", "no")

		cl := &client{userID: userID, events: make(chan Event, 32)}
		s.addClient(cl)
		defer s.removeClient(cl)

		c.SSEvent("connected", gin.H{"userId": userID})
		c.Writer.Flush()

		done := c.Request.Context().Done()
		for {
			select {
			case <-done:
				return
			case event := <-cl.events:
				data, _ := json.Marshal(event)
				c.SSEvent(string(event.Type), string(data))
				c.Writer.Flush()
			}
		}
	}
}
