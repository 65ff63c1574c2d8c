package server

import (
	"sync"

	"newtab/models"

	log "github.com/sirupsen/logrus"
)

const (
	EventHotList  = "hotlist"
	EventLayout   = "layout"
	EventSettings = "settings"
)

// Broadcaster fans change events out to every connected SSE client
type Broadcaster struct {
	sync.RWMutex
	clients map[string]chan models.ChangeEvent
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		clients: make(map[string]chan models.ChangeEvent),
	}
}

func (b *Broadcaster) Broadcast(event models.ChangeEvent) {
	b.RLock()
	defer b.RUnlock()

	for id, client := range b.clients {
		select {
		case client <- event: // Non-blocking send
		default:
			log.Warnf("Client channel full, skipping %s event for client: %v", event.Kind, id)
		}
	}
}

func (b *Broadcaster) AddClient(key string, client chan models.ChangeEvent) {
	b.Lock()
	defer b.Unlock()
	b.clients[key] = client
	log.WithFields(log.Fields{
		"key":   key,
		"count": len(b.clients),
	}).Info("Adding client to broadcaster")
}

// RemoveClient closes and forgets the client channel. Unknown keys are ignored.
func (b *Broadcaster) RemoveClient(key string) {
	b.Lock()
	defer b.Unlock()

	if client, ok := b.clients[key]; ok {
		close(client)
		delete(b.clients, key)
	}

	log.WithFields(log.Fields{
		"key":   key,
		"count": len(b.clients),
	}).Info("Removed client from broadcaster")
}

func (b *Broadcaster) Count() int {
	b.RLock()
	defer b.RUnlock()
	return len(b.clients)
}

func (b *Broadcaster) Shutdown() {
	log.Info("Shutting down broadcaster")
	b.Lock()
	defer b.Unlock()
	for key, client := range b.clients {
		close(client)
		delete(b.clients, key)
	}
}
