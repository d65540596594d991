package serve

import (
	"net/http"
	"time"

	"hastycam/config"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const (
	// Time allowed to write message to the client
	writeWait  = 10 * time.Second
	pingPeriod = 10 * time.Second
)

// Updater tells websocket clients when the configuration has changed, so
// they can fetch it again.
type Updater struct {
	upgrader websocket.Upgrader
	cs       map[chan bool]bool
	addc     chan chan bool
	delc     chan chan bool
	notify   chan bool
	done     chan struct{}
}

func NewUpdater() *Updater {
	m := &Updater{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Editors are served from a different origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		cs:     make(map[chan bool]bool),
		addc:   make(chan chan bool),
		delc:   make(chan chan bool),
		notify: make(chan bool, 1),
		done:   make(chan struct{}),
	}
	go func() {
		for {
			select {
			case c := <-m.addc:
				m.cs[c] = true
			case c := <-m.delc:
				delete(m.cs, c)
			case <-m.notify:
				for k := range m.cs {
					// Clients that have not yet consumed the previous update
					// will pick up this one as well.
					select {
					case k <- true:
					default:
					}
				}
			case <-m.done:
				return
			}
		}
	}()
	return m
}

// ConfigUpdated implements config.Listener. It never blocks.
func (m *Updater) ConfigUpdated(key config.Key) {
	select {
	case m.notify <- true:
	default:
	}
}

// Close stops the hub. Connected clients stay open until they disconnect.
func (m *Updater) Close() {
	close(m.done)
}

func (m *Updater) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		if _, ok := err.(websocket.HandshakeError); !ok {
			log.WithField("addr", r.RemoteAddr).Errorf("Websocket handshake failed for update stream: %v", err)
		}
		return
	}
	go m.serve(ws)
}

func (m *Updater) serve(ws *websocket.Conn) {
	clog := log.WithField("addr", ws.RemoteAddr())
	clog.Info("connected to config update socket")
	defer func() {
		ws.Close()
		clog.Info("disconnected from config update socket")
	}()
	pingTicker := time.NewTicker(pingPeriod)
	defer pingTicker.Stop()

	notifyc := make(chan bool, 1)
	select {
	case m.addc <- notifyc:
	case <-m.done:
		return
	}
	defer func() {
		select {
		case m.delc <- notifyc:
		case <-m.done:
		}
	}()

	// Incoming messages are ignored, but reading is needed to process
	// control messages and notice disconnects.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := ws.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-notifyc:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.TextMessage, []byte("update")); err != nil {
				return
			}
		case <-pingTicker.C:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, []byte{}); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}
