// Package monitor is the optional live-frame broadcast + viewer layer
// for a urg.Session: it is never required for normal driver operation
// (spec.md §5's concurrency model is untouched by it) and stands in
// for the SDL viewer (current/viewers/viewer_sdl/viewer_sdl.c) named
// as an external collaborator in spec.md §6, without a cgo/SDL
// dependency. Grounded on senso/main.go's broker wiring and
// util/websocket/main.go's connection-handling loop.
package monitor

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/cskr/pubsub"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/hokuyo/urgscip/urg"
)

// framesTopic is the only pubsub topic this package uses; unlike
// senso's rx/tx split there is nothing to send down to the sensor
// through the monitor, so one topic suffices.
const framesTopic = "frames"

// Broadcaster republishes every urg.Frame a Session decodes to any
// number of subscribers (HTTP websocket clients via Handler, or direct
// Go subscribers via Subscribe). Attach it to a Session with
// Session.SetObserver; it is nil by default.
type Broadcaster struct {
	bus *pubsub.PubSub
	log *logrus.Entry
}

// New creates a Broadcaster with the given subscriber channel
// capacity, matching senso.New's pubsub.New(32) sizing.
func New(capacity int, log *logrus.Entry) *Broadcaster {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Broadcaster{
		bus: pubsub.New(capacity),
		log: log,
	}
}

// Observe implements urg.FrameObserver: it is called by Session.Get*
// after every successfully decoded frame.
func (b *Broadcaster) Observe(f urg.Frame) {
	b.bus.TryPub(f, framesTopic)
}

// Subscribe returns a channel of frames for direct, in-process
// consumers; call Unsubscribe when done.
func (b *Broadcaster) Subscribe() chan interface{} {
	return b.bus.Sub(framesTopic)
}

// Unsubscribe detaches a channel returned by Subscribe.
func (b *Broadcaster) Unsubscribe(ch chan interface{}) {
	b.bus.Unsub(ch)
}

// Shutdown closes every subscriber channel.
func (b *Broadcaster) Shutdown() {
	b.bus.Shutdown()
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler serves a websocket endpoint that streams every broadcast
// frame to the connecting client as a JSON object, one per message:
// the Go-native replacement for the SDL viewer.
func (b *Broadcaster) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log := b.log.WithField("clientAddress", r.RemoteAddr)

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.WithError(err).Error("could not upgrade connection to websocket")
			http.Error(w, "websocket upgrade error", http.StatusBadRequest)
			return
		}
		log.Info("monitor websocket connection opened")

		ch := b.Subscribe()
		defer b.Unsubscribe(ch)

		var writeMu sync.Mutex
		done := make(chan struct{})

		// The connection supports only one concurrent reader and one
		// concurrent writer; a reader goroutine just watches for the
		// client closing the socket, matching util/websocket's pattern.
		go func() {
			defer close(done)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case msg, ok := <-ch:
				if !ok {
					conn.Close()
					return
				}
				frame, ok := msg.(urg.Frame)
				if !ok {
					continue
				}
				payload, err := json.Marshal(frame)
				if err != nil {
					log.WithError(err).Warning("could not marshal frame")
					continue
				}
				writeMu.Lock()
				conn.SetWriteDeadline(time.Now().Add(50 * time.Millisecond))
				err = conn.WriteMessage(websocket.TextMessage, payload)
				writeMu.Unlock()
				if err != nil {
					log.WithError(err).Debug("websocket write failed")
					conn.Close()
					return
				}
			case <-done:
				log.Info("monitor websocket connection closed")
				return
			}
		}
	})
}
