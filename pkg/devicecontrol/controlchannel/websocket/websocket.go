// Package websocket drives the frames of one server-side websocket
// connection through an inbox and an outbox channel.
package websocket

import (
	"bytes"
	"io/ioutil"
	"net"
	"sync"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	log "github.com/sirupsen/logrus"
)

type Flag int

const (
	FlagContinue Flag = iota
	FlagCloseGracefully
	FlagTerminate
)

type OutboxMessage struct {
	Flag Flag
	Data []byte
}

type InboxMessage struct {
	Data []byte
}

// Driver owns the reader and the writer goroutine of a connection. Inbox is
// closed when the reader exits. Terminated is closed as soon as either
// goroutine exits.
type Driver struct {
	conn    net.Conn
	Inbox   chan *InboxMessage
	Outbox  chan *OutboxMessage
	writeMu sync.Mutex

	terminateCh    chan struct{}
	terminatedOnce sync.Once

	wg sync.WaitGroup
}

func NewDriver(conn net.Conn, outboxSize int) *Driver {
	return &Driver{
		conn:        conn,
		Inbox:       make(chan *InboxMessage),
		Outbox:      make(chan *OutboxMessage, outboxSize),
		terminateCh: make(chan struct{}),
	}
}

func (driver *Driver) Start() {
	driver.wg.Add(2)
	go driver.inboxHandler()
	go driver.outboxHandler()
}

// Terminated is closed when the connection should be torn down.
func (driver *Driver) Terminated() <-chan struct{} {
	return driver.terminateCh
}

// Wait blocks until both goroutines have exited. The caller must close the
// connection first to unblock the reader.
func (driver *Driver) Wait() {
	driver.wg.Wait()
	log.Debug("websocket driver closed")
}

func (driver *Driver) terminate() {
	driver.terminatedOnce.Do(func() {
		close(driver.terminateCh)
	})
}

func (driver *Driver) inboxHandler() {
	defer driver.wg.Done()
	defer driver.terminate()
	defer close(driver.Inbox)

	state := ws.StateServerSide

	// Control frame replies are buffered and written under the write lock,
	// so they never interleave with outbox frames.
	var ctrlBuf bytes.Buffer
	ch := wsutil.ControlFrameHandler(&ctrlBuf, state)

	r := &wsutil.Reader{
		Source:         driver.conn,
		State:          state,
		CheckUTF8:      true,
		OnIntermediate: ch,
	}

	for {
		h, err := r.NextFrame()
		if err != nil {
			// Returning an error to echo at this stage only produces hijacked
			// connection noise, so it's logged here.
			log.Debugf("websocket read message error: %v", err)
			return
		}

		if h.OpCode.IsControl() {
			ctrlBuf.Reset()
			err = ch(h, r)
			if ctrlBuf.Len() > 0 {
				driver.writeMu.Lock()
				_, werr := driver.conn.Write(ctrlBuf.Bytes())
				driver.writeMu.Unlock()
				if werr != nil {
					log.Debugf("websocket control frame reply error: %v", werr)
					return
				}
			}
			if err != nil {
				if _, ok := err.(wsutil.ClosedError); ok {
					log.Debug("websocket connection closed by peer")
				} else {
					log.Errorf("websocket handles control frame error: %v", err)
				}
				return
			}
			continue
		}

		data, err := ioutil.ReadAll(r)
		if err != nil {
			log.Errorf("websocket read error: %v", err)
			return
		}

		if h.OpCode == ws.OpBinary || h.OpCode == ws.OpText {
			driver.Inbox <- NewInboxMessage(data)
		}
	}
}

func (driver *Driver) outboxHandler() {
	defer driver.wg.Done()
	defer driver.terminate()

	for {
		select {
		case res := <-driver.Outbox:
			if len(res.Data) > 0 {
				if err := driver.write(ws.OpText, res.Data); err != nil {
					log.Debugf("websocket terminates because of write error: %s", err.Error())
					return
				}
			}

			switch res.Flag {
			case FlagCloseGracefully:
				log.Debug("websocket handled outbox message and closes gracefully")
				body := ws.NewCloseFrameBody(ws.StatusNormalClosure, "")
				if err := driver.write(ws.OpClose, body); err != nil {
					log.Debugf("websocket close frame error: %s", err.Error())
				}
				return
			case FlagTerminate:
				log.Debug("websocket handled outbox message and terminates")
				return
			}
		case <-driver.terminateCh:
			return
		}
	}
}

func (driver *Driver) write(op ws.OpCode, data []byte) error {
	driver.writeMu.Lock()
	defer driver.writeMu.Unlock()
	return wsutil.WriteServerMessage(driver.conn, op, data)
}

func NewOutboxMessage(flag Flag, data []byte) *OutboxMessage {
	m := &OutboxMessage{
		Flag: flag,
	}
	if data != nil {
		m.Data = make([]byte, len(data))
		copy(m.Data, data)
	}
	return m
}

func NewInboxMessage(data []byte) *InboxMessage {
	m := &InboxMessage{}
	if data != nil {
		m.Data = make([]byte, len(data))
		copy(m.Data, data)
	}
	return m
}
