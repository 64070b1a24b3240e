package ws

import (
	"context"
	"encoding/base64"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/CodeYard/DevSession/backend/internal/domain/hub"
	"github.com/CodeYard/DevSession/backend/internal/domain/session"
	"github.com/CodeYard/DevSession/backend/internal/shared/types"
)

// client is one editor socket bound to a session. The read pump is the
// only writer to send, so closing it after the dispatch loop drains is
// race-free; the write pump is the only goroutine touching the wire.
type client struct {
	handler *Handler
	conn    *websocket.Conn
	sess    *session.Session
	sub     *hub.Conn
	send    chan []byte

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

func newClient(h *Handler, conn *websocket.Conn, sess *session.Session, sub *hub.Conn) *client {
	ctx, cancel := context.WithCancel(context.Background())
	return &client{
		handler: h,
		conn:    conn,
		sess:    sess,
		sub:     sub,
		send:    make(chan []byte, sendDepth),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// teardown detaches from the session exactly once. Disconnecting the
// subscription starts the grace-period clock when this was the last
// client.
func (c *client) teardown() {
	c.once.Do(func() {
		c.cancel()
		c.handler.registry.Disconnect(c.sub)
		if c.handler.metrics != nil {
			c.handler.metrics.DecWSConnections()
		}
		c.handler.logger.Info("websocket disconnected",
			zap.String("session_id", c.sub.SessionID()),
			zap.String("conn_id", c.sub.ID().String()))
	})
}

// readPump consumes frames until the connection drops, dispatching each
// one inline. It owns the send channel's lifecycle.
func (c *client) readPump() {
	defer func() {
		c.teardown()
		close(c.send)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageBytes)
	c.conn.SetReadDeadline(time.Now().Add(readDeadline))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(readDeadline))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.handler.logger.Warn("websocket read error",
					zap.String("session_id", c.sub.SessionID()),
					zap.Error(err))
			}
			return
		}
		c.dispatch(raw)
	}
}

// writePump is the single writer on the wire. It interleaves queued
// responses, session events, and keepalive pings. A closed event
// channel (session removed) parks that select arm; the socket stays up
// for request traffic.
func (c *client) writePump() {
	ticker := time.NewTicker(pingInterval)
	events := c.sub.Events()
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			data, err := sonic.Marshal(ev)
			if err != nil {
				continue
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
			if c.handler.metrics != nil {
				c.handler.metrics.RecordWSMessage("outbound", string(ev.Type))
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// dispatch decodes one frame and executes it. Malformed frames are
// logged and dropped; the channel stays up. Successful operations
// reply only when the request carried a correlation id, so
// high-frequency senders like terminal input can opt out of acks.
func (c *client) dispatch(raw []byte) {
	var msg types.ClientMessage
	if err := sonic.Unmarshal(raw, &msg); err != nil {
		c.handler.logger.Warn("dropping malformed message",
			zap.String("session_id", c.sub.SessionID()),
			zap.Error(err))
		return
	}
	if c.handler.metrics != nil {
		c.handler.metrics.RecordWSMessage("inbound", msg.Type)
	}

	result, err := c.execute(&msg)
	if err != nil {
		c.handler.logger.Warn("operation failed",
			zap.String("session_id", c.sub.SessionID()),
			zap.String("op", msg.Type),
			zap.Error(err))
		c.reply(types.Response{Type: "error", ID: msg.ID, Op: msg.Type, Error: types.Body(err)})
		return
	}
	if msg.ID != "" {
		c.reply(types.Response{Type: "response", ID: msg.ID, Op: msg.Type, Result: result})
	}
}

func (c *client) execute(msg *types.ClientMessage) (interface{}, error) {
	switch msg.Type {
	case types.MsgPing:
		return "pong", nil

	case types.MsgSubscribe:
		// Readiness was announced at connect time; duplicate delivery
		// to a late subscriber is part of the startup contract.
		c.enqueueEvent(types.NewServerReadyEvent(c.sess.ID))
		return c.sess.Info(), nil

	case types.MsgFileRead:
		content, err := c.sess.Files.Read(c.ctx, msg.Path)
		if err != nil {
			return nil, err
		}
		return types.FileReadResponse{Path: msg.Path, Content: string(content)}, nil

	case types.MsgFileWrite:
		if msg.Content == nil {
			return nil, types.InvalidArgument("content is required")
		}
		if err := c.sess.Files.Write(c.ctx, msg.Path, []byte(*msg.Content)); err != nil {
			return nil, err
		}
		return okBody("path", msg.Path), nil

	case types.MsgFileMkdir:
		if err := c.sess.Files.Mkdir(c.ctx, msg.Path, msg.Recursive); err != nil {
			return nil, err
		}
		return okBody("path", msg.Path), nil

	case types.MsgFileList:
		p := msg.Path
		if p == "" {
			p = "/"
		}
		names, entries, err := c.sess.Files.List(c.ctx, p, msg.WithTypes)
		if err != nil {
			return nil, err
		}
		return types.FileListResponse{Path: p, Names: names, Entries: entries}, nil

	case types.MsgFileRemove:
		if err := c.sess.Files.Remove(c.ctx, msg.Path, msg.Recursive); err != nil {
			return nil, err
		}
		return okBody("path", msg.Path), nil

	case types.MsgFileStat:
		return c.sess.Files.Stat(c.ctx, msg.Path)

	case types.MsgFileFind:
		matches, err := c.sess.Files.Find(c.ctx, msg.Pattern)
		if err != nil {
			return nil, err
		}
		return types.FileFindResponse{Pattern: msg.Pattern, Matches: matches}, nil

	case types.MsgSpawn:
		h, err := c.sess.Spawn(msg.Command, msg.Args, msg.Cwd)
		if err != nil {
			return nil, err
		}
		return types.SpawnResponse{ProcessID: h.ID.String(), Pid: h.Pid}, nil

	case types.MsgStdin:
		if msg.Data == "" && !msg.Eof {
			return nil, types.InvalidArgument("stdin requires data or eof")
		}
		if msg.Data != "" {
			data, err := base64.StdEncoding.DecodeString(msg.Data)
			if err != nil {
				return nil, types.InvalidArgument("stdin data is not valid base64: %v", err)
			}
			if err := c.sess.Procs.WriteStdin(msg.ProcessID, data); err != nil {
				return nil, err
			}
		}
		if msg.Eof {
			if err := c.sess.Procs.CloseStdin(msg.ProcessID); err != nil {
				return nil, err
			}
		}
		return okBody("processId", msg.ProcessID), nil

	case types.MsgKill:
		if err := c.sess.Procs.Kill(msg.ProcessID); err != nil {
			return nil, err
		}
		return okBody("processId", msg.ProcessID), nil

	case types.MsgTerminalOpen:
		t, err := c.sess.Terms.Open(msg.Shell, msg.Cols, msg.Rows)
		if err != nil {
			return nil, err
		}
		return t.Info(), nil

	case types.MsgTerminalInput:
		if err := c.sess.Terms.Write(msg.TerminalID, []byte(msg.Data)); err != nil {
			return nil, err
		}
		return okBody("termId", msg.TerminalID), nil

	case types.MsgTerminalResize:
		if err := c.sess.Terms.Resize(msg.TerminalID, msg.Cols, msg.Rows); err != nil {
			return nil, err
		}
		return okBody("termId", msg.TerminalID), nil

	case types.MsgTerminalClose:
		if err := c.sess.Terms.Close(msg.TerminalID); err != nil {
			return nil, err
		}
		return okBody("termId", msg.TerminalID), nil

	default:
		return nil, types.InvalidArgument("unknown message type %q", msg.Type)
	}
}

// reply queues a response frame, dropping it if the socket has backed
// up past the queue bound.
func (c *client) reply(resp types.Response) {
	data, err := sonic.Marshal(resp)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
		if c.handler.metrics != nil {
			c.handler.metrics.RecordWSMessage("outbound", resp.Type)
		}
	default:
		c.handler.logger.Warn("response dropped on full send queue",
			zap.String("session_id", c.sub.SessionID()),
			zap.String("op", resp.Op))
	}
}

// enqueueEvent queues an event frame addressed to this socket only.
func (c *client) enqueueEvent(ev types.Event) {
	data, err := sonic.Marshal(ev)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func okBody(key, value string) map[string]interface{} {
	return map[string]interface{}{key: value, "ok": true}
}
