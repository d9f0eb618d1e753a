package chainclient

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/hxuan190/cyclearb/internal/ports"
)

const (
	wsReconnectDelay    = 1 * time.Second
	wsMaxReconnectDelay = 30 * time.Second
	wsPingInterval      = 30 * time.Second
	wsReadTimeout       = 60 * time.Second
	wsWriteTimeout      = 10 * time.Second
	wsSubscribeTimeout  = 30 * time.Second
)

// wsSession owns one websocket connection subscribed to every program id
// passed to SubscribeLogs, reconnecting and resubscribing on drop.
type wsSession struct {
	endpoint string

	conn      *websocket.Conn
	connMu    sync.Mutex
	closed    atomic.Bool
	requestID atomic.Uint64

	streamByProgram map[string]ports.LogStream
	streamBySub     map[int64]ports.LogStream
	subsMu          sync.RWMutex

	pendingSubs   map[uint64]chan int64
	pendingSubsMu sync.Mutex

	out  chan ports.LogEvent
	done chan struct{}
	wg   sync.WaitGroup
}

// SubscribeLogs opens one websocket connection and subscribes to
// logsSubscribe for every program id, tagging each notification with the
// LogStream matching its position (CPMM, CLMM, bonding-curve migration per
// discovery.ProgramSet's ordering).
func (c *Client) SubscribeLogs(ctx context.Context, programIDs []string) (<-chan ports.LogEvent, error) {
	if len(programIDs) == 0 {
		return nil, fmt.Errorf("chainclient: no program ids to subscribe")
	}

	streamByProgram := make(map[string]ports.LogStream, len(programIDs))
	for i, id := range programIDs {
		streamByProgram[id] = ports.LogStream(i)
	}

	s := &wsSession{
		endpoint:        c.wsURL,
		streamByProgram: streamByProgram,
		streamBySub:     make(map[int64]ports.LogStream),
		pendingSubs:     make(map[uint64]chan int64),
		out:             make(chan ports.LogEvent, 10000),
		done:            make(chan struct{}),
	}

	if err := s.connect(ctx); err != nil {
		return nil, err
	}

	for id := range streamByProgram {
		subID, err := s.subscribe(ctx, id)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("subscribe %s: %w", id, err)
		}
		s.subsMu.Lock()
		s.streamBySub[subID] = streamByProgram[id]
		s.subsMu.Unlock()
	}

	s.wg.Add(2)
	go s.readLoop()
	go s.pingLoop()

	go func() {
		<-ctx.Done()
		s.Close()
	}()

	return s.out, nil
}

func (s *wsSession) connect(ctx context.Context) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}
	s.conn = conn
	return nil
}

func (s *wsSession) subscribe(ctx context.Context, programID string) (int64, error) {
	if s.closed.Load() {
		return 0, fmt.Errorf("session closed")
	}

	reqID := s.requestID.Add(1)
	req := wsRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  "logsSubscribe",
		Params: []interface{}{
			map[string]interface{}{"mentions": []string{programID}},
			map[string]string{"commitment": "confirmed"},
		},
	}

	confirmCh := make(chan int64, 1)
	s.pendingSubsMu.Lock()
	s.pendingSubs[reqID] = confirmCh
	s.pendingSubsMu.Unlock()

	s.connMu.Lock()
	if s.conn == nil {
		s.connMu.Unlock()
		s.dropPending(reqID)
		return 0, fmt.Errorf("not connected")
	}
	s.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	err := s.conn.WriteJSON(req)
	s.connMu.Unlock()
	if err != nil {
		s.dropPending(reqID)
		return 0, fmt.Errorf("write subscribe: %w", err)
	}

	select {
	case subID := <-confirmCh:
		return subID, nil
	case <-time.After(wsSubscribeTimeout):
		s.dropPending(reqID)
		return 0, fmt.Errorf("subscription timeout")
	case <-s.done:
		return 0, fmt.Errorf("session closed")
	case <-ctx.Done():
		s.dropPending(reqID)
		return 0, ctx.Err()
	}
}

func (s *wsSession) dropPending(reqID uint64) {
	s.pendingSubsMu.Lock()
	delete(s.pendingSubs, reqID)
	s.pendingSubsMu.Unlock()
}

func (s *wsSession) Close() {
	if s.closed.Swap(true) {
		return
	}
	close(s.done)

	s.connMu.Lock()
	if s.conn != nil {
		s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.conn.Close()
	}
	s.connMu.Unlock()

	s.wg.Wait()
	close(s.out)
}

func (s *wsSession) readLoop() {
	defer s.wg.Done()
	delay := wsReconnectDelay

	for !s.closed.Load() {
		s.connMu.Lock()
		conn := s.conn
		s.connMu.Unlock()

		if conn == nil {
			select {
			case <-s.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			if s.closed.Load() {
				return
			}
			log.Warn().Err(err).Msg("chainclient: websocket read failed, reconnecting")
			s.reconnect(delay)
			delay *= 2
			if delay > wsMaxReconnectDelay {
				delay = wsMaxReconnectDelay
			}
			select {
			case <-s.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		delay = wsReconnectDelay
		s.handleMessage(message)
	}
}

func (s *wsSession) reconnect(delay time.Duration) {
	select {
	case <-s.done:
		return
	case <-time.After(delay):
	}

	s.connMu.Lock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.connMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.connect(ctx); err != nil {
		log.Warn().Err(err).Msg("chainclient: websocket reconnect failed")
		return
	}
	s.resubscribeAll()
}

func (s *wsSession) resubscribeAll() {
	s.subsMu.RLock()
	programByOldSub := make(map[int64]string, len(s.streamBySub))
	for subID, stream := range s.streamBySub {
		for id, st := range s.streamByProgram {
			if st == stream {
				programByOldSub[subID] = id
				break
			}
		}
	}
	s.subsMu.RUnlock()

	for oldSubID, programID := range programByOldSub {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		newSubID, err := s.subscribe(ctx, programID)
		cancel()
		if err != nil {
			log.Warn().Err(err).Str("program", programID).Msg("chainclient: resubscribe failed")
			continue
		}
		s.subsMu.Lock()
		stream := s.streamBySub[oldSubID]
		delete(s.streamBySub, oldSubID)
		s.streamBySub[newSubID] = stream
		s.subsMu.Unlock()
	}
}

func (s *wsSession) handleMessage(message []byte) {
	var resp wsSubscribeResponse
	if err := json.Unmarshal(message, &resp); err == nil && resp.Result > 0 {
		s.pendingSubsMu.Lock()
		ch, ok := s.pendingSubs[resp.ID]
		if ok {
			delete(s.pendingSubs, resp.ID)
		}
		s.pendingSubsMu.Unlock()
		if ok {
			select {
			case ch <- resp.Result:
			default:
			}
		}
		return
	}

	var notif wsNotification
	if err := json.Unmarshal(message, &notif); err == nil && notif.Method == "logsNotification" && notif.Params != nil {
		s.subsMu.RLock()
		stream, ok := s.streamBySub[notif.Params.Subscription]
		s.subsMu.RUnlock()
		if !ok {
			return
		}
		evt := ports.LogEvent{Stream: stream, Signature: notif.Params.Result.Value.Signature}
		select {
		case s.out <- evt:
		case <-s.done:
		}
	}
}

func (s *wsSession) pingLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.connMu.Lock()
			if s.conn != nil {
				s.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
				s.conn.WriteMessage(websocket.PingMessage, nil)
			}
			s.connMu.Unlock()
		}
	}
}

type wsRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type wsSubscribeResponse struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Result  int64  `json:"result"`
}

type wsNotification struct {
	JSONRPC string                `json:"jsonrpc"`
	Method  string                `json:"method"`
	Params  *wsNotificationParams `json:"params"`
}

type wsNotificationParams struct {
	Subscription int64                `json:"subscription"`
	Result       wsNotificationResult `json:"result"`
}

type wsNotificationResult struct {
	Value wsLogsValue `json:"value"`
}

type wsLogsValue struct {
	Signature string      `json:"signature"`
	Logs      []string    `json:"logs"`
	Err       interface{} `json:"err"`
}
