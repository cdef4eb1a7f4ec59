package ws

import (
	"encoding/json"
	"strconv"
	"sync"

	"github.com/gofiber/contrib/websocket"

	"github.com/ffeai/docid_service/internal/telemetry"
)

var (
	mu    sync.RWMutex
	rooms = map[string]map[*websocket.Conn]struct{}{}
)

type Action string

const (
	ActionJoin  Action = "join"
	ActionLeave Action = "leave"
)

type Room string

const (
	RoomScan         Room = "scan.room"
	RoomScanOperator Room = "scan.room.operator"
	RoomBatch        Room = "batch.room"
)

type Event string

const (
	EventScanCreated   Event = "scan.event.created"
	EventScanSection   Event = "scan.event.section"
	EventScanMatched   Event = "scan.event.matched"
	EventScanUnmatched Event = "scan.event.unmatched"
	EventScanCompleted Event = "scan.event.completed"
	EventScanError     Event = "scan.event.error"
	EventBatchProgress Event = "batch.event.progress"
	EventBatchDone     Event = "batch.event.completed"
)

type PayloadEvent struct {
	Event Event `json:"event"`
	Data  any   `json:"data,omitempty"`
}

type ClientMessage struct {
	Action Action `json:"action"`
	Room   string `json:"room"`
}

func HandleWS(c *websocket.Conn) {
	tlog := telemetry.L().With().Str("module", "ws").Logger()
	tlog.Info().Msg("ws_connected")
	defer func() {
		mu.Lock()
		for room := range rooms {
			delete(rooms[room], c)
		}
		mu.Unlock()
		_ = c.Close()
	}()

	for {
		_, msg, err := c.ReadMessage()
		if err != nil {
			break
		}

		var cm ClientMessage
		if err := json.Unmarshal(msg, &cm); err != nil {
			continue
		}

		switch cm.Action {
		case ActionJoin:
			joinRoom(c, cm.Room)
		case ActionLeave:
			leaveRoom(c, cm.Room)
		}
	}
}

func joinRoom(c *websocket.Conn, room string) {
	if room == "" {
		return
	}
	mu.Lock()
	if rooms[room] == nil {
		rooms[room] = map[*websocket.Conn]struct{}{}
	}
	rooms[room][c] = struct{}{}
	mu.Unlock()
}

func leaveRoom(c *websocket.Conn, room string) {
	if room == "" {
		return
	}
	mu.Lock()
	delete(rooms[room], c)
	mu.Unlock()
}

func scanRoom(scanID int64) string {
	return string(RoomScan) + "." + strconv.FormatInt(scanID, 10)
}

func HasSubscribers(scanID int64) bool {
	mu.RLock()
	defer mu.RUnlock()
	return len(rooms[scanRoom(scanID)]) > 0
}

func broadcast(room string, pl PayloadEvent) {
	mu.RLock()
	conns := rooms[room]
	mu.RUnlock()

	for c := range conns {
		_ = c.WriteJSON(pl)
	}
}

func BroadcastScanCreated(operatorID, scanID int64, image string) {
	room := string(RoomScanOperator) + "." + strconv.FormatInt(operatorID, 10)
	broadcast(room, PayloadEvent{
		Event: EventScanCreated,
		Data: map[string]any{
			"scan_id":    scanID,
			"image_path": image,
		},
	})
}

type SectionPayload struct {
	ScanID     int64   `json:"scan_id"`
	X          int     `json:"x"`
	Y          int     `json:"y"`
	DocID      string  `json:"doc_id,omitempty"`
	Confidence float64 `json:"confidence"`
}

func BroadcastSection(scanID int64, p SectionPayload) {
	p.ScanID = scanID
	broadcast(scanRoom(scanID), PayloadEvent{Event: EventScanSection, Data: p})
}

type ScanResultPayload struct {
	ScanID     int64   `json:"scan_id"`
	DocID      string  `json:"doc_id,omitempty"`
	Engine     string  `json:"engine,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Error      string  `json:"error,omitempty"`
}

func BroadcastScanResult(scanID int64, docID, engine string, confidence float64) {
	ev := EventScanMatched
	if docID == "" {
		ev = EventScanUnmatched
	}
	broadcast(scanRoom(scanID), PayloadEvent{
		Event: ev,
		Data:  ScanResultPayload{ScanID: scanID, DocID: docID, Engine: engine, Confidence: confidence},
	})
}

func BroadcastScanError(scanID int64, err error) {
	broadcast(scanRoom(scanID), PayloadEvent{
		Event: EventScanError,
		Data:  ScanResultPayload{ScanID: scanID, Error: err.Error()},
	})
}

func BroadcastScanCompleted(scanID int64) {
	broadcast(scanRoom(scanID), PayloadEvent{
		Event: EventScanCompleted,
		Data:  ScanResultPayload{ScanID: scanID},
	})
}

type BatchPayload struct {
	BatchID   int64  `json:"batch_id"`
	File      string `json:"file,omitempty"`
	DocID     string `json:"doc_id,omitempty"`
	Processed int    `json:"processed"`
	Total     int    `json:"total"`
	Matched   int    `json:"matched"`
}

func BroadcastBatchProgress(batchID int64, p BatchPayload) {
	p.BatchID = batchID
	broadcast(string(RoomBatch)+"."+strconv.FormatInt(batchID, 10), PayloadEvent{Event: EventBatchProgress, Data: p})
}

func BroadcastBatchCompleted(batchID int64, p BatchPayload) {
	p.BatchID = batchID
	broadcast(string(RoomBatch)+"."+strconv.FormatInt(batchID, 10), PayloadEvent{Event: EventBatchDone, Data: p})
}
