package report

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"report-media/internal/shared/eventbus"
	"report-media/internal/shared/model"
)

const (
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second
	wsWriteWait  = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsMessage 推送消息
//
//	快照：{"type": "snapshot", "data": GifStatusResponse}
//	事件：{"type": "event", "data": JobEvent}
//	心跳：{"type": "pong"}
type wsMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// HandleGifStatusWS 推送 GIF 合成状态变化
//
// 路由: GET /ws/reports/{id}/gif-status
//
// 连接建立后先推送一次当前状态快照，之后转发任务事件，
// 遇到 COMPLETED / FAILED / DELETED 事件后发送关闭帧。
// 快照为 COMPLETED 时推送后立即关闭；FAILED / DELETED 可以重新发起任务，
// 连接保持打开并等待下一次任务的事件。
//
// 客户端消息：
//
//	心跳：{"type": "ping"} -> 响应 {"type": "pong"}
func (h *Handler) HandleGifStatusWS(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	// 升级前确认 Report 存在，便于返回普通 HTTP 错误
	if _, err := h.reports.GetReport(r.Context(), id); err != nil {
		h.writeFailure(w, "report.ws", id, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[report.ws.upgrade.failed] report_id=%s error=%v", id, err)
		return
	}
	defer conn.Close()

	h.metrics.WSConnected(1)
	defer h.metrics.WSConnected(-1)
	log.Printf("[report.ws.connected] report_id=%s", id)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// 先订阅再取快照，避免两者之间的事件丢失
	var events <-chan *eventbus.JobEvent
	if h.events != nil {
		events, err = h.events.SubscribeJobEvents(ctx, id)
		if err != nil {
			log.Printf("[report.ws.subscribe.failed] report_id=%s error=%v", id, err)
		}
	}

	snapshot, err := h.currentStatus(ctx, id)
	if err != nil {
		log.Printf("[report.ws.snapshot.failed] report_id=%s error=%v", id, err)
		closeWS(conn, websocket.CloseInternalServerErr, "status unavailable")
		return
	}
	if err := writeWS(conn, wsMessage{Type: "snapshot", Data: snapshot}); err != nil {
		return
	}
	if snapshot.Status == model.GifStatusCompleted || events == nil {
		closeWS(conn, websocket.CloseNormalClosure, string(snapshot.Status))
		return
	}

	pings := make(chan struct{}, 1)
	go readPump(conn, cancel, pings)
	writePump(ctx, conn, events, pings)
}

// writePump 转发事件直到终态、订阅结束或客户端断开
//
// 连接的所有写操作都在这里完成，readPump 收到的心跳经 pings 转交。
func writePump(ctx context.Context, conn *websocket.Conn, events <-chan *eventbus.JobEvent, pings <-chan struct{}) {
	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-pings:
			if err := writeWS(conn, wsMessage{Type: "pong"}); err != nil {
				return
			}
		case ev, ok := <-events:
			if !ok {
				closeWS(conn, websocket.CloseGoingAway, "event stream closed")
				return
			}
			if err := writeWS(conn, wsMessage{Type: "event", Data: ev}); err != nil {
				return
			}
			if s := model.GifStatus(ev.Status()); s.IsTerminal() {
				closeWS(conn, websocket.CloseNormalClosure, string(s))
				return
			}
		}
	}
}

// readPump 读取客户端心跳，连接断开时取消 ctx
func readPump(conn *websocket.Conn, cancel context.CancelFunc, pings chan<- struct{}) {
	defer cancel()
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("[report.ws.read.failed] error=%v", err)
			}
			return
		}
		var req map[string]interface{}
		if json.Unmarshal(msg, &req) == nil && req["type"] == "ping" {
			select {
			case pings <- struct{}{}:
			default:
			}
		}
	}
}

func writeWS(conn *websocket.Conn, msg wsMessage) error {
	conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := conn.WriteJSON(msg); err != nil {
		log.Printf("[report.ws.write.failed] error=%v", err)
		return err
	}
	return nil
}

func closeWS(conn *websocket.Conn, code int, text string) {
	conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(wsWriteWait))
}
