package realtime

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/ayush/thunder-dashboard/backend/internal/auth"
	"github.com/ayush/thunder-dashboard/backend/internal/models"
	"github.com/ayush/thunder-dashboard/backend/internal/status"
	"github.com/ayush/thunder-dashboard/backend/internal/store"
)

const (
	maxMessageSize = 64 * 1024
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
)

// Frame types sent to viewers.
const (
	FrameView   = "view"
	FrameNotice = "notice"
)

// Command types accepted from viewers.
const (
	CmdToggle   = "toggle"
	CmdDelete   = "delete"
	CmdGenerate = "generate"
	CmdRefresh  = "refresh"
)

// Frame is a server to viewer message.
type Frame struct {
	Type    string            `json:"type"`
	Items   []status.ItemView `json:"items,omitempty"`
	Message string            `json:"message,omitempty"`
}

// Command is a viewer to server message.
type Command struct {
	Type       string `json:"type"`
	ID         string `json:"id,omitempty"`
	ExamWindow string `json:"exam_window,omitempty"`
}

// Records is what a viewer reads from the record store.
type Records interface {
	status.Loader
	GetSubject(ctx context.Context, userID, subjectID string) (*models.Subject, error)
}

// Actions are the writes a viewer may request.
type Actions interface {
	Deleter(userID string) status.Deleter
	GenerateReport(ctx context.Context, userID, subjectID string, req models.GenerateRequest) error
}

// Handler upgrades viewers to websockets and keeps one Reconciler per
// connection in sync with the Hub.
type Handler struct {
	hub      *Hub
	records  Records
	actions  Actions
	upgrader websocket.Upgrader
}

func NewHandler(hub *Hub, records Records, actions Actions, allowedOrigins []string) *Handler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &Handler{
		hub:     hub,
		records: records,
		actions: actions,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				// non-browser clients send no Origin
				return origin == "" || allowed[origin]
			},
		},
	}
}

// ServeWS handles GET /api/subjects/{id}/ws.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	subjectID := chi.URLParam(r, "id")
	if _, err := h.records.GetSubject(r.Context(), userID, subjectID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, `{"error":"subject not found"}`, http.StatusNotFound)
			return
		}
		log.Printf("ws subject lookup: %v", err)
		http.Error(w, `{"error":"failed to load subject"}`, http.StatusInternalServerError)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	// subscribe before loading so nothing between snapshot and stream is lost
	sub := h.hub.Subscribe(subjectID)
	defer h.hub.Unsubscribe(sub)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	cmds := make(chan Command)
	go readCommands(ctx, conn, cmds, cancel)

	v := &viewer{
		conn:      conn,
		userID:    userID,
		subjectID: subjectID,
		rec:       status.NewReconciler(subjectID, h.records),
		actions:   h.actions,
	}
	v.run(ctx, sub, cmds)
}

func readCommands(ctx context.Context, conn *websocket.Conn, out chan<- Command, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var cmd Command
		if err := conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("websocket read: %v", err)
			}
			return
		}
		select {
		case out <- cmd:
		case <-ctx.Done():
			return
		}
	}
}

// viewer is owned by the connection goroutine; it is the only writer to
// conn and the only user of rec.
type viewer struct {
	conn      *websocket.Conn
	userID    string
	subjectID string
	rec       *status.Reconciler
	actions   Actions
}

func (v *viewer) run(ctx context.Context, sub *Subscription, cmds <-chan Command) {
	if !v.load(ctx) {
		return
	}

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		var err error
		select {
		case <-ctx.Done():
			v.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		case ev := <-sub.Events():
			var changed bool
			changed, err = v.rec.Handle(ctx, ev)
			if err != nil {
				log.Printf("viewer %s: %v", v.subjectID, err)
				err = v.send(Frame{Type: FrameNotice, Message: err.Error()})
			} else if changed {
				err = v.sendView()
			}
		case <-sub.Resync():
			v.rec.Reset()
			if !v.load(ctx) {
				return
			}
		case cmd := <-cmds:
			err = v.handle(ctx, cmd)
		case <-ticker.C:
			v.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err = v.conn.WriteMessage(websocket.PingMessage, nil)
		}
		if err != nil {
			return
		}
	}
}

func (v *viewer) load(ctx context.Context) bool {
	if err := v.rec.Load(ctx); err != nil {
		log.Printf("viewer %s: %v", v.subjectID, err)
		v.send(Frame{Type: FrameNotice, Message: "failed to load items"})
		return false
	}
	return v.sendView() == nil
}

func (v *viewer) handle(ctx context.Context, cmd Command) error {
	switch cmd.Type {
	case CmdToggle:
		if _, err := v.rec.ToggleSelect(cmd.ID); err != nil {
			return v.send(Frame{Type: FrameNotice, Message: err.Error()})
		}
		return v.sendView()

	case CmdDelete:
		err := v.rec.Remove(ctx, cmd.ID, v.actions.Deleter(v.userID))
		if sendErr := v.sendView(); sendErr != nil {
			return sendErr
		}
		if err != nil {
			log.Printf("viewer %s: %v", v.subjectID, err)
			return v.send(Frame{Type: FrameNotice, Message: "delete failed: " + err.Error()})
		}
		return nil

	case CmdGenerate:
		err := v.actions.GenerateReport(ctx, v.userID, v.subjectID, models.GenerateRequest{
			SessionIDs: v.rec.Selected(),
			ExamWindow: cmd.ExamWindow,
		})
		if err != nil {
			return v.send(Frame{Type: FrameNotice, Message: err.Error()})
		}
		v.rec.ClearSelection()
		if err := v.send(Frame{Type: FrameNotice, Message: "report generation started"}); err != nil {
			return err
		}
		return v.sendView()

	case CmdRefresh:
		v.rec.Reset()
		if !v.load(ctx) {
			return errors.New("reload failed")
		}
		return nil
	}
	return v.send(Frame{Type: FrameNotice, Message: "unknown command " + cmd.Type})
}

func (v *viewer) sendView() error {
	return v.send(Frame{Type: FrameView, Items: status.Present(v.rec.Items())})
}

func (v *viewer) send(f Frame) error {
	v.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := v.conn.WriteJSON(f); err != nil {
		log.Printf("websocket write: %v", err)
		return err
	}
	return nil
}
