package transport

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/kodzimk/head2head/internal/battle"
	"github.com/kodzimk/head2head/internal/obslog"
	"github.com/kodzimk/head2head/pkg/battledto"
)

// Handler accepts battle websocket connections and pumps inbound events into
// the engine. One goroutine per connection; all outbound traffic goes through
// the registry-held sender.
type Handler struct {
	engine       *battle.Engine
	writeTimeout time.Duration
}

func NewHandler(engine *battle.Engine) *Handler {
	return &Handler{engine: engine, writeTimeout: 5 * time.Second}
}

// Register mounts the battle websocket route.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws/battle/{battle_id}", h.serveBattle)
}

type wsSender struct {
	conn    *websocket.Conn
	timeout time.Duration
}

func (s *wsSender) Send(v any) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return wsjson.Write(ctx, s.conn, v)
}

func (h *Handler) serveBattle(w http.ResponseWriter, r *http.Request) {
	battleID := strings.TrimSpace(r.PathValue("battle_id"))
	username := strings.TrimSpace(r.URL.Query().Get("username"))
	if battleID == "" || username == "" {
		http.Error(w, "battle_id and username are required", http.StatusBadRequest)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		obslog.L().Warn("ws_accept_failed", zap.String("battle_id", battleID), zap.Error(err))
		return
	}

	sender := &wsSender{conn: conn, timeout: h.writeTimeout}
	b := &battle.Battle{
		ID:    battleID,
		Sport: strings.TrimSpace(r.URL.Query().Get("sport")),
		Level: strings.TrimSpace(r.URL.Query().Get("level")),
	}
	handle, err := h.engine.Join(r.Context(), b, username, sender)
	if err != nil {
		_ = sender.Send(battledto.NewError(joinErrorText(err)))
		_ = conn.Close(websocket.StatusPolicyViolation, "join rejected")
		return
	}

	h.readLoop(r.Context(), conn, handle)
}

// readLoop blocks until the peer goes away, then reports the disconnect.
func (h *Handler) readLoop(ctx context.Context, conn *websocket.Conn, handle *battle.SessionHandle) {
	defer func() {
		h.engine.HandleDisconnect(handle)
		_ = conn.Close(websocket.StatusNormalClosure, "bye")
	}()

	for {
		var in battledto.Inbound
		if err := wsjson.Read(ctx, conn, &in); err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				return
			}
			obslog.L().Debug("ws_read_closed",
				zap.String("battle_id", handle.BattleID),
				zap.String("username", handle.Username),
				zap.Error(err),
			)
			return
		}
		h.dispatch(handle, &in)
	}
}

func (h *Handler) dispatch(handle *battle.SessionHandle, in *battledto.Inbound) {
	switch in.Type {
	case battledto.TypeSubmitAnswer:
		h.engine.SubmitAnswer(handle.BattleID, handle.Username, in.QuestionIndex, in.Answer)
	case battledto.TypePing:
		h.engine.Ping(handle.BattleID)
	default:
		obslog.L().Debug("ws_unknown_event",
			zap.String("battle_id", handle.BattleID),
			zap.String("type", in.Type),
		)
	}
}

func joinErrorText(err error) string {
	switch err {
	case battle.ErrBattleFull:
		return "battle already has two participants"
	case battle.ErrBattleNotFound:
		return "battle already finished"
	case battle.ErrInvalidArgs:
		return "battle id and username are required"
	default:
		return "join failed"
	}
}
