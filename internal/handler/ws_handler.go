package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-drill/internal/engine"
	"github.com/stemsi/exstem-drill/internal/event"
	"github.com/stemsi/exstem-drill/internal/middleware"
	"github.com/stemsi/exstem-drill/internal/response"
	"github.com/stemsi/exstem-drill/internal/service"
	ws "github.com/stemsi/exstem-drill/internal/websocket"
)

var (
	errAnswerRequired = errors.New("answer is required")
	errUnknownAction  = errors.New("unknown action")
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowedOrigins permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams engine events to a learner and accepts commands on the
// same connection.
type WSHandler struct {
	sessionService *service.SessionService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessionService *service.SessionService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		sessionService: sessionService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// SessionStream godoc
// WS /ws/v1/sessions/:session_id/events?token=...
// Sends the session state on connect, then every engine event as
// {"event": name, "data": payload}.
func (h *WSHandler) SessionStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	sessionID := c.Param("session_id")
	eng, err := h.sessionService.Get(sessionID, claims.UserID)
	if err != nil {
		failErr(c, err)
		return
	}

	raw, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	wsLog := h.log.With().
		Int("learner_id", claims.UserID).
		Str("session_id", sessionID).
		Logger()

	conn := ws.NewConn(raw, wsLog)
	conn.Droppable = func(env ws.Envelope) bool {
		return env.Event == string(event.NameTimerUpdate)
	}

	unsubscribe := eng.Bus().Subscribe(event.ObserverFunc(func(ev event.Event) {
		conn.Send(ws.Envelope{Event: string(ev.Name()), Data: ev})
		if ev.Name() == event.NameEngineDestroyed {
			conn.Close()
		}
	}))
	defer unsubscribe()

	go conn.WritePump()
	defer conn.Close()

	conn.Send(ws.Envelope{Event: ws.EventState, Data: stateData(eng)})
	wsLog.Info().Msg("Learner connected")

	// Commands run detached from the upgrade request.
	ctx := context.Background()
	for {
		var req ws.Request
		if err := ws.ReadJSON(conn.Raw(), &req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		select {
		case <-conn.Done():
			return
		default:
		}

		if req.Action == ws.ActionPing {
			conn.Send(ws.Envelope{Event: ws.EventPong, RequestID: req.RequestID})
			continue
		}

		data, err := dispatch(ctx, eng, req)
		if err != nil {
			_, code := classify(err)
			if errors.Is(err, errUnknownAction) || errors.Is(err, errAnswerRequired) {
				code = response.ErrInvalidPayload
			}
			conn.SendError(req.RequestID, string(code), response.GetMessage(code))
			continue
		}
		conn.Send(ws.Envelope{Event: ws.EventAck, RequestID: req.RequestID, Data: data})
	}
}

// dispatch runs one client command against the engine.
func dispatch(ctx context.Context, eng *engine.Engine, req ws.Request) (any, error) {
	switch req.Action {
	case ws.ActionState:
		return stateData(eng), nil
	case ws.ActionStart:
		return nil, eng.Start(ctx)
	case ws.ActionAnswer:
		if len(req.Answer) == 0 || string(req.Answer) == "null" {
			return nil, errAnswerRequired
		}
		var ans any
		if err := json.Unmarshal(req.Answer, &ans); err != nil {
			return nil, errAnswerRequired
		}
		return eng.SubmitAnswer(ctx, ans)
	case ws.ActionNext:
		return eng.NextQuestion(ctx)
	case ws.ActionPrevious:
		return eng.PreviousQuestion(ctx)
	case ws.ActionGoTo:
		if req.Index == nil {
			return nil, engine.ErrQuestionOutOfRange
		}
		return eng.GoToQuestion(ctx, *req.Index)
	case ws.ActionHint:
		return eng.GetHint(ctx, req.Level)
	case ws.ActionPause:
		return nil, eng.Pause(ctx)
	case ws.ActionResume:
		return nil, eng.Resume(ctx)
	case ws.ActionBookmark:
		if req.Index != nil {
			added, err := eng.BookmarkQuestion(ctx, *req.Index)
			return map[string]bool{"bookmarked": added}, err
		}
		added, err := eng.BookmarkCurrent(ctx)
		return map[string]bool{"bookmarked": added}, err
	case ws.ActionComplete:
		return eng.Complete(ctx)
	default:
		return nil, errUnknownAction
	}
}

func stateData(eng *engine.Engine) gin.H {
	out := gin.H{"state": eng.GetState()}
	if q, err := eng.CurrentQuestion(); err == nil {
		out["question"] = q
	}
	return out
}
