package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorillaws "github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/stemsi/exstem-drill/internal/config"
	"github.com/stemsi/exstem-drill/internal/handler"
	"github.com/stemsi/exstem-drill/internal/model"
	"github.com/stemsi/exstem-drill/internal/service"
	"github.com/stemsi/exstem-drill/internal/storage"
	"github.com/stemsi/exstem-drill/internal/validator"
	"github.com/stemsi/exstem-drill/internal/websocket"
)

const clientKey = "router-test-client-key"

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code string `json:"code"`
	} `json:"error"`
}

type api struct {
	t      *testing.T
	server *httptest.Server
}

func newAPI(t *testing.T) *api {
	t.Helper()
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	log := zerolog.Nop()

	hash, err := bcrypt.GenerateFromPassword([]byte(clientKey), bcrypt.MinCost)
	require.NoError(t, err)

	cfg := &config.Config{
		GinMode:       "test",
		JWTSecret:     "router-secret",
		JWTExpiry:     time.Hour,
		ClientKeyHash: string(hash),
		Exercise:      config.DefaultExerciseConfig(),
	}
	cfg.Exercise.AutoSaveFrequencyMs = 0

	store := storage.Open(ctx, storage.Options{Namespace: "router"}, log, storage.NewMemoryBackend(0))
	authService := service.NewAuthService(cfg, nil)
	exercises := service.NewExerciseService(nil, store, log)
	results := service.NewResultService(nil)
	sessions := service.NewSessionService(service.SessionDeps{
		Exercises: exercises,
		Store:     store,
		Log:       log,
		Defaults:  cfg.Exercise,
	})

	handlers := &Handlers{
		Auth:     handler.NewAuthHandler(authService),
		Session:  handler.NewSessionHandler(sessions),
		Exercise: handler.NewExerciseHandler(exercises, results),
		Result:   handler.NewResultHandler(results),
		WS:       handler.NewWSHandler(sessions, log, nil),
		System:   handler.NewSystemHandler(nil, sessions, store, nil, log),
	}

	srv := httptest.NewServer(SetupRouter(ctx, authService, handlers, cfg, log))
	t.Cleanup(func() {
		srv.Close()
		sessions.Shutdown(context.Background())
		_ = store.Close(context.Background())
		cancel()
	})
	return &api{t: t, server: srv}
}

func (a *api) do(method, path, token string, body any) (int, envelope) {
	a.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, a.server.URL+path, reader)
	require.NoError(a.t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := a.server.Client().Do(req)
	require.NoError(a.t, err)
	defer resp.Body.Close()

	var env envelope
	_ = json.NewDecoder(resp.Body).Decode(&env)
	return resp.StatusCode, env
}

func (a *api) token(role string, subject int) string {
	a.t.Helper()
	status, env := a.do(http.MethodPost, "/api/v1/auth/token", "", model.TokenRequest{
		ClientKey: clientKey, SubjectID: subject, Role: role,
	})
	require.Equal(a.t, http.StatusOK, status)
	var out struct {
		Token string `json:"token"`
	}
	require.NoError(a.t, json.Unmarshal(env.Data, &out))
	return out.Token
}

func trueFalse() *model.ExerciseDefinition {
	return &model.ExerciseDefinition{
		ID:    "tf-basics",
		Title: "True or false",
		Type:  model.ExerciseTypeTrueFalse,
		Questions: []model.Question{
			{ID: "q1", Prompt: "Water boils at 100C at sea level", CorrectAnswer: "true"},
			{ID: "q2", Prompt: "The sun orbits the earth", CorrectAnswer: "false"},
		},
	}
}

func TestRouter_Health(t *testing.T) {
	a := newAPI(t)

	resp, err := a.server.Client().Get(a.server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, []any{"memory"}, body["store_backends"])
}

func TestRouter_AuthBoundaries(t *testing.T) {
	a := newAPI(t)

	status, env := a.do(http.MethodGet, "/api/v1/sessions", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	require.NotNil(t, env.Error)

	status, _ = a.do(http.MethodPost, "/api/v1/auth/token", "", model.TokenRequest{
		ClientKey: "not-the-client-key", SubjectID: 1, Role: "learner",
	})
	assert.Equal(t, http.StatusUnauthorized, status)

	learner := a.token("learner", 7)
	author := a.token("author", 1)

	status, _ = a.do(http.MethodGet, "/api/v1/exercises/tf-basics", learner, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = a.do(http.MethodGet, "/api/v1/sessions", author, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = a.do(http.MethodGet, "/api/v1/auth/me", learner, nil)
	assert.Equal(t, http.StatusOK, status)

	// No results database is configured.
	status, _ = a.do(http.MethodGet, "/api/v1/results", learner, nil)
	assert.Equal(t, http.StatusNotImplemented, status)
}

func TestRouter_SessionFlow(t *testing.T) {
	a := newAPI(t)
	author := a.token("author", 1)
	learner := a.token("learner", 7)

	status, _ := a.do(http.MethodPut, "/api/v1/exercises/tf-basics", author, trueFalse())
	require.Equal(t, http.StatusOK, status)

	status, env := a.do(http.MethodPost, "/api/v1/sessions", learner, model.CreateSessionRequest{ExerciseID: "tf-basics", Start: true})
	require.Equal(t, http.StatusCreated, status)
	var view model.SessionView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	require.NotNil(t, view.Question)
	assert.Equal(t, "q1", view.Question.ID)
	assert.Equal(t, model.SessionStatusInProgress, view.State.Status)

	base := "/api/v1/sessions/" + view.SessionID

	// Another learner cannot see the session.
	other := a.token("learner", 8)
	status, _ = a.do(http.MethodGet, base, other, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = a.do(http.MethodPost, base+"/answer", learner, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, status)

	status, env = a.do(http.MethodPost, base+"/answer", learner, model.SubmitAnswerRequest{Answer: "true"})
	require.Equal(t, http.StatusOK, status)
	var submitted model.SubmitResult
	require.NoError(t, json.Unmarshal(env.Data, &submitted))
	assert.True(t, submitted.Validation.IsCorrect)

	status, _ = a.do(http.MethodPost, base+"/next", learner, nil)
	require.Equal(t, http.StatusOK, status)

	status, _ = a.do(http.MethodPost, base+"/answer", learner, model.SubmitAnswerRequest{Answer: "false"})
	require.Equal(t, http.StatusOK, status)

	status, env = a.do(http.MethodPost, base+"/complete", learner, nil)
	require.Equal(t, http.StatusOK, status)
	var result model.CompletionResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, view.SessionID, result.SessionID)
	assert.Equal(t, 2, result.Score.CorrectAnswers)

	status, _ = a.do(http.MethodPost, base+"/next", learner, nil)
	assert.Equal(t, http.StatusConflict, status)

	status, _ = a.do(http.MethodDelete, base, learner, nil)
	assert.Equal(t, http.StatusOK, status)
	status, _ = a.do(http.MethodGet, base, learner, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestRouter_SessionStream(t *testing.T) {
	a := newAPI(t)
	learner := a.token("learner", 7)

	status, env := a.do(http.MethodPost, "/api/v1/sessions", learner, model.CreateSessionRequest{Exercise: trueFalse(), Start: true})
	require.Equal(t, http.StatusCreated, status)
	var view model.SessionView
	require.NoError(t, json.Unmarshal(env.Data, &view))

	url := "ws" + strings.TrimPrefix(a.server.URL, "http") + "/ws/v1/sessions/" + view.SessionID + "/events?token=" + learner
	conn, _, err := gorillaws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	for {
		var first struct {
			Event string `json:"event"`
		}
		require.NoError(t, conn.ReadJSON(&first))
		if first.Event == websocket.EventState {
			break
		}
	}

	require.NoError(t, conn.WriteJSON(websocket.Request{Action: websocket.ActionPing, RequestID: "p1"}))
	requireReply(t, conn, "p1", websocket.EventPong)

	require.NoError(t, conn.WriteJSON(websocket.Request{Action: websocket.ActionAnswer, RequestID: "a1", Answer: json.RawMessage(`"true"`)}))
	requireReply(t, conn, "a1", websocket.EventAck)

	require.NoError(t, conn.WriteJSON(websocket.Request{Action: "teleport", RequestID: "x1"}))
	requireReply(t, conn, "x1", websocket.EventError)
}

// requireReply skips broadcast events until the reply to requestID arrives.
func requireReply(t *testing.T, conn *gorillaws.Conn, requestID, want string) {
	t.Helper()
	for {
		var env struct {
			Event     string `json:"event"`
			RequestID string `json:"request_id"`
		}
		require.NoError(t, conn.ReadJSON(&env))
		if env.RequestID == requestID {
			assert.Equal(t, want, env.Event)
			return
		}
	}
}
