package validator

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/exstem-drill/internal/model"
)

func newContext(body string) *gin.Context {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	return c
}

func TestBind_CreateSession(t *testing.T) {
	Setup()

	tests := []struct {
		name      string
		body      string
		wantField string
	}{
		{"missing exercise", `{}`, "exercise_id"},
		{"unknown type", `{"exercise":{"id":"x","type":"essay","questions":[{"prompt":"a"}]}}`, "exercise.type"},
		{"no questions", `{"exercise":{"id":"x","type":"multiple_choice","questions":[]}}`, "exercise.questions"},
		{"bad difficulty", `{"exercise":{"id":"x","type":"multiple_choice","questions":[{"difficulty":"brutal"}]}}`, "exercise.questions[0].difficulty"},
		{"bad resume id", `{"exercise_id":"x","resume_session_id":"nope"}`, "resume_session_id"},
		{"negative limit", `{"exercise_id":"x","config":{"time_limit_sec":-1}}`, "config.time_limit_sec"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req model.CreateSessionRequest
			fields := Bind(newContext(tt.body), &req)
			require.NotNil(t, fields)
			assert.Contains(t, fields, tt.wantField)
		})
	}
}

func TestBind_Valid(t *testing.T) {
	Setup()

	var req model.CreateSessionRequest
	fields := Bind(newContext(`{"exercise":{"id":"x","type":"sequencing","questions":[{"correct_sequence":["a","b"]}]},"start":true}`), &req)
	assert.Nil(t, fields)
	require.NotNil(t, req.Exercise)
	assert.Equal(t, model.ExerciseTypeSequencing, req.Exercise.Type)
	assert.True(t, req.Start)
}

func TestBind_TranslatesExerciseType(t *testing.T) {
	Setup()

	var req model.CreateSessionRequest
	fields := Bind(newContext(`{"exercise":{"id":"x","type":"essay","questions":[{}]}}`), &req)
	assert.Equal(t, "type must be a supported exercise type", fields["exercise.type"])
}

func TestBind_MalformedJSON(t *testing.T) {
	var req model.HintRequest
	fields := Bind(newContext(`{"level":`), &req)
	assert.Contains(t, fields, "detail")
}
