package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/xpanvictor/civicguru/internal/domains/auth"
	"github.com/xpanvictor/civicguru/internal/domains/conversation"
	"github.com/xpanvictor/civicguru/internal/domains/preferences"
	convoRepo "github.com/xpanvictor/civicguru/internal/repository/conversation"
	prefRepo "github.com/xpanvictor/civicguru/internal/repository/preferences"
	"github.com/xpanvictor/civicguru/internal/types"
	"github.com/xpanvictor/civicguru/pkg/Logger"
)

type apiFixture struct {
	router *gin.Engine
	convos conversation.ConversationService
	token  string
	owner  uuid.UUID
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := Logger.NewNop()

	authService := auth.NewAuthService(logger, "test-secret", "", time.Hour)
	convos := conversation.New(convoRepo.NewMemoryConvoRepo(), logger, time.UTC)
	prefs := preferences.New(prefRepo.NewMemoryPreferenceRepo(), logger)

	r := gin.New()
	r.Use(ErrorHandlerMiddleware(logger))
	api := r.Group("/api/v1")
	NewAuthHandler(authService, logger).RegisterAuthRoutes(api)
	NewConvoHandler(convos, logger).RegisterConversationRoutes(api, authService)
	NewPreferenceHandler(prefs, logger).RegisterPreferenceRoutes(api, authService)

	f := &apiFixture{router: r, convos: convos}

	rec := f.do(t, http.MethodPost, "/api/v1/auth/token", auth.PairRequest{DeviceName: "classroom"}, false)
	if rec.Code != http.StatusCreated {
		t.Fatalf("pair: %d %s", rec.Code, rec.Body.String())
	}
	var pair PairResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &pair); err != nil {
		t.Fatalf("decode pair: %v", err)
	}
	f.token = pair.Tokens.AccessToken
	f.owner = uuid.MustParse(pair.Tokens.DeviceID)
	return f
}

func (f *apiFixture) do(t *testing.T, method, path string, body interface{}, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if authed {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *apiFixture) seed(t *testing.T) types.Conversation {
	t.Helper()
	at := time.Date(2025, 1, 26, 9, 30, 0, 0, time.UTC)
	conv, err := f.convos.Save(context.Background(), types.Conversation{
		ID:       uuid.New(),
		OwnerID:  f.owner,
		Mode:     types.QUICK,
		Language: types.ENGLISH,
		Messages: []types.Message{
			{ID: uuid.New(), Speaker: types.USER, Text: "Why queue at the bus stop?", IsFinal: true, Timestamp: at},
			{ID: uuid.New(), Speaker: types.ASSISTANT, Text: "Queues keep boarding fair and safe.", IsFinal: true, Timestamp: at.Add(time.Minute)},
		},
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return *conv
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	f := newAPIFixture(t)
	for _, path := range []string{"/api/v1/conversations", "/api/v1/pins", "/api/v1/preferences/voice"} {
		if rec := f.do(t, http.MethodGet, path, nil, false); rec.Code != http.StatusUnauthorized {
			t.Errorf("%s without token: %d", path, rec.Code)
		}
	}
}

func TestConversationRoutes(t *testing.T) {
	f := newAPIFixture(t)
	conv := f.seed(t)

	rec := f.do(t, http.MethodGet, "/api/v1/conversations", nil, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: %d", rec.Code)
	}
	var list ListConversationsResponse
	json.Unmarshal(rec.Body.Bytes(), &list)
	if list.Total != 1 || list.Conversations[0].Title != "Why queue at the bus stop?..." || list.Conversations[0].MessageCount != 2 {
		t.Fatalf("unexpected list %+v", list)
	}

	rec = f.do(t, http.MethodGet, "/api/v1/conversations/"+conv.ID.String()+"/export", nil, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("export: %d", rec.Code)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "civic-sense-chat-") {
		t.Fatalf("unexpected disposition %q", cd)
	}
	want := "[09:30] User: Why queue at the bus stop?\n\n[09:31] Guru: Queues keep boarding fair and safe."
	if rec.Body.String() != want {
		t.Fatalf("export body:\n%s", rec.Body.String())
	}

	if rec = f.do(t, http.MethodGet, "/api/v1/conversations/not-a-uuid", nil, true); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id: %d", rec.Code)
	}
	if rec = f.do(t, http.MethodGet, "/api/v1/conversations/"+uuid.NewString(), nil, true); rec.Code != http.StatusNotFound {
		t.Fatalf("missing conversation: %d", rec.Code)
	}

	if rec = f.do(t, http.MethodDelete, "/api/v1/conversations/"+conv.ID.String(), nil, true); rec.Code != http.StatusNoContent {
		t.Fatalf("delete: %d", rec.Code)
	}
	if rec = f.do(t, http.MethodGet, "/api/v1/conversations/"+conv.ID.String(), nil, true); rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete: %d", rec.Code)
	}
}

func TestPinRoutes(t *testing.T) {
	f := newAPIFixture(t)
	ts := time.Date(2025, 1, 26, 9, 0, 0, 0, time.UTC)
	req := types.CreatePin{
		ConversationID: uuid.New(),
		Speaker:        types.ASSISTANT,
		Text:           "Always use the zebra crossing.",
		Timestamp:      ts,
	}

	if rec := f.do(t, http.MethodPost, "/api/v1/pins", req, true); rec.Code != http.StatusCreated {
		t.Fatalf("pin: %d %s", rec.Code, rec.Body.String())
	}
	if rec := f.do(t, http.MethodPost, "/api/v1/pins", req, true); rec.Code != http.StatusConflict {
		t.Fatalf("duplicate pin: %d", rec.Code)
	}

	rec := f.do(t, http.MethodGet, "/api/v1/pins", nil, true)
	var pins ListPinsResponse
	json.Unmarshal(rec.Body.Bytes(), &pins)
	if len(pins.Pins) != 1 || pins.Pins[0].Text != req.Text {
		t.Fatalf("unexpected pins %+v", pins)
	}

	path := "/api/v1/pins/" + ts.Format(time.RFC3339Nano)
	if rec = f.do(t, http.MethodDelete, path, nil, true); rec.Code != http.StatusNoContent {
		t.Fatalf("unpin: %d", rec.Code)
	}
	if rec = f.do(t, http.MethodDelete, path, nil, true); rec.Code != http.StatusNotFound {
		t.Fatalf("unpin twice: %d", rec.Code)
	}
}

func TestVoiceRoutesClamp(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/preferences/voice", nil, true)
	var got VoiceResponse
	json.Unmarshal(rec.Body.Bytes(), &got)
	if got.Voice != (types.VoicePreference{Rate: 1, Pitch: 1, Volume: 0.8}) {
		t.Fatalf("unexpected defaults %+v", got.Voice)
	}

	rec = f.do(t, http.MethodPut, "/api/v1/preferences/voice", types.VoicePreference{Rate: 3, Pitch: 0.9, Volume: 1.5}, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("update: %d", rec.Code)
	}
	json.Unmarshal(rec.Body.Bytes(), &got)
	if got.Voice != (types.VoicePreference{Rate: 2, Pitch: 0.9, Volume: 1}) {
		t.Fatalf("expected clamped settings, got %+v", got.Voice)
	}
}
