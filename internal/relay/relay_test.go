package relay

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"

	"github.com/storeloop/danbot/internal/llm"
	"github.com/storeloop/danbot/internal/session"
)

// mockCompleter replays scripted outcomes in order, one per Complete call.
type mockCompleter struct {
	replies  []string
	err      error
	requests [][]openai.ChatCompletionMessage
}

func (m *mockCompleter) Complete(_ context.Context, messages []openai.ChatCompletionMessage) (string, error) {
	m.requests = append(m.requests, messages)
	if m.err != nil {
		return "", m.err
	}
	if len(m.replies) == 0 {
		panic("mockCompleter: no more replies configured")
	}
	reply := m.replies[0]
	m.replies = m.replies[1:]
	return reply, nil
}

type mockSender struct {
	to, body string
	calls    int
	sid      string
	err      error
}

func (m *mockSender) Send(to, body string) (string, error) {
	m.calls++
	m.to, m.body = to, body
	if m.err != nil {
		return "", m.err
	}
	return m.sid, nil
}

func newTestHandler(completer Completer, sender Sender, maxPairs int) (*Handler, *session.MemoryStore) {
	store := session.NewMemoryStore(maxPairs)
	return NewHandler(store, completer, sender, "be Dan", maxPairs), store
}

func postForm(t *testing.T, h http.HandlerFunc, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/sms", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	h(w, req)
	return w
}

func postJSON(t *testing.T, h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/initiate", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h(w, req)
	return w
}

func TestInbound_EmptyBodyPromptsForInputWithoutTouchingHistory(t *testing.T) {
	completer := &mockCompleter{}
	h, store := newTestHandler(completer, &mockSender{}, 10)

	w := postForm(t, h.Inbound, url.Values{"Body": {"   "}, "From": {"whatsapp:+14155238886"}})

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "text/xml", w.Header().Get("Content-Type"))
	require.Contains(t, w.Body.String(), promptForInputText)
	require.Empty(t, completer.requests, "completion service must not be called")
	require.Empty(t, store.History("whatsapp:+14155238886"))
}

func TestInbound_MissingSenderIsClientError(t *testing.T) {
	h, _ := newTestHandler(&mockCompleter{}, &mockSender{}, 10)

	w := postForm(t, h.Inbound, url.Values{"Body": {"hello"}})

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInbound_FirstMessageRoundTrip(t *testing.T) {
	completer := &mockCompleter{replies: []string{"hi there"}}
	h, store := newTestHandler(completer, &mockSender{}, 10)

	w := postForm(t, h.Inbound, url.Values{"Body": {"hello"}, "From": {"X"}})

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "<Message>hi there</Message>")

	require.Equal(t, []session.Entry{
		{Role: session.RoleUser, Content: "hello"},
		{Role: session.RoleAssistant, Content: "hi there"},
	}, store.History("X"))

	// Prompt carried the persona first, then the appended user message.
	require.Len(t, completer.requests, 1)
	sent := completer.requests[0]
	require.Equal(t, openai.ChatMessageRoleSystem, sent[0].Role)
	require.Equal(t, "be Dan", sent[0].Content)
	require.Equal(t, "hello", sent[len(sent)-1].Content)
}

func TestInbound_CompletionFailureRollsBackAndApologizes(t *testing.T) {
	completer := &mockCompleter{replies: []string{"first reply"}}
	h, store := newTestHandler(completer, &mockSender{}, 10)

	postForm(t, h.Inbound, url.Values{"Body": {"hello"}, "From": {"X"}})
	require.Len(t, store.History("X"), 2)

	completer.err = &llm.CompletionError{Err: errors.New("upstream down")}
	w := postForm(t, h.Inbound, url.Values{"Body": {"are you there?"}, "From": {"X"}})

	// Carrier protocol still gets a success-shaped envelope.
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), apologyText)
	require.Len(t, store.History("X"), 2, "failed request must not grow history")
}

func TestInbound_ElevenRoundTripsKeepTheCap(t *testing.T) {
	const maxPairs = 10
	completer := &mockCompleter{}
	for i := 1; i <= 11; i++ {
		completer.replies = append(completer.replies, fmt.Sprintf("a%d", i))
	}
	h, store := newTestHandler(completer, &mockSender{}, maxPairs)

	for i := 1; i <= 11; i++ {
		w := postForm(t, h.Inbound, url.Values{"Body": {fmt.Sprintf("u%d", i)}, "From": {"X"}})
		require.Equal(t, http.StatusOK, w.Code)
	}

	history := store.History("X")
	require.Len(t, history, 2*maxPairs)
	for _, e := range history {
		require.NotEqual(t, "u1", e.Content)
		require.NotEqual(t, "a1", e.Content)
	}
}

func TestInitiate_SendsGeneratedOpeningLine(t *testing.T) {
	completer := &mockCompleter{replies: []string{"yo Casey! how's the new grinder treating you?"}}
	sender := &mockSender{sid: "SM123"}
	h, store := newTestHandler(completer, sender, 10)

	w := postJSON(t, h.Initiate, `{"phone_number":"+15551234567","description":"bought a coffee grinder","customer_name":"Casey"}`)

	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{
		"success": true,
		"message": "Initial message sent successfully",
		"message_sid": "SM123",
		"customer_name": "Casey"
	}`, w.Body.String())

	require.Equal(t, "+15551234567", sender.to)
	require.Equal(t, "yo Casey! how's the new grinder treating you?", sender.body)

	// Seed context and opening line are persisted, so the customer's first
	// inbound message will carry history.
	history := store.History("+15551234567")
	require.Len(t, history, 2)
	require.Equal(t, session.RoleUser, history[0].Role)
	require.Contains(t, history[0].Content, "Casey")
	require.Contains(t, history[0].Content, "coffee grinder")
	require.Equal(t, session.RoleAssistant, history[1].Role)
}

func TestInitiate_MissingFieldIsClientErrorWithoutSend(t *testing.T) {
	sender := &mockSender{}
	h, _ := newTestHandler(&mockCompleter{}, sender, 10)

	w := postJSON(t, h.Initiate, `{"phone_number":"+15551234567","description":"bought a coffee grinder"}`)

	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "error")
	require.Zero(t, sender.calls, "no send attempt expected")
}

func TestInitiate_InvalidJSONIsClientError(t *testing.T) {
	h, _ := newTestHandler(&mockCompleter{}, &mockSender{}, 10)

	w := postJSON(t, h.Initiate, `{not json`)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInitiate_DispatchFailureIsServerError(t *testing.T) {
	completer := &mockCompleter{replies: []string{"hey!"}}
	sender := &mockSender{err: errors.New("carrier down")}
	h, _ := newTestHandler(completer, sender, 10)

	w := postJSON(t, h.Initiate, `{"phone_number":"+15551234567","description":"d","customer_name":"Casey"}`)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.Contains(t, w.Body.String(), "Failed to send initial message")
}

func TestInitiate_CompletionFailureStillSendsApology(t *testing.T) {
	completer := &mockCompleter{err: &llm.CompletionError{Err: errors.New("upstream down")}}
	sender := &mockSender{sid: "SM456"}
	h, store := newTestHandler(completer, sender, 10)

	w := postJSON(t, h.Initiate, `{"phone_number":"+15551234567","description":"d","customer_name":"Casey"}`)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, apologyText, sender.body)
	require.Empty(t, store.History("+15551234567"), "seed must be rolled back on failure")
}

func TestRoutes_ServesAllEndpoints(t *testing.T) {
	completer := &mockCompleter{replies: []string{"hi there", "hey!"}}
	h, _ := newTestHandler(completer, &mockSender{sid: "SM123"}, 10)

	mux := http.NewServeMux()
	h.Routes(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	resp, err := http.PostForm(srv.URL+"/sms", url.Values{"Body": {"hello"}, "From": {"X"}})
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/xml", resp.Header.Get("Content-Type"))

	resp, err = http.Post(srv.URL+"/initiate", "application/json",
		strings.NewReader(`{"phone_number":"+15551234567","description":"d","customer_name":"Casey"}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Wrong method never reaches a handler.
	resp, err = http.Get(srv.URL + "/sms")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHealth_ReturnsStaticMarkup(t *testing.T) {
	h, _ := newTestHandler(&mockCompleter{}, &mockSender{}, 10)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	h.Health(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "<h1>")
}
