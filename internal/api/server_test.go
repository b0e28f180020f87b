package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/richardjhorn1-ai/lovelanguages-multilang-sub004/internal/api"
	"github.com/richardjhorn1-ai/lovelanguages-multilang-sub004/internal/app"
	"github.com/richardjhorn1-ai/lovelanguages-multilang-sub004/internal/config"
	"github.com/richardjhorn1-ai/lovelanguages-multilang-sub004/pkg/provider/llm"
	llmmock "github.com/richardjhorn1-ai/lovelanguages-multilang-sub004/pkg/provider/llm/mock"
	"github.com/richardjhorn1-ai/lovelanguages-multilang-sub004/pkg/provider/stt"
	sttmock "github.com/richardjhorn1-ai/lovelanguages-multilang-sub004/pkg/provider/stt/mock"
)

const llmReply = `{
	"processedTranscript": [{"index": 0, "text": "Kocham cię.", "translation": "I love you.", "language": "pl"}],
	"newWords": [
		{"word": "kocham", "rootWord": "kochać", "translation": "I love", "type": "verb"},
		{"word": "cię", "translation": "you", "type": "pronoun"}
	]
}`

const conjugationReply = `{"ja": "kochałem", "ty": "kochałeś", "on/ona/ono": {"masculine": "kochał", "feminine": "kochała"}}`

// scriptedLLM answers conjugation prompts with conjugationReply and
// everything else with llmReply.
func scriptedLLM() *llmmock.Provider {
	return &llmmock.Provider{CompleteFunc: func(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		if strings.Contains(req.Messages[0].Content, "tense conjugation of") {
			return &llm.CompletionResponse{Content: conjugationReply}, nil
		}
		return &llm.CompletionResponse{Content: llmReply}, nil
	}}
}

func testConfig() *config.Config {
	return &config.Config{
		Capture: config.CaptureConfig{SampleRate: 16000},
		Enrichment: config.EnrichmentConfig{
			PollInterval:   10 * time.Millisecond,
			TargetLanguage: "pl",
			NativeLanguage: "en",
		},
		Mastery: config.MasteryConfig{Threshold: 2, LearnedXP: 5},
	}
}

type fixture struct {
	srv  *httptest.Server
	app  *app.App
	stt  *sttmock.Provider
	sess *sttmock.Session
}

// newFixture starts a server backed by in-memory stores. withLLM controls
// whether enrichment and harvesting are available.
func newFixture(t *testing.T, withLLM bool) *fixture {
	t.Helper()
	f := &fixture{sess: sttmock.NewSession(16)}
	f.stt = &sttmock.Provider{Session: f.sess}
	providers := &app.Providers{STT: f.stt}
	if withLLM {
		providers.LLM = scriptedLLM()
	}

	a, err := app.New(context.Background(), testConfig(), providers)
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}
	f.app = a
	f.srv = httptest.NewServer(api.New(a))
	t.Cleanup(func() {
		f.srv.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.Shutdown(ctx)
	})
	return f
}

// do sends a request as owner and returns the status and body.
func (f *fixture) do(t *testing.T, method, path, owner string, body any) (int, []byte) {
	t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case []byte:
		rd = bytes.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, f.srv.URL+path, rd)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if owner != "" {
		req.Header.Set("X-Owner-ID", owner)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return v
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func (f *fixture) waitFinals(t *testing.T, id string, n int) {
	t.Helper()
	c, err := f.app.Captures().Get(id, "u1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	waitFor(t, "final entries", func() bool { return len(c.Session.Snapshot().Finals) == n })
}

type captureBody struct {
	ID    string `json:"id"`
	State string `json:"state"`
	Error string `json:"error"`
}

type entryBody struct {
	ID           string `json:"id"`
	Text         string `json:"text"`
	IsBookmarked bool   `json:"isBookmarked"`
}

type sessionBody struct {
	ID           string      `json:"id"`
	ContextLabel string      `json:"contextLabel"`
	Entries      []entryBody `json:"entries"`
	Bookmarks    []entryBody `json:"bookmarks"`
	Enriched     bool        `json:"enriched"`
}

func TestOwnerRequired(t *testing.T) {
	t.Parallel()
	f := newFixture(t, false)

	status, _ := f.do(t, http.MethodPost, "/v1/capture", "", nil)
	if status != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", status)
	}
}

func TestCaptureLifecycle(t *testing.T) {
	t.Parallel()
	f := newFixture(t, false)

	status, data := f.do(t, http.MethodPost, "/v1/capture", "u1", map[string]string{"contextLabel": "Café"})
	if status != http.StatusCreated {
		t.Fatalf("start status = %d, body %s", status, data)
	}
	c := decode[captureBody](t, data)
	if c.State != "listening" || c.ID == "" {
		t.Fatalf("start = %+v, want listening with id", c)
	}

	status, _ = f.do(t, http.MethodPost, "/v1/capture/"+c.ID+"/audio", "u1", []byte{1, 2, 3, 4})
	if status != http.StatusAccepted {
		t.Fatalf("audio status = %d, want 202", status)
	}
	if got := f.sess.Chunks(); got != 1 {
		t.Errorf("transport received %d chunks, want 1", got)
	}

	// Another owner cannot see the capture.
	status, _ = f.do(t, http.MethodPost, "/v1/capture/"+c.ID+"/audio", "u2", []byte{1})
	if status != http.StatusNotFound {
		t.Errorf("audio by other owner status = %d, want 404", status)
	}

	f.sess.Emit(stt.Event{Kind: stt.EventTranscript, SpeakerID: "speaker_0", Text: "buenos días", IsFinal: true})
	f.waitFinals(t, c.ID, 1)
	capt, _ := f.app.Captures().Get(c.ID, "u1")
	entryID := capt.Session.Snapshot().Finals[0].ID

	status, data = f.do(t, http.MethodPost, "/v1/capture/"+c.ID+"/bookmarks/"+entryID, "u1", nil)
	if status != http.StatusOK || !strings.Contains(string(data), `"bookmarked":true`) {
		t.Fatalf("bookmark status = %d, body %s", status, data)
	}
	status, _ = f.do(t, http.MethodPost, "/v1/capture/"+c.ID+"/bookmarks/nope", "u1", nil)
	if status != http.StatusNotFound {
		t.Errorf("bookmark unknown entry status = %d, want 404", status)
	}

	status, data = f.do(t, http.MethodPost, "/v1/capture/"+c.ID+"/stop", "u1", nil)
	if status != http.StatusOK {
		t.Fatalf("stop status = %d, body %s", status, data)
	}
	ls := decode[sessionBody](t, data)
	if ls.ID != c.ID || ls.ContextLabel != "Café" {
		t.Errorf("stored session = %+v", ls)
	}
	if len(ls.Entries) != 1 || len(ls.Bookmarks) != 1 || !ls.Bookmarks[0].IsBookmarked {
		t.Errorf("stored entries = %+v bookmarks = %+v, want one bookmarked entry", ls.Entries, ls.Bookmarks)
	}

	status, data = f.do(t, http.MethodGet, "/v1/listen-sessions?owner=u1", "", nil)
	if status != http.StatusOK {
		t.Fatalf("list status = %d", status)
	}
	if list := decode[[]sessionBody](t, data); len(list) != 1 {
		t.Errorf("listed %d sessions, want 1", len(list))
	}
	status, _ = f.do(t, http.MethodGet, "/v1/listen-sessions/"+c.ID, "u2", nil)
	if status != http.StatusNotFound {
		t.Errorf("get by other owner status = %d, want 404", status)
	}

	// The capture is gone after stop.
	status, _ = f.do(t, http.MethodPost, "/v1/capture/"+c.ID+"/stop", "u1", nil)
	if status != http.StatusNotFound {
		t.Errorf("second stop status = %d, want 404", status)
	}
}

func TestCaptureFeed(t *testing.T) {
	t.Parallel()
	f := newFixture(t, false)

	_, data := f.do(t, http.MethodPost, "/v1/capture", "u1", nil)
	c := decode[captureBody](t, data)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/v1/capture/" + c.ID + "/feed?owner=u1"
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial feed: %v", err)
	}
	defer conn.CloseNow()

	type event struct {
		Type   string      `json:"type"`
		State  string      `json:"state"`
		Finals []entryBody `json:"finals"`
	}
	read := func() event {
		t.Helper()
		var ev event
		if err := wsjson.Read(ctx, conn, &ev); err != nil {
			t.Fatalf("read feed: %v", err)
		}
		return ev
	}

	if ev := read(); ev.Type != "state" || ev.State != "listening" {
		t.Errorf("first event = %+v, want listening state", ev)
	}
	if ev := read(); ev.Type != "transcript" || len(ev.Finals) != 0 {
		t.Errorf("second event = %+v, want empty transcript", ev)
	}

	f.sess.Emit(stt.Event{Kind: stt.EventTranscript, SpeakerID: "speaker_0", Text: "dzień dobry", IsFinal: true})
	for {
		ev := read()
		if ev.Type == "transcript" && len(ev.Finals) == 1 {
			if !strings.Contains(ev.Finals[0].Text, "dobry") {
				t.Errorf("final text = %q", ev.Finals[0].Text)
			}
			break
		}
	}
	conn.Close(websocket.StatusNormalClosure, "")
}

func TestAudioFormatConversion(t *testing.T) {
	t.Parallel()
	f := newFixture(t, false)

	_, data := f.do(t, http.MethodPost, "/v1/capture", "u1", nil)
	c := decode[captureBody](t, data)
	path := "/v1/capture/" + c.ID + "/audio"

	tests := []struct {
		name   string
		query  string
		body   []byte
		status int
	}{
		{"stereo 32k", "?rate=32000&channels=2", make([]byte, 16), http.StatusAccepted},
		{"unaligned stereo", "?channels=2", []byte{1, 2, 3}, http.StatusBadRequest},
		{"bad rate", "?rate=fast", []byte{1, 2}, http.StatusBadRequest},
		{"empty", "", nil, http.StatusBadRequest},
	}
	for _, tt := range tests {
		status, body := f.do(t, http.MethodPost, path+tt.query, "u1", tt.body)
		if status != tt.status {
			t.Errorf("%s: status = %d, want %d (body %s)", tt.name, status, tt.status, body)
		}
	}
	if got := f.sess.Chunks(); got != 1 {
		t.Errorf("transport received %d chunks, want 1", got)
	}
}

func TestStopEmptyCapture(t *testing.T) {
	t.Parallel()
	f := newFixture(t, false)

	_, data := f.do(t, http.MethodPost, "/v1/capture", "u1", nil)
	c := decode[captureBody](t, data)

	status, _ := f.do(t, http.MethodPost, "/v1/capture/"+c.ID+"/stop", "u1", nil)
	if status != http.StatusNoContent {
		t.Errorf("stop status = %d, want 204", status)
	}
}

func TestCaptureStartFailureAndAcknowledge(t *testing.T) {
	t.Parallel()
	f := newFixture(t, false)
	f.stt.StartStreamErr = errors.New("invalid api key")

	status, data := f.do(t, http.MethodPost, "/v1/capture", "u1", nil)
	if status != http.StatusBadGateway {
		t.Fatalf("start status = %d, want 502", status)
	}
	c := decode[captureBody](t, data)
	if c.State != "error" || !strings.Contains(c.Error, "invalid api key") {
		t.Fatalf("failed capture = %+v", c)
	}

	status, data = f.do(t, http.MethodPost, "/v1/capture/"+c.ID+"/ack", "u1", nil)
	if status != http.StatusOK || decode[captureBody](t, data).State != "disconnected" {
		t.Fatalf("ack status = %d, body %s", status, data)
	}
	status, _ = f.do(t, http.MethodPost, "/v1/capture/"+c.ID+"/ack", "u1", nil)
	if status != http.StatusConflict {
		t.Errorf("second ack status = %d, want 409", status)
	}
}

func TestListenSessionWaitForEnrichment(t *testing.T) {
	t.Parallel()
	f := newFixture(t, true)

	_, data := f.do(t, http.MethodPost, "/v1/capture", "u1", nil)
	c := decode[captureBody](t, data)
	f.sess.Emit(stt.Event{Kind: stt.EventTranscript, SpeakerID: "speaker_0", Text: "kocham cie", IsFinal: true})
	f.waitFinals(t, c.ID, 1)
	status, data := f.do(t, http.MethodPost, "/v1/capture/"+c.ID+"/stop", "u1", nil)
	if status != http.StatusOK {
		t.Fatalf("stop status = %d, body %s", status, data)
	}

	status, data = f.do(t, http.MethodGet, "/v1/listen-sessions/"+c.ID+"?wait=3s", "u1", nil)
	if status != http.StatusOK {
		t.Fatalf("get status = %d, body %s", status, data)
	}
	ls := decode[sessionBody](t, data)
	if !ls.Enriched || len(ls.Entries) != 1 || ls.Entries[0].Text != "Kocham cię." {
		t.Errorf("session = %+v, want enriched text", ls)
	}

	status, _ = f.do(t, http.MethodPost, "/v1/listen-sessions/"+c.ID+"/enrich", "u1", nil)
	if status != http.StatusOK {
		t.Errorf("re-enrich status = %d, want 200", status)
	}
	status, _ = f.do(t, http.MethodGet, "/v1/listen-sessions/"+c.ID+"?wait=forever", "u1", nil)
	if status != http.StatusBadRequest {
		t.Errorf("bad wait status = %d, want 400", status)
	}
}

func TestEnrichWithoutLLM(t *testing.T) {
	t.Parallel()
	f := newFixture(t, false)

	_, data := f.do(t, http.MethodPost, "/v1/capture", "u1", nil)
	c := decode[captureBody](t, data)
	f.sess.Emit(stt.Event{Kind: stt.EventTranscript, SpeakerID: "speaker_0", Text: "hola", IsFinal: true})
	f.waitFinals(t, c.ID, 1)
	f.do(t, http.MethodPost, "/v1/capture/"+c.ID+"/stop", "u1", nil)

	status, _ := f.do(t, http.MethodPost, "/v1/listen-sessions/"+c.ID+"/enrich", "u1", nil)
	if status != http.StatusServiceUnavailable {
		t.Errorf("enrich status = %d, want 503", status)
	}
}

func TestHarvestAndUnlockTense(t *testing.T) {
	t.Parallel()
	f := newFixture(t, true)

	body := map[string]any{
		"languageCode": "pl",
		"messages": []map[string]string{
			{"role": "user", "content": "Kocham cię"},
			{"role": "user", "content": "[Media Attached]"},
		},
	}
	status, data := f.do(t, http.MethodPost, "/v1/harvest", "u1", body)
	if status != http.StatusOK {
		t.Fatalf("harvest status = %d, body %s", status, data)
	}
	res := decode[struct {
		Candidates []struct {
			Word string `json:"word"`
			New  bool   `json:"new"`
		} `json:"candidates"`
		New       []string `json:"new"`
		XPAwarded int      `json:"xpAwarded"`
	}](t, data)
	if len(res.Candidates) != 2 || len(res.New) != 2 || res.XPAwarded != 2 {
		t.Fatalf("harvest = %+v, want two new words and 2 xp", res)
	}

	// The same text again finds nothing new.
	_, data = f.do(t, http.MethodPost, "/v1/harvest", "u1", body)
	if again := decode[struct {
		New []string `json:"new"`
	}](t, data); len(again.New) != 0 {
		t.Errorf("second harvest new = %v, want none", again.New)
	}

	unlock := map[string]any{
		"word":         "Kocham",
		"languageCode": "pl",
		"tense":        "past",
		"forms":        map[string]string{"ja": "kochałem"},
	}
	status, data = f.do(t, http.MethodPost, "/v1/dictionary/unlock-tense", "u1", unlock)
	if status != http.StatusOK || !strings.Contains(string(data), "kochałem") {
		t.Fatalf("unlock status = %d, body %s", status, data)
	}
	status, _ = f.do(t, http.MethodPost, "/v1/dictionary/unlock-tense", "u1", unlock)
	if status != http.StatusConflict {
		t.Errorf("second unlock status = %d, want 409", status)
	}

	tests := []struct {
		name   string
		body   map[string]any
		status int
	}{
		{"unknown word", map[string]any{"word": "pies", "languageCode": "pl", "tense": "past", "forms": map[string]string{"ja": "x"}}, http.StatusNotFound},
		{"unknown tense", map[string]any{"word": "kocham", "languageCode": "pl", "tense": "pluperfect", "forms": map[string]string{"ja": "x"}}, http.StatusBadRequest},
		{"unknown field", map[string]any{"word": "kocham", "languageCode": "pl", "tense": "future", "mood": "x"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, data := f.do(t, http.MethodPost, "/v1/dictionary/unlock-tense", "u1", tt.body)
			if status != tt.status {
				t.Errorf("status = %d, want %d (body %s)", status, tt.status, data)
			}
		})
	}
}

func TestUnlockTenseGeneratesForms(t *testing.T) {
	t.Parallel()
	f := newFixture(t, true)

	harvest := map[string]any{"languageCode": "pl", "messages": []map[string]string{{"role": "user", "content": "Kocham cię"}}}
	if status, data := f.do(t, http.MethodPost, "/v1/harvest", "u1", harvest); status != http.StatusOK {
		t.Fatalf("harvest status = %d, body %s", status, data)
	}

	unlock := map[string]any{"word": "kocham", "languageCode": "pl", "tense": "past"}
	status, data := f.do(t, http.MethodPost, "/v1/dictionary/unlock-tense", "u1", unlock)
	if status != http.StatusOK {
		t.Fatalf("unlock status = %d, body %s", status, data)
	}
	e := decode[struct {
		Details struct {
			Conjugations map[string]struct {
				Forms map[string]string `json:"forms"`
			} `json:"conjugations"`
		} `json:"details"`
	}](t, data)
	past := e.Details.Conjugations["past"].Forms
	if past["ja"] != "kochałem" || past["on/ona/ono.feminine"] != "kochała" {
		t.Errorf("past forms = %v", past)
	}
	if status, _ := f.do(t, http.MethodPost, "/v1/dictionary/unlock-tense", "u1", unlock); status != http.StatusConflict {
		t.Errorf("second unlock status = %d, want 409", status)
	}
}

func TestCompleteEntry(t *testing.T) {
	t.Parallel()
	f := newFixture(t, true)

	harvest := map[string]any{"languageCode": "pl", "messages": []map[string]string{{"role": "user", "content": "Kocham cię"}}}
	if status, data := f.do(t, http.MethodPost, "/v1/harvest", "u1", harvest); status != http.StatusOK {
		t.Fatalf("harvest status = %d, body %s", status, data)
	}

	type completed struct {
		Entry struct {
			Word       string     `json:"word"`
			EnrichedAt *time.Time `json:"enrichedAt"`
			Details    struct {
				Conjugations map[string]struct {
					Forms map[string]string `json:"forms"`
				} `json:"conjugations"`
			} `json:"details"`
		} `json:"entry"`
		Generated string `json:"generated"`
	}
	body := map[string]any{"word": "kocham", "languageCode": "pl"}
	status, data := f.do(t, http.MethodPost, "/v1/dictionary/complete", "u1", body)
	if status != http.StatusOK {
		t.Fatalf("complete status = %d, body %s", status, data)
	}
	got := decode[completed](t, data)
	if got.Generated != "present_tense" || got.Entry.EnrichedAt == nil {
		t.Errorf("complete = %+v", got)
	}
	if got.Entry.Details.Conjugations["present"].Forms["ty"] != "kochałeś" {
		t.Errorf("present = %v", got.Entry.Details.Conjugations["present"].Forms)
	}

	_, data = f.do(t, http.MethodPost, "/v1/dictionary/complete", "u1", body)
	if again := decode[completed](t, data); again.Generated != "nothing" {
		t.Errorf("second complete generated %q, want nothing", again.Generated)
	}

	tests := []struct {
		name   string
		body   map[string]any
		status int
	}{
		{"unknown word", map[string]any{"word": "pies", "languageCode": "pl"}, http.StatusNotFound},
		{"missing language", map[string]any{"word": "kocham"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, data := f.do(t, http.MethodPost, "/v1/dictionary/complete", "u1", tt.body)
			if status != tt.status {
				t.Errorf("status = %d, want %d (body %s)", status, tt.status, data)
			}
		})
	}
}

func TestDictionaryEvents(t *testing.T) {
	t.Parallel()
	f := newFixture(t, true)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/v1/dictionary/events?owner=u1"
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial events: %v", err)
	}
	defer conn.CloseNow()

	msgs := []map[string]string{{"role": "user", "content": "Kocham cię"}}
	// Changes of other owners are not delivered.
	f.do(t, http.MethodPost, "/v1/harvest", "u2", map[string]any{"languageCode": "pl", "messages": msgs})
	f.do(t, http.MethodPost, "/v1/harvest", "u1", map[string]any{"languageCode": "pl", "messages": msgs})

	var ev struct {
		LanguageCode string   `json:"languageCode"`
		Added        []string `json:"added"`
	}
	if err := wsjson.Read(ctx, conn, &ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if ev.LanguageCode != "pl" || len(ev.Added) != 2 {
		t.Errorf("event = %+v, want two added pl words", ev)
	}
	conn.Close(websocket.StatusNormalClosure, "")
}

func TestHarvestWithoutLLM(t *testing.T) {
	t.Parallel()
	f := newFixture(t, false)

	status, _ := f.do(t, http.MethodPost, "/v1/harvest", "u1", map[string]any{
		"languageCode": "pl",
		"messages":     []map[string]string{{"role": "user", "content": "cześć"}},
	})
	if status != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", status)
	}
}

func TestPracticeAnswers(t *testing.T) {
	t.Parallel()
	f := newFixture(t, false)

	type practiceBody struct {
		Correct        bool `json:"correct"`
		MatchedLocally bool `json:"matchedLocally"`
		JustLearned    bool `json:"justLearned"`
		XPAwarded      int  `json:"xpAwarded"`
		Score          struct {
			CurrentStreak int `json:"currentStreak"`
		} `json:"score"`
	}

	answer := func(body map[string]any) (int, practiceBody) {
		status, data := f.do(t, http.MethodPost, "/v1/practice/answers", "u1", body)
		if status != http.StatusOK {
			return status, practiceBody{}
		}
		return status, decode[practiceBody](t, data)
	}

	_, first := answer(map[string]any{"wordId": "w1", "languageCode": "es", "given": "la Casa", "expected": "casa"})
	if !first.Correct || !first.MatchedLocally || first.Score.CurrentStreak != 1 {
		t.Errorf("local match = %+v, want correct streak 1", first)
	}

	_, second := answer(map[string]any{"wordId": "w1", "languageCode": "es", "correct": true})
	if second.MatchedLocally || !second.JustLearned || second.XPAwarded != 5 {
		t.Errorf("second answer = %+v, want learned with 5 xp", second)
	}

	_, wrong := answer(map[string]any{"wordId": "w1", "languageCode": "es", "given": "perro", "expected": "casa"})
	if wrong.Correct || wrong.Score.CurrentStreak != 0 || wrong.JustLearned {
		t.Errorf("wrong answer = %+v, want streak reset", wrong)
	}

	if status, _ := answer(map[string]any{"wordId": "w1"}); status != http.StatusBadRequest {
		t.Errorf("answer without verdict status = %d, want 400", status)
	}

	status, data := f.do(t, http.MethodGet, "/v1/xp", "u1", nil)
	if status != http.StatusOK || decode[struct {
		XP int `json:"xp"`
	}](t, data).XP != 5 {
		t.Errorf("balance status = %d, body %s, want 5 xp", status, data)
	}
}

func TestAddXP(t *testing.T) {
	t.Parallel()
	f := newFixture(t, false)

	tests := []struct {
		amount int
		status int
	}{
		{0, http.StatusBadRequest},
		{101, http.StatusBadRequest},
		{1, http.StatusOK},
		{100, http.StatusOK},
	}
	for _, tt := range tests {
		status, _ := f.do(t, http.MethodPost, "/v1/xp", "u1", map[string]int{"amount": tt.amount})
		if status != tt.status {
			t.Errorf("amount %d: status = %d, want %d", tt.amount, status, tt.status)
		}
	}
	_, data := f.do(t, http.MethodGet, "/v1/xp?owner=u1", "", nil)
	if !strings.Contains(string(data), `"xp":101`) {
		t.Errorf("balance = %s, want 101", data)
	}
}

func TestOperationalEndpoints(t *testing.T) {
	t.Parallel()
	f := newFixture(t, false)

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		status, data := f.do(t, http.MethodGet, path, "", nil)
		if status != http.StatusOK {
			t.Errorf("GET %s status = %d, body %s", path, status, data)
		}
	}
}
