package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/richardjhorn1-ai/lovelanguages-multilang-sub004/internal/app"
	"github.com/richardjhorn1-ai/lovelanguages-multilang-sub004/internal/capture"
	"github.com/richardjhorn1-ai/lovelanguages-multilang-sub004/internal/listen"
	"github.com/richardjhorn1-ai/lovelanguages-multilang-sub004/internal/observe"
	"github.com/richardjhorn1-ai/lovelanguages-multilang-sub004/internal/transcript"
	"github.com/richardjhorn1-ai/lovelanguages-multilang-sub004/pkg/audio"
)

// feedBuffer is the number of feed events queued per websocket client.
// Events beyond it are dropped; the next transcript event carries the full
// state again.
const feedBuffer = 32

type startCaptureRequest struct {
	ContextLabel string `json:"contextLabel"`
}

func (s *Server) handleStartCapture(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(w, r)
	if owner == "" {
		return
	}
	var req startCaptureRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}

	c, err := s.app.Captures().Start(r.Context(), owner, req.ContextLabel)
	switch {
	case c == nil, errors.Is(err, capture.ErrAbandoned):
		respondError(w, r, err)
	case err != nil:
		// The capture is registered in the error state.
		respondJSON(w, http.StatusBadGateway, captureDTO(c))
	default:
		respondJSON(w, http.StatusCreated, captureDTO(c))
	}
}

func (s *Server) handleListCaptures(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(w, r)
	if owner == "" {
		return
	}
	list := s.app.Captures().List(owner)
	out := make([]captureResponse, 0, len(list))
	for _, c := range list {
		out = append(out, captureDTO(c))
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleRestartCapture(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(w, r)
	if owner == "" {
		return
	}
	c, err := s.app.Captures().Restart(r.Context(), r.PathValue("id"), owner)
	switch {
	case c == nil:
		respondError(w, r, err)
	case errors.Is(err, capture.ErrInvalidState), errors.Is(err, capture.ErrAbandoned):
		respondError(w, r, err)
	case err != nil:
		respondJSON(w, http.StatusBadGateway, captureDTO(c))
	default:
		respondJSON(w, http.StatusOK, captureDTO(c))
	}
}

func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(w, r)
	if owner == "" {
		return
	}
	c, err := s.app.Captures().Get(r.PathValue("id"), owner)
	if err != nil {
		respondError(w, r, err)
		return
	}

	chunk, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxAudioBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondMessage(w, http.StatusRequestEntityTooLarge, "audio chunk too large")
			return
		}
		respondMessage(w, http.StatusBadRequest, "read audio: "+err.Error())
		return
	}
	if len(chunk) == 0 {
		respondMessage(w, http.StatusBadRequest, "empty audio chunk")
		return
	}
	chunk, err = s.normaliseAudio(r, chunk)
	if err != nil {
		respondMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := c.Session.SendAudio(chunk); err != nil {
		if errors.Is(err, capture.ErrInvalidState) {
			respondError(w, r, err)
			return
		}
		respondMessage(w, http.StatusBadGateway, err.Error())
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// normaliseAudio converts a chunk recorded in the format given by the
// rate and channels query parameters to the mono stream format of captures.
// Without parameters the chunk is passed through.
func (s *Server) normaliseAudio(r *http.Request, chunk []byte) ([]byte, error) {
	q := r.URL.Query()
	if q.Get("rate") == "" && q.Get("channels") == "" {
		return chunk, nil
	}
	target := s.app.Config().Capture.SampleRate
	if target <= 0 {
		target = app.DefaultSampleRate
	}
	from := audio.Format{SampleRate: target, Channels: 1}
	if v := q.Get("rate"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, errors.New("rate must be an integer")
		}
		from.SampleRate = n
	}
	if v := q.Get("channels"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, errors.New("channels must be an integer")
		}
		from.Channels = n
	}
	return audio.ToMono(chunk, from, target)
}

type bookmarkResponse struct {
	EntryID    string `json:"entryId"`
	Bookmarked bool   `json:"bookmarked"`
}

func (s *Server) handleToggleBookmark(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(w, r)
	if owner == "" {
		return
	}
	c, err := s.app.Captures().Get(r.PathValue("id"), owner)
	if err != nil {
		respondError(w, r, err)
		return
	}

	entryID := r.PathValue("entryID")
	if !c.Session.ToggleBookmark(entryID) {
		respondMessage(w, http.StatusNotFound, "no final entry "+entryID)
		return
	}
	out := bookmarkResponse{EntryID: entryID}
	for _, e := range c.Session.Snapshot().Finals {
		if e.ID == entryID {
			out.Bookmarked = e.IsBookmarked
			break
		}
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(w, r)
	if owner == "" {
		return
	}
	c, err := s.app.Captures().Get(r.PathValue("id"), owner)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if err := c.Session.AcknowledgeError(); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, captureDTO(c))
}

func (s *Server) handleStopCapture(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(w, r)
	if owner == "" {
		return
	}
	ls, err := s.app.Captures().Stop(r.Context(), r.PathValue("id"), owner)
	switch {
	case errors.Is(err, listen.ErrEmptyTranscript):
		w.WriteHeader(http.StatusNoContent)
	case err != nil:
		respondError(w, r, err)
	default:
		respondJSON(w, http.StatusOK, listenSessionDTO(ls))
	}
}

// feedEvent is one message on the capture websocket.
type feedEvent struct {
	Type    string             `json:"type"`
	State   string             `json:"state,omitempty"`
	Error   string             `json:"error,omitempty"`
	Finals  []transcript.Entry `json:"finals,omitempty"`
	Partial *transcript.Entry  `json:"partial,omitempty"`
}

func stateEvent(st capture.State, err error) feedEvent {
	ev := feedEvent{Type: "state", State: st.String()}
	if err != nil {
		ev.Error = err.Error()
	}
	return ev
}

func transcriptEvent(st transcript.State) feedEvent {
	return feedEvent{Type: "transcript", Finals: st.Finals, Partial: st.Partial}
}

// handleFeed streams state and transcript changes of a capture over a
// websocket until the client goes away.
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(w, r)
	if owner == "" {
		return
	}
	c, err := s.app.Captures().Get(r.PathValue("id"), owner)
	if err != nil {
		respondError(w, r, err)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		observe.Logger(r.Context()).Warn("api: feed accept failed", "err", err)
		return
	}
	defer conn.CloseNow()

	// The client only listens; CloseRead cancels ctx when it disconnects.
	ctx := conn.CloseRead(r.Context())

	events := make(chan feedEvent, feedBuffer)
	push := func(ev feedEvent) {
		select {
		case events <- ev:
		default:
		}
	}
	removeState := c.Session.OnState(func(st capture.State, err error) {
		push(stateEvent(st, err))
	})
	defer removeState()
	removeTranscript := c.Session.OnTranscript(func(st transcript.State) {
		push(transcriptEvent(st))
	})
	defer removeTranscript()

	initial := []feedEvent{
		stateEvent(c.Session.State(), c.Session.Err()),
		transcriptEvent(c.Session.Snapshot()),
	}
	for _, ev := range initial {
		if err := writeFeed(ctx, conn, ev); err != nil {
			return
		}
	}

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case ev := <-events:
			if err := writeFeed(ctx, conn, ev); err != nil {
				return
			}
		}
	}
}

func writeFeed(ctx context.Context, conn *websocket.Conn, ev feedEvent) error {
	return wsjson.Write(ctx, conn, ev)
}
