package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/richardjhorn1-ai/lovelanguages-multilang-sub004/internal/listen"
)

// maxWait bounds a long poll for enrichment.
const maxWait = 60 * time.Second

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(w, r)
	if owner == "" {
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondMessage(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	sessions, err := s.app.ListenSessions().ListListenSessions(r.Context(), owner, limit)
	if err != nil {
		respondError(w, r, err)
		return
	}
	out := make([]listenSessionResponse, 0, len(sessions))
	for i := range sessions {
		out = append(out, listenSessionDTO(&sessions[i]))
	}
	respondJSON(w, http.StatusOK, out)
}

// handleGetSession returns one listen session. With ?wait=30s it long-polls
// until every entry is enriched or the wait elapses, and returns the last
// read either way.
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(w, r)
	if owner == "" {
		return
	}
	id := r.PathValue("id")

	var wait time.Duration
	if v := r.URL.Query().Get("wait"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			respondMessage(w, http.StatusBadRequest, "wait must be a non-negative duration")
			return
		}
		wait = min(d, maxWait)
	}

	ls, err := s.loadOwned(r.Context(), id, owner)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if wait > 0 && !ls.IsEnriched() {
		ctx, cancel := context.WithTimeout(r.Context(), wait)
		polled, err := s.app.Poller().WaitEnriched(ctx, id)
		cancel()
		switch {
		case err == nil, errors.Is(err, context.DeadlineExceeded):
			if polled != nil {
				ls = polled
			}
		default:
			respondError(w, r, err)
			return
		}
	}
	respondJSON(w, http.StatusOK, listenSessionDTO(ls))
}

func (s *Server) handleEnrichSession(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(w, r)
	if owner == "" {
		return
	}
	id := r.PathValue("id")
	if _, err := s.loadOwned(r.Context(), id, owner); err != nil {
		respondError(w, r, err)
		return
	}

	if err := s.app.Coordinator().Enrich(r.Context(), id); err != nil {
		if statusFor(err) != http.StatusInternalServerError {
			respondError(w, r, err)
			return
		}
		// The stored transcript is unchanged.
		respondMessage(w, http.StatusBadGateway, err.Error())
		return
	}

	ls, err := s.loadOwned(r.Context(), id, owner)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, listenSessionDTO(ls))
}

// loadOwned reads a listen session and hides sessions of other owners.
func (s *Server) loadOwned(ctx context.Context, id, owner string) (*listen.Session, error) {
	ls, err := s.app.ListenSessions().GetListenSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if ls.OwnerID != owner {
		return nil, listen.ErrNotFound
	}
	return ls, nil
}
