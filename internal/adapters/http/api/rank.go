package api

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/okian/fightrank/internal/domain/types"
)

// RankDependencies reads one entity's place and rating path.
type RankDependencies interface {
	Rank(ctx context.Context, entityID string) (Entry, error)
	History(ctx context.Context, entityID string) ([]types.Point, error)
}

// RankHandler serves /rank/{entity_id} and /rank/{entity_id}/history.
type RankHandler struct {
	deps RankDependencies
}

// NewRankHandler creates a new rank handler.
func NewRankHandler(deps RankDependencies) *RankHandler {
	return &RankHandler{deps: deps}
}

// HandleGetRank dispatches on the path suffix. Entity ids are path
// escaped, so canonical ids holding spaces or slashes still resolve.
func (h *RankHandler) HandleGetRank(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_rank"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	raw, history := strings.CutSuffix(strings.TrimPrefix(r.URL.EscapedPath(), "/rank/"), "/history")
	id, err := url.PathUnescape(raw)
	if err != nil || id == "" || strings.Contains(raw, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	var body any
	if history {
		body, err = h.deps.History(r.Context(), id)
	} else {
		body, err = h.deps.Rank(r.Context(), id)
	}
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, body)
	case isNotFound(err):
		writeError(w, http.StatusNotFound, "not_found", Wrap(op, err))
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
	}
}
