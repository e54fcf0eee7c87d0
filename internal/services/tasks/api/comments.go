package api

import (
	"net/http"
	"time"

	platformerrors "github.com/dkapsis/pms/internal/platform/errors"
	"github.com/dkapsis/pms/internal/platform/id"
	"github.com/dkapsis/pms/internal/services/shared/httpjson"
	"github.com/dkapsis/pms/internal/services/tasks/task"
)

type addCommentRequest struct {
	Content string `json:"content"`
}

type commentResponse struct {
	ID             string    `json:"id"`
	TaskID         string    `json:"task_id"`
	AuthorID       string    `json:"author_id"`
	AuthorUsername string    `json:"author_username"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// addComment appends a comment to a task. The author's username is
// snapshotted from the identity directory at write time; a directory
// outage fails the write rather than persisting an unresolved author.
func (h *Handler) addComment(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(r)

	var req addCommentRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.WriteError(w, err)
		return
	}

	taskID := r.PathValue("id")
	if _, err := h.store.GetTask(r.Context(), taskID); err != nil {
		httpjson.WriteError(w, err)
		return
	}

	identities, err := h.identities.Lookup(r.Context(), []string{caller.ID})
	if err != nil {
		httpjson.WriteError(w, platformerrors.Wrap(platformerrors.CodeDirectoryUnavailable,
			"identity directory unavailable", err))
		return
	}
	author, ok := identities[caller.ID]
	if !ok {
		// The directory answered but has no record of the asserted caller.
		// Persisting a comment with an empty author snapshot is worse than
		// rejecting the write.
		httpjson.WriteError(w, platformerrors.WithMetadata(platformerrors.CodeNotFound,
			"comment author not found", map[string]string{"user_id": caller.ID}))
		return
	}

	comment := task.Comment{
		ID:             id.MustNewID(),
		TaskID:         taskID,
		AuthorID:       caller.ID,
		AuthorUsername: author.Username,
		Content:        req.Content,
		CreatedAt:      time.Now().UTC(),
	}
	if err := comment.Validate(); err != nil {
		httpjson.WriteError(w, err)
		return
	}
	if err := h.store.AddComment(r.Context(), comment); err != nil {
		httpjson.WriteError(w, err)
		return
	}

	httpjson.Write(w, http.StatusCreated, commentResponse{
		ID:             comment.ID,
		TaskID:         comment.TaskID,
		AuthorID:       comment.AuthorID,
		AuthorUsername: comment.AuthorUsername,
		Content:        comment.Content,
		CreatedAt:      comment.CreatedAt,
	})
}
