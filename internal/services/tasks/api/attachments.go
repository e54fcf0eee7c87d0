package api

import (
	"log"
	"mime"
	"net/http"
	"time"

	platformerrors "github.com/dkapsis/pms/internal/platform/errors"
	"github.com/dkapsis/pms/internal/platform/id"
	"github.com/dkapsis/pms/internal/services/shared/httpjson"
	"github.com/dkapsis/pms/internal/services/tasks/task"
)

// maxUploadBytes caps a single attachment upload.
const maxUploadBytes = 32 << 20

type attachmentResponse struct {
	ID           string    `json:"id"`
	TaskID       string    `json:"task_id"`
	AuthorID     string    `json:"author_id"`
	URL          string    `json:"url"`
	OriginalName string    `json:"original_name"`
	CreatedAt    time.Time `json:"created_at"`
}

func (h *Handler) addAttachment(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(r)

	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/form-data" {
		httpjson.WriteError(w, platformerrors.New(platformerrors.CodeUnsupportedMedia,
			"attachment uploads require multipart/form-data"))
		return
	}

	taskID := r.PathValue("id")
	if _, err := h.store.GetTask(r.Context(), taskID); err != nil {
		httpjson.WriteError(w, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		httpjson.WriteError(w, platformerrors.Wrap(platformerrors.CodeInvalidBody,
			"invalid multipart body", err))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		httpjson.WriteError(w, platformerrors.New(platformerrors.CodeAttachmentMissingFile,
			"multipart field \"file\" is required"))
		return
	}
	defer file.Close()

	storedName, err := h.files.Save(header.Filename, file)
	if err != nil {
		httpjson.WriteError(w, platformerrors.Wrap(platformerrors.CodeInternal,
			"store attachment file", err))
		return
	}

	attachment := task.Attachment{
		ID:           id.MustNewID(),
		TaskID:       taskID,
		AuthorID:     caller.ID,
		URL:          "/files/" + storedName,
		OriginalName: header.Filename,
		StoredName:   storedName,
		CreatedAt:    time.Now().UTC(),
	}
	if err := h.store.AddAttachment(r.Context(), attachment); err != nil {
		// The row is the source of truth; without it the stored bytes are
		// orphaned, so clean them up.
		if removeErr := h.files.Remove(storedName); removeErr != nil {
			log.Printf("remove orphaned file %s: %v", storedName, removeErr)
		}
		httpjson.WriteError(w, err)
		return
	}

	httpjson.Write(w, http.StatusCreated, attachmentResponse{
		ID:           attachment.ID,
		TaskID:       attachment.TaskID,
		AuthorID:     attachment.AuthorID,
		URL:          attachment.URL,
		OriginalName: attachment.OriginalName,
		CreatedAt:    attachment.CreatedAt,
	})
}

// serveFile streams stored attachment bytes. The stored name is the public
// handle; the original name only informs the download filename.
func (h *Handler) serveFile(w http.ResponseWriter, r *http.Request) {
	storedName := r.PathValue("name")

	meta, err := h.store.GetAttachmentByStoredName(r.Context(), storedName)
	if err != nil {
		httpjson.WriteError(w, err)
		return
	}
	file, err := h.files.Open(storedName)
	if err != nil {
		httpjson.WriteError(w, platformerrors.Wrap(platformerrors.CodeNotFound,
			"attachment bytes missing", err))
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		httpjson.WriteError(w, platformerrors.Wrap(platformerrors.CodeInternal,
			"stat attachment file", err))
		return
	}

	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment",
		map[string]string{"filename": meta.OriginalName}))
	http.ServeContent(w, r, meta.OriginalName, info.ModTime(), file)
}
