// Package api exposes the mail store over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/chunkmail/internal/common"
	"github.com/dmitrijs2005/chunkmail/internal/logging"
	"github.com/dmitrijs2005/chunkmail/internal/netx"
	"github.com/dmitrijs2005/chunkmail/internal/server/mailer"
	"github.com/dmitrijs2005/chunkmail/internal/server/models"
	"github.com/dmitrijs2005/chunkmail/internal/server/uploads"
	"github.com/go-chi/chi/v5"
)

const maxFormMemory = 1 << 20

type Uploads interface {
	AcceptChunk(ctx context.Context, c uploads.Chunk) error
	Complete(ctx context.Context, c uploads.Completion) (string, error)
}

type Mailer interface {
	Send(ctx context.Context, f mailer.Form) (*models.Email, error)
	List(ctx context.Context) ([]models.Email, error)
	Get(ctx context.Context, id int64) (*models.Email, error)
}

type Handler struct {
	uploads  Uploads
	mailer   Mailer
	maxChunk int64
	log      logging.Logger
}

func NewHandler(u Uploads, m Mailer, maxChunk int64, log logging.Logger) *Handler {
	return &Handler{uploads: u, mailer: m, maxChunk: maxChunk, log: log.With("component", "api")}
}

// fail maps err onto a status code and writes {"error": ...}.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var mbe *http.MaxBytesError
	switch {
	case errors.As(err, &mbe):
		netx.WriteError(w, http.StatusRequestEntityTooLarge, "request body too large")
	case errors.Is(err, common.ErrValidation):
		netx.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, common.ErrorNotFound):
		netx.WriteError(w, http.StatusNotFound, "not found")
	case errors.Is(err, common.ErrSubmission):
		netx.WriteError(w, http.StatusBadGateway, err.Error())
	default:
		h.log.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		netx.WriteError(w, http.StatusInternalServerError, common.ErrorInternal.Error())
	}
}

func intParam(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, common.NewValidationError(name, "is required")
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, common.NewValidationError(name, "must be an integer")
	}
	return n, nil
}

func (h *Handler) UploadChunk(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	index, err := intParam(r, common.ParamChunkIndex)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	total, err := intParam(r, common.ParamTotalChunks)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	err = h.uploads.AcceptChunk(r.Context(), uploads.Chunk{
		FileID:   q.Get(common.ParamFileID),
		FileName: q.Get(common.ParamFileName),
		Index:    index,
		Total:    total,
		Body:     http.MaxBytesReader(w, r.Body, h.maxChunk),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	netx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type completeRequest struct {
	FileID      string `json:"fileId"`
	FileName    string `json:"fileName"`
	TotalChunks int    `json:"totalChunks"`
	MIMEType    string `json:"mimeType"`
}

type completeResponse struct {
	FilePath string `json:"filePath"`
}

func (h *Handler) UploadComplete(w http.ResponseWriter, r *http.Request) {
	var req completeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxFormMemory)).Decode(&req); err != nil {
		netx.WriteError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	path, err := h.uploads.Complete(r.Context(), uploads.Completion{
		FileID:      req.FileID,
		FileName:    req.FileName,
		TotalChunks: req.TotalChunks,
		MIMEType:    req.MIMEType,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	netx.WriteJSON(w, http.StatusOK, completeResponse{FilePath: path})
}

func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		netx.WriteError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	form := mailer.Form{
		Sender:          r.PostFormValue(common.FieldSender),
		Recipients:      r.PostForm[common.FieldRecipients],
		Subject:         r.PostFormValue(common.FieldSubject),
		Body:            r.PostFormValue(common.FieldBody),
		AttachmentPaths: r.PostForm[common.FieldAttachmentPaths],
	}

	e, err := h.mailer.Send(r.Context(), form)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	netx.WriteJSON(w, http.StatusOK, e)
}

func (h *Handler) ListEmails(w http.ResponseWriter, r *http.Request) {
	list, err := h.mailer.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if list == nil {
		list = []models.Email{}
	}
	netx.WriteJSON(w, http.StatusOK, list)
}

func (h *Handler) GetEmail(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		netx.WriteError(w, http.StatusBadRequest, "invalid email id")
		return
	}
	e, err := h.mailer.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	netx.WriteJSON(w, http.StatusOK, e)
}

func (h *Handler) Live(w http.ResponseWriter, _ *http.Request) {
	netx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
