package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/chunkmail/internal/client/models"
	"github.com/dmitrijs2005/chunkmail/internal/common"
	"github.com/dmitrijs2005/chunkmail/internal/netx"
)

func newTestClient(t *testing.T, h http.Handler, retries uint64) *HTTPClient {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	c, err := New(Options{BaseURL: ts.URL, Timeout: 5 * time.Second, ChunkRetries: retries, RetryBackoff: time.Millisecond}, nil)
	require.NoError(t, err)
	return c
}

func TestNew_RejectsBadAddress(t *testing.T) {
	_, err := New(Options{BaseURL: "localhost:3001"}, nil)
	require.Error(t, err)

	_, err = New(Options{BaseURL: "ftp://example.com"}, nil)
	require.Error(t, err)
}

func TestSendChunk_Query(t *testing.T) {
	var gotQuery map[string]string
	var gotBody []byte
	var gotCT string

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, common.RouteUploadChunk, r.URL.Path)
		gotQuery = map[string]string{
			common.ParamFileID:      r.URL.Query().Get(common.ParamFileID),
			common.ParamFileName:    r.URL.Query().Get(common.ParamFileName),
			common.ParamChunkIndex:  r.URL.Query().Get(common.ParamChunkIndex),
			common.ParamTotalChunks: r.URL.Query().Get(common.ParamTotalChunks),
		}
		gotCT = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}), 0)

	err := c.SendChunk(context.Background(), ChunkRequest{
		UploadID: "u-1", FileName: "report final.pdf", Index: 2, Total: 3, Data: []byte("abc"),
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		common.ParamFileID:      "u-1",
		common.ParamFileName:    "report final.pdf",
		common.ParamChunkIndex:  "2",
		common.ParamTotalChunks: "3",
	}, gotQuery)
	assert.Equal(t, "application/octet-stream", gotCT)
	assert.Equal(t, []byte("abc"), gotBody)
}

func TestSendChunk_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, []byte("payload"), body, "every attempt carries the full chunk")
		if calls.Add(1) < 3 {
			netx.WriteError(w, http.StatusServiceUnavailable, "busy")
			return
		}
		w.WriteHeader(http.StatusOK)
	}), 2)

	err := c.SendChunk(context.Background(), ChunkRequest{UploadID: "u", FileName: "f", Total: 1, Data: []byte("payload")})
	require.NoError(t, err)
	assert.EqualValues(t, 3, calls.Load())
}

func TestSendChunk_RetriesExhausted(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		netx.WriteError(w, http.StatusInternalServerError, "disk full")
	}), 2)

	err := c.SendChunk(context.Background(), ChunkRequest{UploadID: "u", FileName: "f", Total: 1})
	require.Error(t, err)
	assert.EqualValues(t, 3, calls.Load())

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusInternalServerError, se.Code)
	assert.Equal(t, "disk full", se.Message)
}

func TestSendChunk_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		netx.WriteError(w, http.StatusBadRequest, "invalid chunk index")
	}), 5)

	err := c.SendChunk(context.Background(), ChunkRequest{UploadID: "u", FileName: "f", Index: 9, Total: 1})
	require.Error(t, err)
	assert.EqualValues(t, 1, calls.Load())
	assert.Contains(t, err.Error(), "invalid chunk index")
}

func TestSendChunk_Unavailable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	c, err := New(Options{BaseURL: url, ChunkRetries: 1, RetryBackoff: time.Millisecond}, nil)
	require.NoError(t, err)

	err = c.SendChunk(context.Background(), ChunkRequest{UploadID: "u", FileName: "f", Total: 1})
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestSendChunk_ContextCanceled(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), 3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.SendChunk(ctx, ChunkRequest{UploadID: "u", FileName: "f", Total: 1})
	require.ErrorIs(t, err, context.Canceled)
}

func TestCompleteUpload(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, common.RouteUploadComplete, r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req CompleteRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, CompleteRequest{UploadID: "u-7", FileName: "a.png", TotalChunks: 2, MIMEType: "image/png"}, req)

		netx.WriteJSON(w, http.StatusOK, map[string]string{"filePath": "attachments/2026/10/14/u-7/a.png"})
	}), 0)

	path, err := c.CompleteUpload(context.Background(), CompleteRequest{UploadID: "u-7", FileName: "a.png", TotalChunks: 2, MIMEType: "image/png"})
	require.NoError(t, err)
	assert.Equal(t, "attachments/2026/10/14/u-7/a.png", path)
}

func TestCompleteUpload_EmptyPath(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		netx.WriteJSON(w, http.StatusOK, map[string]string{})
	}), 0)

	_, err := c.CompleteUpload(context.Background(), CompleteRequest{UploadID: "u", FileName: "f", TotalChunks: 1})
	require.Error(t, err)
}

func TestCompleteUpload_MissingChunk(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		netx.WriteError(w, http.StatusBadRequest, "missing chunk 1")
	}), 2)

	_, err := c.CompleteUpload(context.Background(), CompleteRequest{UploadID: "u", FileName: "f", TotalChunks: 2})
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "missing chunk 1", se.Message)
}

func TestSend_Multipart(t *testing.T) {
	sentAt := time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC)

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, common.RouteSend, r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))

		assert.Equal(t, "renaise@iedcbootcampcec.org", r.FormValue(common.FieldSender))
		assert.Equal(t, "Hello", r.FormValue(common.FieldSubject))
		assert.Equal(t, "Body text", r.FormValue(common.FieldBody))

		recipients := r.MultipartForm.Value[common.FieldRecipients]
		paths := r.MultipartForm.Value[common.FieldAttachmentPaths]
		assert.Equal(t, []string{"a@x.org", "b@x.org"}, recipients)
		assert.Equal(t, []string{"attachments/p1"}, paths)

		netx.WriteJSON(w, http.StatusOK, models.Email{
			ID: 11, Sender: "renaise@iedcbootcampcec.org", Recipients: recipients,
			Subject: "Hello", Body: "Body text", SentAt: sentAt, Status: models.EmailStatusSent, AttachmentPaths: paths,
		})
	}), 0)

	got, err := c.Send(context.Background(), Outbound{
		Sender:          "renaise@iedcbootcampcec.org",
		Recipients:      []string{"a@x.org", "b@x.org"},
		Subject:         "Hello",
		Body:            "Body text",
		AttachmentPaths: []string{"attachments/p1"},
	})
	require.NoError(t, err)
	assert.EqualValues(t, 11, got.ID)
	assert.Equal(t, models.EmailStatusSent, got.Status)
	assert.True(t, sentAt.Equal(got.SentAt))
}

func TestSend_NoAttachmentPaths(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.NotContains(t, r.MultipartForm.Value, common.FieldAttachmentPaths)
		netx.WriteJSON(w, http.StatusOK, models.Email{ID: 1})
	}), 0)

	_, err := c.Send(context.Background(), Outbound{Sender: "s@x.org", Recipients: []string{"a@x.org"}})
	require.NoError(t, err)
}

func TestSend_ErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		netx.WriteError(w, http.StatusBadGateway, "relay refused")
	}), 3)

	_, err := c.Send(context.Background(), Outbound{Sender: "s@x.org", Recipients: []string{"a@x.org"}})
	require.Error(t, err)
	assert.EqualValues(t, 1, calls.Load())
	assert.Contains(t, err.Error(), "relay refused")
}

func TestListAndGetEmails(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+common.RouteEmails, func(w http.ResponseWriter, r *http.Request) {
		netx.WriteJSON(w, http.StatusOK, []models.Email{{ID: 2, Subject: "b"}, {ID: 1, Subject: "a"}})
	})
	mux.HandleFunc("GET "+common.RouteEmails+"/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "2" {
			netx.WriteError(w, http.StatusNotFound, "email not found")
			return
		}
		netx.WriteJSON(w, http.StatusOK, models.Email{ID: 2, Subject: "b"})
	})
	c := newTestClient(t, mux, 0)

	list, err := c.ListEmails(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.EqualValues(t, 2, list[0].ID)

	one, err := c.GetEmail(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, "b", one.Subject)

	_, err = c.GetEmail(context.Background(), 5)
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestStatusError(t *testing.T) {
	err := &StatusError{Op: "send", Code: 502}
	assert.Equal(t, "send: unexpected status 502", err.Error())
	assert.True(t, err.Temporary())

	err = &StatusError{Op: "send", Code: 400, Message: "bad"}
	assert.Equal(t, "send: status 400: bad", err.Error())
	assert.False(t, err.Temporary())
	assert.False(t, errors.Is(err, ErrUnavailable))
}
