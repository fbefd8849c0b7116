package mailer

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path"

	"github.com/dmitrijs2005/chunkmail/internal/server/models"
	"github.com/dmitrijs2005/chunkmail/internal/server/objectstore"
	"github.com/emersion/go-message/mail"
)

// writeMessage renders e as a multipart/mixed message: a text/plain body
// followed by one part per attachment, read from objects as it is written.
func writeMessage(ctx context.Context, w io.Writer, e *models.Email, objects objectstore.Store) error {
	var h mail.Header
	h.SetDate(e.SentAt)
	h.SetSubject(e.Subject)
	h.SetAddressList("From", []*mail.Address{{Address: e.Sender}})
	to := make([]*mail.Address, 0, len(e.Recipients))
	for _, r := range e.Recipients {
		to = append(to, &mail.Address{Address: r})
	}
	h.SetAddressList("To", to)
	if err := h.GenerateMessageID(); err != nil {
		return fmt.Errorf("message id: %w", err)
	}

	mw, err := mail.CreateWriter(w, h)
	if err != nil {
		return fmt.Errorf("create writer: %w", err)
	}

	tw, err := mw.CreateInline()
	if err != nil {
		return fmt.Errorf("create inline: %w", err)
	}
	var th mail.InlineHeader
	th.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	bw, err := tw.CreatePart(th)
	if err != nil {
		return fmt.Errorf("create body part: %w", err)
	}
	if _, err := io.WriteString(bw, e.Body); err != nil {
		return err
	}
	if err := bw.Close(); err != nil {
		return err
	}
	if err := tw.Close(); err != nil {
		return err
	}

	for _, key := range e.AttachmentPaths {
		if err := writeAttachment(ctx, mw, key, objects); err != nil {
			return err
		}
	}
	return mw.Close()
}

func writeAttachment(ctx context.Context, mw *mail.Writer, key string, objects objectstore.Store) error {
	name := objectstore.BaseName(key)
	ctype := mime.TypeByExtension(path.Ext(name))
	if ctype == "" {
		ctype = "application/octet-stream"
	}

	var ah mail.AttachmentHeader
	ah.SetContentType(ctype, nil)
	ah.SetFilename(name)

	rc, err := objects.Open(ctx, key)
	if err != nil {
		return fmt.Errorf("open attachment %s: %w", key, err)
	}
	defer rc.Close()

	aw, err := mw.CreateAttachment(ah)
	if err != nil {
		return fmt.Errorf("create attachment part: %w", err)
	}
	if _, err := io.Copy(aw, rc); err != nil {
		return fmt.Errorf("write attachment %s: %w", key, err)
	}
	return aw.Close()
}
