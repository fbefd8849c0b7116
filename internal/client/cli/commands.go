package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/dmitrijs2005/chunkmail/internal/client/compose"
	"github.com/dmitrijs2005/chunkmail/internal/client/progress"
	"github.com/dmitrijs2005/chunkmail/internal/common"
)

func (a *App) Senders(ctx context.Context) error {
	current := a.session.Draft().Sender
	for i, s := range a.session.Limits().Senders {
		mark := " "
		if s == current {
			mark = "*"
		}
		fmt.Fprintf(a.out, "%s %d. %s\n", mark, i+1, s)
	}
	return nil
}

// From accepts either an allow-list position (1-based) or an address.
func (a *App) From(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: from <n|address>")
	}
	sender := args[0]
	if n, err := strconv.Atoi(sender); err == nil {
		senders := a.session.Limits().Senders
		if n < 1 || n > len(senders) {
			return fmt.Errorf("no sender #%d, see 'senders'", n)
		}
		sender = senders[n-1]
	}
	if err := a.session.SetSender(sender); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "From:", sender)
	return nil
}

func (a *App) To(ctx context.Context, args []string) error {
	recipients := compose.ParseRecipients(strings.Join(args, " "))
	if err := a.session.SetRecipients(recipients); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "To: %s\n", strings.Join(recipients, ", "))
	return nil
}

func (a *App) Subject(ctx context.Context, args []string) error {
	subject := strings.Join(args, " ")
	if subject == "" {
		var err error
		if subject, err = GetSimpleText(a.reader, "Subject", a.out); err != nil {
			return err
		}
	}
	return a.session.SetSubject(subject)
}

func (a *App) Body(ctx context.Context, args []string) error {
	body := strings.Join(args, " ")
	if body == "" {
		var err error
		if body, err = GetMultiline(a.reader, "Body", a.out); err != nil {
			return err
		}
	}
	return a.session.SetBody(body)
}

func (a *App) Attach(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: attach <path>...")
	}
	accepted, err := a.session.Attach(args...)
	for _, at := range accepted {
		fmt.Fprintf(a.out, "Attached %s (%s, %s)\n", at.Name, humanize.IBytes(uint64(at.Size)), at.MIMEType)
	}
	return err
}

// Detach removes the n-th attachment as listed by 'draft'.
func (a *App) Detach(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: detach <n>")
	}
	atts := a.session.Draft().Attachments
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 || n > len(atts) {
		return fmt.Errorf("%w: %s", common.ErrAttachmentNotSelected, args[0])
	}
	if err := a.session.Detach(atts[n-1].ID); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Removed", atts[n-1].Name)
	return nil
}

func (a *App) Draft(ctx context.Context) error {
	d := a.session.Draft()
	limits := a.session.Limits()

	fmt.Fprintf(a.out, "From:    %s\n", d.Sender)
	fmt.Fprintf(a.out, "To:      %s\n", strings.Join(d.Recipients, ", "))
	fmt.Fprintf(a.out, "Subject: %s\n", d.Subject)
	if d.Body == "" {
		fmt.Fprintln(a.out, "Body:    (empty)")
	} else {
		fmt.Fprintf(a.out, "Body:\n%s\n", indent(d.Body))
	}
	fmt.Fprintf(a.out, "Attachments (%d/%d, max %s each):\n",
		len(d.Attachments), limits.MaxAttachments, humanize.IBytes(uint64(limits.MaxFileSize)))
	for i, at := range d.Attachments {
		status := string(progress.StatusPending)
		if r, ok := a.session.Tracker().Get(at.ID); ok {
			status = string(r.Status)
			if r.Err != "" {
				status += ": " + r.Err
			}
		}
		fmt.Fprintf(a.out, "  %d. %s  %s  %s  [%s]\n", i+1, at.Name, humanize.IBytes(uint64(at.Size)), at.MIMEType, status)
	}
	return nil
}

func (a *App) Reset(ctx context.Context) error {
	if err := a.session.Reset(); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Draft discarded")
	return nil
}

func (a *App) Send(ctx context.Context) error {
	unsubscribe := a.session.Tracker().Subscribe(a.view.Update)
	res, err := a.session.Submit(ctx)
	unsubscribe()
	a.view.Done()

	if res != nil {
		for _, o := range res.Failed() {
			fmt.Fprintf(a.out, "Skipped %s: %v\n", o.Attachment.Name, o.Err)
		}
	}
	if err != nil {
		var se *common.SubmissionError
		if errors.As(err, &se) {
			a.noteReachability(se.Err)
		}
		return err
	}
	a.setMode(ModeOnline)

	fmt.Fprintf(a.out, "Email sent successfully! (#%d, %s)\n", res.Email.ID, res.Email.Status)
	if d := a.session.Limits().ConfirmDelay; d > 0 {
		fmt.Fprintf(a.out, "Opening sent mail in %s...\n", d.Round(time.Second))
	}
	return nil
}

func (a *App) List(ctx context.Context) error {
	listing, err := a.mail.List(ctx)
	a.noteReachability(err)
	if err != nil {
		return err
	}
	if listing.Offline {
		a.setMode(ModeOffline)
		synced := "never"
		if !listing.SyncedAt.IsZero() {
			synced = humanize.Time(listing.SyncedAt)
		}
		fmt.Fprintf(a.out, "Server unreachable, showing cached list (synced %s)\n", synced)
	}
	if len(listing.Emails) == 0 {
		fmt.Fprintln(a.out, "No emails sent yet.")
		return nil
	}
	for _, e := range listing.Emails {
		fmt.Fprintln(a.out, e.Overview())
	}
	return nil
}

func (a *App) Show(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: show <id>")
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(args[0], "#"), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %q", args[0])
	}
	e, err := a.mail.Get(ctx, id)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "ID:      %d\n", e.ID)
	fmt.Fprintf(a.out, "Sent:    %s\n", e.SentAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(a.out, "Status:  %s\n", e.Status)
	fmt.Fprintf(a.out, "From:    %s\n", e.Sender)
	fmt.Fprintf(a.out, "To:      %s\n", strings.Join(e.Recipients, ", "))
	fmt.Fprintf(a.out, "Subject: %s\n", e.Subject)
	fmt.Fprintf(a.out, "Body:\n%s\n", indent(e.Body))
	if len(e.AttachmentPaths) > 0 {
		fmt.Fprintln(a.out, "Attachments:")
		for _, p := range e.AttachmentPaths {
			fmt.Fprintf(a.out, "  %s\n", p)
		}
	}
	return nil
}

func indent(s string) string {
	return "  " + strings.ReplaceAll(s, "\n", "\n  ")
}
