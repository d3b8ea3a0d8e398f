package imapmail

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/emersion/go-imap"
	id "github.com/emersion/go-imap-id"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"golang.org/x/time/rate"

	"github.com/kirillkom/fund-nav-pipeline/internal/core/domain"
)

func init() {
	// Header values arrive in GBK/GB18030 from most Chinese senders.
	imap.CharsetReader = charset.Reader
}

type Options struct {
	Addr     string
	Username string
	Password string
	Mailbox  string

	// FetchPerSecond paces message downloads; some providers throttle
	// or drop aggressive IMAP clients. Zero disables pacing.
	FetchPerSecond float64

	// ClientName is sent via the IMAP ID extension. The 163 server
	// rejects anonymous clients with "Unsafe Login".
	ClientName string
}

// Source is a ports.MailSource over IMAP. Open dials, authenticates
// and selects the mailbox read-only; FetchSince streams messages with
// their spreadsheet attachments buffered in memory.
type Source struct {
	opts    Options
	logger  *slog.Logger
	limiter *rate.Limiter
	conn    *client.Client
}

func New(opts Options, logger *slog.Logger) *Source {
	if opts.Mailbox == "" {
		opts.Mailbox = "INBOX"
	}
	var limiter *rate.Limiter
	if opts.FetchPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.FetchPerSecond), 1)
	}
	return &Source{opts: opts, logger: logger, limiter: limiter}
}

func (s *Source) Open(ctx context.Context) (domain.MailboxInfo, error) {
	conn, err := client.DialTLS(s.opts.Addr, nil)
	if err != nil {
		return domain.MailboxInfo{}, fmt.Errorf("dial imap %s: %w", s.opts.Addr, err)
	}

	if err := conn.Login(s.opts.Username, s.opts.Password); err != nil {
		_ = conn.Logout()
		return domain.MailboxInfo{}, fmt.Errorf("imap login: %w", err)
	}

	// Identify before SELECT; required by 163 and harmless elsewhere.
	idClient := id.NewClient(conn)
	if supported, err := idClient.SupportID(); err == nil && supported {
		name := s.opts.ClientName
		if name == "" {
			name = "fund-nav-pipeline"
		}
		if _, err := idClient.ID(id.ID{
			id.FieldName:    name,
			id.FieldVersion: "1.0.0",
		}); err != nil {
			s.logger.Warn("imap_id_command_failed", "error", err)
		}
	}

	status, err := conn.Select(s.opts.Mailbox, true)
	if err != nil {
		_ = conn.Logout()
		return domain.MailboxInfo{}, fmt.Errorf("select %s: %w", s.opts.Mailbox, err)
	}

	s.conn = conn
	return domain.MailboxInfo{
		UIDValidity: strconv.FormatUint(uint64(status.UidValidity), 10),
		Messages:    status.Messages,
	}, nil
}

func (s *Source) FetchSince(
	ctx context.Context,
	sinceUID uint32,
	fullScan bool,
	handle func(context.Context, domain.InboundMessage) error,
) error {
	if s.conn == nil {
		return fmt.Errorf("mailbox not open")
	}

	criteria := imap.NewSearchCriteria()
	if !fullScan {
		criteria.Uid = new(imap.SeqSet)
		criteria.Uid.AddRange(sinceUID+1, 0)
	}
	uids, err := s.conn.UidSearch(criteria)
	if err != nil {
		return fmt.Errorf("uid search: %w", err)
	}
	if len(uids) == 0 {
		return nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchUid, imap.FetchEnvelope, section.FetchItem()}

	messages := make(chan *imap.Message, 8)
	done := make(chan error, 1)
	go func() {
		done <- s.conn.UidFetch(seqset, items, messages)
	}()

	return consumeFetch(messages, done, func(msg *imap.Message) error {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		inbound, err := s.parseMessage(msg, section)
		if err != nil {
			s.logger.Warn("message_parse_error", "uid", msg.Uid, "error", err)
			return nil
		}
		return handle(ctx, inbound)
	})
}

// consumeFetch feeds every fetched message through process. When process
// fails, the remaining stream is still drained so the UidFetch goroutine
// can finish writing and report on done; the client connection stays
// usable for the Logout in Close.
func consumeFetch(messages <-chan *imap.Message, done <-chan error, process func(*imap.Message) error) error {
	var processErr error
	for msg := range messages {
		if processErr != nil {
			continue
		}
		processErr = process(msg)
	}
	fetchErr := <-done
	if processErr != nil {
		return processErr
	}
	if fetchErr != nil {
		return fmt.Errorf("uid fetch: %w", fetchErr)
	}
	return nil
}

func (s *Source) parseMessage(msg *imap.Message, section *imap.BodySectionName) (domain.InboundMessage, error) {
	inbound := domain.InboundMessage{UID: msg.Uid}

	if msg.Envelope != nil {
		inbound.Subject = msg.Envelope.Subject
		inbound.Date = msg.Envelope.Date.Format("2006-01-02 15:04:05")
		if len(msg.Envelope.From) > 0 {
			inbound.Sender = msg.Envelope.From[0].Address()
		}
	}

	body := msg.GetBody(section)
	if body == nil {
		return inbound, fmt.Errorf("no body section")
	}

	mr, err := mail.CreateReader(body)
	if err != nil {
		return inbound, fmt.Errorf("create mail reader: %w", err)
	}
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			// A malformed part should not discard attachments already read.
			s.logger.Warn("mime_part_error", "uid", msg.Uid, "error", err)
			break
		}

		header, ok := part.Header.(*mail.AttachmentHeader)
		if !ok {
			continue
		}
		filename, err := header.Filename()
		if err != nil || filename == "" {
			continue
		}
		data, err := io.ReadAll(part.Body)
		if err != nil {
			s.logger.Warn("attachment_read_error", "uid", msg.Uid, "attachment", filename, "error", err)
			continue
		}
		inbound.Attachments = append(inbound.Attachments, domain.Attachment{
			Filename: filename,
			Data:     data,
		})
	}
	return inbound, nil
}

func (s *Source) Close() error {
	if s.conn == nil {
		return nil
	}
	err := s.conn.Logout()
	s.conn = nil
	return err
}
