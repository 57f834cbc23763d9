package media

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/psds-microservice/supportbot/internal/conversation"
	"github.com/psds-microservice/supportbot/internal/errs"
	"github.com/psds-microservice/supportbot/internal/model"
)

// MaxFileSize matches the Bot API download limit.
const MaxFileSize = 20 << 20

var ErrTooLarge = errors.New("media: file exceeds size limit")

// Fetcher opens a download for a platform file id and returns the
// platform-side path of the file.
type Fetcher interface {
	Fetch(ctx context.Context, fileID string) (io.ReadCloser, string, error)
}

// Recorder persists the attachment row.
type Recorder interface {
	GetTicket(ctx context.Context, id uint64) (*model.Ticket, error)
	FindMedia(ctx context.Context, ticketID uint64, fileID string) (*model.MediaAttachment, error)
	RecordMedia(ctx context.Context, m *model.MediaAttachment) error
}

// Intake stores attachments under root and records them against a ticket.
type Intake struct {
	root     string
	fetcher  Fetcher
	recorder Recorder
	now      func() time.Time
}

func NewIntake(root string, fetcher Fetcher, recorder Recorder) *Intake {
	return &Intake{root: root, fetcher: fetcher, recorder: recorder, now: time.Now}
}

// Store downloads the file, writes it under the media root and records it.
// No row is written unless the bytes are on disk. A file that is already
// recorded for the ticket is returned as is and never rewritten.
func (in *Intake) Store(ctx context.Context, userID int64, ticketID uint64, a conversation.Attachment) (*model.MediaAttachment, error) {
	t, err := in.recorder.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if t.Status != model.TicketStatusOpen {
		return nil, errs.ErrTicketNotOpen
	}
	existing, err := in.recorder.FindMedia(ctx, ticketID, a.FileID)
	switch {
	case err == nil:
		return existing, nil
	case !errors.Is(err, errs.ErrMediaNotFound):
		return nil, err
	}

	if err := os.MkdirAll(in.root, 0o755); err != nil {
		return nil, fmt.Errorf("media: create root: %w", err)
	}
	body, remotePath, err := in.fetcher.Fetch(ctx, a.FileID)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	r := bufio.NewReaderSize(io.LimitReader(body, MaxFileSize+1), 3072)
	head, err := r.Peek(3072)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("media: read %s: %w", a.FileID, err)
	}

	name := FileName(userID, ticketID, a.FileID, extension(remotePath, a, head))
	tmp, err := in.spool(name, r)
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmp)
	if err := in.place(tmp, name); err != nil {
		return nil, err
	}

	m := &model.MediaAttachment{
		UserID:     userID,
		TicketID:   ticketID,
		FileID:     a.FileID,
		FileType:   a.Type,
		FilePath:   name,
		Caption:    a.Caption,
		UploadedAt: in.now().UTC(),
	}
	if err := in.recorder.RecordMedia(ctx, m); err != nil {
		// The file was placed by this call and no row references it.
		_ = os.Remove(filepath.Join(in.root, name))
		return nil, err
	}
	return m, nil
}

// spool writes r to a synced temp file under root and returns its path.
func (in *Intake) spool(name string, r io.Reader) (string, error) {
	tmp, err := os.CreateTemp(in.root, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("media: %w", err)
	}
	fail := func(err error) (string, error) {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}

	n, err := io.Copy(tmp, r)
	if err != nil {
		return fail(fmt.Errorf("media: write %s: %w", name, err))
	}
	if n > MaxFileSize {
		return fail(ErrTooLarge)
	}
	if err := tmp.Sync(); err != nil {
		return fail(fmt.Errorf("media: sync %s: %w", name, err))
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("media: close %s: %w", name, err)
	}
	return tmp.Name(), nil
}

// place links the spooled file to its final name. A file already there
// has no row (FindMedia said so) and is a leftover of an interrupted
// upload, so it is replaced.
func (in *Intake) place(tmp, name string) error {
	final := filepath.Join(in.root, name)
	err := os.Link(tmp, final)
	if err == nil {
		return nil
	}
	if !errors.Is(err, fs.ErrExist) {
		// Filesystems without hard links fall back to a rename.
		if _, statErr := os.Lstat(final); !errors.Is(statErr, fs.ErrNotExist) {
			return fmt.Errorf("media: place %s: %w", name, err)
		}
	}
	if err := os.Rename(tmp, final); err != nil {
		return fmt.Errorf("media: place %s: %w", name, err)
	}
	return nil
}

// FileName is the deterministic on-disk name of an attachment.
func FileName(userID int64, ticketID uint64, fileID, ext string) string {
	return fmt.Sprintf("%d_%d_%s%s", userID, ticketID, sanitize(fileID), ext)
}

// Resolve maps a stored file name to its location under root, refusing
// anything that would escape it.
func Resolve(root, stored string) (string, error) {
	name := filepath.Base(filepath.Clean(stored))
	if name == "." || name == ".." || name == string(filepath.Separator) || name != stored {
		return "", fmt.Errorf("media: invalid stored path %q", stored)
	}
	return filepath.Join(root, name), nil
}

var defaultExt = map[model.MessageType]string{
	model.MessageTypePhoto: ".jpg",
	model.MessageTypeVideo: ".mp4",
}

// extension prefers the platform path, then the uploaded name, then the
// sniffed content, then a per-type default.
func extension(remotePath string, a conversation.Attachment, head []byte) string {
	for _, p := range []string{remotePath, a.FileName} {
		if ext := cleanExt(filepath.Ext(p)); ext != "" {
			return ext
		}
	}
	if len(head) > 0 {
		if ext := mimetype.Detect(head).Extension(); ext != "" {
			return ext
		}
	}
	if ext, ok := defaultExt[a.Type]; ok {
		return ext
	}
	return ".bin"
}

func cleanExt(ext string) string {
	if len(ext) < 2 || len(ext) > 8 {
		return ""
	}
	for _, r := range ext[1:] {
		if !isNameRune(r) || r == '-' || r == '_' {
			return ""
		}
	}
	return strings.ToLower(ext)
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		if isNameRune(r) {
			return r
		}
		return '_'
	}, s)
}

func isNameRune(r rune) bool {
	return r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_'
}
