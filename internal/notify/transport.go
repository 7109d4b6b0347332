package notify

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EmailSender delivers a rendered email. Implementations may fail with a
// provider-specific error string, which the dispatcher treats opaquely.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// SMSSender delivers a rendered SMS.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// FileTransport appends every delivery to a log file instead of calling a
// real provider. It stands in for email/SMS integrations in development and
// keeps the full pipeline observable end to end.
type FileTransport struct {
	mu   sync.Mutex
	path string
}

// NewFileTransport creates the parent directory up front so the first send
// does not race mkdir against itself.
func NewFileTransport(path string) (*FileTransport, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create delivery log dir: %w", err)
	}
	return &FileTransport{path: path}, nil
}

func (t *FileTransport) SendEmail(ctx context.Context, to, subject, body string) error {
	return t.append(fmt.Sprintf("[%s] EMAIL to=%s subject=%q\n%s\n---\n",
		time.Now().UTC().Format(time.RFC3339), to, subject, body))
}

func (t *FileTransport) SendSMS(ctx context.Context, to, body string) error {
	return t.append(fmt.Sprintf("[%s] SMS to=%s body=%q\n---\n",
		time.Now().UTC().Format(time.RFC3339), to, body))
}

func (t *FileTransport) append(line string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	f, err := os.OpenFile(t.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open delivery log: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write delivery log: %w", err)
	}
	return nil
}
