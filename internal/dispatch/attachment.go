package dispatch

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Attachment is a file attached verbatim to every message in a batch.
//
// The underlying reader is consumed when a message is written out, so
// Rewind must be called after every use.
type Attachment struct {
	name string
	r    *bytes.Reader
}

// NewAttachment wraps data under the given file name.
func NewAttachment(name string, data []byte) *Attachment {
	return &Attachment{name: filepath.Base(name), r: bytes.NewReader(data)}
}

// LoadAttachments reads every path into memory.
func LoadAttachments(paths []string) ([]*Attachment, error) {
	out := make([]*Attachment, 0, len(paths))
	for _, p := range paths {
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("attachment %s: %w", p, err)
		}
		out = append(out, NewAttachment(p, b))
	}
	return out, nil
}

func (a *Attachment) Name() string { return a.name }

func (a *Attachment) Size() int64 { return a.r.Size() }

// Reader returns the shared reader positioned wherever the last use left it.
func (a *Attachment) Reader() io.Reader { return a.r }

// Rewind resets the read cursor to the start.
func (a *Attachment) Rewind() error {
	_, err := a.r.Seek(0, io.SeekStart)
	return err
}
