package qr

import (
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/atotto/clipboard"
)

// ErrShareUnavailable means neither the clipboard nor the fallback could
// take the link.
var ErrShareUnavailable = errors.New("share unavailable")

// Copier puts text somewhere the user can paste it from.
type Copier interface {
	Copy(text string) error
}

// ClipboardCopier writes to the system clipboard.
type ClipboardCopier struct{}

func (ClipboardCopier) Copy(text string) error {
	if clipboard.Unsupported {
		return errors.New("clipboard unsupported on this system")
	}
	return clipboard.WriteAll(text)
}

// WriterCopier is the legacy mechanism: print the text for manual copying.
type WriterCopier struct {
	W io.Writer
}

func (w WriterCopier) Copy(text string) error {
	_, err := fmt.Fprintln(w.W, text)
	return err
}

// Share copies text with primary and falls back transparently when it fails.
func Share(text string, primary, fallback Copier) error {
	if primary != nil {
		err := primary.Copy(text)
		if err == nil {
			return nil
		}
		log.Printf("qr: clipboard copy failed, using fallback: %v", err)
	}
	if fallback == nil {
		return ErrShareUnavailable
	}
	if err := fallback.Copy(text); err != nil {
		return fmt.Errorf("%w: %v", ErrShareUnavailable, err)
	}
	return nil
}
