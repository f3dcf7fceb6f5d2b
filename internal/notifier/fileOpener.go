package notifier

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/skratchdot/open-golang/open"
)

// FileOpener asks the desktop to open the ledger in its default application.
type FileOpener struct {
	start func(path string) error
}

func NewFileOpener() *FileOpener {
	return &FileOpener{start: open.Start}
}

func (o *FileOpener) Name() string { return "file opener" }

// Notify does not wait for the viewer to exit.
func (o *FileOpener) Notify(_ context.Context, ledgerPath string) error {
	abs, err := filepath.Abs(ledgerPath)
	if err != nil {
		return err
	}

	if err := o.start(abs); err != nil {
		return fmt.Errorf("could not open ledger automatically: %w", err)
	}

	return nil
}
