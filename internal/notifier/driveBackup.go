package notifier

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/KotFed0t/ttwo_investment_bot/utils"
)

type CloudStorage interface {
	UploadFile(ctx context.Context, reader io.Reader, filename string) (downloadLink string, err error)
}

// DriveBackup uploads a timestamped copy of the ledger after every write.
type DriveBackup struct {
	storage CloudStorage
	now     func() time.Time
}

func NewDriveBackup(storage CloudStorage) *DriveBackup {
	return &DriveBackup{storage: storage, now: time.Now}
}

func (b *DriveBackup) Name() string { return "google drive backup" }

func (b *DriveBackup) Notify(ctx context.Context, ledgerPath string) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "DriveBackup.Notify"

	f, err := os.Open(ledgerPath)
	if err != nil {
		return err
	}
	defer f.Close()

	filename := backupName(ledgerPath, b.now())

	link, err := b.storage.UploadFile(ctx, f, filename)
	if err != nil {
		return fmt.Errorf("upload %s: %w", filename, err)
	}

	slog.Info("ledger backup uploaded", slog.String("rqID", rqID), slog.String("op", op), slog.String("filename", filename), slog.String("link", link))

	return nil
}

func backupName(ledgerPath string, at time.Time) string {
	base := filepath.Base(ledgerPath)
	ext := filepath.Ext(base)
	return fmt.Sprintf("%s %s%s", strings.TrimSuffix(base, ext), at.Format("2006-01-02T15-04-05"), ext)
}
