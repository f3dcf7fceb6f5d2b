package googleDriveApi

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/KotFed0t/ttwo_investment_bot/config"
	"github.com/KotFed0t/ttwo_investment_bot/utils"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

const downloadLinkTemplate = "https://drive.google.com/file/d/%s/view"

type GoogleDriveApi struct {
	srv     *drive.Service
	fileTTL time.Duration
	// only files whose name starts with backupPrefix are cleaned up
	backupPrefix string
}

func New(ctx context.Context, cfg *config.Config) (*GoogleDriveApi, error) {
	srv, err := drive.NewService(ctx, option.WithCredentialsFile(cfg.GoogleDrive.CredentialsFile))
	if err != nil {
		return nil, fmt.Errorf("drive.NewService: %w", err)
	}
	return &GoogleDriveApi{srv: srv, fileTTL: cfg.GoogleDrive.FileTTL, backupPrefix: BackupPrefix(cfg.Ledger.Path)}, nil
}

// BackupPrefix is the ledger file name without extension, backups are named "<prefix> <time><ext>".
func BackupPrefix(ledgerPath string) string {
	base := filepath.Base(ledgerPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func backupsQuery(prefix string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(prefix)
	return fmt.Sprintf("name contains '%s' and trashed = false", escaped)
}

// UploadFile stores a ledger copy and shares it by link.
func (a *GoogleDriveApi) UploadFile(ctx context.Context, reader io.Reader, filename string) (downloadLink string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "GoogleDriveApi.UploadFile"

	slog.Debug("UploadFile start", slog.String("rqID", rqID), slog.String("op", op), slog.String("filename", filename))

	fileMeta := &drive.File{
		Name:     filename,
		MimeType: mime.TypeByExtension(filepath.Ext(filename)),
	}

	uploadedFile, err := a.srv.Files.
		Create(fileMeta).
		Media(reader).
		Context(ctx).
		Do()
	if err != nil {
		slog.Error("failed on uploading ledger to google drive", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return "", err
	}

	perm := &drive.Permission{
		Type: "anyone",
		Role: "reader",
	}

	_, err = a.srv.Permissions.Create(uploadedFile.Id, perm).Context(ctx).Do()
	if err != nil {
		slog.Error("failed on sharing uploaded ledger", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return "", err
	}

	slog.Debug("UploadFile completed", slog.String("rqID", rqID), slog.String("op", op), slog.String("fileID", uploadedFile.Id))

	return fmt.Sprintf(downloadLinkTemplate, uploadedFile.Id), nil
}

// DeleteOldFiles removes ledger backups older than the configured TTL.
func (a *GoogleDriveApi) DeleteOldFiles(ctx context.Context) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "GoogleDriveApi.DeleteOldFiles"

	slog.Debug("DeleteOldFiles start", slog.String("rqID", rqID), slog.String("op", op), slog.String("prefix", a.backupPrefix))

	deadline := time.Now().Add(-a.fileTTL)
	deleted, listed := 0, 0

	err := a.srv.Files.List().
		Q(backupsQuery(a.backupPrefix)).
		Fields("nextPageToken, files(id, name, createdTime)").
		Pages(ctx, func(page *drive.FileList) error {
			for _, f := range page.Files {
				// "contains" also matches in the middle of a name
				if !strings.HasPrefix(f.Name, a.backupPrefix+" ") {
					continue
				}
				listed++

				createdTime, err := time.Parse(time.RFC3339, f.CreatedTime)
				if err != nil {
					slog.Error("failed parse time", slog.String("rqID", rqID), slog.String("op", op), slog.String("fileID", f.Id), slog.String("createdTime", f.CreatedTime))
					continue
				}

				if !createdTime.Before(deadline) {
					continue
				}

				if err := a.srv.Files.Delete(f.Id).Context(ctx).Do(); err != nil {
					slog.Error("failed delete backup", slog.String("rqID", rqID), slog.String("op", op), slog.String("fileID", f.Id), slog.String("err", err.Error()))
					continue
				}
				deleted++
			}
			return nil
		})
	if err != nil {
		slog.Error("failed on listing backups", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	slog.Info("delete old backups done", slog.String("rqID", rqID), slog.String("op", op), slog.Int("deletedFiles", deleted), slog.Int("remainingFiles", listed-deleted))

	return nil
}
