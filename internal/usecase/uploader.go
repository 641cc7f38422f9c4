package usecase

import (
	"context"

	"voicetriage/internal/domain"
	"voicetriage/internal/ports"
	"voicetriage/pkg/logger"
)

// Uploader submits finished recordings and invalidates the collection on
// success. It never writes to the collection itself.
type Uploader struct {
	api         ports.VoicemailAPI
	invalidator ports.Invalidator
	logger      *logger.Logger
}

func NewUploader(api ports.VoicemailAPI, invalidator ports.Invalidator, log *logger.Logger) *Uploader {
	if log == nil {
		log = logger.NewNop()
	}
	return &Uploader{api: api, invalidator: invalidator, logger: log.Named("upload")}
}

// Submit sends one artifact. Failures are not retried; the artifact is dropped.
func (u *Uploader) Submit(ctx context.Context, artifact domain.Artifact) error {
	if err := u.api.Upload(ctx, artifact); err != nil {
		u.logger.Warn("Upload failed",
			logger.Int("bytes", artifact.Size()),
			logger.Error(err),
		)
		if domain.IsKind(err, domain.KindUpload) {
			return err
		}
		return domain.NewError(domain.KindUpload, "submit recording", err)
	}

	u.logger.Info("Recording uploaded", logger.Int("bytes", artifact.Size()))
	u.invalidator.Invalidate()
	return nil
}
