package controllers

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/quicktoolshq/quicktools/internal/pkg/archive"
	"github.com/quicktoolshq/quicktools/internal/pkg/artifacts"
)

// HandleGetPreview serves the free watermarked preview of a produced file.
func HandleGetPreview(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}

	art, err := getArtifactStore().Resolve(c.Context(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	if art.UserID != user.ID {
		return respondError(c, artifacts.ErrNotFound)
	}

	c.Set(fiber.HeaderContentType, contentTypeForFormat(art.Format))
	return c.SendFile(getArtifactStore().PreviewPath(art))
}

// HandleDownload releases the clean result of a produced file. Every download
// charges one credit; the existence check always runs before the charge so a
// missing or expired file never costs anything.
func HandleDownload(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}

	store := getArtifactStore()
	art, err := store.Resolve(c.Context(), c.Params("id"))
	if errors.Is(err, artifacts.ErrNotFound) {
		art, err = restoreFromArchive(c.Context(), store, c.Params("id"))
	}
	if err != nil {
		return respondError(c, err)
	}
	if art.UserID != user.ID {
		return respondError(c, artifacts.ErrNotFound)
	}

	if err := getLedger().Spend(c.Context(), user.ID); err != nil {
		return respondError(c, err)
	}

	clean, err := store.ReadClean(art)
	if err != nil {
		// The charge already happened but the bytes vanished between the
		// resolve and the read. Surface the error; the sweep window makes
		// this a rare race.
		log.Errorf("clean bytes missing after charge for file %s", art.FileID)
		return respondError(c, err)
	}

	if err := store.MarkDelivered(c.Context(), art.FileID); err != nil {
		log.Errorf("failed to mark file %s delivered: %v", art.FileID, err)
	}

	mirrorToArchive(art, store)

	if snapshot, err := getLedger().GetSnapshot(c.Context(), user.ID); err == nil {
		c.Set("X-Credits-Remaining", strconv.Itoa(snapshot.CreditsBalance))
	}

	c.Set(fiber.HeaderContentType, contentTypeForFormat(art.Format))
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+downloadFilename(art)+`"`)
	return c.Send(clean)
}

// mirrorToArchive uploads the delivered clean file to S3 in the background.
// The object key is derived from the artifact's creation time, so a later
// restore can rebuild it from the metadata alone.
func mirrorToArchive(art *artifacts.Artifact, store *artifacts.Store) {
	client := archive.Default()
	if client == nil {
		return
	}

	localPath := store.CleanPath(art)
	key := client.Key(art.FileID, art.CleanFilename, art.CreatedAt)
	go func() {
		if _, err := client.UploadFile(localPath, key); err != nil {
			log.Warnf("archive mirror failed for file %s: %v", art.FileID, err)
		}
	}()
}

// restoreFromArchive re-fetches the clean bytes from the S3 mirror when the
// local copy is gone but the pair metadata is still live. Only delivered
// pairs get mirrored, so a pair that was never downloaded cannot come back
// this way.
func restoreFromArchive(ctx context.Context, store *artifacts.Store, fileID string) (*artifacts.Artifact, error) {
	if !archive.Enabled() {
		return nil, artifacts.ErrNotFound
	}

	art, err := store.Lookup(ctx, fileID)
	if err != nil {
		return nil, err
	}

	client := archive.Default()
	key := client.Key(art.FileID, art.CleanFilename, art.CreatedAt)
	exists, err := client.ObjectExists(key)
	if err != nil || !exists {
		return nil, artifacts.ErrNotFound
	}
	if err := client.DownloadFile(key, store.CleanPath(art)); err != nil {
		log.Warnf("archive restore failed for file %s: %v", fileID, err)
		return nil, artifacts.ErrNotFound
	}

	log.Infof("restored file %s from the archive mirror", fileID)
	return art, nil
}

func downloadFilename(art *artifacts.Artifact) string {
	base := art.OriginalFilename
	if idx := strings.LastIndex(base, "."); idx > 0 {
		base = base[:idx]
	}
	if base == "" {
		base = art.Tool
	}
	return base + "_" + art.Tool + "." + art.Format
}
