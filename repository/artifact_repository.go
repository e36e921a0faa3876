// Package repository provides the storage layer for persisted media artifacts
package repository

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/amirphl/hylacviet-media/models"
	"github.com/amirphl/hylacviet-media/utils"
	"github.com/google/uuid"
	"github.com/zeebo/blake3"
)

// ArtifactRepository persists finished artifacts under the storage namespace.
type ArtifactRepository interface {
	// Save writes data as a new uniquely named file with the given extension.
	// On error no artifact is returned.
	Save(ctx context.Context, ext string, data []byte) (*models.StoredArtifact, error)
	// BaseDir is the flat directory artifacts live in.
	BaseDir() string
}

// DiskArtifactRepositoryImpl stores artifacts as flat files in a single directory.
type DiskArtifactRepositoryImpl struct {
	baseDir      string
	publicPrefix string
	newToken     func() (string, error)
}

// NewDiskArtifactRepository creates a repository rooted at baseDir whose public
// URLs are publicPrefix + "/" + filename.
func NewDiskArtifactRepository(baseDir, publicPrefix string) ArtifactRepository {
	if baseDir == "" {
		baseDir = utils.DefaultUploadDir
	}
	if publicPrefix == "" {
		publicPrefix = utils.DefaultPublicPrefix
	}
	return &DiskArtifactRepositoryImpl{
		baseDir:      baseDir,
		publicPrefix: "/" + strings.Trim(publicPrefix, "/"),
		newToken:     randomToken,
	}
}

// BaseDir returns the storage directory
func (r *DiskArtifactRepositoryImpl) BaseDir() string {
	return r.baseDir
}

// Save ensures the directory exists, then writes the whole buffer in one call.
// There is no temp-file-then-rename step: a crash mid-write can leave a truncated file.
func (r *DiskArtifactRepositoryImpl) Save(ctx context.Context, ext string, data []byte) (*models.StoredArtifact, error) {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	if ext == "" {
		return nil, fmt.Errorf("artifact extension is required")
	}

	// Never assume the directory survived a restart or an operator's cleanup.
	if err := os.MkdirAll(r.baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}

	token, err := r.newToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate artifact name: %w", err)
	}
	filename := token + "." + ext

	if err := os.WriteFile(filepath.Join(r.baseDir, filename), data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write artifact %s: %w", filename, err)
	}

	sum := blake3.Sum256(data)
	return &models.StoredArtifact{
		Filename:  filename,
		Extension: ext,
		SizeBytes: int64(len(data)),
		PublicURL: r.PublicURL(filename),
		MimeType:  models.MimeTypeForExtension(ext),
		Checksum:  hex.EncodeToString(sum[:]),
		CreatedAt: utils.UTCNow(),
	}, nil
}

// PublicURL maps a stored filename onto the URL the static server answers on
func (r *DiskArtifactRepositoryImpl) PublicURL(filename string) string {
	return path.Join(r.publicPrefix, filename)
}

// randomToken returns a version 4 UUID (122 random bits).
func randomToken() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
