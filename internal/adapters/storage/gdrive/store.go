// Package gdrive stores artifacts as files in one Google Drive folder.
package gdrive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/hylla/arkiv/internal/app"
	"github.com/hylla/arkiv/internal/domain"
	"golang.org/x/oauth2"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// StoreName identifies the Drive store in run reports and API filters.
const StoreName = "drive"

// GoogleDocMimeType converts uploaded HTML into a native Google Doc.
const GoogleDocMimeType = "application/vnd.google-apps.document"

const fileFields = "id, name, createdTime, mimeType, size, webViewLink"

// Config holds OAuth client credentials and the target folder.
type Config struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	FolderID     string
}

// Validate reports missing credentials.
func (c Config) Validate() error {
	var missing []string
	for _, field := range []struct{ name, value string }{
		{"client id", c.ClientID},
		{"client secret", c.ClientSecret},
		{"refresh token", c.RefreshToken},
		{"folder id", c.FolderID},
	} {
		if strings.TrimSpace(field.value) == "" {
			missing = append(missing, field.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("google drive %s required", strings.Join(missing, ", "))
	}
	return nil
}

// FileService is the subset of the Drive files API the store uses.
type FileService interface {
	Create(ctx context.Context, meta *drive.File, media io.Reader, mediaType string) (*drive.File, error)
	List(ctx context.Context, query string, page func(*drive.FileList) error) error
	Delete(ctx context.Context, fileID string) error
}

// Store implements app.ArtifactStore against a Drive folder.
type Store struct {
	files    FileService
	folderID string
}

// New authenticates with a refresh token and returns a Drive-backed store.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	oauthCfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:  "https://accounts.google.com/o/oauth2/auth",
			TokenURL: "https://oauth2.googleapis.com/token",
		},
		Scopes: []string{drive.DriveFileScope},
	}
	tokens := oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})
	svc, err := drive.NewService(ctx, option.WithTokenSource(tokens))
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}
	return NewWithFiles(driveFiles{svc: svc}, cfg.FolderID)
}

// NewWithFiles builds a store over an existing file service.
func NewWithFiles(files FileService, folderID string) (*Store, error) {
	if files == nil {
		return nil, errors.New("drive file service is required")
	}
	folderID = strings.TrimSpace(folderID)
	if folderID == "" {
		return nil, errors.New("drive folder id is required")
	}
	return &Store{files: files, folderID: folderID}, nil
}

// Name returns StoreName.
func (s *Store) Name() string { return StoreName }

// Write uploads one artifact. gdoc artifacts are imported as Google Docs.
func (s *Store) Write(ctx context.Context, name string, data []byte, format domain.Format) (domain.ArtifactRef, error) {
	existing, err := s.query(ctx, fmt.Sprintf("name = '%s'", escapeQuery(name)))
	if err != nil {
		return domain.ArtifactRef{}, err
	}
	if len(existing) > 0 {
		return domain.ArtifactRef{}, fmt.Errorf("%w: %s", app.ErrArtifactExists, name)
	}

	meta := &drive.File{
		Name:     name,
		MimeType: format.MediaType(),
		Parents:  []string{s.folderID},
	}
	if format == domain.FormatGDoc {
		meta.MimeType = GoogleDocMimeType
	}
	created, err := s.files.Create(ctx, meta, bytes.NewReader(data), format.MediaType())
	if err != nil {
		return domain.ArtifactRef{}, fmt.Errorf("upload %s: %w", name, err)
	}
	ref := fileRef(created)
	ref.Format = format
	if ref.Size == 0 {
		ref.Size = int64(len(data))
	}
	return ref, nil
}

// List returns artifacts in the folder whose name starts with prefix, oldest first.
func (s *Store) List(ctx context.Context, prefix string) ([]domain.ArtifactRef, error) {
	refs, err := s.query(ctx, fmt.Sprintf("name contains '%s'", escapeQuery(prefix)))
	if err != nil {
		return nil, err
	}
	out := make([]domain.ArtifactRef, 0, len(refs))
	for _, ref := range refs {
		if strings.HasPrefix(ref.Name, prefix) {
			out = append(out, ref)
		}
	}
	slices.SortFunc(out, func(a, b domain.ArtifactRef) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})
	return out, nil
}

// Delete removes one file by id.
func (s *Store) Delete(ctx context.Context, ref domain.ArtifactRef) error {
	if strings.TrimSpace(ref.ID) == "" {
		return fmt.Errorf("%w: artifact %s has no drive id", domain.ErrInvalidArtifactName, ref.Name)
	}
	if err := s.files.Delete(ctx, ref.ID); err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == 404 {
			return fmt.Errorf("%w: artifact %s", app.ErrNotFound, ref.Name)
		}
		return fmt.Errorf("delete %s: %w", ref.Name, err)
	}
	return nil
}

// query lists non-trashed files in the folder matching clause.
func (s *Store) query(ctx context.Context, clause string) ([]domain.ArtifactRef, error) {
	q := fmt.Sprintf("%s and '%s' in parents and trashed = false", clause, escapeQuery(s.folderID))
	var out []domain.ArtifactRef
	err := s.files.List(ctx, q, func(page *drive.FileList) error {
		for _, f := range page.Files {
			out = append(out, fileRef(f))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list drive folder: %w", err)
	}
	return out, nil
}

func fileRef(f *drive.File) domain.ArtifactRef {
	created, _ := time.Parse(time.RFC3339, f.CreatedTime)
	format, _ := domain.FormatForExt(path.Ext(f.Name))
	return domain.ArtifactRef{
		ID:        f.Id,
		Name:      f.Name,
		Format:    format,
		Store:     StoreName,
		CreatedAt: created.UTC(),
		Size:      f.Size,
		Location:  f.WebViewLink,
	}
}

// escapeQuery escapes a literal for the Drive query language.
func escapeQuery(v string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(v)
}

// driveFiles adapts *drive.Service to FileService.
type driveFiles struct {
	svc *drive.Service
}

func (d driveFiles) Create(ctx context.Context, meta *drive.File, media io.Reader, mediaType string) (*drive.File, error) {
	return d.svc.Files.Create(meta).
		Media(media, googleapi.ContentType(mediaType)).
		Fields(fileFields).
		Context(ctx).
		Do()
}

func (d driveFiles) List(ctx context.Context, query string, page func(*drive.FileList) error) error {
	return d.svc.Files.List().
		Q(query).
		OrderBy("createdTime desc").
		PageSize(1000).
		Fields("nextPageToken, files(" + fileFields + ")").
		Pages(ctx, page)
}

func (d driveFiles) Delete(ctx context.Context, fileID string) error {
	return d.svc.Files.Delete(fileID).Context(ctx).Do()
}
