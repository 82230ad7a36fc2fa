// Package publish writes a build's artifacts to their deploy target. The
// directory publisher is the built-in implementation; hosting-specific
// publishers satisfy the same interface.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"autoforge/internal/types"
)

// MarkerFile is written last; its presence distinguishes a completed
// deploy from an interrupted one, which is how the orchestrator decides
// between "already built" and "resume deploy".
const MarkerFile = ".deployed"

// marker is the content of the deploy marker file
type marker struct {
	ItemID     string    `json:"item_id"`
	DeployURL  string    `json:"deploy_url,omitempty"`
	DeployedAt time.Time `json:"deployed_at"`
}

// Publisher pushes artifacts to their destination. An empty returned URL is
// not fatal when the push itself succeeded.
type Publisher interface {
	// Push writes the artifacts for a built record and returns the deploy
	// URL, or "" when the target has none.
	Push(ctx context.Context, rec *types.BuiltRecord, artifacts []types.Artifact) (string, error)

	// HasMarker reports whether the output path carries a completed deploy
	// marker.
	HasMarker(outputPath string) bool

	// Resume finishes an interrupted deploy whose artifacts already exist at
	// the record's output path, writing the marker without regenerating
	// anything.
	Resume(ctx context.Context, rec *types.BuiltRecord) (string, error)

	// OutputPath returns the deploy destination for a slug
	OutputPath(slug string) string
}

// DirPublisher deploys apps as directories under a local root (typically a
// checkout served by static hosting).
type DirPublisher struct {
	root    string
	baseURL string // Optional; "" means no URL is reported
}

// NewDirPublisher creates a directory publisher rooted at root. baseURL,
// when set, is joined with the app slug to form the reported deploy URL.
func NewDirPublisher(root, baseURL string) (*DirPublisher, error) {
	if root == "" {
		return nil, fmt.Errorf("publish root is required")
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create publish root: %w", err)
	}
	return &DirPublisher{root: root, baseURL: baseURL}, nil
}

// OutputPath returns the deploy directory for a slug, relative to the root
func (p *DirPublisher) OutputPath(slug string) string {
	return filepath.Join(p.root, slug)
}

// Push implements Publisher
func (p *DirPublisher) Push(ctx context.Context, rec *types.BuiltRecord, artifacts []types.Artifact) (string, error) {
	dir := filepath.Join(p.root, rec.Slug)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create app directory: %w", err)
	}

	for _, artifact := range artifacts {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		rel := filepath.Clean(filepath.FromSlash(artifact.Path))
		if filepath.IsAbs(rel) || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return "", fmt.Errorf("artifact path %q escapes the app directory", artifact.Path)
		}
		dest := filepath.Join(dir, rel)
		if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
			return "", fmt.Errorf("failed to create directory for %s: %w", artifact.Path, err)
		}
		if err := os.WriteFile(dest, []byte(artifact.Content), 0644); err != nil {
			return "", fmt.Errorf("failed to write %s: %w", artifact.Path, err)
		}
	}

	url := ""
	if p.baseURL != "" {
		url = p.baseURL + "/" + rec.Slug + "/"
	}

	// Marker goes last: everything before it is resumable
	payload, err := json.Marshal(marker{
		ItemID:     rec.ItemID,
		DeployURL:  url,
		DeployedAt: time.Now(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal deploy marker: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, MarkerFile), payload, 0644); err != nil {
		return "", fmt.Errorf("failed to write deploy marker: %w", err)
	}

	fmt.Printf("Deployed %s (%d artifacts) to %s\n", rec.Slug, len(artifacts), dir)
	return url, nil
}

// HasMarker implements Publisher
func (p *DirPublisher) HasMarker(outputPath string) bool {
	_, err := os.Stat(filepath.Join(outputPath, MarkerFile))
	return err == nil
}

// Resume implements Publisher
func (p *DirPublisher) Resume(ctx context.Context, rec *types.BuiltRecord) (string, error) {
	dir := rec.OutputPath
	if dir == "" {
		dir = filepath.Join(p.root, rec.Slug)
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("cannot resume deploy of %s: output path %s is missing", rec.Slug, dir)
	}

	url := ""
	if p.baseURL != "" {
		url = p.baseURL + "/" + rec.Slug + "/"
	}

	payload, err := json.Marshal(marker{
		ItemID:     rec.ItemID,
		DeployURL:  url,
		DeployedAt: time.Now(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal deploy marker: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, MarkerFile), payload, 0644); err != nil {
		return "", fmt.Errorf("failed to write deploy marker: %w", err)
	}

	fmt.Printf("Resumed deploy of %s at %s\n", rec.Slug, dir)
	return url, nil
}
