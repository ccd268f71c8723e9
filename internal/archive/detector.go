// Package archive unpacks uploaded dataset archives and classifies their
// contents as vector, raster, or unreferenced image sets.
package archive

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/openlibgis/geoporter/internal"
)

// DatasetType classifies what an extracted archive holds.
type DatasetType string

const (
	TypeVector       DatasetType = "vector"
	TypeRaster       DatasetType = "raster"
	TypeUnreferenced DatasetType = "unreferenced"
)

var rasterPatterns = []string{"*.jpg", "*.tif", "*.tiff", "*.png"}

type Option func(*Detector)

func WithLogger(logger *zap.Logger) Option {
	return func(d *Detector) {
		d.logger = logger
	}
}

func WithRepository(repository internal.Repository) Option {
	return func(d *Detector) {
		d.repository = repository
	}
}

// Detector extracts archives into the working directory and publishes the
// archive itself to durable storage.
type Detector struct {
	workDir    string
	repository internal.Repository
	logger     *zap.Logger
}

func NewDetector(workDir string, opts ...Option) *Detector {
	d := &Detector{
		workDir: workDir,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// UnpackResult reports where an archive was extracted and whether this
// invocation did the extraction or reused a previous one.
type UnpackResult struct {
	Folder     string
	Fresh      bool
	ArchiveURL string
}

// Unpack extracts archivePath into the working directory. The destination
// defaults to the archive's base name. An existing destination is reused
// untouched unless force is set, in which case it is removed and
// re-extracted. In every case the archive ends up in durable storage and
// the transient upload is removed.
func (d *Detector) Unpack(ctx context.Context, archivePath, destination string, force bool) (*UnpackResult, error) {
	if d.repository == nil {
		return nil, errors.New("detector has no repository for archive publication")
	}

	zipName := filepath.Base(archivePath)
	if destination == "" {
		destination = strings.TrimSuffix(zipName, filepath.Ext(zipName))
	}
	folder := filepath.Join(d.workDir, destination)

	if _, err := os.Stat(folder); err == nil {
		if force {
			d.logger.Info("force reload, removing previous extraction",
				zap.String("folder", folder))
			if err := os.RemoveAll(folder); err != nil {
				return nil, fmt.Errorf("removing %s: %w", folder, err)
			}
		} else {
			url, err := d.publishArchive(ctx, archivePath, zipName)
			if err != nil {
				return nil, err
			}
			d.logger.Info("reusing previous extraction", zap.String("folder", folder))
			return &UnpackResult{Folder: folder, Fresh: false, ArchiveURL: url}, nil
		}
	}

	if err := extractZip(archivePath, folder); err != nil {
		return nil, fmt.Errorf("extracting %s: %w", archivePath, err)
	}

	url, err := d.publishArchive(ctx, archivePath, zipName)
	if err != nil {
		return nil, err
	}

	d.logger.Info("archive extracted",
		zap.String("folder", folder),
		zap.String("archive_url", url))
	return &UnpackResult{Folder: folder, Fresh: true, ArchiveURL: url}, nil
}

// publishArchive copies the upload to durable storage (unless already
// there) and deletes the transient copy.
func (d *Detector) publishArchive(ctx context.Context, archivePath, zipName string) (string, error) {
	exists, err := d.repository.Exists(ctx, zipName)
	if err != nil {
		return "", err
	}

	url := d.repository.URL(zipName)
	if !exists {
		f, err := os.Open(archivePath)
		if err != nil {
			return "", err
		}
		url, err = d.repository.Store(ctx, zipName, f)
		f.Close()
		if err != nil {
			return "", err
		}
	}

	if err := os.Remove(archivePath); err != nil {
		return "", err
	}
	return url, nil
}

// Classification names the dataset type and the file that represents it.
// PrimaryFile is empty for unreferenced archives.
type Classification struct {
	Type        DatasetType
	PrimaryFile string
}

// Classify searches the extraction folder for a recognizable data file.
// Shapefiles take precedence over raster images; an archive with neither
// classifies as unreferenced rather than failing.
func (d *Detector) Classify(folder string) (*Classification, error) {
	shapefiles, err := findFiles([]string{"*.shp"}, folder)
	if err != nil {
		return nil, err
	}
	if len(shapefiles) > 0 {
		return &Classification{
			Type:        TypeVector,
			PrimaryFile: filepath.Join(folder, shapefiles[0]),
		}, nil
	}

	images, err := findFiles(rasterPatterns, folder)
	if err != nil {
		return nil, err
	}
	for _, image := range images {
		path := filepath.Join(folder, image)
		if isGeoreferenced(path) {
			return &Classification{
				Type:        TypeRaster,
				PrimaryFile: path,
			}, nil
		}
	}

	d.logger.Info("no georeferenced or scanned image file found",
		zap.String("folder", folder))
	return &Classification{Type: TypeUnreferenced}, nil
}

var worldFileExts = []string{".tfw", ".pgw", ".jgw", ".wld"}

// isGeoreferenced reports whether an image carries spatial referencing:
// GeoTIFFs embed it, anything else needs a world-file sidecar. Plain
// scanned images route to the unreferenced branch.
func isGeoreferenced(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tif", ".tiff":
		return true
	}
	base := strings.TrimSuffix(path, filepath.Ext(path))
	for _, ext := range worldFileExts {
		if _, err := os.Stat(base + ext); err == nil {
			return true
		}
	}
	return false
}

// findFiles returns the folder entries matching any of the shell patterns.
// Matching is case-insensitive and the result is deduplicated and sorted.
func findFiles(patterns []string, folder string) ([]string, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, err
	}

	seen := map[string]struct{}{}
	var matches []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		for _, pattern := range patterns {
			ok, err := filepath.Match(pattern, strings.ToLower(name))
			if err != nil {
				return nil, err
			}
			if ok {
				if _, dup := seen[name]; !dup {
					seen[name] = struct{}{}
					matches = append(matches, name)
				}
				break
			}
		}
	}
	sort.Strings(matches)
	return matches, nil
}

func extractZip(archivePath, destination string) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return err
	}
	defer reader.Close()

	for _, file := range reader.File {
		target := filepath.Join(destination, file.Name)
		// reject entries escaping the destination
		if !strings.HasPrefix(target, filepath.Clean(destination)+string(os.PathSeparator)) {
			return fmt.Errorf("archive entry %q escapes destination", file.Name)
		}

		if file.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return err
		}

		src, err := file.Open()
		if err != nil {
			return err
		}
		dst, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, file.Mode())
		if err != nil {
			src.Close()
			return err
		}
		_, err = io.Copy(dst, src)
		src.Close()
		dst.Close()
		if err != nil {
			return err
		}
	}
	return nil
}
