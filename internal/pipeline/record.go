package pipeline

import (
	"strings"
	"time"

	"github.com/openlibgis/geoporter/internal/archive"
	"github.com/openlibgis/geoporter/internal/crosswalk"
	"github.com/openlibgis/geoporter/internal/envelope"
	"github.com/openlibgis/geoporter/internal/metadata"
)

// IngestRecord is the single accumulator threaded through the pipeline.
// Stages only add fields; nothing is removed or overwritten, and the
// status trail grows by appending.
type IngestRecord struct {
	RunID string `json:"run_id"`

	SourceArchivePath string `json:"source_archive_path"`
	WorkingFolder     string `json:"working_folder"`
	ArchiveURL        string `json:"archive_url"`
	FreshExtraction   bool   `json:"fresh_extraction"`

	DatasetType     archive.DatasetType `json:"dataset_type"`
	PrimaryDataFile string              `json:"primary_data_file"`

	StoreName            string        `json:"store_name"`
	FeatureName          string        `json:"feature_name"`
	ResourceKind         string        `json:"resource_kind"`
	PublishedBoundingBox envelope.BBox `json:"published_bounding_box"`
	PublishedEnvelope    string        `json:"published_envelope"`

	MetadataFiles []string             `json:"metadata_files"`
	Documents     []*metadata.Document `json:"-"`

	CatalogRecord *crosswalk.Record `json:"catalog_record"`

	StatusTrail []string  `json:"status_trail"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
}

// AppendStatus adds a line to the audit trail.
func (r *IngestRecord) AppendStatus(msg string) {
	if msg == "" {
		return
	}
	r.StatusTrail = append(r.StatusTrail, msg)
}

// StatusMessage renders the cumulative trail.
func (r *IngestRecord) StatusMessage() string {
	return strings.Join(r.StatusTrail, " ")
}
