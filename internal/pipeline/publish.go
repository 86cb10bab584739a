package pipeline

import (
	"context"
	"path"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/cadastre-cli/internal/filestore"
	"github.com/sells-group/cadastre-cli/internal/model"
	"github.com/sells-group/cadastre-cli/internal/tabular"
)

// Artifact name suffixes distinguishing uploaded inputs from job outputs.
const (
	InputSuffix  = "_in.csv"
	OutputSuffix = "_out.csv"
)

// DefaultFolder is the file store folder holding job artifacts.
const DefaultFolder = "cadastreapi_tmp_storage"

// ArtifactName returns a fresh unique file store name under folder.
func ArtifactName(folder, suffix string) string {
	return path.Join(folder, uuid.New().String()+suffix)
}

// Publisher writes output tables to the file store.
type Publisher struct {
	files  filestore.Store
	folder string
}

// NewPublisher creates a Publisher writing under folder.
func NewPublisher(files filestore.Store, folder string) *Publisher {
	if folder == "" {
		folder = DefaultFolder
	}
	return &Publisher{files: files, folder: folder}
}

// Publish serializes t and stores it under a new output name, which it
// returns.
func (p *Publisher) Publish(ctx context.Context, t *model.Table, delim rune) (string, error) {
	data, err := tabular.Marshal(t, delim)
	if err != nil {
		return "", eris.Wrap(err, "pipeline: serialize output")
	}

	name := ArtifactName(p.folder, OutputSuffix)
	if err := p.files.Write(ctx, name, data); err != nil {
		return "", eris.Wrap(err, "pipeline: store output")
	}
	return name, nil
}
