// Package artifact persists trained bundles under version keys and loads
// them back for inference.
//
// A bundle is three files sharing a version key, written in the order
// model, label encoder, metadata. The metadata file marks the version as
// complete; a row in the SQLite manifest is committed after it.
package artifact

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/YuminosukeSato/agriml/boost"
	"github.com/YuminosukeSato/agriml/core/frame"
	"github.com/YuminosukeSato/agriml/core/model"
	"github.com/YuminosukeSato/agriml/core/parallel"
	"github.com/YuminosukeSato/agriml/pkg/errors"
	"github.com/YuminosukeSato/agriml/pkg/log"
	"github.com/YuminosukeSato/agriml/preprocessing"
)

// File name prefixes; the version key and extension follow.
const (
	modelPrefix    = "model_v"
	encoderPrefix  = "label_encoder_v"
	metadataPrefix = "metadata_v"
)

// Bundle is a trained model with everything inference needs.
type Bundle struct {
	Model    boost.Model
	Encoder  *preprocessing.LabelEncoder
	Metadata *Metadata
}

// Paths are the files of one version.
type Paths struct {
	Model    string `json:"model"`
	Encoder  string `json:"encoder"`
	Metadata string `json:"metadata"`
}

// Store reads and writes bundles in one directory.
type Store struct {
	dir      string
	now      func() time.Time
	logger   log.Logger
	manifest *manifest
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// Open creates dir if needed and opens its manifest.
func Open(ctx context.Context, dir string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create model dir %s", dir)
	}
	s := &Store{dir: dir, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	if s.logger == nil {
		s.logger = log.GetLoggerWithName("artifact")
	}
	m, err := openManifest(ctx, filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, err
	}
	s.manifest = m
	return s, nil
}

// Close closes the manifest.
func (s *Store) Close() error {
	return s.manifest.close()
}

// Dir returns the model directory.
func (s *Store) Dir() string { return s.dir }

// PathsFor returns the file paths of version.
func (s *Store) PathsFor(version string) Paths {
	return Paths{
		Model:    filepath.Join(s.dir, modelPrefix+version+".gob"),
		Encoder:  filepath.Join(s.dir, encoderPrefix+version+".gob"),
		Metadata: filepath.Join(s.dir, metadataPrefix+version+".json"),
	}
}

// Save writes b under a new version key derived from the clock and the hash
// of trainX, fills Version, DataHash, TrainingSamples and CreatedAt in the
// metadata, and returns the key. Existing versions are never touched.
func (s *Store) Save(ctx context.Context, b *Bundle, trainX *frame.Frame) (string, Paths, error) {
	if b == nil || b.Model == nil || b.Encoder == nil || b.Metadata == nil {
		return "", Paths{}, errors.NewValueError("Store.Save", "bundle needs a model, an encoder and metadata")
	}
	hash, err := DataHash(trainX)
	if err != nil {
		return "", Paths{}, err
	}
	now := s.now()
	version := VersionKey(now, hash)
	paths := s.PathsFor(version)
	if _, err := os.Stat(paths.Metadata); err == nil {
		return "", Paths{}, errors.NewValueError("Store.Save", "version "+version+" already exists")
	}

	meta := *b.Metadata
	meta.Version = version
	meta.DataHash = hash
	meta.TrainingSamples = trainX.NumRows()
	meta.CreatedAt = now.UTC()

	if err := model.SaveModel(b.Model, paths.Model); err != nil {
		return "", Paths{}, errors.Wrap(err, "save model")
	}
	if err := model.SaveModel(b.Encoder, paths.Encoder); err != nil {
		return "", Paths{}, errors.Wrap(err, "save label encoder")
	}
	if err := writeJSON(paths.Metadata, &meta); err != nil {
		return "", Paths{}, err
	}

	row := manifestRow{
		VersionInfo: VersionInfo{
			Version:   version,
			RunID:     meta.RunID,
			DataHash:  hash,
			Samples:   meta.TrainingSamples,
			CreatedAt: meta.CreatedAt,
		},
		ModelPath:    paths.Model,
		EncoderPath:  paths.Encoder,
		MetadataPath: paths.Metadata,
	}
	if meta.Metrics != nil {
		row.Accuracy = meta.Metrics.Accuracy
	}
	if err := s.manifest.commit(ctx, row); err != nil {
		return "", Paths{}, err
	}
	b.Metadata = &meta

	s.logger.Info("artifacts saved",
		log.OperationKey, log.OperationSave,
		log.VersionKey, version,
		log.PathKey, s.dir,
		log.RunIDKey, meta.RunID,
	)
	return version, paths, nil
}

// Load reads the bundle of version.
func (s *Store) Load(version string) (*Bundle, error) {
	paths := s.PathsFor(version)
	meta, err := readMetadata(paths.Metadata)
	if err != nil {
		return nil, err
	}
	clf := boost.NewClassifier(meta.HyperParameters, s.logger)
	if err := model.LoadModel(clf, paths.Model); err != nil {
		return nil, err
	}
	enc := preprocessing.NewLabelEncoder(nil)
	if err := model.LoadModel(enc, paths.Encoder); err != nil {
		return nil, err
	}
	if enc.NumClasses() != clf.NumClasses() {
		return nil, errors.NewValueError("Store.Load",
			"label encoder and model disagree on the number of classes in version "+version)
	}
	s.logger.Info("artifacts loaded",
		log.OperationKey, log.OperationLoad,
		log.VersionKey, version,
		log.ClassesKey, enc.NumClasses(),
	)
	return &Bundle{Model: clf, Encoder: enc, Metadata: meta}, nil
}

// LoadLatest loads the most recently committed version. Without manifest
// entries it falls back to the greatest version key on disk that has
// metadata.
func (s *Store) LoadLatest(ctx context.Context) (*Bundle, error) {
	version, err := s.manifest.latest(ctx)
	if err != nil {
		return nil, err
	}
	if version == "" {
		scanned, err := s.scan()
		if err != nil {
			return nil, err
		}
		if len(scanned) == 0 {
			return nil, errors.NewArtifactNotFoundError("model", s.dir)
		}
		version = scanned[len(scanned)-1]
		s.logger.Warn("manifest empty, using newest version on disk", log.VersionKey, version)
	}
	return s.Load(version)
}

// Versions lists committed versions, oldest first. Without manifest entries
// it lists the complete versions found on disk.
func (s *Store) Versions(ctx context.Context) ([]VersionInfo, error) {
	infos, err := s.manifest.list(ctx)
	if err != nil || len(infos) > 0 {
		return infos, err
	}
	scanned, err := s.scan()
	if err != nil {
		return nil, err
	}
	infos = make([]VersionInfo, len(scanned))
	err = parallel.ForEach(ctx, len(scanned), func(_ context.Context, i int) error {
		meta, err := readMetadata(s.PathsFor(scanned[i]).Metadata)
		if err != nil {
			return err
		}
		infos[i] = VersionInfo{Version: scanned[i], RunID: meta.RunID, DataHash: meta.DataHash, Samples: meta.TrainingSamples, CreatedAt: meta.CreatedAt}
		if meta.Metrics != nil {
			infos[i].Accuracy = meta.Metrics.Accuracy
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return infos, nil
}

// scan returns the versions with a model file and metadata, in key order.
func (s *Store) scan() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, modelPrefix+"*.gob"))
	if err != nil {
		return nil, errors.Wrap(err, "scan model dir")
	}
	var versions []string
	for _, m := range matches {
		v := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(m), modelPrefix), ".gob")
		if _, err := os.Stat(s.PathsFor(v).Metadata); err != nil {
			s.logger.Debug("skipping incomplete version", log.VersionKey, v)
			continue
		}
		versions = append(versions, v)
	}
	sort.Strings(versions)
	return versions, nil
}
