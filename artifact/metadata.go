package artifact

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/YuminosukeSato/agriml/config"
	"github.com/YuminosukeSato/agriml/core/frame"
	"github.com/YuminosukeSato/agriml/evaluation"
	"github.com/YuminosukeSato/agriml/features"
	"github.com/YuminosukeSato/agriml/hyperparams"
	"github.com/YuminosukeSato/agriml/pkg/errors"
	"github.com/YuminosukeSato/agriml/preprocessing"
	"github.com/YuminosukeSato/agriml/training"
	"github.com/YuminosukeSato/agriml/tuning"
)

// Metadata describes one trained bundle. It is written last and marks the
// version as complete.
type Metadata struct {
	Version             string                  `json:"version"`
	DataHash            string                  `json:"data_hash"`
	TrainingSamples     int                     `json:"training_samples"`
	FeatureNames        []string                `json:"feature_names"`
	CategoricalFeatures []string                `json:"categorical_features"`
	ClassNames          []string                `json:"class_names"`
	Metrics             *evaluation.Report      `json:"metrics"`
	CrossValidation     *training.CVResult      `json:"cross_validation,omitempty"`
	Tuning              *tuning.Result          `json:"tuning,omitempty"`
	HyperParameters     hyperparams.Params      `json:"hyperparameters"`
	Preprocessing       *preprocessing.Metadata `json:"preprocessing_meta"`
	Engineering         features.Stats          `json:"feature_engineering"`
	Config              config.Config           `json:"config"`
	RunID               string                  `json:"run_id"`
	CreatedAt           time.Time               `json:"created_at"`
}

// DataHash is the first 8 hex digits of the MD5 of the matrix in CSV form.
func DataHash(X *frame.Frame) (string, error) {
	h := md5.New()
	if err := frame.WriteCSV(h, X); err != nil {
		return "", errors.Wrap(err, "hash training matrix")
	}
	return hex.EncodeToString(h.Sum(nil))[:8], nil
}

// VersionKey is the timestamp with microseconds followed by the data hash,
// e.g. 20250101_093000_000123_1a2b3c4d. Keys sort by creation time.
func VersionKey(now time.Time, dataHash string) string {
	return fmt.Sprintf("%s_%06d_%s", now.Format("20060102_150405"), now.Nanosecond()/1000, dataHash)
}

func writeJSON(path string, v any) (err error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode metadata")
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()
	if _, err = tmp.Write(b); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	if err = tmp.Close(); err != nil {
		return errors.Wrapf(err, "close %s", path)
	}
	return errors.Wrapf(os.Rename(tmp.Name(), path), "move metadata into %s", path)
}

func readMetadata(path string) (*Metadata, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewArtifactNotFoundError("metadata", path)
		}
		return nil, errors.Wrapf(err, "read %s", path)
	}
	var m Metadata
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	return &m, nil
}
