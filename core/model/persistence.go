package model

import (
	"encoding/gob"
	"io"
	"os"
	"path/filepath"

	"github.com/YuminosukeSato/agriml/pkg/errors"
)

// SaveModel はモデルをファイルに保存する
//
// 一時ファイルに書き込んでからリネームするため、途中で失敗しても
// 不完全なファイルが残ることはない。モデルが Persistable を実装していれば
// その Save を使い、そうでなければ gob でエンコードする。
//
// 使用例:
//
//	err := model.SaveModel(encoder, "models/label_encoder_v20250101_000000_000000_abcd1234.gob")
func SaveModel(m interface{}, filename string) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(filename), "."+filepath.Base(filename)+".tmp-*")
	if err != nil {
		return errors.Wrapf(err, "failed to create file for %s", filename)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if err = SaveModelToWriter(m, tmp); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return errors.Wrap(err, "failed to sync model file")
	}
	if err = tmp.Close(); err != nil {
		return errors.Wrap(err, "failed to close model file")
	}
	if err = os.Rename(tmp.Name(), filename); err != nil {
		return errors.Wrapf(err, "failed to move model file into %s", filename)
	}
	return nil
}

// LoadModel はファイルからモデルを読み込む
//
// ファイルが存在しない場合は NotFoundError を返す。
func LoadModel(m interface{}, filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.NewArtifactNotFoundError("model file", filename)
		}
		return errors.Wrap(err, "failed to open file")
	}
	defer file.Close()
	return LoadModelFromReader(m, file)
}

// SaveModelToWriter はモデルをio.Writerに保存する
func SaveModelToWriter(m interface{}, w io.Writer) error {
	if p, ok := m.(Persistable); ok {
		return errors.Wrap(p.Save(w), "failed to encode model")
	}
	if err := gob.NewEncoder(w).Encode(m); err != nil {
		return errors.Wrap(err, "failed to encode model")
	}
	return nil
}

// LoadModelFromReader はio.Readerからモデルを読み込む
func LoadModelFromReader(m interface{}, r io.Reader) error {
	if p, ok := m.(Persistable); ok {
		return errors.Wrap(p.Load(r), "failed to decode model")
	}
	if err := gob.NewDecoder(r).Decode(m); err != nil {
		return errors.Wrap(err, "failed to decode model")
	}
	return nil
}
