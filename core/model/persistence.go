package model

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/YuminosukeSato/salescope/pkg/errors"
)

// WriteJSONAtomic はvをJSONとしてpathに書き込む
//
// 同じディレクトリの一時ファイルに書いてからリネームするため、
// 途中で失敗しても既存のファイルが壊れることはない。
func WriteJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode json")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create directory %s", dir)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "failed to create temp file")
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return errors.Wrap(err, "failed to write temp file")
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return errors.Wrap(err, "failed to sync temp file")
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return errors.Wrap(err, "failed to close temp file")
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return errors.Wrapf(err, "failed to move file into place at %s", path)
	}
	return nil
}

// ReadJSON はpathのJSONをvにデコードする。ファイルがなければModelFileNotFoundErrorを返す
func ReadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.NewModelFileNotFoundError(path)
		}
		return errors.Wrapf(err, "failed to read %s", path)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Wrapf(err, "failed to decode %s", path)
	}
	return nil
}

// SaveBundle はバンドルをファイルに保存する
//
// 使用例:
//
//	b, err := model.NewBundle("linear_regression", state, params, diag, est)
//	err = model.SaveBundle("models/linear_regression.json", b)
func SaveBundle(path string, b *Bundle) error {
	if err := b.Validate(); err != nil {
		return err
	}
	return WriteJSONAtomic(path, b)
}

// LoadBundle はファイルからバンドルを読み込み、検証する
func LoadBundle(path string) (*Bundle, error) {
	var b Bundle
	if err := ReadJSON(path, &b); err != nil {
		return nil, err
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return &b, nil
}
