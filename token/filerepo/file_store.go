package filerepo

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/jrsteele09/go-ctf-client/token"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

var _ token.Store = (*FileStore)(nil)

// sessionFile is the on-disk layout of the session file.
type sessionFile struct {
	Values map[string]string `yaml:"values"`
}

// FileStore persists key-value session state to a YAML file readable only by the current user.
// Every mutation rewrites the whole file through a temporary file and rename.
type FileStore struct {
	path string
	lock sync.RWMutex
}

// New returns a FileStore rooted at path. The file and its directory are created on the first write.
func New(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("[filerepo New] path is required")
	}
	return &FileStore{path: path}, nil
}

// Path returns the location of the session file.
func (fs *FileStore) Path() string {
	return fs.path
}

func (fs *FileStore) Get(key string) (string, bool, error) {
	fs.lock.RLock()
	defer fs.lock.RUnlock()

	values, err := fs.load()
	if err != nil {
		return "", false, err
	}
	v, ok := values[key]
	return v, ok, nil
}

func (fs *FileStore) Set(key, value string) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	values, err := fs.load()
	if err != nil {
		return err
	}
	values[key] = value
	return fs.save(values)
}

func (fs *FileStore) Delete(key string) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	values, err := fs.load()
	if err != nil {
		return err
	}
	if _, ok := values[key]; !ok {
		return nil
	}
	delete(values, key)
	return fs.save(values)
}

func (fs *FileStore) load() (map[string]string, error) {
	data, err := os.ReadFile(fs.path)
	if errors.Is(err, os.ErrNotExist) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "[FileStore] read session file")
	}

	var f sessionFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrapf(err, "[FileStore] parse session file %s", fs.path)
	}
	if f.Values == nil {
		f.Values = make(map[string]string)
	}
	return f.Values, nil
}

func (fs *FileStore) save(values map[string]string) error {
	data, err := yaml.Marshal(sessionFile{Values: values})
	if err != nil {
		return errors.Wrap(err, "[FileStore] encode session file")
	}

	dir := filepath.Dir(fs.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return errors.Wrap(err, "[FileStore] create session directory")
	}

	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return errors.Wrap(err, "[FileStore] create temp file")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "[FileStore] write temp file")
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return errors.Wrap(err, "[FileStore] chmod temp file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "[FileStore] close temp file")
	}
	return errors.Wrap(os.Rename(tmpName, fs.path), "[FileStore] replace session file")
}
