package filestore

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// DownloadFunc fetches a remote file to the given local path.
type DownloadFunc func(url string, path string) error

// Store is a content-addressed cache of test files. Keys are the sha256 of
// the (decompressed) content, which doubles as the integrity check after a
// download.
type Store struct {
	fileDir  string
	tmpDir   string
	download DownloadFunc

	mu      sync.Mutex
	entries map[string]*entry
	queue   chan string
}

type entry struct {
	url  string
	done chan struct{}
	err  error
}

func New(fileDir, tmpDir string, download DownloadFunc) (*Store, error) {
	if err := os.MkdirAll(fileDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create file store directory: %w", err)
	}
	if err := os.MkdirAll(tmpDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create tmp directory: %w", err)
	}
	if download == nil {
		download = HTTPDownload
	}
	return &Store{
		fileDir:  fileDir,
		tmpDir:   tmpDir,
		download: download,
		entries:  make(map[string]*entry),
		queue:    make(chan string, 10000),
	}, nil
}

// Start downloads scheduled files in the background.
func (s *Store) Start() {
	go func() {
		for key := range s.queue {
			s.fetch(key)
		}
	}()
}

// Path returns where the file for a key lives once downloaded.
func (s *Store) Path(key string) string {
	return filepath.Join(s.fileDir, key)
}

// Schedule registers a download for a key if it is not already known.
func (s *Store) Schedule(key string, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[key]; exists {
		return nil
	}
	s.entries[key] = &entry{url: url, done: make(chan struct{})}
	s.queue <- key
	return nil
}

// SaveContent stores inline content and returns its key. Content arriving
// with a request skips the download path entirely.
func (s *Store) SaveContent(content []byte) (string, error) {
	sum := sha256.Sum256(content)
	key := hex.EncodeToString(sum[:])

	s.mu.Lock()
	if _, exists := s.entries[key]; exists {
		s.mu.Unlock()
		return key, nil
	}
	e := &entry{done: make(chan struct{})}
	s.entries[key] = e
	s.mu.Unlock()

	e.err = os.WriteFile(s.Path(key), content, 0644)
	close(e.done)
	return key, e.err
}

// Await blocks until the keyed file is available (or failed) and returns
// its content.
func (s *Store) Await(key string) ([]byte, error) {
	s.mu.Lock()
	e, exists := s.entries[key]
	s.mu.Unlock()
	if !exists {
		return nil, fmt.Errorf("file %s has not been scheduled for download", key)
	}

	<-e.done
	if e.err != nil {
		return nil, e.err
	}
	return os.ReadFile(s.Path(key))
}

func (s *Store) fetch(key string) {
	s.mu.Lock()
	e := s.entries[key]
	s.mu.Unlock()

	e.err = s.fetchToCache(key, e.url)
	close(e.done)
}

func (s *Store) fetchToCache(key string, url string) error {
	if _, err := os.Stat(s.Path(key)); err == nil {
		return nil
	}

	tmpPath := filepath.Join(s.tmpDir, key)
	if err := s.download(url, tmpPath); err != nil {
		return fmt.Errorf("failed to download file %s: %w", key, err)
	}
	defer os.Remove(tmpPath)

	content, err := os.ReadFile(tmpPath)
	if err != nil {
		return err
	}

	if strings.HasSuffix(url, ".zst") {
		d, err := zstd.NewReader(nil)
		if err != nil {
			return fmt.Errorf("failed to create zstd reader: %w", err)
		}
		defer d.Close()
		content, err = d.DecodeAll(content, nil)
		if err != nil {
			return fmt.Errorf("failed to decompress file %s: %w", key, err)
		}
	}

	sum := sha256.Sum256(content)
	if hex.EncodeToString(sum[:]) != key {
		return fmt.Errorf("integrity check failed for file %s", key)
	}

	return os.WriteFile(s.Path(key), content, 0644)
}

// HTTPDownload is the default DownloadFunc.
func HTTPDownload(url string, path string) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s fetching %s", resp.Status, url)
	}

	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, resp.Body)
	return err
}
