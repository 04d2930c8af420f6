package object_storage

import (
	"bufio"
	"bytes"
	"context"
	"edit-box/internal/utils"
	"edit-box/pkg/logger"
	"encoding/base64"
	"fmt"
	"io"
	"math"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

var log = logger.Build()

// Scheme Prefix of the clip files to fetch from the object storage. Any other file is a local path
const Scheme = "store://"

// ObjectStorage any S3-like storage solution
type ObjectStorage struct {
	// Destination path for all downloads
	assetsPath string
	// Whether assetsPath was created by the storage itself, and must be removed with the assets
	owned bool
	// Name of the Dapr component to use
	componentName string
	// Client to query the backend storage
	client utils.Binder
	// Number of time to retry a download. Each attempt is followed by a wait of (2^attempt) * backoff
	maxRetry int8
	backoff  time.Duration
	// Downloaded keys and their local path
	mu         sync.Mutex
	downloaded map[string]string
}

// NewDaprObjectStorage Prod ready constructor for an object-storage using Dapr. Downloads are stored in a
// new temporary directory
func NewDaprObjectStorage(daprClient utils.Binder, component string, maxRetry int8) (*ObjectStorage, error) {
	dir, err := os.MkdirTemp("", "edit-box-assets-")
	if err != nil {
		return nil, err
	}
	od := NewObjectStorage(dir, daprClient)
	od.componentName = component
	od.maxRetry = maxRetry
	od.owned = true
	return od, nil
}

// NewObjectStorage General purpose object storage, without retries
func NewObjectStorage(assetsPath string, client utils.Binder) *ObjectStorage {
	return &ObjectStorage{
		assetsPath: assetsPath,
		client:     client,
		backoff:    time.Second,
		downloaded: map[string]string{},
	}
}

// Resolve Download a "store://key" file and return its local path. Any other file is returned as is
func (od *ObjectStorage) Resolve(ctx context.Context, file string) (string, error) {
	if !strings.HasPrefix(file, Scheme) {
		return file, nil
	}
	key := strings.TrimPrefix(file, Scheme)
	od.mu.Lock()
	local, ok := od.downloaded[key]
	od.mu.Unlock()
	if ok {
		return local, nil
	}
	var err error
	for attempt := int8(0); attempt <= od.maxRetry; attempt++ {
		if local, err = od.Download(ctx, key); err == nil {
			return local, nil
		}
		if attempt == od.maxRetry {
			break
		}
		log.Warnf("[Object storage] :: attempt %d at downloading %s failed : %s", attempt, key, err)
		select {
		case <-time.After(time.Duration(math.Pow(2, float64(attempt))) * od.backoff):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return "", fmt.Errorf("could not download %s : %w", key, err)
}

// Download a file from the backend storage
func (od *ObjectStorage) Download(ctx context.Context, key string) (string, error) {
	res, err := od.client.InvokeBinding(ctx, &utils.InvokeBindingRequest{
		Name:      od.componentName,
		Operation: "get",
		Data:      nil,
		Metadata:  map[string]string{"key": key},
	})
	if err != nil {
		return "", err
	}
	// Keys may contain "/", but must stay inside the assets directory
	writePath := filepath.Join(od.assetsPath, filepath.FromSlash(path.Clean("/"+key)))
	if err = os.MkdirAll(filepath.Dir(writePath), 0755); err != nil {
		return "", err
	}
	output, err := os.Create(writePath)
	if err != nil {
		return "", err
	}
	defer output.Close()
	decoder := base64.NewDecoder(base64.StdEncoding, bytes.NewReader(res.Data))
	if _, err = io.Copy(output, decoder); err != nil {
		return "", fmt.Errorf("invalid content for %s : %w", key, err)
	}
	od.mu.Lock()
	od.downloaded[key] = writePath
	od.mu.Unlock()
	return writePath, nil
}

// Upload Uploads a file on the backend storage
func (od *ObjectStorage) Upload(ctx context.Context, path string, key string) error {
	b64bytes, err := readFileToB64(path)
	if err != nil {
		return err
	}
	_, err = od.client.InvokeBinding(ctx, &utils.InvokeBindingRequest{
		Name:      od.componentName,
		Operation: "create",
		Data:      b64bytes,
		Metadata: map[string]string{
			"key": key,
		},
	})
	return err
}

// Delete a file in the remote object storage
func (od *ObjectStorage) Delete(ctx context.Context, key string) error {
	_, err := od.client.InvokeBinding(ctx, &utils.InvokeBindingRequest{
		Name:      od.componentName,
		Operation: "delete",
		Data:      nil,
		Metadata: map[string]string{
			"key": key,
		},
	})
	return err
}

// Keys All keys downloaded so far, sorted
func (od *ObjectStorage) Keys() []string {
	od.mu.Lock()
	defer od.mu.Unlock()
	keys := make([]string, 0, len(od.downloaded))
	for k := range od.downloaded {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// CleanUp Remove every downloaded asset from disk
func (od *ObjectStorage) CleanUp() {
	od.mu.Lock()
	defer od.mu.Unlock()
	for key, p := range od.downloaded {
		log.Debugf("[Object storage] :: Removing asset %s", p)
		if err := os.Remove(p); err != nil {
			log.Warnf("[Object storage] :: Could not delete asset %s : %s", p, err)
		}
		delete(od.downloaded, key)
	}
	if od.owned {
		if err := os.RemoveAll(od.assetsPath); err != nil {
			log.Warnf("[Object storage] :: Could not remove directory %s : %s", od.assetsPath, err)
		}
	}
}

// Read a file into a base64 bytes-array
func readFileToB64(path string) ([]byte, error) {
	var buf bytes.Buffer
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	b64enc := base64.NewEncoder(base64.StdEncoding, &buf)
	if _, err = io.Copy(b64enc, bufio.NewReader(file)); err != nil {
		return nil, err
	}
	if err = b64enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
