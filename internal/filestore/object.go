package filestore

import (
	"encoding/json"
	"slices"
	"strings"
	"time"
)

// DefaultExcludeFormats are file formats hidden from file listings unless the
// caller passes its own exclusion set.
var DefaultExcludeFormats = []string{"cryptomancer", "trashinfo"}

var dataframeFormats = []string{"csv", "xls", "xlsx"}

// Owner is the owner of a stored object, when the backend reports one.
type Owner struct {
	DisplayName string `json:"displayName" yaml:"displayName"`
	ID          string `json:"id" yaml:"id"`
}

// ObjectEntry describes one object returned by a bucket listing.
//
// IsFolder, FileFormat and Name are derived from Key and Size by
// NewObjectEntry and cannot be set by callers.
type ObjectEntry struct {
	Key          string
	LastModified time.Time
	Size         int64
	StorageClass string
	Owner        *Owner

	isFolder   bool
	fileFormat string
	name       string
}

// NewObjectEntry builds an entry and computes its derived fields.
func NewObjectEntry(key string, lastModified time.Time, size int64, storageClass string, owner *Owner) ObjectEntry {
	e := ObjectEntry{
		Key:          key,
		LastModified: lastModified,
		Size:         size,
		StorageClass: storageClass,
		Owner:        owner,
	}
	e.isFolder = size == 0 && strings.HasSuffix(key, "/")
	if i := strings.LastIndexByte(key, '.'); i >= 0 {
		e.fileFormat = key[i+1:]
	}
	e.name = key[strings.LastIndexByte(key, '/')+1:]
	return e
}

// IsFolder is true for zero-byte keys ending in "/".
func (e ObjectEntry) IsFolder() bool { return e.isFolder }

// FileFormat is the text after the last "." of the key, or "".
func (e ObjectEntry) FileFormat() string { return e.fileFormat }

// Name is the text after the last "/" of the key.
func (e ObjectEntry) Name() string { return e.name }

// IsDataframe reports whether the entry is a tabular file (csv, xls, xlsx).
func (e ObjectEntry) IsDataframe() bool {
	return slices.Contains(dataframeFormats, e.fileFormat)
}

type objectEntryWire struct {
	Key          string `json:"key" yaml:"key"`
	Name         string `json:"name" yaml:"name"`
	IsFolder     bool   `json:"isFolder" yaml:"isFolder"`
	FileFormat   string `json:"fileFormat" yaml:"fileFormat"`
	LastModified int64  `json:"lastModified" yaml:"lastModified"`
	Size         int64  `json:"size" yaml:"size"`
	StorageClass string `json:"storageClass" yaml:"storageClass"`
	Owner        *Owner `json:"owner,omitempty" yaml:"owner,omitempty"`
}

func (e ObjectEntry) wire() objectEntryWire {
	return objectEntryWire{
		Key:          e.Key,
		Name:         e.name,
		IsFolder:     e.isFolder,
		FileFormat:   e.fileFormat,
		LastModified: e.LastModified.UnixMilli(),
		Size:         e.Size,
		StorageClass: e.StorageClass,
		Owner:        e.Owner,
	}
}

// MarshalJSON includes the derived fields and encodes LastModified as epoch
// milliseconds.
func (e ObjectEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.wire())
}

// MarshalYAML mirrors MarshalJSON.
func (e ObjectEntry) MarshalYAML() (any, error) {
	return e.wire(), nil
}

// ListObjectsResult is one bucket listing.
type ListObjectsResult struct {
	Entries    []ObjectEntry
	BucketName string
	Prefix     string
	Delimiter  string
}

// Files returns the entries that are not folders and whose format is not in
// exclude, in listing order.
func (r *ListObjectsResult) Files(exclude []string) []ObjectEntry {
	files := make([]ObjectEntry, 0, len(r.Entries))
	for _, e := range r.Entries {
		if e.isFolder || slices.Contains(exclude, e.fileFormat) {
			continue
		}
		files = append(files, e)
	}
	return files
}

// Folders returns the folder entries, in listing order.
func (r *ListObjectsResult) Folders() []ObjectEntry {
	folders := make([]ObjectEntry, 0)
	for _, e := range r.Entries {
		if e.isFolder {
			folders = append(folders, e)
		}
	}
	return folders
}
