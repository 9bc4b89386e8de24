package resource

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/ekisa-team/stylus/internal/errcat"
)

// SourceKind identifies where a model asset comes from.
type SourceKind string

const (
	// SourceKindURL is a remote http(s) asset.
	SourceKindURL SourceKind = "url"

	// SourceKindFile is a bundled or already local asset.
	SourceKindFile SourceKind = "file"

	// SourceKindAsset is a content identifier resolved through the asset table.
	SourceKindAsset SourceKind = "asset"

	// SourceKindHuggingFace is a file inside a Hugging Face repository.
	SourceKindHuggingFace SourceKind = "huggingface"
)

// Source describes where a model asset comes from. Sources are immutable.
type Source interface {
	// Kind returns the source kind.
	Kind() SourceKind

	// Key returns a stable identifier, used for the cache and to track
	// in-flight downloads.
	Key() string

	String() string
}

// URLSource is a remote asset fetched over http(s).
type URLSource struct {
	URL string
}

// Kind returns SourceKindURL.
func (s URLSource) Kind() SourceKind { return SourceKindURL }

// Key returns a hash of the URL followed by its base name.
func (s URLSource) Key() string {
	sum := sha256.Sum256([]byte(s.URL))
	name := "asset"
	if u, err := url.Parse(s.URL); err == nil {
		if base := path.Base(u.Path); base != "." && base != "/" {
			name = base
		}
	}
	return hex.EncodeToString(sum[:8]) + "-" + name
}

func (s URLSource) String() string { return s.URL }

// FileSource is an asset already present on the local filesystem.
type FileSource struct {
	Path string
}

// Kind returns SourceKindFile.
func (s FileSource) Kind() SourceKind { return SourceKindFile }

// Key returns the path.
func (s FileSource) Key() string { return "file:" + s.Path }

func (s FileSource) String() string { return s.Path }

// AssetSource is a content identifier, resolved to a path by the fetcher's
// asset table.
type AssetSource struct {
	ID string
}

// Kind returns SourceKindAsset.
func (s AssetSource) Kind() SourceKind { return SourceKindAsset }

// Key returns the identifier.
func (s AssetSource) Key() string { return "asset:" + s.ID }

func (s AssetSource) String() string { return "asset://" + s.ID }

// HuggingFaceSource is a single file inside a Hugging Face repository.
type HuggingFaceSource struct {
	Repo     string
	File     string
	Revision string
	Token    string
}

// Kind returns SourceKindHuggingFace.
func (s HuggingFaceSource) Kind() SourceKind { return SourceKindHuggingFace }

// Key returns the repository, file and revision.
func (s HuggingFaceSource) Key() string {
	return "hf:" + s.Repo + "/" + s.File + "@" + s.Revision
}

func (s HuggingFaceSource) String() string {
	str := "hf://" + s.Repo + "/" + s.File
	if s.Revision != "" {
		str += "@" + s.Revision
	}
	return str
}

// ParseSource parses the textual form of a source:
//
//	https://host/model.wasm
//	file:///opt/models/model.wasm
//	asset://candy
//	hf://org/repo/path/to/model.wasm@revision
//	/opt/models/model.wasm
func ParseSource(raw string) (Source, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errcat.New(errcat.MissingURI)
	}

	switch {
	case strings.HasPrefix(raw, "http://"), strings.HasPrefix(raw, "https://"):
		if _, err := url.Parse(raw); err != nil {
			return nil, errcat.Wrap(errcat.InvalidSource, err)
		}
		return URLSource{URL: raw}, nil

	case strings.HasPrefix(raw, "file://"):
		return FileSource{Path: strings.TrimPrefix(raw, "file://")}, nil

	case strings.HasPrefix(raw, "asset://"):
		id := strings.TrimPrefix(raw, "asset://")
		if id == "" {
			return nil, errcat.Wrap(errcat.InvalidSource, fmt.Errorf("empty asset id in %q", raw))
		}
		return AssetSource{ID: id}, nil

	case strings.HasPrefix(raw, "hf://"):
		return parseHuggingFace(strings.TrimPrefix(raw, "hf://"))

	case strings.Contains(raw, "://"):
		return nil, errcat.Wrap(errcat.InvalidSource, fmt.Errorf("unsupported scheme in %q", raw))
	}

	return FileSource{Path: raw}, nil
}

// parseHuggingFace parses "org/repo/path/to/file[@revision]".
func parseHuggingFace(rest string) (Source, error) {
	var revision string
	if i := strings.LastIndex(rest, "@"); i >= 0 {
		rest, revision = rest[:i], rest[i+1:]
	}

	parts := strings.SplitN(rest, "/", 3)
	if len(parts) < 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return nil, errcat.Wrap(errcat.InvalidSource, fmt.Errorf("expected hf://org/repo/file, got %q", "hf://"+rest))
	}

	return HuggingFaceSource{
		Repo:     parts[0] + "/" + parts[1],
		File:     parts[2],
		Revision: revision,
	}, nil
}
