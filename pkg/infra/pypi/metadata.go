package pypi

import (
	"archive/tar"
	"archive/zip"
	"bufio"
	"compress/gzip"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/textproto"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/tagship/pkg/domain/model"
)

// maxMetadataSize bounds how much of a metadata file is read
const maxMetadataSize = 1 << 20

// inspectFile builds an Artifact from a distribution file on disk
func inspectFile(filePath string) (*model.Artifact, error) {
	filename := filepath.Base(filePath)
	artifact := &model.Artifact{
		Path:     filePath,
		Filename: filename,
	}

	var (
		raw []byte
		err error
	)
	switch {
	case strings.HasSuffix(filename, ".whl"):
		artifact.Kind = model.ArtifactWheel
		artifact.PyVersion = wheelPythonTag(filename)
		raw, err = readWheelMetadata(filePath)
	case strings.HasSuffix(filename, ".tar.gz"):
		artifact.Kind = model.ArtifactSdist
		artifact.PyVersion = "source"
		raw, err = readSdistMetadata(filePath)
	default:
		return nil, goerr.New("unsupported distribution file", goerr.V("file", filename))
	}
	if err != nil {
		return nil, err
	}

	meta, err := parseMetadata(raw)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to parse package metadata", goerr.V("file", filename))
	}
	artifact.Metadata = *meta

	if err := digestFile(artifact); err != nil {
		return nil, err
	}
	return artifact, nil
}

// wheelPythonTag returns the python tag of a wheel file name,
// {name}-{version}(-{build})?-{python}-{abi}-{platform}.whl
func wheelPythonTag(filename string) string {
	parts := strings.Split(strings.TrimSuffix(filename, ".whl"), "-")
	if len(parts) < 5 {
		return ""
	}
	return parts[len(parts)-3]
}

func readWheelMetadata(filePath string) ([]byte, error) {
	r, err := zip.OpenReader(filePath)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open wheel", goerr.V("path", filePath))
	}
	defer r.Close()

	for _, f := range r.File {
		dir, name := path.Split(f.Name)
		if name != "METADATA" || strings.Count(dir, "/") != 1 || !strings.HasSuffix(dir, ".dist-info/") {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return nil, goerr.Wrap(err, "failed to open wheel metadata", goerr.V("path", filePath))
		}
		defer rc.Close()

		data, err := io.ReadAll(io.LimitReader(rc, maxMetadataSize))
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read wheel metadata", goerr.V("path", filePath))
		}
		return data, nil
	}

	return nil, goerr.New("METADATA not found in wheel", goerr.V("path", filePath))
}

func readSdistMetadata(filePath string) ([]byte, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open sdist", goerr.V("path", filePath))
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read sdist as gzip", goerr.V("path", filePath))
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read sdist archive", goerr.V("path", filePath))
		}

		// Only the top-level PKG-INFO, not the one under *.egg-info/
		name := strings.TrimPrefix(hdr.Name, "./")
		if strings.Count(name, "/") == 1 && strings.HasSuffix(name, "/PKG-INFO") {
			data, err := io.ReadAll(io.LimitReader(tr, maxMetadataSize))
			if err != nil {
				return nil, goerr.Wrap(err, "failed to read PKG-INFO", goerr.V("path", filePath))
			}
			return data, nil
		}
	}

	return nil, goerr.New("PKG-INFO not found in sdist", goerr.V("path", filePath))
}

// parseMetadata reads the RFC 822 style header block of a core metadata file
func parseMetadata(raw []byte) (*model.PackageMetadata, error) {
	// The description body may follow the headers without a trailing blank
	// line, so make sure the reader sees the end of the header block.
	reader := textproto.NewReader(bufio.NewReader(strings.NewReader(string(raw) + "\n\n")))
	header, err := reader.ReadMIMEHeader()
	if err != nil && err != io.EOF {
		return nil, goerr.Wrap(err, "invalid metadata header")
	}

	meta := &model.PackageMetadata{
		MetadataVersion: header.Get("Metadata-Version"),
		Name:            header.Get("Name"),
		Version:         header.Get("Version"),
		Summary:         header.Get("Summary"),
		RequiresPython:  header.Get("Requires-Python"),
	}
	if meta.Name == "" || meta.Version == "" {
		return nil, goerr.New("metadata lacks Name or Version")
	}
	if meta.MetadataVersion == "" {
		meta.MetadataVersion = "1.0"
	}
	return meta, nil
}

func digestFile(artifact *model.Artifact) error {
	f, err := os.Open(artifact.Path)
	if err != nil {
		return goerr.Wrap(err, "failed to open artifact", goerr.V("path", artifact.Path))
	}
	defer f.Close()

	sha := sha256.New()
	sum := md5.New()
	n, err := io.Copy(io.MultiWriter(sha, sum), f)
	if err != nil {
		return goerr.Wrap(err, "failed to digest artifact", goerr.V("path", artifact.Path))
	}

	artifact.Size = n
	artifact.SHA256 = hex.EncodeToString(sha.Sum(nil))
	artifact.MD5 = hex.EncodeToString(sum.Sum(nil))
	return nil
}
