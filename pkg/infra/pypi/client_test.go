package pypi_test

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/tagship/pkg/domain/model"
	"github.com/m-mizutani/tagship/pkg/domain/types"
	"github.com/m-mizutani/tagship/pkg/infra/pypi"
)

const testMetadata = `Metadata-Version: 2.1
Name: semanticscholar-datasetapi
Version: 1.2.0
Summary: Python wrapper for the Semantic Scholar Dataset API
Requires-Python: >=3.6
Classifier: Programming Language :: Python :: 3

Long description here.
`

func writeWheel(t *testing.T, dir string) string {
	t.Helper()
	p := filepath.Join(dir, "semanticscholar_datasetapi-1.2.0-py3-none-any.whl")
	f, err := os.Create(p)
	gt.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	w, err := zw.Create("semanticscholar_datasetapi/__init__.py")
	gt.NoError(t, err)
	_, err = w.Write([]byte("from .api import SemanticScholarDataset\n"))
	gt.NoError(t, err)

	w, err = zw.Create("semanticscholar_datasetapi-1.2.0.dist-info/METADATA")
	gt.NoError(t, err)
	_, err = w.Write([]byte(testMetadata))
	gt.NoError(t, err)
	gt.NoError(t, zw.Close())
	return p
}

func writeSdist(t *testing.T, dir string) string {
	t.Helper()
	p := filepath.Join(dir, "semanticscholar_datasetapi-1.2.0.tar.gz")
	f, err := os.Create(p)
	gt.NoError(t, err)
	defer f.Close()

	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)
	files := map[string]string{
		"semanticscholar_datasetapi-1.2.0/setup.py":                                     "from setuptools import setup\n",
		"semanticscholar_datasetapi-1.2.0/semanticscholar_datasetapi.egg-info/PKG-INFO": "Metadata-Version: 2.1\nName: wrong\nVersion: 0.0.0\n",
		"semanticscholar_datasetapi-1.2.0/PKG-INFO":                                     testMetadata,
	}
	for _, name := range []string{
		"semanticscholar_datasetapi-1.2.0/setup.py",
		"semanticscholar_datasetapi-1.2.0/semanticscholar_datasetapi.egg-info/PKG-INFO",
		"semanticscholar_datasetapi-1.2.0/PKG-INFO",
	} {
		body := files[name]
		gt.NoError(t, tw.WriteHeader(&tar.Header{Name: name, Mode: 0644, Size: int64(len(body))}))
		_, err := tw.Write([]byte(body))
		gt.NoError(t, err)
	}
	gt.NoError(t, tw.Close())
	gt.NoError(t, gz.Close())
	return p
}

func TestClient_Inspect(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	client := pypi.New(model.DefaultRegistryURL, model.Credential{})

	t.Run("wheel", func(t *testing.T) {
		a, err := client.Inspect(ctx, writeWheel(t, dir))
		gt.NoError(t, err)
		gt.Value(t, a.Kind).Equal(model.ArtifactWheel)
		gt.Value(t, a.PyVersion).Equal("py3")
		gt.Value(t, a.Metadata.Name).Equal("semanticscholar-datasetapi")
		gt.Value(t, a.Metadata.Version).Equal("1.2.0")
		gt.Value(t, a.Metadata.RequiresPython).Equal(">=3.6")
		gt.Number(t, len(a.SHA256)).Equal(64)
		gt.Number(t, len(a.MD5)).Equal(32)
		gt.Number(t, a.Size).Greater(int64(0))
	})

	t.Run("sdist reads top-level PKG-INFO", func(t *testing.T) {
		a, err := client.Inspect(ctx, writeSdist(t, dir))
		gt.NoError(t, err)
		gt.Value(t, a.Kind).Equal(model.ArtifactSdist)
		gt.Value(t, a.PyVersion).Equal("source")
		gt.Value(t, a.Metadata.Name).Equal("semanticscholar-datasetapi")
		gt.Value(t, a.Metadata.Version).Equal("1.2.0")
	})

	t.Run("unsupported file", func(t *testing.T) {
		p := filepath.Join(dir, "notes.txt")
		gt.NoError(t, os.WriteFile(p, []byte("x"), 0644))
		_, err := client.Inspect(ctx, p)
		gt.Error(t, err)
	})

	t.Run("broken wheel", func(t *testing.T) {
		p := filepath.Join(dir, "broken-1.0-py3-none-any.whl")
		gt.NoError(t, os.WriteFile(p, []byte("not a zip"), 0644))
		_, err := client.Inspect(ctx, p)
		gt.Error(t, err)
	})
}

func TestClient_Upload(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	token := types.Secret("pypi-test-token")

	var received atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received.Add(1)

		user, pass, ok := r.BasicAuth()
		if !ok || user != "__token__" || pass != "pypi-test-token" {
			w.WriteHeader(http.StatusForbidden)
			return
		}

		if err := r.ParseMultipartForm(1 << 20); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		for field, want := range map[string]string{
			":action":          "file_upload",
			"protocol_version": "1",
			"name":             "semanticscholar-datasetapi",
			"version":          "1.2.0",
			"filetype":         "bdist_wheel",
			"pyversion":        "py3",
			"metadata_version": "2.1",
		} {
			if got := r.FormValue(field); got != want {
				http.Error(w, field+" mismatch: "+got, http.StatusBadRequest)
				return
			}
		}

		file, header, err := r.FormFile("content")
		if err != nil {
			http.Error(w, "no content", http.StatusBadRequest)
			return
		}
		defer file.Close()
		if header.Filename != "semanticscholar_datasetapi-1.2.0-py3-none-any.whl" {
			http.Error(w, "bad filename", http.StatusBadRequest)
			return
		}
		if _, err := io.Copy(io.Discard, file); err != nil {
			http.Error(w, "read failure", http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := pypi.New(server.URL, model.Credential{Username: "__token__", Token: token})
	artifact, err := client.Inspect(ctx, writeWheel(t, dir))
	gt.NoError(t, err)

	gt.NoError(t, client.Upload(ctx, artifact))
	gt.Number(t, received.Load()).Equal(int32(1))

	t.Run("wrong token", func(t *testing.T) {
		bad := pypi.New(server.URL, model.Credential{Username: "__token__", Token: "nope"})
		err := bad.Upload(ctx, artifact)
		gt.Error(t, err)
		gt.True(t, goerr.HasTag(err, types.ErrTagAuth))
	})

	t.Run("no token configured", func(t *testing.T) {
		before := received.Load()
		empty := pypi.New(server.URL, model.Credential{Username: "__token__"})
		err := empty.Upload(ctx, artifact)
		gt.Error(t, err)
		gt.True(t, goerr.HasTag(err, types.ErrTagAuth))
		gt.Number(t, received.Load()).Equal(before)
	})
}

func TestClient_UploadDuplicate(t *testing.T) {
	ctx := context.Background()
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = io.Copy(io.Discard, r.Body)
		http.Error(w, "400 File already exists. See https://pypi.org/help/#file-name-reuse", http.StatusBadRequest)
	}))
	defer server.Close()

	client := pypi.New(server.URL, model.Credential{Username: "__token__", Token: "pypi-test-token"})
	artifact, err := client.Inspect(ctx, writeWheel(t, t.TempDir()))
	gt.NoError(t, err)

	err = client.Upload(ctx, artifact)
	gt.Error(t, err)
	gt.True(t, goerr.HasTag(err, types.ErrTagDuplicate))
	gt.String(t, err.Error()).NotContains("pypi-test-token")
	gt.Number(t, calls.Load()).Equal(int32(1))
}
