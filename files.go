package anyworld

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// uploadFile is one asset file staged for a multipart upload.
type uploadFile struct {
	name        string // filename as sent to the server
	path        string // local path
	contentType string // sniffed from the leading bytes
}

// collectFiles gathers the regular files under dir (or dir itself when it is
// a single file), sniffing each one's content type.
func collectFiles(dir string) ([]uploadFile, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("reading upload path: %w", err)
	}

	var paths []string
	if info.IsDir() {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("reading upload dir: %w", err)
		}
		for _, entry := range entries {
			if entry.Type().IsRegular() {
				paths = append(paths, filepath.Join(dir, entry.Name()))
			}
		}
	} else {
		paths = []string{dir}
	}

	if len(paths) == 0 {
		return nil, fmt.Errorf("no files to upload in %s", dir)
	}

	files := make([]uploadFile, 0, len(paths))
	for _, path := range paths {
		ct, err := sniffContentType(path)
		if err != nil {
			return nil, err
		}
		files = append(files, uploadFile{
			name:        filepath.Base(path),
			path:        path,
			contentType: ct,
		})
	}
	return files, nil
}

// sniffContentType detects a file's MIME type from its first 512 bytes.
func sniffContentType(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("sniffing %s: %w", path, err)
	}
	defer f.Close()

	buf := make([]byte, 512)
	n, err := f.Read(buf)
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("sniffing %s: %w", path, err)
	}
	return http.DetectContentType(buf[:n]), nil
}

// buildMultipart encodes files (under the form field "files", each with its
// sniffed content type) and key-value fields into a multipart body.
func buildMultipart(files []uploadFile, fields map[string]string) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, uf := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition",
			fmt.Sprintf(`form-data; name="files"; filename=%q`, uf.name))
		h.Set("Content-Type", uf.contentType)

		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("creating part for %s: %w", uf.name, err)
		}

		f, err := os.Open(uf.path)
		if err != nil {
			return nil, "", fmt.Errorf("opening %s: %w", uf.path, err)
		}
		_, err = io.Copy(part, f)
		f.Close()
		if err != nil {
			return nil, "", fmt.Errorf("copying %s: %w", uf.path, err)
		}
	}

	for key, value := range fields {
		if err := w.WriteField(key, value); err != nil {
			return nil, "", fmt.Errorf("writing field %s: %w", key, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("closing multipart body: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

// createWorkDir makes a uniquely named scratch directory for pipeline
// intermediates (e.g. a generated mesh awaiting animation).
func createWorkDir() (string, error) {
	dir := filepath.Join(os.TempDir(), "anyworld-"+uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating work dir: %w", err)
	}
	return dir, nil
}
