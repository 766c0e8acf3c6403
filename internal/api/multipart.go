package api

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
)

// form is a multipart body assembled from plain fields and local files.
// Files are streamed from disk so large media never sits in memory.
type form struct {
	fields [][2]string
	files  [][2]string // field, path
}

func (f *form) set(name, value string) {
	if value != "" {
		f.fields = append(f.fields, [2]string{name, value})
	}
}

func (f *form) file(name, path string) {
	if path != "" {
		f.files = append(f.files, [2]string{name, path})
	}
}

// check fails fast on unreadable files before any bytes go on the wire.
func (f *form) check() error {
	for _, kv := range f.files {
		st, err := os.Stat(kv[1])
		if err != nil {
			return fmt.Errorf("%s file: %w", kv[0], err)
		}
		if st.IsDir() {
			return fmt.Errorf("%s file: %s is a directory", kv[0], kv[1])
		}
	}
	return nil
}

func (f *form) reader() (io.Reader, string) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(f.write(mw))
	}()
	return pr, mw.FormDataContentType()
}

func (f *form) write(mw *multipart.Writer) error {
	for _, kv := range f.fields {
		if err := mw.WriteField(kv[0], kv[1]); err != nil {
			return err
		}
	}
	for _, kv := range f.files {
		if err := copyFile(mw, kv[0], kv[1]); err != nil {
			return err
		}
	}
	return mw.Close()
}

func copyFile(mw *multipart.Writer, field, path string) error {
	fh, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", field, err)
	}
	defer fh.Close()
	w, err := mw.CreateFormFile(field, filepath.Base(path))
	if err != nil {
		return err
	}
	_, err = io.Copy(w, fh)
	return err
}
