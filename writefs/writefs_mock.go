package writefs

import (
	"bytes"
	"io"
	"sync"
)

type (
	// FSMock is an in memory FS. Files are visible once closed.
	FSMock struct {
		mu    sync.Mutex
		files map[string]string
	}

	fileMock struct {
		name string
		b    bytes.Buffer
		f    *FSMock
	}
)

func NewFSMock() *FSMock {
	return &FSMock{
		files: map[string]string{},
	}
}

func (f *FSMock) Create(name string) (io.WriteCloser, error) {
	return &fileMock{
		name: name,
		f:    f,
	}, nil
}

// File returns the contents of a closed file
func (f *FSMock) File(name string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.files[name]
	return v, ok
}

func (w *fileMock) Write(p []byte) (int, error) {
	return w.b.Write(p)
}

func (w *fileMock) Close() error {
	w.f.mu.Lock()
	defer w.f.mu.Unlock()
	w.f.files[w.name] = w.b.String()
	return nil
}
