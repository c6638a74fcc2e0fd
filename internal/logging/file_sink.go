package logging

import (
	"os"
	"sync"
)

// fileSink appends to a single log file and starts the file over once it
// would grow past the cap. Good enough for a game server; anything fancier
// belongs in an external log shipper.
type fileSink struct {
	path string
	cap  int64

	mu   sync.Mutex
	file *os.File
	size int64
}

func newFileSink(path string, maxMB int) (*fileSink, error) {
	if maxMB <= 0 {
		maxMB = 10
	}
	s := &fileSink{path: path, cap: int64(maxMB) * 1024 * 1024}
	if err := s.open(os.O_APPEND); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *fileSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		if err := s.open(os.O_APPEND); err != nil {
			return 0, err
		}
	}
	if s.size+int64(len(p)) > s.cap {
		if err := s.open(os.O_TRUNC); err != nil {
			return 0, err
		}
	}
	n, err := s.file.Write(p)
	s.size += int64(n)
	return n, err
}

func (s *fileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

// open replaces the current handle; mode is O_APPEND to continue the file or
// O_TRUNC to start it over.
func (s *fileSink) open(mode int) error {
	if s.file != nil {
		_ = s.file.Close()
		s.file = nil
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|mode, 0o644)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return err
	}
	s.file = f
	s.size = info.Size()
	return nil
}
