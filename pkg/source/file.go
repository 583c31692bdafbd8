package source

import (
	"fmt"
	"os"
	"time"
)

// defaultReplayRate approximates a live receiver: 25 Hz times one 88 byte
// frame per fix.
const defaultReplayRate = 25 * 88

type fileSource struct {
	f    *os.File
	path string
	rate int // bytes per second, <= 0 means unpaced
}

func (s *fileSource) Describe() string { return fmt.Sprintf("file:%s", s.path) }

func (s *fileSource) Read(p []byte) (int, error) {
	n, err := s.f.Read(p)
	if n > 0 && s.rate > 0 {
		time.Sleep(time.Duration(n) * time.Second / time.Duration(s.rate))
	}
	return n, err
}

func (s *fileSource) Close() error { return s.f.Close() }

// NewFileReplay streams a recorded raw protocol dump, paced to the given
// rate so the replay behaves like a live session.
func NewFileReplay(path string, bytesPerSec int) (Source, error) {
	if bytesPerSec == 0 {
		bytesPerSec = defaultReplayRate
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	return &fileSource{f: f, path: path, rate: bytesPerSec}, nil
}
