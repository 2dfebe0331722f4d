package historical

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"unsafe"

	"golang.org/x/exp/mmap"
)

var ErrEof = errors.New("EOF")

// Source is a read-only memory-mapped file of fixed-size T records. T must not
// contain padding or pointers.
type Source[T any] struct {
	dataSourceName string
	reader         *mmap.ReaderAt
	bufferPool     *sync.Pool
	entries        int64
}

func NewSource[T any](dataSourceName string) *Source[T] {
	return &Source[T]{
		dataSourceName: dataSourceName,
		bufferPool: &sync.Pool{
			New: func() interface{} {
				buffer := make([]byte, int(unsafe.Sizeof(*new(T))))
				return &buffer
			},
		},
	}
}

func (s *Source[T]) Open() error {
	entrySize := int64(unsafe.Sizeof(*new(T)))
	if entrySize == 0 {
		return fmt.Errorf("size of T is zero")
	}

	reader, err := mmap.Open(s.dataSourceName)
	if err != nil {
		return fmt.Errorf("unable to open data source %q: %w", s.dataSourceName, err)
	}

	totalSize := int64(reader.Len())
	if totalSize%entrySize != 0 {
		_ = reader.Close()
		return fmt.Errorf("data source %q size %d is not a multiple of entry size %d", s.dataSourceName, totalSize, entrySize)
	}

	s.reader = reader
	s.entries = totalSize / entrySize
	return nil
}

func (s *Source[T]) Close() {
	if s.reader != nil {
		_ = s.reader.Close()
	}
}

func (s *Source[T]) Read(index int64, data *T) error {
	if index < 0 || index >= s.entries {
		return ErrEof
	}

	buffer := s.bufferPool.Get().(*[]byte)
	defer s.bufferPool.Put(buffer)

	offset := index * int64(len(*buffer))

	n, err := s.reader.ReadAt(*buffer, offset)
	if err != nil && err != io.EOF {
		return fmt.Errorf("unable to read: %w", err)
	}
	if n < len(*buffer) {
		return ErrEof
	}

	*data = *(*T)(unsafe.Pointer(&(*buffer)[0])) // #nosec G103
	return nil
}

func (s *Source[T]) EntryCount() int64 {
	return s.entries
}

// Search returns the smallest index in [0, EntryCount()] for which less
// reports false. Entries must be sorted with respect to less.
func (s *Source[T]) Search(less func(entry *T) bool) (int64, error) {
	var entry T

	low := int64(0)
	high := s.entries - 1

	for low <= high {
		mid := (low + high) / 2

		if err := s.Read(mid, &entry); err != nil {
			return 0, fmt.Errorf("error reading entry at index %d: %w", mid, err)
		}

		if less(&entry) {
			low = mid + 1
		} else {
			high = mid - 1
		}
	}
	return low, nil
}
