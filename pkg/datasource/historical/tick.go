package historical

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
)

const fileExtension = ".bin"

// BinaryTick is the on-disk record, 24 bytes in native byte order.
type BinaryTick struct {
	TimeStamp int64
	Price     float64
	Volume    uint64
}

func FileName(dir, symbol string) string {
	return filepath.Join(dir, symbol+fileExtension)
}

// WriteFile stores ticks, which must already be sorted by TimeStamp, as the
// record file the provider maps.
func WriteFile(path string, ticks []BinaryTick) (err error) {
	f, err := os.Create(path) // #nosec G304
	if err != nil {
		return fmt.Errorf("unable to create %q: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	w := bufio.NewWriter(f)
	for i := range ticks {
		if i > 0 && ticks[i].TimeStamp < ticks[i-1].TimeStamp {
			return fmt.Errorf("tick %d at %d is older than its predecessor", i, ticks[i].TimeStamp)
		}
		if err := binary.Write(w, binary.NativeEndian, ticks[i]); err != nil {
			return fmt.Errorf("unable to write tick %d: %w", i, err)
		}
	}
	return w.Flush()
}
