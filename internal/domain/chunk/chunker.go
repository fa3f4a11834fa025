package chunk

import (
	"fmt"

	"github.com/kailas-cloud/papershelf/internal/domain"
)

// Split cuts text into windows of size characters, each starting
// size-overlap characters after the previous one. The last window may be
// shorter. Offsets count Unicode code points.
//
// Dropping the first overlap characters of every window but the first and
// concatenating the rest reproduces text.
func Split(text string, size, overlap int) ([]string, error) {
	if err := ValidateWindow(size, overlap); err != nil {
		return nil, err
	}

	runes := []rune(text)
	if len(runes) <= size {
		if len(runes) == 0 {
			return nil, nil
		}
		return []string{text}, nil
	}

	step := size - overlap
	out := make([]string, 0, (len(runes)-overlap+step-1)/step)
	for off := 0; off < len(runes); off += step {
		end := min(off+size, len(runes))
		out = append(out, string(runes[off:end]))
		if end == len(runes) {
			break
		}
	}
	return out, nil
}

// ValidateWindow checks 0 <= overlap < size.
func ValidateWindow(size, overlap int) error {
	if size <= 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", domain.ErrInvalidConfiguration, size)
	}
	if overlap < 0 {
		return fmt.Errorf("%w: chunk overlap must not be negative, got %d", domain.ErrInvalidConfiguration, overlap)
	}
	if overlap >= size {
		return fmt.Errorf("%w: chunk overlap %d must be less than size %d",
			domain.ErrInvalidConfiguration, overlap, size)
	}
	return nil
}
