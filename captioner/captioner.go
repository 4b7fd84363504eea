// Package captioner turns a staged image into a one-sentence caption.
package captioner

import "context"

// Captioner generates a natural-language caption for the image at path.
// Implementations may be slow and may fail; callers isolate failures per image.
type Captioner interface {
	Caption(ctx context.Context, imagePath string) (string, error)
}
