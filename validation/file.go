package validation

import (
	"bytes"
	"io"
	"mime/multipart"
)

type ImageType string

const (
	ImageTypePNG  ImageType = "png"
	ImageTypeJPEG ImageType = "jpeg"
	ImageTypeGIF  ImageType = "gif"
	ImageTypeWebP ImageType = "webp"
)

var magicBytes = map[ImageType][]byte{
	ImageTypePNG:  {0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A},
	ImageTypeJPEG: {0xFF, 0xD8, 0xFF},
	ImageTypeGIF:  {0x47, 0x49, 0x46, 0x38},
}

// DetectImageType sniffs the leading bytes of an upload and rewinds it.
func DetectImageType(file multipart.File) (ImageType, error) {
	buffer := make([]byte, 512)
	n, err := file.Read(buffer)
	if err != nil && err != io.EOF {
		return "", err
	}

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", err
	}

	if n == 0 {
		return "", ErrEmptyUpload
	}

	for imageType, signature := range magicBytes {
		if bytes.HasPrefix(buffer[:n], signature) {
			return imageType, nil
		}
	}

	// RIFF container with a WEBP fourcc.
	if n >= 12 && bytes.Equal(buffer[0:4], []byte("RIFF")) && bytes.Equal(buffer[8:12], []byte("WEBP")) {
		return ImageTypeWebP, nil
	}

	return "", ErrNotAnImage
}
