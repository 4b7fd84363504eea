package validation

import "errors"

var (
	ErrNotAnImage   = errors.New("file is not a supported image")
	ErrFileTooLarge = errors.New("file size exceeds the upload limit")
	ErrEmptyUpload  = errors.New("uploaded file is empty")
)
