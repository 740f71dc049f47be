package speech

// MaxFileSize is the maximum accepted upload size (25 MiB, matching the
// service's own multipart limit)
const MaxFileSize = 25 * 1024 * 1024

// supportedMIMETypes enumerates the declared MIME types accepted for upload
var supportedMIMETypes = map[string]bool{
	"audio/mp3":  true,
	"audio/mpeg": true,
	"audio/wav":  true,
	"audio/m4a":  true,
	"audio/flac": true,
	"video/mp4":  true,
	"audio/oga":  true,
	"audio/ogg":  true,
	"audio/webm": true,
}

// ValidationResult is the outcome of the pre-flight file check
type ValidationResult struct {
	IsValid bool     `json:"isValid"`
	Errors  []string `json:"errors"`
}

// ValidateFile checks a selected file against size and type constraints
// before submission. All rules are checked independently so errors
// accumulate rather than short-circuit. The function is pure.
func ValidateFile(file FileInfo) ValidationResult {
	var errs []string

	// Check file size
	if file.Size > MaxFileSize {
		errs = append(errs, "File size must be less than 25MB")
	}

	// Check MIME type
	if !supportedMIMETypes[file.ContentType] {
		errs = append(errs, "Unsupported file format. Please use MP3, WAV, M4A, FLAC, or other supported audio formats.")
	}

	// Check if file is empty
	if file.Size == 0 {
		errs = append(errs, "File is empty")
	}

	return ValidationResult{
		IsValid: len(errs) == 0,
		Errors:  errs,
	}
}

// SupportedMIMETypes returns the accepted MIME types in no particular order
func SupportedMIMETypes() []string {
	types := make([]string, 0, len(supportedMIMETypes))
	for t := range supportedMIMETypes {
		types = append(types, t)
	}
	return types
}
