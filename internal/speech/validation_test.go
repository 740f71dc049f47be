package speech

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateFileAccepted(t *testing.T) {
	t.Parallel()

	result := ValidateFile(FileInfo{
		Name:        "meeting.mp3",
		Size:        5 * 1024 * 1024,
		ContentType: "audio/mpeg",
	})
	require.True(t, result.IsValid)
	require.Empty(t, result.Errors)
}

func TestValidateFileTooLarge(t *testing.T) {
	t.Parallel()

	result := ValidateFile(FileInfo{
		Name:        "podcast.mp3",
		Size:        30 * 1024 * 1024,
		ContentType: "audio/mpeg",
	})
	require.False(t, result.IsValid)
	require.Equal(t, []string{"File size must be less than 25MB"}, result.Errors)
}

func TestValidateFileAtLimit(t *testing.T) {
	t.Parallel()

	// Exactly 25 MiB is still accepted; only larger files are rejected
	result := ValidateFile(FileInfo{
		Name:        "exact.wav",
		Size:        MaxFileSize,
		ContentType: "audio/wav",
	})
	require.True(t, result.IsValid)
}

func TestValidateFileUnsupportedType(t *testing.T) {
	t.Parallel()

	result := ValidateFile(FileInfo{
		Name:        "notes.txt",
		Size:        1024,
		ContentType: "text/plain",
	})
	require.False(t, result.IsValid)
	require.Equal(t, []string{"Unsupported file format. Please use MP3, WAV, M4A, FLAC, or other supported audio formats."}, result.Errors)
}

func TestValidateFileEmptyAccumulatesErrors(t *testing.T) {
	t.Parallel()

	// An empty file with an unknown type reports both failures
	result := ValidateFile(FileInfo{
		Name:        "broken",
		Size:        0,
		ContentType: "application/octet-stream",
	})
	require.False(t, result.IsValid)
	require.Len(t, result.Errors, 2)
	require.Contains(t, result.Errors, "Unsupported file format. Please use MP3, WAV, M4A, FLAC, or other supported audio formats.")
	require.Contains(t, result.Errors, "File is empty")
}

func TestValidateFileMP4Container(t *testing.T) {
	t.Parallel()

	// Browsers label m4a files as video/mp4; the container is accepted
	result := ValidateFile(FileInfo{
		Name:        "recording.m4a",
		Size:        2048,
		ContentType: "video/mp4",
	})
	require.True(t, result.IsValid)
}

func TestSupportedMIMETypes(t *testing.T) {
	t.Parallel()

	types := SupportedMIMETypes()
	require.Len(t, types, 9)
	require.Contains(t, types, "audio/mpeg")
	require.Contains(t, types, "audio/webm")
}
