package media

import (
	"path/filepath"

	"kthgpt/internal/textutil"
)

const (
	mediaFileName      = "lecture.mp4"
	transcriptFileName = "transcript.txt"
)

// LectureDir returns the per-lecture working directory under storageDir.
func LectureDir(storageDir, publicID, language string) string {
	name := textutil.SanitizeToken(publicID) + "_" + textutil.SanitizeToken(language)
	return filepath.Join(storageDir, "lectures", name)
}

// MediaPath returns where a lecture's downloaded recording lives.
func MediaPath(storageDir, publicID, language string) string {
	return filepath.Join(LectureDir(storageDir, publicID, language), mediaFileName)
}

// TranscriptPath returns where a lecture's transcript lives.
func TranscriptPath(storageDir, publicID, language string) string {
	return filepath.Join(LectureDir(storageDir, publicID, language), transcriptFileName)
}
