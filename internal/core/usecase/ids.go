package usecase

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"

	"github.com/kirillkom/resume-ranker/internal/core/domain"
)

var (
	resumeNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("resume-ranker/resume"))
	jobNamespace    = uuid.NewSHA1(uuid.NameSpaceURL, []byte("resume-ranker/job"))
)

func contentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ResumeIDForHash derives the stable resume id of a content fingerprint.
func ResumeIDForHash(hash string) string {
	return uuid.NewSHA1(resumeNamespace, []byte(hash)).String()
}

func jobIDForText(text string) string {
	return uuid.NewSHA1(jobNamespace, []byte(contentHash([]byte(text)))).String()
}

// StorageKey is where the source bytes of a resume live until extraction.
func StorageKey(resumeID string, format domain.DocumentFormat) string {
	ext := string(format)
	if !format.Valid() {
		ext = "bin"
	}
	return fmt.Sprintf("%s.%s", resumeID, ext)
}
