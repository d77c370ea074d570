package connectors

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
)

// MailStoreService keeps raw messages on disk, named by content hash.
type MailStoreService struct {
	rawMailDir string
}

func NewMailStoreService(rawMailDir string) *MailStoreService {
	return &MailStoreService{rawMailDir: rawMailDir}
}

// Archive writes raw once and returns its path. Identical content maps to the
// same file.
func (s *MailStoreService) Archive(raw []byte) (string, error) {
	hashBytes := sha256.Sum256(raw)
	hash := hex.EncodeToString(hashBytes[:])

	if err := os.MkdirAll(s.rawMailDir, 0o755); err != nil {
		return "", err
	}

	rawPath := filepath.Join(s.rawMailDir, hash+".eml")
	if _, err := os.Stat(rawPath); os.IsNotExist(err) {
		if err := os.WriteFile(rawPath, raw, 0o644); err != nil {
			return "", err
		}
	}
	return rawPath, nil
}
