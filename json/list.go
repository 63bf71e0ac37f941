package json

import (
	"errors"
	iofs "io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fwojciec/ragchat"
)

// SessionPattern matches session files below a session directory.
const SessionPattern = "**/*.json"

// previewLength bounds SessionInfo.Preview, in runes.
const previewLength = 60

// SessionInfo summarizes a session file for listing.
type SessionInfo struct {
	Path           string
	ID             string
	ConversationID string
	UpdatedAt      time.Time
	Messages       int
	Preview        string // first user query
}

// List returns the sessions stored under dir, most recently updated first.
// Files that fail to parse are skipped. A missing dir yields no sessions.
func List(dir string) ([]SessionInfo, error) {
	if _, err := os.Stat(dir); errors.Is(err, iofs.ErrNotExist) {
		return nil, nil
	}
	var infos []SessionInfo
	err := doublestar.GlobWalk(os.DirFS(dir), SessionPattern, func(path string, d iofs.DirEntry) error {
		if d.IsDir() {
			return nil
		}
		full := filepath.Join(dir, filepath.FromSlash(path))
		s, err := Load(full)
		if err != nil {
			return nil
		}
		infos = append(infos, SessionInfo{
			Path:           full,
			ID:             s.ID,
			ConversationID: s.Transcript.ConversationID,
			UpdatedAt:      s.UpdatedAt,
			Messages:       len(s.Transcript.Messages),
			Preview:        preview(s.Transcript),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(infos, func(i, j int) bool {
		return infos[i].UpdatedAt.After(infos[j].UpdatedAt)
	})
	return infos, nil
}

func preview(t ragchat.Transcript) string {
	for _, m := range t.Messages {
		if m.Role != ragchat.RoleUser {
			continue
		}
		line, _, _ := strings.Cut(strings.TrimSpace(m.Content), "\n")
		r := []rune(line)
		if len(r) > previewLength {
			return string(r[:previewLength-1]) + "…"
		}
		return line
	}
	return ""
}
