package textutil

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// BookId derives a stable identifier for a title/author pair so the
// embedding application can correlate requests, results and progress
// events across calls.
func BookId(title, author string) string {
	text := fmt.Sprintf(
		"%s|%s",
		strings.ToLower(strings.TrimSpace(title)),
		strings.ToLower(strings.TrimSpace(author)),
	)
	sum := md5.Sum([]byte(text))
	return "book_" + hex.EncodeToString(sum[:])[:10]
}

const maxFilenameLength = 200

// CleanFilename makes a filename safe across filesystems.
func CleanFilename(filename string) string {
	for _, c := range `<>:"/\|?*` {
		filename = strings.ReplaceAll(filename, string(c), "_")
	}

	if len(filename) > maxFilenameLength {
		ext := filepath.Ext(filename)
		base := strings.TrimSuffix(filename, ext)
		filename = base[:maxFilenameLength-len(ext)] + ext
	}

	filename = strings.Trim(filename, " .")
	if filename == "" {
		return "untitled"
	}
	return filename
}

type BookRequest struct {
	Id     string
	Title  string
	Author string
}

var byRegex = regexp.MustCompile(`(?i)(.*?)\s+by\s+(.*)`)
var dashRegex = regexp.MustCompile(`(.*?)\s+-\s+(.*)`)

// ParseBookList parses one book per line, accepting "Title by Author",
// "Author - Title" and bare-title lines.
func ParseBookList(text string) []BookRequest {
	var books []BookRequest

	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if m := byRegex.FindStringSubmatch(line); m != nil {
			books = append(books, newBookRequest(m[1], m[2]))
			continue
		}

		if m := dashRegex.FindStringSubmatch(line); m != nil {
			part1 := strings.TrimSpace(m[1])
			part2 := strings.TrimSpace(m[2])
			// a short first part is probably the author
			if len(strings.Fields(part1)) <= 3 && len(part1) < len(part2) {
				books = append(books, newBookRequest(part2, part1))
			} else {
				books = append(books, newBookRequest(part1, part2))
			}
			continue
		}

		books = append(books, newBookRequest(line, ""))
	}

	return books
}

func newBookRequest(title, author string) BookRequest {
	title = strings.TrimSpace(title)
	author = strings.TrimSpace(author)
	return BookRequest{
		Id:     BookId(title, author),
		Title:  title,
		Author: author,
	}
}
