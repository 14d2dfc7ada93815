// Package library decides which files are processable audio and where
// finished outputs live in the Artist/Year-Album tree.
package library

import (
	"path/filepath"
	"strings"
)

// audioExtensions is the fixed allow-list of input formats. Matching is
// case-sensitive on purpose: rips produced by the supported tools always use
// lowercase extensions, and anything else is suspect enough to skip.
var audioExtensions = map[string]struct{}{
	".mp3":  {},
	".flac": {},
	".m4a":  {},
	".m4v":  {},
	".wav":  {},
	".wma":  {},
}

// IsAudioFile reports whether path has a supported audio extension.
func IsAudioFile(path string) bool {
	_, ok := audioExtensions[filepath.Ext(path)]
	return ok
}

// BaseName returns the file name of path without its extension.
func BaseName(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// ReleaseYear extracts a four-digit year from a probed date string such as
// "1994-03-01". It returns "" when the date is absent or does not start with
// four digits, in which case the year segment is omitted from paths.
func ReleaseYear(date string) string {
	if len(date) < 4 {
		return ""
	}
	year := date[:4]
	for _, r := range year {
		if r < '0' || r > '9' {
			return ""
		}
	}
	return year
}

// AlbumDir returns the "<artist>/[<year> ]<album>" directory under root.
// Empty artist or album segments collapse rather than producing empty-named
// directories.
func AlbumDir(root, artist, year, album string) string {
	dir := album
	if year != "" {
		dir = year
		if album != "" {
			dir = year + " " + album
		}
	}
	return filepath.Join(root, artist, dir)
}

// MixPath returns the final instrumental destination:
// "<root>/<artist>/[<year> ]<album>/<base><suffix>.flac".
func MixPath(root, artist, year, album, base, suffix string) string {
	return filepath.Join(AlbumDir(root, artist, year, album), base+suffix+".flac")
}

// StemsDir returns the final multitrack archive destination:
// "<root>/<artist>/[<year> ]<album>/<base>".
func StemsDir(root, artist, year, album, base string) string {
	return filepath.Join(AlbumDir(root, artist, year, album), base)
}
