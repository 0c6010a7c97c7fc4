// Package gallery captions every image of the site's photo folders and
// stores the results for the site generator.
package gallery

import (
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/samber/lo"
)

var imageExts = []string{".jpg", ".jpeg", ".png", ".webp"}

// isImageFile checks if the file has an image extension
func isImageFile(path string) bool {
	return slices.Contains(imageExts, strings.ToLower(filepath.Ext(path)))
}

// ListImages returns the sorted names of the images directly inside dir.
// Hidden files and subdirectories are skipped.
func ListImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	names := lo.FilterMap(entries, func(e os.DirEntry, _ int) (string, bool) {
		name := e.Name()
		return name, e.Type().IsRegular() && !strings.HasPrefix(name, ".") && isImageFile(name)
	})
	slices.Sort(names)
	return names, nil
}

// Folder is one image directory and the caption file generated for it.
type Folder struct {
	Name   string
	Dir    string
	Output string
	// WebPrefix is prepended to file names to build caption keys.
	// Empty means "/assets/img/<Name>".
	WebPrefix string
}

// WebPath is the site-relative path the gallery page looks captions up by.
func (f Folder) WebPath(name string) string {
	prefix := f.WebPrefix
	if prefix == "" {
		prefix = "/assets/img/" + f.Name
	}
	return strings.TrimSuffix(prefix, "/") + "/" + name
}

// DefaultFolders is the site's headline and gallery layout under root.
func DefaultFolders(root string) []Folder {
	return lo.Map([]string{"headline", "gallery"}, func(name string, _ int) Folder {
		return Folder{
			Name:   name,
			Dir:    filepath.Join(root, "assets", "img", name),
			Output: filepath.Join(root, "_data", name+"_captions.yml"),
		}
	})
}
