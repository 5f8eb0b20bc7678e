package feeds

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// SourceEntry is one source in a source file.
type SourceEntry struct {
	Name     string `yaml:"name"`
	URL      string `yaml:"url"`
	Category string `yaml:"category"`
}

// SourceFile is the on-disk list of subscriptions:
//
//	feeds:
//	  - name: Example
//	    url: https://example.com/feed.xml
//	    category: Tech Podcast
type SourceFile struct {
	Feeds []SourceEntry `yaml:"feeds"`
}

// LoadSourceFile reads and parses a source file from path.
func LoadSourceFile(path string) (*SourceFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open source file: %w", err)
	}
	defer f.Close()
	return ParseSourceFile(f)
}

// ParseSourceFile decodes a source file. An empty document yields no entries.
func ParseSourceFile(r io.Reader) (*SourceFile, error) {
	var sf SourceFile
	if err := yaml.NewDecoder(r).Decode(&sf); err != nil && err != io.EOF {
		return nil, fmt.Errorf("parse source file: %w", err)
	}
	return &sf, nil
}

// TypeForCategory maps a free-form category to a source type.
func TypeForCategory(category string) SourceType {
	c := strings.ToLower(category)
	if strings.Contains(c, "podcast") || strings.Contains(c, "播客") {
		return SourcePodcast
	}
	return SourceBlog
}
