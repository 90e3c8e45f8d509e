package server

import (
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Pack is one JSON paragraph pack: a named collection of race paragraphs.
type Pack struct {
	Name       string   `json:"name"`
	Paragraphs []string `json:"paragraphs"`
}

// defaultPack keeps the server playable with no pack directory at all.
var defaultPack = Pack{
	Name: "classic",
	Paragraphs: []string{
		"The quick brown fox jumps over the lazy dog while the curious cat watches from the windowsill, wondering why anyone would bother with such an energetic display so early in the morning.",
		"Typing fast is less about moving your fingers quickly and more about not stopping; rhythm beats raw speed every time, and accuracy is the quiet engine behind every high score.",
		"Somewhere between the second cup of coffee and the third rewrite, the paragraph finally made sense, which is more than can be said for most Monday mornings.",
		"A good race begins slowly: read the first few words, find the rhythm of the sentence, and let your hands catch up to your eyes before you try to win anything.",
		"Nobody remembers who typed the most words; they remember who finished the paragraph first without tripping over the word rhythm, which is famously hostile to human fingers.",
	},
}

// ValidatePack checks a pack for structural problems: a missing name, an
// empty paragraph list, or blank paragraphs.
func ValidatePack(p *Pack) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("pack has no name")
	}
	if len(p.Paragraphs) == 0 {
		return fmt.Errorf("pack %q has no paragraphs", p.Name)
	}
	for i, paragraph := range p.Paragraphs {
		if strings.TrimSpace(paragraph) == "" {
			return fmt.Errorf("pack %q paragraph %d is blank", p.Name, i)
		}
	}
	return nil
}

// ParagraphSource loads paragraph packs from a directory of JSON files and
// hands out random paragraphs for new races.
type ParagraphSource struct {
	mu    sync.RWMutex
	packs map[string]Pack
}

// NewParagraphSource loads every *.json pack under dir. A missing or empty
// directory is not an error; the embedded default pack fills in so the
// server is always able to start a race.
func NewParagraphSource(dir string) (*ParagraphSource, error) {
	s := &ParagraphSource{packs: make(map[string]Pack)}

	if dir != "" {
		entries, err := os.ReadDir(dir)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read pack directory %s: %w", dir, err)
		}
		for _, entry := range entries {
			if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
				continue
			}
			path := filepath.Join(dir, entry.Name())
			pack, err := loadPack(path)
			if err != nil {
				log.Printf("server: skipping pack %s: %v", path, err)
				continue
			}
			s.packs[pack.Name] = pack
		}
	}

	if len(s.packs) == 0 {
		s.packs[defaultPack.Name] = defaultPack
	}

	return s, nil
}

func loadPack(path string) (Pack, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Pack{}, err
	}

	var pack Pack
	if err := json.Unmarshal(data, &pack); err != nil {
		return Pack{}, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	if err := ValidatePack(&pack); err != nil {
		return Pack{}, err
	}
	return pack, nil
}

// Packs returns the names of the loaded packs.
func (s *ParagraphSource) Packs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.packs))
	for name := range s.packs {
		names = append(names, name)
	}
	return names
}

// Pick returns a random paragraph from a random pack.
func (s *ParagraphSource) Pick() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	packs := make([]Pack, 0, len(s.packs))
	for _, pack := range s.packs {
		packs = append(packs, pack)
	}
	pack := packs[rand.Intn(len(packs))]
	return pack.Paragraphs[rand.Intn(len(pack.Paragraphs))]
}
