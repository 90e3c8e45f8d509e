// Command validate provides a small CLI that validates paragraph pack JSON
// files in a packs directory. It checks:
//   - JSON structure and required fields
//   - Non-empty pack names and paragraph lists
//   - No blank paragraphs
//   - No duplicate pack names across files
//   - Paragraph length sanity (warns on very short race texts)
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/typerush/typerush-go/server"
)

// minParagraphLen is the shortest text that still makes a meaningful race.
const minParagraphLen = 40

// ValidationResult captures the outcome of validating a single file.
type ValidationResult struct {
	File     string
	Valid    bool
	Errors   []string
	Warnings []string
}

// validatePackFile loads and validates a single pack JSON file.
func validatePackFile(filePath string) (server.Pack, ValidationResult) {
	result := ValidationResult{
		File:  filepath.Base(filePath),
		Valid: true,
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("Failed to read file: %v", err))
		return server.Pack{}, result
	}

	var pack server.Pack
	if err := json.Unmarshal(data, &pack); err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("Invalid JSON: %v", err))
		return server.Pack{}, result
	}

	if err := server.ValidatePack(&pack); err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, err.Error())
		return pack, result
	}

	for i, paragraph := range pack.Paragraphs {
		if len(strings.TrimSpace(paragraph)) < minParagraphLen {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("paragraph %d is only %d characters; races over it end almost immediately",
					i, len(paragraph)))
		}
	}

	return pack, result
}

func main() {
	dir := "packs"
	if len(os.Args) > 1 {
		dir = os.Args[1]
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read packs directory %s: %v\n", dir, err)
		os.Exit(1)
	}

	seen := make(map[string]string)
	failed := 0
	checked := 0

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		checked++

		pack, result := validatePackFile(filepath.Join(dir, entry.Name()))

		if result.Valid {
			if prev, dup := seen[pack.Name]; dup {
				result.Valid = false
				result.Errors = append(result.Errors,
					fmt.Sprintf("pack name %q already used by %s", pack.Name, prev))
			} else {
				seen[pack.Name] = result.File
			}
		}

		if result.Valid {
			fmt.Printf("OK   %s (%q, %d paragraphs)\n", result.File, pack.Name, len(pack.Paragraphs))
		} else {
			failed++
			fmt.Printf("FAIL %s\n", result.File)
			for _, e := range result.Errors {
				fmt.Printf("     error: %s\n", e)
			}
		}
		for _, w := range result.Warnings {
			fmt.Printf("     warning: %s\n", w)
		}
	}

	if checked == 0 {
		fmt.Printf("No pack files found in %s; the server will use the embedded default pack.\n", dir)
		return
	}

	fmt.Printf("\n%d checked, %d failed\n", checked, failed)
	if failed > 0 {
		os.Exit(1)
	}
}
