package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/wricardo/mcp-training/memorymatch/game/engine"
)

// cardSetDocument mirrors the stored JSON document of a custom game
type cardSetDocument struct {
	Name   string   `json:"name"`
	Images []string `json:"images" validate:"required,dive,required,url"`
}

// ValidationResult captures the outcome of validating a single file.
// If Valid is true, Messages holds informational lines; otherwise it holds
// the problems found.
type ValidationResult struct {
	File     string
	Valid    bool
	Messages []string
}

func (r *ValidationResult) fail(format string, args ...any) {
	r.Valid = false
	r.Messages = append(r.Messages, fmt.Sprintf(format, args...))
}

func (r *ValidationResult) info(format string, args ...any) {
	r.Messages = append(r.Messages, "✓ "+fmt.Sprintf(format, args...))
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// validateCardSetFile loads and checks one card set document. A document
// without a name is stored under its file name.
func validateCardSetFile(filePath string) ValidationResult {
	result := ValidationResult{
		File:  filepath.Base(filePath),
		Valid: true,
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		result.fail("Failed to read file: %v", err)
		return result
	}

	var doc cardSetDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		result.fail("Invalid JSON: %v", err)
		return result
	}
	doc.Name = engine.NormalizeGameName(doc.Name)
	if doc.Name == "" {
		doc.Name = strings.TrimSuffix(result.File, filepath.Ext(result.File))
	}

	if err := validate.Struct(&doc); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range errs {
				result.fail("Field %s failed %q", fe.Namespace(), fe.Tag())
			}
		} else {
			result.fail("Validation error: %v", err)
		}
	}

	set := &engine.CardSet{Name: doc.Name, Images: doc.Images}
	if err := engine.ValidateCardSet(set); err != nil {
		result.fail("%v", err)
	}

	if result.Valid {
		size, _ := set.BoardSize()
		result.info("Name: %s", set.Name)
		result.info("Board: %s (%d images, %d cards)", size, len(set.Images), size.NumCards())
	}
	return result
}

// collectFiles expands directories into their *.json files
func collectFiles(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		matches, err := filepath.Glob(filepath.Join(p, "*.json"))
		if err != nil {
			return nil, err
		}
		files = append(files, matches...)
	}
	return files, nil
}
