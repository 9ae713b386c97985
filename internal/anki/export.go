package anki

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
)

var mediaRef = regexp.MustCompile(`\[sound:([^\]]+)\]|<img[^>]*\ssrc="([^"]+)"`)

// Export writes the given notes and the media they reference to an .apkg
// package at outputPath. All notes must share one note type.
func (c *Collection) Export(noteIDs []int64, deckName, outputPath string) error {
	if len(noteIDs) == 0 {
		return fmt.Errorf("nothing to export")
	}
	if deckName == "" {
		deckName = "Default"
	}

	notes := make([]*Note, 0, len(noteIDs))
	for _, id := range noteIDs {
		n, err := c.GetNote(id)
		if err != nil {
			return err
		}
		if len(notes) > 0 && n.ModelID != notes[0].ModelID {
			return fmt.Errorf("notes span several note types")
		}
		notes = append(notes, n)
	}
	model := c.models[notes[0].ModelID]

	// Create temporary directory for building the package
	tempDir, err := os.MkdirTemp("", "k2a_export_*")
	if err != nil {
		return fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer os.RemoveAll(tempDir)

	media, err := c.copyMediaFiles(notes, tempDir)
	if err != nil {
		return fmt.Errorf("failed to copy media files: %w", err)
	}

	if err := writeMediaMapping(media, tempDir); err != nil {
		return fmt.Errorf("failed to create media mapping: %w", err)
	}

	dbPath := filepath.Join(tempDir, "collection.anki2")
	out, err := Create(dbPath, CreateOptions{DeckName: deckName, ModelName: model.Name, Fields: model.Fields})
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	if err := os.Remove(out.MediaDir()); err != nil {
		out.Close()
		return err
	}

	outModel, _ := out.ModelByName(model.Name)
	deck, err := out.DeckByName(deckName)
	if err != nil {
		out.Close()
		return err
	}
	for _, n := range notes {
		copied := NewNote(outModel)
		copy(copied.Fields, n.Fields)
		copied.Tags = append([]string(nil), n.Tags...)
		if err := out.AddNote(copied, deck.ID); err != nil {
			out.Close()
			return err
		}
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to write database: %w", err)
	}

	if err := createZipPackage(tempDir, outputPath); err != nil {
		return fmt.Errorf("failed to create zip package: %w", err)
	}

	return nil
}

// copyMediaFiles copies referenced media into tempDir under numeric names
// and returns the filename for each number. Missing files are skipped.
func (c *Collection) copyMediaFiles(notes []*Note, tempDir string) (map[string]string, error) {
	media := make(map[string]string)
	seen := make(map[string]bool)

	for _, n := range notes {
		for _, field := range n.Fields {
			for _, match := range mediaRef.FindAllStringSubmatch(field, -1) {
				name := match[1]
				if name == "" {
					name = match[2]
				}
				if seen[name] {
					continue
				}
				seen[name] = true

				src := filepath.Join(c.MediaDir(), name)
				if !fileExists(src) {
					continue
				}

				num := fmt.Sprintf("%d", len(media))
				if err := copyFile(src, filepath.Join(tempDir, num)); err != nil {
					return nil, fmt.Errorf("failed to copy %s: %w", name, err)
				}
				media[num] = name
			}
		}
	}

	return media, nil
}

// writeMediaMapping creates the media mapping JSON file
func writeMediaMapping(media map[string]string, tempDir string) error {
	data, err := json.Marshal(media)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(tempDir, "media"), data, 0644)
}

// createZipPackage creates the final .apkg zip file
func createZipPackage(tempDir, outputPath string) error {
	zipFile, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	defer zipFile.Close()

	archive := zip.NewWriter(zipFile)
	defer archive.Close()

	return filepath.Walk(tempDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		relPath, err := filepath.Rel(tempDir, path)
		if err != nil {
			return err
		}

		writer, err := archive.Create(relPath)
		if err != nil {
			return err
		}

		file, err := os.Open(path)
		if err != nil {
			return err
		}
		defer file.Close()

		_, err = io.Copy(writer, file)
		return err
	})
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func copyFile(src, dst string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer srcFile.Close()

	dstFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer dstFile.Close()

	_, err = io.Copy(dstFile, srcFile)
	return err
}
