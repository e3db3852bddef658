package main

import (
	"bufio"
	"log"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// The indexer walks a fixed set of top-level artifact folders. Folders that
// do not exist are simply absent from the tree.
var artifactFolders = []string{"plans", "research", "reports", "data"}

// typeVocabulary holds the recognized type tags for the {name}-{type}.{ext}
// naming convention. A matching tag overrides the folder-derived category.
var typeVocabulary = map[string]bool{
	"plan":     true,
	"report":   true,
	"research": true,
	"review":   true,
	"notes":    true,
	"snapshot": true,
}

// aggregateFile marks a directory as a single composite document.
const aggregateFile = "SUMMARY.md"

// servedExtensions is the whitelist of formats the viewer serves at all;
// editableExtensions is the subset that may be written back.
var servedExtensions = map[string]bool{".md": true, ".json": true}
var editableExtensions = map[string]bool{".md": true}

// generatedRe matches the content date marker near the top of a markdown
// artifact, e.g. "Generated: 2026-08-29", optionally blockquoted or bolded.
var generatedRe = regexp.MustCompile(`^\s*(?:>\s*)?(?:\*\*)?Generated(?:\*\*)?:\s*(\d{4}-\d{2}-\d{2})`)

type document struct {
	DisplayName  string    `json:"displayName"`
	RelativePath string    `json:"relativePath"`
	Category     string    `json:"category"`
	DateBucket   string    `json:"dateBucket"`
	LastModified time.Time `json:"lastModified"`
}

type docCategory struct {
	Name      string     `json:"name"`
	Documents []document `json:"documents"`
}

type docBucket struct {
	Name       string        `json:"name"`
	Categories []docCategory `json:"categories"`
}

type docTree struct {
	Buckets []docBucket `json:"buckets"`
}

// buildTree produces the full date/category tree for the artifact folders
// under root. It is rebuilt from scratch on every listing request; rebuild
// cost is bounded by folder size, and a stale index is worse than a slow one.
// Entries that cannot be read are skipped, never fatal.
func buildTree(root string, now time.Time) *docTree {
	var docs []document
	for _, folder := range artifactFolders {
		docs = append(docs, indexFolder(root, folder, now)...)
	}
	return assembleTree(docs)
}

func indexFolder(root, folder string, now time.Time) []document {
	dir := filepath.Join(root, folder)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var docs []document
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		if entry.IsDir() {
			if doc, ok := describeComposite(dir, folder, name, now); ok {
				docs = append(docs, doc)
			}
			continue
		}

		if doc, ok := describeFile(dir, folder, name, now); ok {
			docs = append(docs, doc)
		}
	}
	return docs
}

// describeComposite treats a directory holding an aggregate file as one
// document named after the directory.
func describeComposite(dir, folder, name string, now time.Time) (document, bool) {
	summaryPath := filepath.Join(dir, name, aggregateFile)
	info, err := os.Stat(summaryPath)
	if err != nil {
		return document{}, false
	}

	generated, ok := extractGeneratedDate(summaryPath, ".md")
	if !ok {
		generated = info.ModTime()
	}

	return document{
		DisplayName:  humanizeName(name),
		RelativePath: path.Join(folder, name, aggregateFile),
		Category:     folder,
		DateBucket:   bucketFor(generated, now),
		LastModified: info.ModTime(),
	}, true
}

func describeFile(dir, folder, name string, now time.Time) (document, bool) {
	ext := strings.ToLower(filepath.Ext(name))
	if !servedExtensions[ext] {
		return document{}, false
	}

	full := filepath.Join(dir, name)
	info, err := os.Stat(full)
	if err != nil {
		// Dangling symlink or a file deleted mid-walk.
		log.Printf("Warning: skipping unreadable entry %s: %v", name, err)
		return document{}, false
	}

	stem := strings.TrimSuffix(name, filepath.Ext(name))
	displayName, category := parseArtifactName(stem, folder)

	generated, ok := extractGeneratedDate(full, ext)
	if !ok {
		generated = info.ModTime()
	}

	return document{
		DisplayName:  displayName,
		RelativePath: path.Join(folder, name),
		Category:     category,
		DateBucket:   bucketFor(generated, now),
		LastModified: info.ModTime(),
	}, true
}

// parseArtifactName splits a filename stem against the {name}-{type}
// convention. Stems that don't match keep the folder as category and the
// whole stem as display name.
func parseArtifactName(stem, folder string) (displayName, category string) {
	if idx := strings.LastIndex(stem, "-"); idx > 0 {
		if tag := stem[idx+1:]; typeVocabulary[tag] {
			return humanizeName(stem[:idx]), tag
		}
	}
	return humanizeName(stem), folder
}

func humanizeName(stem string) string {
	s := strings.ReplaceAll(stem, "-", " ")
	return strings.ReplaceAll(s, "_", " ")
}

// extractGeneratedDate pulls the generation date embedded by the producing
// process. Embedded dates beat filesystem mtimes, which go stale after a
// checkout or sync; files without a marker fall back to mtime at the caller.
func extractGeneratedDate(full, ext string) (time.Time, bool) {
	switch ext {
	case ".md":
		return markdownGeneratedDate(full)
	case ".json":
		return jsonGeneratedDate(full)
	}
	return time.Time{}, false
}

// markdownGeneratedDate scans the first few lines for the marker label.
func markdownGeneratedDate(full string) (time.Time, bool) {
	f, err := os.Open(full)
	if err != nil {
		return time.Time{}, false
	}
	defer f.Close()

	const headLines = 10
	scanner := bufio.NewScanner(f)
	for i := 0; i < headLines && scanner.Scan(); i++ {
		if m := generatedRe.FindStringSubmatch(scanner.Text()); m != nil {
			if t, err := time.ParseInLocation("2006-01-02", m[1], time.Local); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// jsonGeneratedDate reads the generated_at (or generatedAt) field of a
// snapshot. Accepts a bare date or a full RFC 3339 timestamp.
func jsonGeneratedDate(full string) (time.Time, bool) {
	data, err := os.ReadFile(full)
	if err != nil || !gjson.ValidBytes(data) {
		return time.Time{}, false
	}

	field := gjson.GetBytes(data, "generated_at")
	if !field.Exists() {
		field = gjson.GetBytes(data, "generatedAt")
	}
	raw := field.String()
	if len(raw) < len("2006-01-02") {
		return time.Time{}, false
	}

	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.Local(), true
	}
	if t, err := time.ParseInLocation("2006-01-02", raw[:10], time.Local); err == nil {
		return t, true
	}
	return time.Time{}, false
}

func bucketFor(t, now time.Time) string {
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	yesterdayStart := todayStart.AddDate(0, 0, -1)

	switch {
	case !t.Before(todayStart) && t.Before(todayStart.AddDate(0, 0, 1)):
		return "Today"
	case !t.Before(yesterdayStart) && t.Before(todayStart):
		return "Yesterday"
	default:
		return t.Format("2006-01-02")
	}
}

// bucketRank orders "Today" first, "Yesterday" second, then ISO dates, which
// sort descending among themselves (lexicographic order is chronological for
// ISO dates). Future-dated buckets land at the top of the ISO group without
// disturbing the two literal tokens.
func bucketRank(name string) int {
	switch name {
	case "Today":
		return 0
	case "Yesterday":
		return 1
	default:
		return 2
	}
}

func assembleTree(docs []document) *docTree {
	grouped := make(map[string]map[string][]document)
	for _, doc := range docs {
		byCategory, ok := grouped[doc.DateBucket]
		if !ok {
			byCategory = make(map[string][]document)
			grouped[doc.DateBucket] = byCategory
		}
		byCategory[doc.Category] = append(byCategory[doc.Category], doc)
	}

	bucketNames := make([]string, 0, len(grouped))
	for name := range grouped {
		bucketNames = append(bucketNames, name)
	}
	sort.Slice(bucketNames, func(i, j int) bool {
		ri, rj := bucketRank(bucketNames[i]), bucketRank(bucketNames[j])
		if ri != rj {
			return ri < rj
		}
		return bucketNames[i] > bucketNames[j]
	})

	tree := &docTree{Buckets: []docBucket{}}
	for _, bucketName := range bucketNames {
		byCategory := grouped[bucketName]

		categoryNames := make([]string, 0, len(byCategory))
		for name := range byCategory {
			categoryNames = append(categoryNames, name)
		}
		sort.Strings(categoryNames)

		bucket := docBucket{Name: bucketName}
		for _, categoryName := range categoryNames {
			docs := byCategory[categoryName]
			sort.Slice(docs, func(i, j int) bool {
				return docs[i].LastModified.After(docs[j].LastModified)
			})
			bucket.Categories = append(bucket.Categories, docCategory{
				Name:      categoryName,
				Documents: docs,
			})
		}
		tree.Buckets = append(tree.Buckets, bucket)
	}
	return tree
}
