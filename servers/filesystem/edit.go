package filesystem

import (
	"fmt"
	"os"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// applyFileEdits rewrites the file at path according to the edits and returns
// a fenced unified diff of the change. With dryRun set the diff is computed
// but nothing is written.
func applyFileEdits(path string, edits []EditOperation, dryRun bool) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file %s: %w", path, err)
	}

	modified, err := applyEdits(string(content), edits)
	if err != nil {
		return "", err
	}

	diff := unifiedDiff(string(content), modified, path)

	if !dryRun {
		if err := os.WriteFile(path, []byte(modified), 0o600); err != nil {
			return "", fmt.Errorf("write file %s: %w", path, err)
		}
	}

	return fenceDiff(diff), nil
}

// applyEdits applies each edit in order. An edit first tries an exact
// substring match; failing that, a line-by-line match that ignores
// surrounding whitespace and re-applies the original indentation.
func applyEdits(content string, edits []EditOperation) (string, error) {
	modified := normalizeLineEndings(content)

	for _, edit := range edits {
		oldText := normalizeLineEndings(edit.OldText)
		newText := normalizeLineEndings(edit.NewText)

		if strings.Contains(modified, oldText) {
			modified = strings.Replace(modified, oldText, newText, 1)
			continue
		}

		replaced, ok := replaceByLines(modified, oldText, newText)
		if !ok {
			return "", fmt.Errorf("could not find a match for edit:\n%s", edit.OldText)
		}
		modified = replaced
	}

	return modified, nil
}

func normalizeLineEndings(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n")
}

func replaceByLines(content, oldText, newText string) (string, bool) {
	oldLines := strings.Split(oldText, "\n")
	contentLines := strings.Split(content, "\n")

	for start := 0; start <= len(contentLines)-len(oldLines); start++ {
		if !linesMatch(contentLines[start:start+len(oldLines)], oldLines) {
			continue
		}

		indent := leadingWhitespace(contentLines[start])
		newLines := indentLines(indent, oldLines, strings.Split(newText, "\n"))

		result := make([]string, 0, len(contentLines)-len(oldLines)+len(newLines))
		result = append(result, contentLines[:start]...)
		result = append(result, newLines...)
		result = append(result, contentLines[start+len(oldLines):]...)
		return strings.Join(result, "\n"), true
	}

	return content, false
}

func linesMatch(block, oldLines []string) bool {
	for i, oldLine := range oldLines {
		if strings.TrimSpace(oldLine) != strings.TrimSpace(block[i]) {
			return false
		}
	}
	return true
}

// indentLines rebases the replacement lines onto the indentation found at the
// match site, preserving any relative indentation between the old and new
// text.
func indentLines(baseIndent string, oldLines, newLines []string) []string {
	result := make([]string, 0, len(newLines))

	for i, line := range newLines {
		if i == 0 {
			result = append(result, baseIndent+strings.TrimLeft(line, " \t"))
			continue
		}
		if strings.TrimSpace(line) == "" {
			result = append(result, baseIndent)
			continue
		}

		oldIndent := ""
		if i < len(oldLines) {
			oldIndent = leadingWhitespace(oldLines[i])
		}
		extra := len(leadingWhitespace(line)) - len(oldIndent)
		if extra < 0 {
			extra = 0
		}
		result = append(result, baseIndent+strings.Repeat(" ", extra)+strings.TrimLeft(line, " \t"))
	}

	return result
}

func leadingWhitespace(s string) string {
	return s[:len(s)-len(strings.TrimLeft(s, " \t"))]
}

func unifiedDiff(original, modified, path string) string {
	dmp := diffmatchpatch.New()

	diffs := dmp.DiffMain(normalizeLineEndings(original), normalizeLineEndings(modified), true)
	patches := dmp.PatchMake(diffs)

	var b strings.Builder
	fmt.Fprintf(&b, "--- %s (original)\n", path)
	fmt.Fprintf(&b, "+++ %s (modified)\n", path)
	b.WriteString(dmp.PatchToText(patches))

	return b.String()
}

// fenceDiff wraps the diff in a backtick fence long enough to not collide
// with backtick runs inside the diff itself.
func fenceDiff(diff string) string {
	fenceLen := 3
	for strings.Contains(diff, strings.Repeat("`", fenceLen)) {
		fenceLen++
	}
	fence := strings.Repeat("`", fenceLen)
	return fmt.Sprintf("%sdiff\n%s%s\n", fence, diff, fence)
}
