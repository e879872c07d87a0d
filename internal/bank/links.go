package bank

import (
	"regexp"
	"strings"

	"github.com/standardbeagle/membank/internal/types"
)

// Link syntax recognized in tracked content. Markdown links and wiki
// links are references; embed-style wiki links are transclusions.
var (
	mdLinkRe   = regexp.MustCompile(`\[[^\]]*\]\(([^)\s]+)\)`)
	wikiLinkRe = regexp.MustCompile(`(!?)\[\[([^\]|#]+)(?:[|#][^\]]*)?\]\]`)
)

// ExtractLinks scans markdown content for links to other tracked files
// and returns them as dependency edges originating at name. External
// URLs, anchors, and self-links are skipped. This is the built-in
// extractor; UpdateLinks accepts richer edge sets from outside.
func ExtractLinks(name, content string) []types.DependencyEdge {
	seen := map[string]types.EdgeKind{}

	for _, m := range mdLinkRe.FindAllStringSubmatch(content, -1) {
		if target := normalizeTarget(m[1]); target != "" && target != name {
			seen[target] = types.EdgeReference
		}
	}
	for _, m := range wikiLinkRe.FindAllStringSubmatch(content, -1) {
		target := normalizeTarget(strings.TrimSpace(m[2]))
		if target == "" || target == name {
			continue
		}
		kind := types.EdgeReference
		if m[1] == "!" {
			kind = types.EdgeTransclusion
		}
		// A transclusion subsumes a plain reference to the same file.
		if existing, ok := seen[target]; !ok || existing != types.EdgeTransclusion {
			seen[target] = kind
		}
	}

	edges := make([]types.DependencyEdge, 0, len(seen))
	for target, kind := range seen {
		edges = append(edges, types.DependencyEdge{From: name, To: target, Kind: kind})
	}
	return edges
}

// normalizeTarget reduces a link target to a tracked file name, or ""
// when the target points outside the bank.
func normalizeTarget(raw string) string {
	if raw == "" || strings.Contains(raw, "://") || strings.HasPrefix(raw, "#") ||
		strings.HasPrefix(raw, "mailto:") || strings.HasPrefix(raw, "/") ||
		strings.Contains(raw, "..") {
		return ""
	}
	// Drop anchors and query strings.
	if i := strings.IndexAny(raw, "#?"); i >= 0 {
		raw = raw[:i]
	}
	if raw == "" {
		return ""
	}
	// Wiki links may omit the extension.
	if !strings.Contains(raw, ".") {
		raw += ".md"
	}
	if !strings.HasSuffix(raw, ".md") {
		return ""
	}
	return raw
}
