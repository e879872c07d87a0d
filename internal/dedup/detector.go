// Package dedup finds duplicated content across tracked files. Exact
// duplicates are grouped by strong hash; near-duplicates are found by
// cheap signature bucketing followed by pairwise similarity scoring
// inside each bucket, so the expensive comparisons run over small
// groups instead of all pairs.
package dedup

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/hbollon/go-edlib"
	"github.com/surgebase/porter2"

	"github.com/standardbeagle/membank/internal/config"
	"github.com/standardbeagle/membank/internal/debug"
	"github.com/standardbeagle/membank/internal/hashing"
	"github.com/standardbeagle/membank/internal/types"
)

// SectionRef is one section in the scan corpus, carrying enough
// context to report where a duplicate lives.
type SectionRef struct {
	File    string
	Heading string
	Content string
}

// Report is the outcome of one scan. Pairs are ephemeral: recomputed
// per scan, never persisted.
type Report struct {
	ExactDuplicates []types.DuplicatePair
	SimilarSections []types.DuplicatePair
	// SharedPatterns maps a content hash to the files repeating it,
	// for exact groups spanning three or more sections.
	SharedPatterns map[string][]string
	SectionsScanned int
	PairsCompared   int
}

// Detector scans section corpora for duplication.
type Detector struct {
	cfg config.Duplicates
}

// NewDetector creates a detector with the given tuning. Zero-valued
// tuning fields fall back to the package defaults.
func NewDetector(cfg config.Duplicates) *Detector {
	if cfg.MinSectionLength <= 0 {
		cfg.MinSectionLength = types.DefaultMinSectionLength
	}
	if cfg.SimilarityThreshold <= 0 {
		cfg.SimilarityThreshold = types.DefaultSimilarityThreshold
	}
	if cfg.LengthBucketSize <= 0 {
		cfg.LengthBucketSize = 64
	}
	if cfg.WordBucketSize <= 0 {
		cfg.WordBucketSize = 10
	}
	if cfg.LeadingWords <= 0 {
		cfg.LeadingWords = 3
	}
	return &Detector{cfg: cfg}
}

// ScanAll examines every qualifying section pair. Sections shorter
// than the minimum length never appear in the report. Same-file pairs
// are excluded: repeating yourself inside one document is an editing
// choice, not drift between documents.
func (d *Detector) ScanAll(sections []SectionRef) *Report {
	report := &Report{SharedPatterns: map[string][]string{}}

	var corpus []SectionRef
	for _, s := range sections {
		if len(s.Content) >= d.cfg.MinSectionLength {
			corpus = append(corpus, s)
		}
	}
	report.SectionsScanned = len(corpus)

	exactHashes := d.scanExact(corpus, report)
	d.scanSimilar(corpus, exactHashes, report)

	debug.LogBank("dedup scan: %d sections, %d comparisons, %d exact, %d similar\n",
		report.SectionsScanned, report.PairsCompared,
		len(report.ExactDuplicates), len(report.SimilarSections))
	return report
}

// scanExact groups by strong hash and emits each group's pairs
// combinatorially. Returns the per-section hashes so the similarity
// pass can skip pairs already reported exact.
func (d *Detector) scanExact(corpus []SectionRef, report *Report) []string {
	hashes := make([]string, len(corpus))
	groups := map[string][]int{}
	for i, s := range corpus {
		h := hashing.StrongString(s.Content)
		hashes[i] = h
		groups[h] = append(groups[h], i)
	}

	var groupHashes []string
	for h, members := range groups {
		if len(members) > 1 {
			groupHashes = append(groupHashes, h)
		}
	}
	sort.Strings(groupHashes)

	for _, h := range groupHashes {
		members := groups[h]
		files := map[string]bool{}
		for _, i := range members {
			files[corpus[i].File] = true
		}

		for a := 0; a < len(members); a++ {
			for b := a + 1; b < len(members); b++ {
				sa, sb := corpus[members[a]], corpus[members[b]]
				if sa.File == sb.File {
					continue
				}
				report.ExactDuplicates = append(report.ExactDuplicates, types.DuplicatePair{
					FileA: sa.File, SectionA: sa.Heading,
					FileB: sb.File, SectionB: sb.Heading,
					Similarity: 1.0,
					Kind:       types.DuplicateExact,
				})
			}
		}

		if len(members) > 2 && len(files) > 1 {
			var names []string
			for f := range files {
				names = append(names, f)
			}
			sort.Strings(names)
			report.SharedPatterns[h] = names
		}
	}
	return hashes
}

// scanSimilar buckets sections by signature and scores pairs only
// within a bucket. Pairs whose signatures differ are never compared:
// that recall miss is the price of linear grouping and is pinned by
// tests, not accidental.
func (d *Detector) scanSimilar(corpus []SectionRef, hashes []string, report *Report) {
	buckets := map[string][]int{}
	for i, s := range corpus {
		sig := d.signature(s.Content)
		buckets[sig] = append(buckets[sig], i)
	}

	var sigs []string
	for sig, members := range buckets {
		if len(members) > 1 {
			sigs = append(sigs, sig)
		}
	}
	sort.Strings(sigs)

	for _, sig := range sigs {
		members := buckets[sig]
		for a := 0; a < len(members); a++ {
			for b := a + 1; b < len(members); b++ {
				sa, sb := corpus[members[a]], corpus[members[b]]
				if sa.File == sb.File {
					continue
				}
				if hashes[members[a]] == hashes[members[b]] {
					continue // already reported exact
				}
				report.PairsCompared++
				score := d.similarity(sa.Content, sb.Content)
				if score >= d.cfg.SimilarityThreshold && score < 1.0 {
					report.SimilarSections = append(report.SimilarSections, types.DuplicatePair{
						FileA: sa.File, SectionA: sa.Heading,
						FileB: sb.File, SectionB: sb.Heading,
						Similarity: score,
						Kind:       types.DuplicateSimilar,
					})
				}
			}
		}
	}
}

// signature is the cheap grouping key: length bucket, word-count
// bucket, and the first few stemmed words. Sections must agree on all
// three to be compared at all.
func (d *Detector) signature(content string) string {
	words := tokenize(content)

	lead := words
	if len(lead) > d.cfg.LeadingWords {
		lead = lead[:d.cfg.LeadingWords]
	}
	stemmed := make([]string, len(lead))
	for i, w := range lead {
		stemmed[i] = porter2.Stem(w)
	}

	return fmt.Sprintf("%d|%d|%s",
		len(content)/d.cfg.LengthBucketSize,
		len(words)/d.cfg.WordBucketSize,
		strings.Join(stemmed, " "))
}

// similarity blends two independent measures: Levenshtein ratio over
// the raw text and Jaccard overlap over stemmed token sets. Either
// alone misreports: edit distance punishes reordering, token overlap
// ignores it entirely. The mean of both decides.
func (d *Detector) similarity(a, b string) float64 {
	lev, err := edlib.StringsSimilarity(a, b, edlib.Levenshtein)
	if err != nil {
		lev = 0
	}
	jac := jaccard(stemSet(a), stemSet(b))
	return (float64(lev) + jac) / 2
}

func stemSet(content string) map[string]bool {
	set := map[string]bool{}
	for _, w := range tokenize(content) {
		set[porter2.Stem(w)] = true
	}
	return set
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	inter := 0
	for w := range a {
		if b[w] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// tokenize lowercases and splits on anything that is not a letter or
// digit.
func tokenize(content string) []string {
	return strings.FieldsFunc(strings.ToLower(content), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// RefactoringSuggestion renders advice for one reported pair. Pure
// formatting, no side effects.
func RefactoringSuggestion(pair types.DuplicatePair) string {
	if pair.Kind == types.DuplicateExact {
		return fmt.Sprintf(
			"Sections %q (%s) and %q (%s) are identical. Extract the content into a shared file and include it from both places.",
			pair.SectionA, pair.FileA, pair.SectionB, pair.FileB)
	}
	return fmt.Sprintf(
		"Sections %q (%s) and %q (%s) overlap at %.0f%% similarity. Consolidate into one canonical section and reference it from the other file.",
		pair.SectionA, pair.FileA, pair.SectionB, pair.FileB, pair.Similarity*100)
}
