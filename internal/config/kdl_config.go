package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"
)

// ConfigFileName is looked up directly under the bank root.
const ConfigFileName = ".membank.kdl"

// Load builds the configuration for a bank rooted at root: defaults
// first, then overrides from .membank.kdl if one exists, then
// validation. A missing config file is not an error.
func Load(root string) (*Config, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve bank root %q: %w", root, err)
	}

	cfg := Default(absRoot)

	kdlPath := filepath.Join(absRoot, ConfigFileName)
	content, err := os.ReadFile(kdlPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, cfg.Validate()
		}
		return nil, fmt.Errorf("failed to read %s: %w", kdlPath, err)
	}

	if err := parseKDL(cfg, string(content)); err != nil {
		return nil, err
	}

	return cfg, cfg.Validate()
}

// LoadFile is Load with an explicit config file instead of the default
// .membank.kdl under root. Unlike Load, a missing file is an error:
// the caller asked for this file by name.
func LoadFile(root, path string) (*Config, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve bank root %q: %w", root, err)
	}

	cfg := Default(absRoot)

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := parseKDL(cfg, string(content)); err != nil {
		return nil, err
	}

	return cfg, cfg.Validate()
}

func parseKDL(cfg *Config, content string) error {
	doc, err := kdl.Parse(strings.NewReader(content))
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", ConfigFileName, err)
	}

	for _, n := range doc.Nodes {
		switch nodeName(n) {
		case "storage":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "tracked_extensions":
					if pats := stringArgs(cn); len(pats) > 0 {
						cfg.Storage.TrackedExtensions = pats
					}
				case "max_file_size":
					if v, ok := firstIntArg(cn); ok {
						cfg.Storage.MaxFileSize = int64(v)
					}
				}
			}
		case "lock":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "timeout_ms":
					if v, ok := firstIntArg(cn); ok {
						cfg.Lock.Timeout = time.Duration(v) * time.Millisecond
					}
				case "poll_interval_ms":
					if v, ok := firstIntArg(cn); ok {
						cfg.Lock.PollInterval = time.Duration(v) * time.Millisecond
					}
				case "stale_after_ms":
					if v, ok := firstIntArg(cn); ok {
						cfg.Lock.StaleAfter = time.Duration(v) * time.Millisecond
					}
				}
			}
		case "versions":
			for _, cn := range n.Children {
				if nodeName(cn) == "max_per_file" {
					if v, ok := firstIntArg(cn); ok {
						cfg.Versions.MaxPerFile = v
					}
				}
			}
		case "cache":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "ttl_ms":
					if v, ok := firstIntArg(cn); ok {
						cfg.Cache.TTL = time.Duration(v) * time.Millisecond
					}
				case "ttl_capacity":
					if v, ok := firstIntArg(cn); ok {
						cfg.Cache.TTLCapacity = v
					}
				case "lru_capacity":
					if v, ok := firstIntArg(cn); ok {
						cfg.Cache.LRUCapacity = v
					}
				case "sweep_interval_ms":
					if v, ok := firstIntArg(cn); ok {
						cfg.Cache.SweepInterval = time.Duration(v) * time.Millisecond
					}
				case "prefetch_limit":
					if v, ok := firstIntArg(cn); ok {
						cfg.Cache.PrefetchLimit = v
					}
				case "hot_key_count":
					if v, ok := firstIntArg(cn); ok {
						cfg.Cache.HotKeyCount = v
					}
				case "mandatory_keys":
					cfg.Cache.MandatoryKeys = stringArgs(cn)
				case "persist_metrics":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Cache.PersistMetrics = b
					}
				}
			}
		case "duplicates":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "min_section_length":
					if v, ok := firstIntArg(cn); ok {
						cfg.Duplicates.MinSectionLength = v
					}
				case "similarity_threshold":
					if v, ok := firstFloatArg(cn); ok {
						cfg.Duplicates.SimilarityThreshold = v
					}
				case "length_bucket_size":
					if v, ok := firstIntArg(cn); ok {
						cfg.Duplicates.LengthBucketSize = v
					}
				case "word_bucket_size":
					if v, ok := firstIntArg(cn); ok {
						cfg.Duplicates.WordBucketSize = v
					}
				case "leading_words":
					if v, ok := firstIntArg(cn); ok {
						cfg.Duplicates.LeadingWords = v
					}
				}
			}
		case "watcher":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "enabled":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Watcher.Enabled = b
					}
				case "debounce_ms":
					if v, ok := firstIntArg(cn); ok {
						cfg.Watcher.DebounceWindow = time.Duration(v) * time.Millisecond
					}
				}
			}
		case "tokens":
			for _, cn := range n.Children {
				if nodeName(cn) == "cache_size" {
					if v, ok := firstIntArg(cn); ok {
						cfg.Tokens.CacheSize = v
					}
				}
			}
		}
	}

	return nil
}

func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

func firstIntArg(n *document.Node) (int, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func firstFloatArg(n *document.Node) (float64, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

func firstBoolArg(n *document.Node) (bool, bool) {
	if len(n.Arguments) == 0 {
		return false, false
	}
	if b, ok := n.Arguments[0].Value.(bool); ok {
		return b, true
	}
	return false, false
}

func stringArgs(n *document.Node) []string {
	var out []string
	for _, a := range n.Arguments {
		if s, ok := a.Value.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
