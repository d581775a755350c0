package extractor

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/net/html"
)

const nextDataID = "__NEXT_DATA__"

// Field aliases in priority order.
var (
	urlKeys = []string{"artifactUrl", "artifact_url", "proofUrl", "proof_url", "artifact"}
	vkKeys  = []string{"verificationKey", "verification_key", "vk", "vkHash", "vk_hash", "program"}
)

var hexKeyRe = regexp.MustCompile(`^0x[0-9a-fA-F]{64,}$`)

func isURL(s string) bool {
	return strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "http://")
}

func isHexKey(s string) bool { return hexKeyRe.MatchString(s) }

// nextDataStrategy reads the framework's embedded page-state script.
type nextDataStrategy struct{}

func (s *nextDataStrategy) Name() string { return "embedded_state" }

func (s *nextDataStrategy) Extract(doc *Document) Record {
	payload, ok := scriptByID(doc.Raw, nextDataID)
	if !ok {
		return Record{}
	}
	var tree any
	if err := json.Unmarshal([]byte(payload), &tree); err != nil {
		return Record{}
	}
	return searchTree(descend(tree, "props", "pageProps"))
}

// globalStateStrategy reads a state object assigned to a window global.
type globalStateStrategy struct{}

var globalStateMarkers = []string{
	"window.__INITIAL_STATE__",
	"window.__PRELOADED_STATE__",
	"window.__APP_STATE__",
}

func (s *globalStateStrategy) Name() string { return "global_state" }

func (s *globalStateStrategy) Extract(doc *Document) Record {
	var best Record
	for _, marker := range globalStateMarkers {
		rest := doc.Raw
		for {
			i := strings.Index(rest, marker)
			if i < 0 {
				break
			}
			rest = rest[i+len(marker):]
			tree, ok := decodeAssignment(rest)
			if !ok {
				continue
			}
			rec := searchTree(tree)
			if rec.complete() {
				return rec
			}
			best = merge(best, rec)
		}
	}
	return best
}

// decodeAssignment parses the JSON value following "= " at the start of s.
func decodeAssignment(s string) (any, bool) {
	s = strings.TrimLeft(s, " \t\r\n")
	if !strings.HasPrefix(s, "=") {
		return nil, false
	}
	s = strings.TrimLeft(s[1:], " \t\r\n")
	if !strings.HasPrefix(s, "{") {
		return nil, false
	}
	var tree any
	if err := json.NewDecoder(strings.NewReader(s)).Decode(&tree); err != nil {
		return nil, false
	}
	return tree, true
}

// scriptByID returns the raw body of the first <script id=...> element.
func scriptByID(doc, id string) (string, bool) {
	z := html.NewTokenizer(strings.NewReader(doc))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return "", false
		case html.StartTagToken:
			name, hasAttr := z.TagName()
			if string(name) != "script" {
				continue
			}
			match := false
			for hasAttr {
				var k, v []byte
				k, v, hasAttr = z.TagAttr()
				if string(k) == "id" && string(v) == id {
					match = true
				}
			}
			if !match {
				continue
			}
			if z.Next() != html.TextToken {
				return "", false
			}
			return string(z.Text()), true
		}
	}
}

// descend follows path while each step exists, stopping at the deepest hit.
func descend(tree any, path ...string) any {
	for _, k := range path {
		m, ok := tree.(map[string]any)
		if !ok {
			return tree
		}
		next, ok := m[k]
		if !ok {
			return tree
		}
		tree = next
	}
	return tree
}

func searchTree(tree any) Record {
	return Record{
		ArtifactURL:     findString(tree, urlKeys, isURL),
		VerificationKey: findString(tree, vkKeys, isHexKey),
	}
}

// findString walks the tree breadth-first, so shallower fields win; siblings
// are visited in key order.
func findString(root any, keys []string, accept func(string) bool) string {
	queue := []any{root}
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]

		switch n := node.(type) {
		case map[string]any:
			for _, k := range keys {
				if s, ok := n[k].(string); ok {
					s = DecodeEntities(strings.TrimSpace(s))
					if accept(s) {
						return s
					}
				}
			}
			children := make([]string, 0, len(n))
			for k := range n {
				children = append(children, k)
			}
			sort.Strings(children)
			for _, k := range children {
				queue = append(queue, n[k])
			}
		case []any:
			queue = append(queue, n...)
		}
	}
	return ""
}

func merge(a, b Record) Record {
	if a.ArtifactURL == "" {
		a.ArtifactURL = b.ArtifactURL
	}
	if a.VerificationKey == "" {
		a.VerificationKey = b.VerificationKey
	}
	return a
}
