package extractor

import (
	"regexp"
	"strings"
)

// Keys may appear JSON-escaped when the state is embedded inside a string.
var (
	fieldURLPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\\?"(?:artifactUrl|artifact_url|proofUrl|proof_url|artifact)\\?"\s*:\s*\\?"(https?://[^"\\<>\s]+)`),
	}
	bucketURLPatterns = []*regexp.Regexp{
		regexp.MustCompile(`https://spn-artifacts-mainnet\.s3[^"<>\s\\]*`),
		regexp.MustCompile(`https://spn-artifacts[a-z0-9-]*\.s3[^"<>\s\\]*`),
		regexp.MustCompile(`https://[a-z0-9.-]+\.s3[a-z0-9.-]*\.amazonaws\.com/[^"<>\s\\]+`),
	}
	fieldKeyPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\\?"(?:verificationKey|verification_key|vk|vkHash|vk_hash|program)\\?"\s*:\s*\\?"(0x[0-9a-fA-F]{64,})`),
	}

	// exactly 32 bytes; a longer hex run is some other value
	bareKeyPattern = regexp.MustCompile(`(0x[0-9a-fA-F]{64})(?:[^0-9a-fA-F]|$)`)
)

func firstSubmatch(patterns []*regexp.Regexp, s string) string {
	for _, re := range patterns {
		if m := re.FindStringSubmatch(s); m != nil {
			return m[1]
		}
	}
	return ""
}

func firstMatch(patterns []*regexp.Regexp, s string) string {
	for _, re := range patterns {
		if m := re.FindString(s); m != "" {
			return m
		}
	}
	return ""
}

// fieldPatternStrategy scans for "field":"value" pairs and known artifact
// bucket URLs anywhere in the page.
type fieldPatternStrategy struct{}

func (s *fieldPatternStrategy) Name() string { return "field_pattern" }

func (s *fieldPatternStrategy) Extract(doc *Document) Record {
	url := firstSubmatch(fieldURLPatterns, doc.Text)
	if url == "" {
		url = firstMatch(bucketURLPatterns, doc.Text)
	}
	return Record{
		ArtifactURL:     url,
		VerificationKey: firstSubmatch(fieldKeyPatterns, doc.Text),
	}
}

// keywordStrategy looks for a bare 32-byte hex value around the first
// occurrence of the first label present, then anywhere in the page.
type keywordStrategy struct {
	keywords []string
	before   int
	after    int
}

func newKeywordStrategy(keywords []string, before, after int) *keywordStrategy {
	if before <= 0 {
		before = 1000
	}
	if after <= 0 {
		after = 2000
	}
	return &keywordStrategy{keywords: keywords, before: before, after: after}
}

func (s *keywordStrategy) Name() string { return "keyword_proximity" }

func (s *keywordStrategy) Extract(doc *Document) Record {
	return Record{
		ArtifactURL:     firstMatch(bucketURLPatterns, doc.Text),
		VerificationKey: s.findKey(doc.Text),
	}
}

func (s *keywordStrategy) findKey(text string) string {
	for _, kw := range s.keywords {
		if kw == "" {
			continue
		}
		pos := strings.Index(text, kw)
		if pos < 0 {
			continue
		}
		lo := max(pos-s.before, 0)
		hi := min(pos+s.after, len(text))
		if m := bareKeyPattern.FindStringSubmatch(text[lo:hi]); m != nil {
			return m[1]
		}
		break
	}
	if m := bareKeyPattern.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}
