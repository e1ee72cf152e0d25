package keywords

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxKeywords caps how many keywords a single utterance yields.
const MaxKeywords = 4

var (
	ideographRun = regexp.MustCompile(`[\x{4e00}-\x{9faf}]+`)
	katakanaRun  = regexp.MustCompile(`[\x{30a0}-\x{30ff}]{2,}`)
	alnumRun     = regexp.MustCompile(`[a-zA-Z0-9]{3,}`)
	punctuation  = regexp.MustCompile(`[!?.。、，,！？．]`)
)

// Single ideographs that are pronouns, numerals or directions rather than topics.
var singleIdeographStop = runeSet("私僕俺君彼女誰何其此孰一二三四五六七八九十百千万大小上下左右前後中東西南北")

var genericTerms = map[string]struct{}{
	"今日": {}, "昨日": {}, "明日": {}, "自分": {}, "人間": {},
	"最初": {}, "最後": {}, "今回": {}, "本当": {}, "実際": {},
}

func runeSet(s string) map[string]struct{} {
	set := make(map[string]struct{}, utf8.RuneCountInString(s))
	for _, r := range s {
		set[string(r)] = struct{}{}
	}
	return set
}

// Extract returns up to MaxKeywords search terms from text, in first-occurrence order.
func Extract(text, locale string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	var candidates []string
	if isJapanese(locale) {
		candidates = extractJapanese(text)
	} else {
		candidates = extractWords(text)
	}
	return dedupe(candidates, MaxKeywords)
}

func isJapanese(locale string) bool {
	return strings.HasPrefix(strings.ToLower(locale), "ja")
}

func extractJapanese(text string) []string {
	var out []string
	for _, m := range ideographRun.FindAllString(text, -1) {
		if utf8.RuneCountInString(m) == 1 {
			if _, stop := singleIdeographStop[m]; stop {
				continue
			}
		}
		out = append(out, m)
	}
	out = append(out, katakanaRun.FindAllString(text, -1)...)
	out = append(out, alnumRun.FindAllString(text, -1)...)

	filtered := out[:0]
	for _, m := range out {
		if _, generic := genericTerms[m]; generic {
			continue
		}
		filtered = append(filtered, m)
	}
	return filtered
}

func extractWords(text string) []string {
	var out []string
	for _, w := range strings.Fields(punctuation.ReplaceAllString(text, " ")) {
		if utf8.RuneCountInString(w) >= 3 {
			out = append(out, w)
		}
	}
	return out
}

func dedupe(in []string, limit int) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, limit)
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
		if len(out) == limit {
			break
		}
	}
	return out
}
