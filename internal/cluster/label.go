package cluster

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const maxNameLen = 80

var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "are": true, "was": true,
	"were": true, "be": true, "been": true, "being": true, "have": true, "has": true,
	"had": true, "do": true, "does": true, "did": true, "will": true, "would": true,
	"could": true, "should": true, "may": true, "might": true, "can": true, "shall": true,
	"to": true, "of": true, "in": true, "for": true, "on": true, "with": true, "at": true,
	"by": true, "from": true, "as": true, "into": true, "through": true, "during": true,
	"before": true, "after": true, "above": true, "below": true, "and": true, "but": true,
	"or": true, "nor": true, "not": true, "so": true, "yet": true, "both": true,
	"each": true, "every": true, "all": true, "any": true, "more": true, "most": true,
	"other": true, "some": true, "such": true, "no": true, "only": true, "than": true,
	"too": true, "very": true, "just": true, "how": true, "what": true, "which": true,
	"who": true, "this": true, "that": true, "these": true, "those": true, "it": true,
	"its": true, "new": true, "about": true, "up": true, "out": true, "also": true,
	"like": true, "get": true, "use": true, "why": true, "now": true,
}

// Name derives a display name for a cluster: the representative title when
// there is one, otherwise the three most frequent title words, otherwise the
// leading entities.
func Name(c Cluster) string {
	if t := strings.TrimSpace(c.RepresentativeTitle); t != "" {
		return truncate(t)
	}
	if label := topWords(c.Titles, 3); label != "" {
		return label
	}
	if len(c.Entities) > 0 {
		n := min(len(c.Entities), 3)
		return truncate(strings.Join(c.Entities[:n], " / "))
	}
	return c.ClusterID
}

func topWords(titles []string, n int) string {
	wordCounts := make(map[string]int)
	var order []string
	for _, title := range titles {
		for _, word := range strings.Fields(strings.ToLower(title)) {
			word = strings.Trim(word, ".,!?:;\"'()-[]")
			if len(word) > 2 && !stopWords[word] {
				if wordCounts[word] == 0 {
					order = append(order, word)
				}
				wordCounts[word]++
			}
		}
	}

	// Highest count first; ties go to the word seen first.
	var words []string
	for len(words) < n {
		best := ""
		for _, w := range order {
			if wordCounts[w] > 0 && (best == "" || wordCounts[w] > wordCounts[best]) {
				best = w
			}
		}
		if best == "" {
			break
		}
		words = append(words, capitalize(best))
		wordCounts[best] = 0
	}
	return strings.Join(words, " ")
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}

func truncate(s string) string {
	if utf8.RuneCountInString(s) <= maxNameLen {
		return s
	}
	return string([]rune(s)[:maxNameLen])
}
