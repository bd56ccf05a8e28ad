package search

import (
	"sort"
	"strings"
)

const ellipsis = "..."

// Hit is a scored segment with only its matching paragraphs kept.
type Hit struct {
	Score   int     `json:"score"`
	Segment Segment `json:"segment"`
}

func terms(query string) []string {
	return strings.Fields(strings.ToLower(query))
}

// Search scores every segment against query. A paragraph scores 10 per
// matching term and a segment keeps its best paragraph score; a title
// match adds 100. Runs of non-matching paragraphs between matches collapse
// to a single "..." entry. Hits are ordered by descending score.
func Search(segments []Segment, query string) []Hit {
	ts := terms(query)
	if len(ts) == 0 {
		return nil
	}
	var hits []Hit
	for _, seg := range segments {
		score := 0
		var kept []Paragraph
		lastMatched := false
		for _, p := range seg.Paragraphs {
			text := strings.ToLower(TextContent(p.Text))
			pscore := 0
			for _, t := range ts {
				if strings.Contains(text, t) {
					pscore += 10
				}
			}
			if pscore > 0 {
				kept = append(kept, p)
				lastMatched = true
			} else {
				if lastMatched {
					kept = append(kept, Paragraph{Type: TypeParagraph, Text: ellipsis})
				}
				lastMatched = false
			}
			score = max(score, pscore)
		}
		if titleMatches(seg.Titles, ts) {
			score += 100
		}
		if !lastMatched && len(kept) > 0 {
			kept = kept[:len(kept)-1]
		}
		if score == 0 {
			continue
		}
		hits = append(hits, Hit{
			Score:   score,
			Segment: Segment{Path: seg.Path, Titles: seg.Titles, Paragraphs: kept},
		})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	return hits
}

func titleMatches(titles, ts []string) bool {
	for _, title := range titles {
		lower := strings.ToLower(title)
		for _, t := range ts {
			if strings.Contains(lower, t) {
				return true
			}
		}
	}
	return false
}

// Search runs Search over the whole index.
func (ix *Index) Search(query string) []Hit {
	return Search(ix.Segments(), query)
}
