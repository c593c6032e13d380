// Package retrieval holds the pure pieces of the search pipeline: grouping
// ranked chunks into per-document results and slicing those into pages.
package retrieval

import (
	"sort"

	"rapidly/types"

	"github.com/google/uuid"
)

// Aggregate groups ranked chunks by document id and orders the groups by
// their best similarity, descending. Chunk texts keep their arrival order
// within a group; input may interleave chunks of different documents and
// carries no ordering assumptions. Equal scores keep first-seen document
// order so repeated runs produce the same sequence.
func Aggregate(chunks []types.RankedChunk) []types.DocumentResult {
	grouped := make(map[uuid.UUID]*types.DocumentResult, len(chunks))
	var order []uuid.UUID

	for _, ch := range chunks {
		res, ok := grouped[ch.DocumentID]
		if !ok {
			res = &types.DocumentResult{
				DocumentID:    ch.DocumentID,
				FileName:      ch.FileName,
				TopSimilarity: ch.Similarity,
			}
			grouped[ch.DocumentID] = res
			order = append(order, ch.DocumentID)
		}
		res.Chunks = append(res.Chunks, ch.Text)
		if ch.Similarity > res.TopSimilarity {
			res.TopSimilarity = ch.Similarity
		}
	}

	results := make([]types.DocumentResult, 0, len(order))
	for _, id := range order {
		results = append(results, *grouped[id])
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].TopSimilarity > results[j].TopSimilarity
	})
	return results
}
