package knowledge

import "math"

// DefaultMMRLambda weighs relevance against diversity in MMR selection.
const DefaultMMRLambda = 0.5

func cosine(a, b []float32) float32 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

// maximalMarginalRelevance picks up to k indexes of embeddings. It starts
// from the item closest to the query and then repeatedly adds the item that
// maximizes lambda*sim(query) - (1-lambda)*max sim(selected).
func maximalMarginalRelevance(query []float32, embeddings [][]float32, k int, lambda float32) []int {
	if k <= 0 || len(embeddings) == 0 {
		return nil
	}
	if k > len(embeddings) {
		k = len(embeddings)
	}

	querySim := make([]float32, len(embeddings))
	first := 0
	for i, e := range embeddings {
		querySim[i] = cosine(query, e)
		if querySim[i] > querySim[first] {
			first = i
		}
	}

	selected := []int{first}
	taken := map[int]bool{first: true}
	// redundancy[i] is the highest similarity of i to anything selected so far
	redundancy := make([]float32, len(embeddings))
	for i, e := range embeddings {
		redundancy[i] = cosine(e, embeddings[first])
	}

	for len(selected) < k {
		best := -1
		bestScore := float32(math.Inf(-1))
		for i := range embeddings {
			if taken[i] {
				continue
			}
			score := lambda*querySim[i] - (1-lambda)*redundancy[i]
			if score > bestScore {
				best, bestScore = i, score
			}
		}
		if best < 0 {
			break
		}
		selected = append(selected, best)
		taken[best] = true
		for i, e := range embeddings {
			if s := cosine(e, embeddings[best]); s > redundancy[i] {
				redundancy[i] = s
			}
		}
	}
	return selected
}
