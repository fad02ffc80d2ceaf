package history

import "strings"

// EmbeddingDim is the dimension of the locally computed question embedding.
// The vector column in the translations table must match it.
const EmbeddingDim = 256

// expense vocabulary for the keyword features
var keywords = []string{
	"spent", "spend", "expense", "expenses", "total", "sum", "average",
	"avg", "highest", "lowest", "most", "least", "month", "week", "year",
	"today", "yesterday", "between", "grocery", "groceries", "food",
	"travel", "rent", "fuel", "shopping", "medical", "entertainment",
	"bill", "bills", "upi", "cash", "card", "credit", "debit", "online",
	"payment", "category", "method", "count", "list", "show", "breakdown",
	"per", "daily", "monthly", "above", "below", "over", "under", "last",
	"this", "current", "compare", "milk", "coffee", "income", "debit",
}

// EmbedQuestion computes a deterministic local feature embedding for a
// question. It is not a learned embedding; character frequencies, keyword
// hits, and shape features are enough to rank past questions by similarity
// without an external embedding service.
func EmbedQuestion(text string) []float32 {
	embedding := make([]float32, EmbeddingDim)
	text = strings.ToLower(text)
	if len(text) == 0 {
		return embedding
	}

	// Features 0-36: character frequencies
	charCounts := make(map[rune]int)
	for _, char := range text {
		charCounts[char]++
	}

	chars := "abcdefghijklmnopqrstuvwxyz0123456789 "
	for i, char := range chars {
		if count, exists := charCounts[char]; exists {
			embedding[i] = float32(count) / float32(len(text))
		}
	}

	// Features 40 onward: vocabulary hits
	for i, keyword := range keywords {
		if 40+i >= EmbeddingDim-8 {
			break
		}
		if strings.Contains(text, keyword) {
			embedding[40+i] = 1.0
		}
	}

	// Trailing features: length and structure
	embedding[EmbeddingDim-8] = float32(len(text)) / 1000.0
	embedding[EmbeddingDim-7] = float32(strings.Count(text, " ")) / float32(len(text))
	embedding[EmbeddingDim-6] = float32(strings.Count(text, "?"))
	embedding[EmbeddingDim-5] = float32(strings.Count(text, "/"))
	embedding[EmbeddingDim-4] = float32(countDigits(text)) / float32(len(text))

	normalize(embedding)
	return embedding
}

func countDigits(text string) int {
	count := 0
	for _, char := range text {
		if char >= '0' && char <= '9' {
			count++
		}
	}
	return count
}

func normalize(embedding []float32) {
	var magnitude float32
	for _, val := range embedding {
		magnitude += val * val
	}
	if magnitude > 0 {
		scale := float32(1.0 / (magnitude + 0.001))
		for i := range embedding {
			embedding[i] *= scale
		}
	}
}
