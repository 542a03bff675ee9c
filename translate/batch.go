package translate

// csvBatch returns the first size units of pending in their given order.
func csvBatch(pending []*Unit, size int) []*Unit {
	if size < 1 {
		size = 1
	}
	if len(pending) <= size {
		return pending
	}
	return pending[:size]
}

// jsonBatch fills a batch while the token estimate stays within
// maxInputTokens. Units with at least starving attempts go first. The
// first unit is always taken so a batch is never empty.
func jsonBatch(pending []*Unit, maxInputTokens, starving int) []*Unit {
	ordered := make([]*Unit, 0, len(pending))
	for _, u := range pending {
		if starving > 0 && u.attempts() >= starving {
			ordered = append(ordered, u)
		}
	}
	for _, u := range pending {
		if starving <= 0 || u.attempts() < starving {
			ordered = append(ordered, u)
		}
	}

	var batch []*Unit
	used := 0
	for _, u := range ordered {
		cost := unitTokens(u)
		if len(batch) > 0 && used+cost > maxInputTokens {
			break
		}
		batch = append(batch, u)
		used += cost
	}
	return batch
}

// maxInputTokens reserves half of the budget left after the prompt for the
// response, with a 10% margin.
func maxInputTokens(batchMaxTokens, overhead int) int {
	n := int(float64(batchMaxTokens-overhead) * 0.9 / 2)
	if n < 1 {
		return 1
	}
	return n
}

// estimateTokens approximates a token count at four bytes per token.
func estimateTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	tokens := len(text) / 4
	if tokens == 0 {
		tokens = 1
	}
	return tokens
}

// itemOverheadTokens covers the JSON punctuation and field names of an item.
const itemOverheadTokens = 8

func unitTokens(u *Unit) int {
	return itemOverheadTokens + estimateTokens(u.Original) + estimateTokens(u.Context) + estimateTokens(u.Failure)
}
