package delivery

// chunkText splits text into pieces of at most size runes, preferring to
// break on a newline near the boundary so a chat message doesn't get cut
// mid-sentence (spec §4.E.2 step 2: "per-platform max size; chunk_index
// starts at 0"). An empty payload yields one empty chunk so dispatches
// with no body text still produce an outbox id.
func chunkText(text string, size int) []string {
	if size <= 0 {
		size = 3500
	}
	runes := []rune(text)
	if len(runes) <= size {
		return []string{text}
	}

	var chunks []string
	for len(runes) > 0 {
		end := size
		if end > len(runes) {
			end = len(runes)
		}
		if end < len(runes) {
			if nl := lastNewline(runes[:end]); nl > size/2 {
				end = nl + 1
			}
		}
		chunks = append(chunks, string(runes[:end]))
		runes = runes[end:]
	}
	return chunks
}

func lastNewline(runes []rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if runes[i] == '\n' {
			return i
		}
	}
	return -1
}
