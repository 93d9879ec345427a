package utils

// EstimateTokens approximates the token count of text at about four
// characters per token. Non-empty text is at least one token.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	n := len([]rune(text)) / 4
	if n == 0 {
		return 1
	}
	return n
}
