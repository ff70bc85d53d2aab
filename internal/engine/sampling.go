package engine

import "inferbridge/internal/llm"

// pieceBufSize is the first buffer tried for token text.
const pieceBufSize = 8

// argmax returns the index of the highest score, the lowest index on ties,
// or -1 for empty input.
func argmax(logits []float32) llm.Token {
	if len(logits) == 0 {
		return -1
	}
	best := 0
	for i := 1; i < len(logits); i++ {
		if logits[i] > logits[best] {
			best = i
		}
	}
	return llm.Token(best)
}

// pieceText converts tok to text. A negative first result is the size
// needed; one retry is made with that size. Failure yields "".
func pieceText(w llm.Weights, tok llm.Token) string {
	buf := make([]byte, pieceBufSize)
	n := w.TokenToPiece(tok, buf)
	if n < 0 {
		buf = make([]byte, -n)
		n = w.TokenToPiece(tok, buf)
	}
	if n <= 0 || n > len(buf) {
		return ""
	}
	return string(buf[:n])
}
