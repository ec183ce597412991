package answer

import (
	"fmt"
	"strings"

	"github.com/docchat/docchat/internal/index"
	"github.com/docchat/docchat/internal/memory"
)

// systemPrompt grounds the model in the retrieved documents.
const systemPrompt = `You are DocChat, an assistant that answers questions about the user's uploaded documents.

Answer using only the information in the provided document context. If the context does not contain the answer, say so plainly instead of guessing. Cite the source filename when it helps the user locate the information. Format answers in Markdown.`

// noContextNotice replaces the context block when retrieval found nothing.
const noContextNotice = "(no relevant document passages were found)"

// Prompt is the fully assembled model input for one turn.
type Prompt struct {
	System  string
	History []memory.Message
	User    string
}

// buildPrompt assembles the model input: retrieved chunks in rank order
// under the character budget, recent history, and the question. When the
// budget cannot hold every chunk, the lowest-ranked are dropped whole.
func buildPrompt(hits []index.SearchHit, history []memory.Message, query string, budget int) Prompt {
	var ctxBlock strings.Builder
	for _, h := range hits {
		passage := fmt.Sprintf("[%s]\n%s\n\n", h.DocumentID, h.Content)
		if budget > 0 && ctxBlock.Len()+len(passage) > budget {
			break
		}
		ctxBlock.WriteString(passage)
	}

	contextText := strings.TrimSpace(ctxBlock.String())
	if contextText == "" {
		contextText = noContextNotice
	}

	var user strings.Builder
	user.WriteString("Document context:\n")
	user.WriteString(contextText)
	user.WriteString("\n\nQuestion: ")
	user.WriteString(query)

	return Prompt{
		System:  systemPrompt,
		History: history,
		User:    user.String(),
	}
}
