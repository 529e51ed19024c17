package intake

import (
	"fmt"

	"turnitinbot/internal/flow"
)

const (
	msgRegionPrompt       = "Enter your subscription region:"
	msgBibliographyPrompt = "Do you want to exclude Bibliography?"
	msgQuotesPrompt       = "Do you want to exclude Quotes?"
	msgSequenceGuidance   = "Please follow the correct sequence: /start, then select your region and answer the prompts."
	msgUploadSequence     = "You need to follow the correct sequence before uploading a document."
	msgUnsupportedType    = "Unsupported file type. Please upload a Word document or PDF."
	msgProcessingError    = "An error occurred while processing your document. Please try again."

	msgHelp = "Here are the commands you can use:\n" +
		"/start - Start the bot\n" +
		"/help - Get help information\n" +
		"Upload a Word or PDF document for processing."
)

func readyMessage(s flow.Session) string {
	bib, _ := s.Answer(flow.AnswerExcludeBibliography)
	quotes, _ := s.Answer(flow.AnswerExcludeQuotes)
	return fmt.Sprintf("You have chosen to %s Bibliography and %s Quotes. Please upload your document.",
		excludeWord(bib), excludeWord(quotes))
}

func excludeWord(exclude bool) string {
	if exclude {
		return "exclude"
	}
	return "include"
}
