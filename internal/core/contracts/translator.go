package contracts

import "context"

// Translator converts message text to the reader's language, best effort.
// It is applied only to outbound query results, never to stored content.
type Translator interface {
	// TranslateIfPossible returns the translated text and true, or the input
	// unchanged and false when translation is unavailable.
	TranslateIfPossible(ctx context.Context, text, lang string) (string, bool)
}
