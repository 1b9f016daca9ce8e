package services

import (
	"context"

	"github.com/cognivue/cognivue-backend/internal/observability"
	"github.com/cognivue/cognivue-backend/internal/platform/apierr"
	"github.com/cognivue/cognivue-backend/internal/platform/gemini"
)

const overloadedMessage = "The AI service is temporarily overloaded. Please try again in a few minutes."

// Generator is the retrying model client the workflows depend on.
type Generator interface {
	Generate(ctx context.Context, req gemini.Request) gemini.Result
}

// failureToAPIError maps a generation failure onto the API error taxonomy.
// genericMsg is shown for anything that is not an overload.
func failureToAPIError(workflow string, f *gemini.Failure, genericMsg string) *apierr.Error {
	observability.Current().IncGenerationFailure(workflow, string(f.Kind))
	if f.Kind == gemini.KindServiceUnavailable {
		return apierr.ServiceUnavailable(overloadedMessage, f.Details)
	}
	return apierr.GenerationFailed(genericMsg, f.Details)
}
