package studio

import (
	"errors"

	"storyforge/internal/services"
)

// UserMessage maps an error to a sentence the CLI can print, with a
// recovery hint where one exists. Unclassified errors fall back to the
// error text itself.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNoCredential):
		return "No API key is configured. Run 'storyforge key set' to add one."
	case errors.Is(err, ErrNoRenderCredential):
		return "No rendering API key is configured. Run 'storyforge key set --render' to add one."
	case errors.Is(err, ErrNoActiveStory):
		return "No story is loaded. Generate one with 'storyforge generate' or load one with 'storyforge load'."
	case errors.Is(err, services.ErrInvalidCredential):
		return "The API key was rejected. Check the key and run 'storyforge key set' again."
	case errors.Is(err, services.ErrQuotaExhausted):
		return "The API quota for this key is exhausted. Check your plan and billing, then try again later."
	case errors.Is(err, services.ErrRateLimited):
		return "Requests are being rate limited even after retries. Wait a minute before trying again."
	case errors.Is(err, services.ErrPermissionDenied):
		return "Permission to the project folder was denied. Fix the folder permissions or choose another with 'storyforge project set'."
	case errors.Is(err, services.ErrStaleHandle):
		return "The project folder no longer exists. Choose a folder with 'storyforge project set'."
	case errors.Is(err, services.ErrTimeout):
		return "The operation timed out waiting for the service. Try again later."
	case errors.Is(err, services.ErrMalformedResponse):
		return "The service returned an unusable response. Running the operation again usually helps."
	default:
		return err.Error()
	}
}
