package usecase

import (
	"fmt"
	"strings"

	"github.com/fairyhunter13/hh-autopilot/internal/domain"
)

// minCoverLetterLen is the floor for a cover letter after trimming; anything
// shorter reads as an empty gesture to the employer.
const minCoverLetterLen = 50

// templateIndicators are phrases that betray an unedited placeholder letter.
var templateIndicators = []string{"lorem ipsum", "sample text", "template"}

// ValidateCoverLetter rejects letters that are too short or still contain
// placeholder phrasing. Empty letters are fine; "no letter" is a valid state.
func ValidateCoverLetter(letter string) error {
	letter = strings.TrimSpace(letter)
	if letter == "" {
		return nil
	}
	if len([]rune(letter)) < minCoverLetterLen {
		return fmt.Errorf("%w: cover letter shorter than %d characters", domain.ErrInvalidArgument, minCoverLetterLen)
	}
	low := strings.ToLower(letter)
	for _, ind := range templateIndicators {
		if strings.Contains(low, ind) {
			return fmt.Errorf("%w: cover letter contains placeholder text %q", domain.ErrInvalidArgument, ind)
		}
	}
	return nil
}

// ValidateApply checks an application request before any outbound call.
// It returns non-fatal warnings alongside a hard error.
func ValidateApply(vacancyID, resumeID, coverLetter string) ([]string, error) {
	if strings.TrimSpace(vacancyID) == "" {
		return nil, fmt.Errorf("%w: vacancy_id is required", domain.ErrInvalidArgument)
	}
	if strings.TrimSpace(resumeID) == "" {
		return nil, fmt.Errorf("%w: resume_id is required", domain.ErrInvalidArgument)
	}
	if err := ValidateCoverLetter(coverLetter); err != nil {
		return nil, err
	}
	var warnings []string
	if n := len([]rune(strings.TrimSpace(coverLetter))); n > 4000 {
		warnings = append(warnings, fmt.Sprintf("cover letter is unusually long (%d characters)", n))
	}
	return warnings, nil
}
