package notebook

import (
	"fmt"
	"strings"
	"time"

	"dailybrief/internal/services"
)

// Format selects the synthesis style of an audio overview.
type Format string

const (
	FormatDeepDive Format = "deep-dive"
	FormatBrief    Format = "brief"
	FormatCritique Format = "critique"
	FormatDebate   Format = "debate"
)

// DefaultInstructions is used when neither the user nor the config supplies any.
const DefaultInstructions = "Create an engaging podcast discussion covering all the main topics " +
	"from today's sources. Make it conversational and informative, " +
	"suitable for a busy professional listening during their commute."

// Formats lists the supported formats in presentation order.
func Formats() []Format {
	return []Format{FormatDeepDive, FormatBrief, FormatCritique, FormatDebate}
}

// ParseFormat resolves a format name. Empty selects deep-dive.
func ParseFormat(value string) (Format, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return FormatDeepDive, nil
	}
	for _, f := range Formats() {
		if string(f) == value {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: unknown audio format %q", services.ErrValidation, value)
}

// Title names the notebook for a run on the given day.
func Title(day time.Time) string {
	return "DailyBrief - " + day.Format("2006-01-02")
}
