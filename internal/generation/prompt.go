package generation

import (
	"fmt"
	"regexp"
	"strings"

	"blueprint/internal/external"
	"blueprint/internal/types"
)

// priorContextLimit caps how much of the existing document rides along in an
// update prompt. The generator needs orientation, not the full text.
const priorContextLimit = 500

// buildPrompt assembles the generation prompt for a fresh document from the
// project description and the user's questionnaire answers.
func buildPrompt(tool types.ToolKind, projectName, description string, answers []string) external.GeneratePayload {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Create a %s document for the project %q.\n\n", tool.DisplayName(), projectName)
	fmt.Fprintf(&sb, "Project description:\n%s\n", description)
	if len(answers) > 0 {
		sb.WriteString("\nAdditional details:\n")
		for _, a := range answers {
			fmt.Fprintf(&sb, "- %s\n", a)
		}
	}
	return external.GeneratePayload{
		Tool:        tool,
		ProjectName: projectName,
		Prompt:      sb.String(),
	}
}

// buildUpdatePrompt assembles the prompt for revising an existing document.
// The prior content is truncated to priorContextLimit characters.
func buildUpdatePrompt(prior *types.Document, newFeatures string) external.GeneratePayload {
	context := prior.Content
	if len(context) > priorContextLimit {
		context = context[:priorContextLimit]
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Revise the %s document for the project %q.\n\n", prior.ToolKind.DisplayName(), prior.ProjectName)
	fmt.Fprintf(&sb, "Existing document (excerpt):\n%s\n\n", context)
	fmt.Fprintf(&sb, "Requested changes:\n%s\n", newFeatures)

	return external.GeneratePayload{
		Tool:        prior.ToolKind,
		ProjectName: prior.ProjectName,
		Prompt:      sb.String(),
	}
}

var revisionSuffix = regexp.MustCompile(` - Updated \d+$`)

// baseProjectName strips the revision suffix so successive updates of the
// same document number from a single base: "Shop - Updated 2" -> "Shop".
func baseProjectName(name string) string {
	return revisionSuffix.ReplaceAllString(name, "")
}

// revisionName produces the project name for the n-th revision of base.
func revisionName(base string, n int) string {
	return fmt.Sprintf("%s - Updated %d", base, n)
}
