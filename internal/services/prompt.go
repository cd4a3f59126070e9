package services

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/skillmatch/skillmatch-backend/internal/types"
)

const analyzerSystemPrompt = `You are a job compatibility analyst. Compare the candidate profile against the job posting and score fit per dimension. Scores are integers from 0 to 100. Be specific: strengths and gaps must reference concrete skills or requirements, not generalities. Recommendation is one of "strong_match", "worth_applying", "stretch", "poor_fit".`

// analyzerSchema is the strict json_schema for structured outputs. Every
// dimension key is required so the model cannot silently drop one.
func analyzerSchema() map[string]any {
	dims := map[string]any{}
	for _, d := range types.AnalysisDimensions {
		dims[d] = map[string]any{"type": "integer"}
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"overall_score": map[string]any{"type": "integer"},
			"dimension_scores": map[string]any{
				"type":                 "object",
				"properties":           dims,
				"required":             types.AnalysisDimensions,
				"additionalProperties": false,
			},
			"strengths": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
			"gaps": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
			"red_flags": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
			"recommendation": map[string]any{"type": "string"},
		},
		"required": []string{
			"overall_score", "dimension_scores", "strengths",
			"gaps", "red_flags", "recommendation",
		},
		"additionalProperties": false,
	}
}

type profileBundle struct {
	Profile    *types.UserProfile
	Experience []*types.WorkExperience
	Education  []*types.Education
	Skills     []*types.UserSkill
}

func buildAnalyzerPrompt(bundle *profileBundle, job *types.JobPosting) string {
	var b strings.Builder

	b.WriteString("## Candidate\n")
	if p := bundle.Profile; p != nil {
		if p.Headline != "" {
			fmt.Fprintf(&b, "Headline: %s\n", p.Headline)
		}
		if p.Summary != "" {
			fmt.Fprintf(&b, "Summary: %s\n", p.Summary)
		}
		if p.Location != "" {
			fmt.Fprintf(&b, "Location: %s\n", p.Location)
		}
		if p.DesiredSalary != nil {
			fmt.Fprintf(&b, "Desired salary: %d\n", *p.DesiredSalary)
		}
		if p.RemotePreferred {
			b.WriteString("Prefers remote work.\n")
		}
	}

	b.WriteString("\n### Work experience\n")
	for _, w := range bundle.Experience {
		fmt.Fprintf(&b, "- %s at %s (%s)", w.Title, w.Company, formatSpan(w.StartedAt, w.EndedAt))
		if w.Description != "" {
			fmt.Fprintf(&b, ": %s", w.Description)
		}
		b.WriteString("\n")
	}

	if len(bundle.Education) > 0 {
		b.WriteString("\n### Education\n")
		for _, e := range bundle.Education {
			fmt.Fprintf(&b, "- %s", e.School)
			if e.Degree != "" {
				fmt.Fprintf(&b, ", %s", e.Degree)
			}
			if e.Field != "" {
				fmt.Fprintf(&b, " in %s", e.Field)
			}
			b.WriteString("\n")
		}
	}

	if len(bundle.Skills) > 0 {
		b.WriteString("\n### Skills\n")
		for _, s := range bundle.Skills {
			fmt.Fprintf(&b, "- %s", s.Name)
			if s.Level != "" {
				fmt.Fprintf(&b, " (%s", s.Level)
				if s.Years > 0 {
					fmt.Fprintf(&b, ", %d yr", s.Years)
				}
				b.WriteString(")")
			} else if s.Years > 0 {
				fmt.Fprintf(&b, " (%d yr)", s.Years)
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("\n## Job posting\n")
	fmt.Fprintf(&b, "Title: %s\n", job.Title)
	fmt.Fprintf(&b, "Company: %s\n", job.Company)
	if job.Location != "" {
		fmt.Fprintf(&b, "Location: %s\n", job.Location)
	}
	if job.SalaryMin != nil || job.SalaryMax != nil {
		fmt.Fprintf(&b, "Salary: %s\n", formatSalary(job.SalaryMin, job.SalaryMax))
	}
	if skills := decodeStringArray(job.RequiredSkills); len(skills) > 0 {
		fmt.Fprintf(&b, "Required skills: %s\n", strings.Join(skills, ", "))
	}
	if job.RawText != "" {
		fmt.Fprintf(&b, "\n%s\n", job.RawText)
	}

	return b.String()
}

func formatSpan(start time.Time, end *time.Time) string {
	from := "unknown"
	if !start.IsZero() {
		from = start.Format("2006-01")
	}
	to := "present"
	if end != nil {
		to = end.Format("2006-01")
	}
	return from + " to " + to
}

func formatSalary(min, max *int) string {
	switch {
	case min != nil && max != nil:
		return fmt.Sprintf("%d-%d", *min, *max)
	case min != nil:
		return fmt.Sprintf("from %d", *min)
	case max != nil:
		return fmt.Sprintf("up to %d", *max)
	}
	return ""
}

func mustJSON(v any) []byte {
	raw, err := json.Marshal(v)
	if err != nil {
		return []byte("null")
	}
	return raw
}
