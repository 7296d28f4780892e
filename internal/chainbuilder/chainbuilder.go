// Package chainbuilder parses a markdown document into chains of steps
// with optional per-step proof definitions. It is a small
// hand-rolled state machine rather than a general-purpose markdown parser
//, tracking fence state, the current H1/H2
// headings, and the pending step body as it scans line by line.
package chainbuilder

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/kairos-dev/kairos/internal/memory"
	"github.com/kairos-dev/kairos/internal/proof"
)

var (
	h1Pattern        = regexp.MustCompile(`^#\s+(.+)$`)
	h2Pattern        = regexp.MustCompile(`^##\s+(.+)$`)
	fencePattern     = regexp.MustCompile("^```\\s*([a-zA-Z0-9]*)\\s*$")
	stepNumberPrefix = regexp.MustCompile(`(?i)^(?:step\s*\d+|\d+\.|[a-z0-9]*\d+\))\s*[:.\-)]?\s*(.*)$`)
	proofOfWorkLine  = regexp.MustCompile(`(?i)^PROOF OF WORK:\s*(?:\[timeout\s+(\d+)\s*(ms|s|m|h)\]\s*)?(.+)$`)
	inlineCode       = regexp.MustCompile("`([A-Za-z_][A-Za-z0-9_]*)`")
	keyword          = regexp.MustCompile(`[A-Za-z][A-Za-z0-9_]{3,}`)
)

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "that": true, "this": true,
	"from": true, "have": true, "will": true, "your": true, "into": true, "there": true,
	"their": true, "about": true, "which": true, "when": true, "then": true, "than": true,
	"also": true, "each": true, "more": true, "some": true, "such": true, "only": true,
	"just": true, "over": true, "were": true, "been": true, "being": true, "does": true,
	"doing": true, "once": true, "here": true, "after": true, "before": true,
}

// Chain is one parsed H1 section: a label and its ordered steps.
type Chain struct {
	Label string
	Steps []memory.Step
}

// Parse splits markdown into chains and slices each
// chain into steps (rule 3).
func Parse(markdown string) []Chain {
	sections := splitSections(markdown)
	chains := make([]Chain, 0, len(sections))
	for _, sec := range sections {
		chains = append(chains, Chain{Label: sec.label, Steps: buildSteps(sec)})
	}
	return chains
}

type section struct {
	label string
	lines []string
}

// splitSections partitions markdown at H1 headings found outside fenced
// code blocks. A document with no H1s becomes a
// single section labeled by its first H2, or an empty label if none.
func splitSections(markdown string) []section {
	lines := strings.Split(markdown, "\n")
	var sections []section
	var current *section
	var preamble []string
	inFence := false
	firstH2Label := ""

	flush := func() {
		if current != nil {
			sections = append(sections, *current)
		}
	}

	for _, raw := range lines {
		line := strings.TrimRight(raw, "\r")
		trimmed := strings.TrimSpace(line)
		if fencePattern.MatchString(trimmed) {
			inFence = !inFence
		}

		if !inFence {
			if m := h1Pattern.FindStringSubmatch(line); m != nil {
				flush()
				current = &section{label: strings.TrimSpace(m[1])}
				continue
			}
			if current == nil && firstH2Label == "" {
				if m := h2Pattern.FindStringSubmatch(line); m != nil {
					firstH2Label = sanitizeHeading(m[1])
				}
			}
		}

		if current == nil {
			preamble = append(preamble, line)
			continue
		}
		current.lines = append(current.lines, line)
	}
	flush()

	if len(sections) == 0 {
		sections = append(sections, section{label: firstH2Label, lines: preamble})
	}
	return sections
}

// sanitizeHeading strips a "STEP <n>", "<n>.", or "<alnum><n>)" ordering
// prefix from a heading's title.
func sanitizeHeading(title string) string {
	title = strings.TrimSpace(title)
	if m := stepNumberPrefix.FindStringSubmatch(title); m != nil {
		if rest := strings.TrimSpace(m[1]); rest != "" {
			return rest
		}
	}
	return title
}

// buildSteps slices one section's lines into steps.
func buildSteps(sec section) []memory.Step {
	var steps []memory.Step
	var body []string
	var fenceBuf []string
	var codeIdentifiers []string
	inFence := false
	fenceLang := ""
	currentH2 := ""

	flushStep := func(def *proof.Definition) {
		text := strings.TrimSpace(strings.Join(body, "\n"))
		body = nil
		if text == "" && def == nil {
			currentH2 = ""
			codeIdentifiers = nil
			return
		}

		label := currentH2
		if label == "" {
			label = sec.label
		}
		if label == "" {
			label = fmt.Sprintf("Step %d", len(steps)+1)
		}

		steps = append(steps, memory.Step{
			Label:    label,
			Text:     text,
			Tags:     deriveTags(text, codeIdentifiers),
			ProofDef: def,
			Chain:    &memory.ChainRef{Label: sec.label, StepIndex: len(steps) + 1},
		})
		currentH2 = ""
		codeIdentifiers = nil
	}

	for _, line := range sec.lines {
		trimmed := strings.TrimSpace(line)

		if fencePattern.MatchString(trimmed) {
			if !inFence {
				inFence = true
				fenceLang = strings.ToLower(fencePattern.FindStringSubmatch(trimmed)[1])
				fenceBuf = nil
				body = append(body, line)
				continue
			}

			inFence = false
			body = append(body, line)
			if fenceLang == "json" {
				if def, ok := parseJSONChallengeFence(strings.Join(fenceBuf, "\n")); ok {
					blockStart := len(body) - (len(fenceBuf) + 2)
					if blockStart < 0 {
						blockStart = 0
					}
					body = body[:blockStart]
					flushStep(def)
					fenceBuf = nil
					continue
				}
			}
			codeIdentifiers = append(codeIdentifiers, extractIdentifiers(strings.Join(fenceBuf, "\n"))...)
			fenceBuf = nil
			continue
		}

		if inFence {
			fenceBuf = append(fenceBuf, line)
			body = append(body, line)
			continue
		}

		if m := h2Pattern.FindStringSubmatch(line); m != nil {
			currentH2 = sanitizeHeading(m[1])
			continue
		}

		if m := proofOfWorkLine.FindStringSubmatch(line); m != nil {
			flushStep(parseProofOfWorkLine(m))
			continue
		}

		codeIdentifiers = append(codeIdentifiers, extractIdentifiers(line)...)
		body = append(body, line)
	}

	if strings.TrimSpace(strings.Join(body, "\n")) != "" {
		flushStep(nil)
	}

	for i := range steps {
		steps[i].Chain.StepCount = len(steps)
	}
	return steps
}

// parseJSONChallengeFence parses a fenced json block's content and, if it
// has a top-level "challenge" key, returns the corresponding proof
// definition.
func parseJSONChallengeFence(content string) (*proof.Definition, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(content), &obj); err != nil {
		return nil, false
	}
	challengeRaw, ok := obj["challenge"]
	if !ok {
		return nil, false
	}
	def := parseChallenge(challengeRaw)
	return def, def != nil
}

func parseChallenge(raw any) *proof.Definition {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil
	}
	var wire struct {
		Type      proof.Type          `json:"type"`
		Required  *bool               `json:"required"`
		Shell     *proof.ShellDef     `json:"shell"`
		MCP       *proof.MCPDef       `json:"mcp"`
		UserInput *proof.UserInputDef `json:"user_input"`
		Comment   *proof.CommentDef   `json:"comment"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil
	}
	if wire.Type == "" {
		return nil
	}

	required := true
	if wire.Required != nil {
		required = *wire.Required
	}
	if wire.Comment != nil && wire.Comment.MinLength <= 0 {
		wire.Comment.MinLength = proof.DefaultCommentMinLength
	}

	return &proof.Definition{
		Type:      wire.Type,
		Required:  required,
		Shell:     wire.Shell,
		MCP:       wire.MCP,
		UserInput: wire.UserInput,
		Comment:   wire.Comment,
	}
}

// parseProofOfWorkLine parses the "PROOF OF WORK: [timeout <N><unit>] <cmd>"
// shorthand. Malformed timeouts fall back to the 60s
// default rather than failing the whole parse.
func parseProofOfWorkLine(m []string) *proof.Definition {
	timeoutSeconds := 60
	if m[1] != "" {
		if n, err := strconv.Atoi(m[1]); err == nil {
			switch strings.ToLower(m[2]) {
			case "ms":
				timeoutSeconds = n / 1000
				if timeoutSeconds < 1 {
					timeoutSeconds = 1
				}
			case "s":
				timeoutSeconds = n
			case "m":
				timeoutSeconds = n * 60
			case "h":
				timeoutSeconds = n * 3600
			}
		}
	}
	return &proof.Definition{
		Type:     proof.TypeShell,
		Required: true,
		Shell:    &proof.ShellDef{Cmd: strings.TrimSpace(m[3]), TimeoutSeconds: timeoutSeconds},
	}
}

func extractIdentifiers(text string) []string {
	var out []string
	for _, m := range inlineCode.FindAllStringSubmatch(text, -1) {
		out = append(out, m[1])
	}
	return out
}

// deriveTags extracts keyword tags from body text plus up to 5 distinct
// code identifiers found in the step's fenced blocks.
func deriveTags(text string, codeIdentifiers []string) []string {
	freq := make(map[string]int)
	for _, w := range keyword.FindAllString(strings.ToLower(text), -1) {
		if stopwords[w] {
			continue
		}
		freq[w]++
	}
	keywords := make([]string, 0, len(freq))
	for w := range freq {
		keywords = append(keywords, w)
	}
	sort.Slice(keywords, func(i, j int) bool {
		if freq[keywords[i]] != freq[keywords[j]] {
			return freq[keywords[i]] > freq[keywords[j]]
		}
		return keywords[i] < keywords[j]
	})
	if len(keywords) > 5 {
		keywords = keywords[:5]
	}

	seen := make(map[string]bool, len(codeIdentifiers))
	var idents []string
	for _, id := range codeIdentifiers {
		if seen[id] {
			continue
		}
		seen[id] = true
		idents = append(idents, id)
		if len(idents) == 5 {
			break
		}
	}

	return append(keywords, idents...)
}
