// Package proof defines the proof-of-work types shared by the memory
// store, the proof store, and the proof engine: proof definitions bound to
// a step, the challenge/solution wire shapes, and the canonicalized hash
// chain linking consecutive steps.
package proof

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

// Type enumerates the proof-of-work variants a step can require.
type Type string

const (
	TypeShell     Type = "shell"
	TypeMCP       Type = "mcp"
	TypeUserInput Type = "user_input"
	TypeComment   Type = "comment"
)

// Definition is the tagged-variant proof requirement bound to a step.
// Exactly one of the type-specific blocks is populated, matching Type.
type Definition struct {
	Type     Type `json:"type"`
	Required bool `json:"required"`

	Shell     *ShellDef     `json:"shell,omitempty"`
	MCP       *MCPDef       `json:"mcp,omitempty"`
	UserInput *UserInputDef `json:"user_input,omitempty"`
	Comment   *CommentDef   `json:"comment,omitempty"`
}

type ShellDef struct {
	Cmd            string `json:"cmd"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

type MCPDef struct {
	ToolName       string `json:"tool_name"`
	ExpectedResult any    `json:"expected_result,omitempty"`
}

type UserInputDef struct {
	Prompt string `json:"prompt,omitempty"`
}

type CommentDef struct {
	MinLength int `json:"min_length"`
}

// DefaultCommentMinLength is applied when a comment proof omits min_length.
const DefaultCommentMinLength = 10

// Status is the outcome recorded for one submitted proof.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Record is the persisted outcome of one submission. Canonicalizing and hashing a Record produces the next
// step's predecessor hash.
type Record struct {
	ResultID    string `json:"result_id"`
	Type        Type   `json:"type"`
	Status      Status `json:"status"`
	ExecutedAt  string `json:"executed_at"`

	ShellExitCode       *int    `json:"shell_exit_code,omitempty"`
	ShellStdout         string  `json:"shell_stdout,omitempty"`
	ShellStderr         string  `json:"shell_stderr,omitempty"`
	ShellDurationSecs   float64 `json:"shell_duration_seconds,omitempty"`

	MCPToolName string `json:"mcp_tool_name,omitempty"`
	MCPSuccess  bool   `json:"mcp_success,omitempty"`
	MCPResult   any    `json:"mcp_result,omitempty"`

	UserInputConfirmation string `json:"user_input_confirmation,omitempty"`
	UserInputTimestamp    string `json:"user_input_timestamp,omitempty"`

	CommentText string `json:"comment_text,omitempty"`
}

// Challenge is the server-issued per-step record prescribing how to prove
// completion.
type Challenge struct {
	Type        Type   `json:"type"`
	Description string `json:"description"`
	Nonce       string `json:"nonce"`
	ProofHash   string `json:"proof_hash"`

	Shell     *ShellDef     `json:"shell,omitempty"`
	MCP       *MCPDef       `json:"mcp,omitempty"`
	UserInput *UserInputDef `json:"user_input,omitempty"`
	Comment   *CommentDef   `json:"comment,omitempty"`
}

// Solution is the client-issued record submitting proof for a step.
// PreviousProofHash is a deprecated alias accepted when ProofHash is absent.
type Solution struct {
	Type              Type   `json:"type"`
	Nonce             string `json:"nonce"`
	ProofHash         string `json:"proof_hash"`
	PreviousProofHash string `json:"previousProofHash,omitempty"`

	Shell     *ShellSolution     `json:"shell,omitempty"`
	MCP       *MCPSolution       `json:"mcp,omitempty"`
	UserInput *UserInputSolution `json:"user_input,omitempty"`
	Comment   *CommentSolution   `json:"comment,omitempty"`
}

type ShellSolution struct {
	ExitCode       *int    `json:"exit_code"`
	Stdout         string  `json:"stdout,omitempty"`
	Stderr         string  `json:"stderr,omitempty"`
	DurationSecond float64 `json:"duration_seconds,omitempty"`
}

type MCPSolution struct {
	ToolName  string         `json:"tool_name,omitempty"`
	Arguments map[string]any `json:"arguments,omitempty"`
	Result    any            `json:"result"`
	Success   bool           `json:"success"`
}

type UserInputSolution struct {
	Confirmation string `json:"confirmation"`
	Timestamp    string `json:"timestamp,omitempty"`
}

type CommentSolution struct {
	Text string `json:"text"`
}

// EffectiveProofHash resolves the solution's predecessor hash, falling
// back to the deprecated previousProofHash alias.
func (s Solution) EffectiveProofHash() string {
	if s.ProofHash != "" {
		return s.ProofHash
	}
	return s.PreviousProofHash
}

// GenesisHash is the fixed hex constant used as the predecessor hash for
// step 1 of any chain.
var GenesisHash = sha256Hex([]byte("genesis"))

// Hash canonicalizes record (key-sorted JSON) and returns its hex SHA-256,
// satisfying P5: hash(record) == hash(shuffle_keys(record)).
func Hash(record Record) (string, error) {
	canon, err := Canonicalize(record)
	if err != nil {
		return "", err
	}
	return sha256Hex(canon), nil
}

// Canonicalize serializes record as JSON with object keys sorted, so that
// field order in the Go struct (or a re-ordered equivalent map) never
// affects the resulting hash.
func Canonicalize(record Record) ([]byte, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return nil, err
	}
	var generic map[string]any
	if err := json.Unmarshal(data, &generic); err != nil {
		return nil, err
	}
	return canonicalJSON(generic)
}

// canonicalJSON recursively re-encodes v with map keys sorted at every
// level, independent of encoding/json's own (already-sorted) map handling,
// so the function also canonicalizes nested maps decoded from `any` values
// (e.g. MCPResult).
func canonicalJSON(v any) ([]byte, error) {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		buf := []byte("{")
		for i, k := range keys {
			if i > 0 {
				buf = append(buf, ',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return nil, err
			}
			buf = append(buf, kb...)
			buf = append(buf, ':')
			vb, err := canonicalJSON(val[k])
			if err != nil {
				return nil, err
			}
			buf = append(buf, vb...)
		}
		buf = append(buf, '}')
		return buf, nil
	case []any:
		buf := []byte("[")
		for i, item := range val {
			if i > 0 {
				buf = append(buf, ',')
			}
			ib, err := canonicalJSON(item)
			if err != nil {
				return nil, err
			}
			buf = append(buf, ib...)
		}
		buf = append(buf, ']')
		return buf, nil
	default:
		return json.Marshal(val)
	}
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
