// Package action defines the two primitive operations recorded during
// configuration evaluation and executed at apply time: exec and fetch_url.
// Actions carry no closures; they are fully serialized, pure data, which is
// what lets an entity's object hash depend solely on the action's bytes.
package action

import "github.com/syslua/syslua/pkg/constants"

// Exec invokes a binary with the given arguments in an isolated environment.
// bin must be an absolute path since PATH is scrubbed; env is the entire
// environment the child receives.
type Exec struct {
	Bin  string            `json:"bin"`
	Args []string          `json:"args,omitempty"`
	Env  map[string]string `json:"env,omitempty"`
	Cwd  string            `json:"cwd,omitempty"`
}

// FetchURL downloads a URL into the content-addressed inputs cache and
// verifies its SHA-256 before the cached file is trusted.
type FetchURL struct {
	URL    string `json:"url"`
	SHA256 string `json:"sha256"`
}

// Action is one step of an ordered list recorded on a build or bind. Exactly
// one of Exec or FetchURL is set, selected by Kind.
type Action struct {
	Kind     constants.ActionKind `json:"kind"`
	Exec     *Exec                `json:"exec,omitempty"`
	FetchURL *FetchURL            `json:"fetch_url,omitempty"`
}

// NewExec builds an exec action.
func NewExec(bin string, args []string, env map[string]string, cwd string) Action {
	return Action{
		Kind: constants.ActionKindExec,
		Exec: &Exec{Bin: bin, Args: args, Env: env, Cwd: cwd},
	}
}

// NewFetchURL builds a fetch_url action.
func NewFetchURL(url, sha256 string) Action {
	return Action{
		Kind:     constants.ActionKindFetchURL,
		FetchURL: &FetchURL{URL: url, SHA256: sha256},
	}
}

// Validate reports a structural problem with the action: a kind/payload
// mismatch, or a required field left empty. It does not resolve placeholders
// or check reachability of bin.
func (a Action) Validate() error {
	switch a.Kind {
	case constants.ActionKindExec:
		if a.Exec == nil {
			return errExecMissingPayload
		}
		if a.Exec.Bin == "" {
			return errExecMissingBin
		}
	case constants.ActionKindFetchURL:
		if a.FetchURL == nil {
			return errFetchMissingPayload
		}
		if a.FetchURL.URL == "" {
			return errFetchMissingURL
		}
		if a.FetchURL.SHA256 == "" {
			return errFetchMissingSHA256
		}
	default:
		return errUnknownKind
	}
	return nil
}
