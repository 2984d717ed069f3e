package apply

import (
	"context"
	"fmt"

	"github.com/syslua/syslua/pkg/action"
	"github.com/syslua/syslua/pkg/constants"
	"github.com/syslua/syslua/pkg/placeholder"
)

// runActions executes actions in order against owner's entityResolver,
// resolving placeholders in each action's fields immediately before spawn.
func runActions(ctx context.Context, ex *action.Executor, actions []action.Action, owner constants.ObjectHash, r *entityResolver) error {
	for i, act := range actions {
		resolved, err := resolveAction(act, owner, r)
		if err != nil {
			return fmt.Errorf("action %d: %w", i, err)
		}

		var result action.Result
		switch resolved.Kind {
		case constants.ActionKindExec:
			result, err = ex.RunExec(ctx, *resolved.Exec, owner, i)
		case constants.ActionKindFetchURL:
			result, err = ex.RunFetchURL(ctx, *resolved.FetchURL, ex.InputsCacheDir, owner, i)
		default:
			err = fmt.Errorf("unknown action kind %q", resolved.Kind)
		}
		if err != nil {
			return err
		}
		r.recordActionResult(result.Stdout)
	}
	return nil
}

func resolveAction(act action.Action, owner constants.ObjectHash, r *entityResolver) (action.Action, error) {
	out := act
	switch act.Kind {
	case constants.ActionKindExec:
		e := *act.Exec
		resolved, err := resolveExec(e, owner, r)
		if err != nil {
			return action.Action{}, err
		}
		out.Exec = &resolved
	case constants.ActionKindFetchURL:
		f := *act.FetchURL
		url, err := placeholder.Resolve(f.URL, owner, r)
		if err != nil {
			return action.Action{}, err
		}
		out.FetchURL = &action.FetchURL{URL: url, SHA256: f.SHA256}
	}
	return out, nil
}

func resolveExec(e action.Exec, owner constants.ObjectHash, r *entityResolver) (action.Exec, error) {
	bin, err := placeholder.Resolve(e.Bin, owner, r)
	if err != nil {
		return action.Exec{}, err
	}
	args := make([]string, len(e.Args))
	for i, a := range e.Args {
		resolved, err := placeholder.Resolve(a, owner, r)
		if err != nil {
			return action.Exec{}, err
		}
		args[i] = resolved
	}
	env := make(map[string]string, len(e.Env))
	for k, v := range e.Env {
		resolved, err := placeholder.Resolve(v, owner, r)
		if err != nil {
			return action.Exec{}, err
		}
		env[k] = resolved
	}
	cwd := e.Cwd
	if cwd != "" {
		cwd, err = placeholder.Resolve(cwd, owner, r)
		if err != nil {
			return action.Exec{}, err
		}
	}
	return action.Exec{Bin: bin, Args: args, Env: env, Cwd: cwd}, nil
}

// resolveOutputs resolves a bind's output map against r, leaving non-string
// values untouched.
func resolveOutputs(outputs map[string]any, owner constants.ObjectHash, r *entityResolver) (map[string]any, error) {
	resolved := make(map[string]any, len(outputs))
	for k, v := range outputs {
		s, ok := v.(string)
		if !ok {
			resolved[k] = v
			continue
		}
		rv, err := placeholder.Resolve(s, owner, r)
		if err != nil {
			return nil, err
		}
		resolved[k] = rv
	}
	return resolved, nil
}
