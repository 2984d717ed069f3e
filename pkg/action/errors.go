package action

import "errors"

var (
	errExecMissingPayload  = errors.New("action: kind is exec but Exec payload is nil")
	errExecMissingBin      = errors.New("action: exec.bin must be set")
	errFetchMissingPayload = errors.New("action: kind is fetch_url but FetchURL payload is nil")
	errFetchMissingURL     = errors.New("action: fetch_url.url must be set")
	errFetchMissingSHA256  = errors.New("action: fetch_url.sha256 must be set")
	errUnknownKind         = errors.New("action: unknown kind")
)
