package gh

import (
	"context"
	"fmt"
)

// NewNoopFactory returns a Factory whose clients fail every request. Runners
// for the file and git sources use it.
func NewNoopFactory() Factory {
	return noopFactory{}
}

type noopFactory struct{}

func (noopFactory) New(ctx context.Context, token string) (Client, error) {
	return noopClient{}, nil
}

type noopClient struct{}

func (noopClient) GetFileContents(ctx context.Context, owner, repo, path, ref string) ([]byte, error) {
	return nil, fmt.Errorf("noop github client cannot fetch %s/%s:%s", owner, repo, path)
}
