package event

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/go-github/v55/github"
)

// Name enumerates the workflow triggers whose payloads we understand.
type Name string

const (
	PullRequest       Name = "pull_request"
	PullRequestTarget Name = "pull_request_target"
	Push              Name = "push"
)

// Payload captures the subset of GitHub event data needed to locate the
// configuration under review.
type Payload struct {
	Event      Name
	Repository Repository
	// Ref is the commit to read configuration from: the pull request head SHA
	// or the pushed commit.
	Ref string
	// BaseRef is the branch the pull request targets or the pushed ref name.
	BaseRef string
	// PullRequestNumber is zero for push events.
	PullRequestNumber int
}

// Repository identifies the owner/name of the repository where the event originated.
type Repository struct {
	Owner string
	Name  string
}

// FullName returns owner/name.
func (r Repository) FullName() string {
	if r.Owner == "" || r.Name == "" {
		return ""
	}
	return r.Owner + "/" + r.Name
}

// Parse decodes the payload of the named event from the provided reader.
func Parse(name string, r io.Reader) (Payload, error) {
	ev := Name(strings.ToLower(strings.TrimSpace(name)))

	switch ev {
	case PullRequest, PullRequestTarget:
		var raw github.PullRequestEvent
		if err := json.NewDecoder(r).Decode(&raw); err != nil {
			return Payload{}, fmt.Errorf("decode %s event: %w", ev, err)
		}
		pr := raw.GetPullRequest()
		return Payload{
			Event:             ev,
			Repository:        repository(raw.GetRepo()),
			Ref:               strings.TrimSpace(pr.GetHead().GetSHA()),
			BaseRef:           strings.TrimSpace(pr.GetBase().GetRef()),
			PullRequestNumber: pr.GetNumber(),
		}, nil
	case Push:
		var raw github.PushEvent
		if err := json.NewDecoder(r).Decode(&raw); err != nil {
			return Payload{}, fmt.Errorf("decode push event: %w", err)
		}
		repo := raw.GetRepo()
		return Payload{
			Event: ev,
			Repository: Repository{
				Owner: strings.TrimSpace(repo.GetOwner().GetLogin()),
				Name:  strings.TrimSpace(repo.GetName()),
			},
			Ref:     strings.TrimSpace(raw.GetAfter()),
			BaseRef: strings.TrimPrefix(strings.TrimSpace(raw.GetRef()), "refs/heads/"),
		}, nil
	default:
		return Payload{}, fmt.Errorf("unsupported event %q", name)
	}
}

func repository(repo *github.Repository) Repository {
	return Repository{
		Owner: strings.TrimSpace(repo.GetOwner().GetLogin()),
		Name:  strings.TrimSpace(repo.GetName()),
	}
}

// ParseFile reads the event JSON from disk.
func ParseFile(name, path string) (Payload, error) {
	f, err := os.Open(path)
	if err != nil {
		return Payload{}, fmt.Errorf("open event file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "failed to close event file: %v\n", closeErr)
		}
	}()

	return Parse(name, f)
}
