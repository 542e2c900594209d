package event_test

import (
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/rancher/renovate-config/internal/event"
)

var _ = Describe("Parse", func() {
	const pullRequest = `{
		"action": "synchronize",
		"number": 42,
		"repository": {
			"name": "renovate-config",
			"owner": {"login": "rancher"}
		},
		"pull_request": {
			"number": 42,
			"head": {"sha": "def456", "ref": "renovate/pep621"},
			"base": {"ref": "main"}
		}
	}`

	const push = `{
		"ref": "refs/heads/release/v2.9",
		"before": "abc123",
		"after": "fed789",
		"repository": {
			"name": "renovate-config",
			"owner": {"login": "rancher", "name": "rancher"}
		}
	}`

	It("parses pull request head and base", func() {
		payload, err := event.Parse("pull_request", strings.NewReader(pullRequest))
		Expect(err).NotTo(HaveOccurred())

		Expect(payload.Event).To(Equal(event.PullRequest))
		Expect(payload.Repository.FullName()).To(Equal("rancher/renovate-config"))
		Expect(payload.Ref).To(Equal("def456"))
		Expect(payload.BaseRef).To(Equal("main"))
		Expect(payload.PullRequestNumber).To(Equal(42))
	})

	It("treats pull_request_target like pull_request", func() {
		payload, err := event.Parse(" Pull_Request_Target ", strings.NewReader(pullRequest))
		Expect(err).NotTo(HaveOccurred())
		Expect(payload.Event).To(Equal(event.PullRequestTarget))
		Expect(payload.Ref).To(Equal("def456"))
	})

	It("parses push events", func() {
		payload, err := event.Parse("push", strings.NewReader(push))
		Expect(err).NotTo(HaveOccurred())

		Expect(payload.Repository.Owner).To(Equal("rancher"))
		Expect(payload.Repository.Name).To(Equal("renovate-config"))
		Expect(payload.Ref).To(Equal("fed789"))
		Expect(payload.BaseRef).To(Equal("release/v2.9"))
		Expect(payload.PullRequestNumber).To(BeZero())
	})

	It("rejects unsupported events", func() {
		_, err := event.Parse("issues", strings.NewReader(`{}`))
		Expect(err).To(MatchError(ContainSubstring(`unsupported event "issues"`)))
	})

	It("reports malformed payloads", func() {
		_, err := event.Parse("push", strings.NewReader(`{"ref":`))
		Expect(err).To(MatchError(ContainSubstring("decode push event")))
	})

	It("leaves the full name empty when the repository is missing", func() {
		payload, err := event.Parse("pull_request", strings.NewReader(`{"pull_request":{"head":{"sha":""}}}`))
		Expect(err).NotTo(HaveOccurred())
		Expect(payload.Repository.FullName()).To(BeEmpty())
		Expect(payload.Ref).To(BeEmpty())
	})

	It("reads payloads from disk", func() {
		path := filepath.Join(GinkgoT().TempDir(), "event.json")
		Expect(os.WriteFile(path, []byte(push), 0o600)).To(Succeed())

		payload, err := event.ParseFile("push", path)
		Expect(err).NotTo(HaveOccurred())
		Expect(payload.Ref).To(Equal("fed789"))

		_, err = event.ParseFile("push", filepath.Join(GinkgoT().TempDir(), "missing.json"))
		Expect(err).To(MatchError(ContainSubstring("open event file")))
	})
})
